package auth

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/api/dto"
	"github.com/hbomb79/Cinelog/internal/api/jwt"
	"github.com/hbomb79/Cinelog/internal/api/util"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/user"
	"github.com/hbomb79/Cinelog/pkg/logger"
	"github.com/labstack/echo/v4"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized)
	log             = logger.Get("AuthController")
)

type (
	Store interface {
		RegisterUser(email string, username string, password string) (*user.User, error)
		GetUserWithUsernameAndPassword(username string, rawPassword []byte) (*user.User, error)
		GetUserWithID(ID uuid.UUID) (*user.User, error)
	}

	AuthProvider interface {
		GenerateTokenCookies(userID uuid.UUID) (*http.Cookie, *http.Cookie, error)
		RefreshTokens(allegedRefreshToken string) (*http.Cookie, *http.Cookie, error)
		GetAuthenticatedUserFromContext(ec echo.Context) (*jwt.AuthenticatedUser, error)
		GetVerifierMiddleware() echo.MiddlewareFunc
		RevokeTokensInContext(ec echo.Context)
		RevokeAllForUser(userID uuid.UUID)
		ExpiredTokenCookies() (*http.Cookie, *http.Cookie)
	}

	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	AuthController struct {
		store        Store
		authProvider AuthProvider
	}
)

func New(authProvider AuthProvider, store Store) *AuthController {
	return &AuthController{store, authProvider}
}

func (controller *AuthController) SetRoutes(eg *echo.Group) {
	verifier := controller.authProvider.GetVerifierMiddleware()

	eg.POST("/register/", controller.register)
	eg.POST("/login/", controller.login)
	eg.POST("/refresh/", controller.refresh)
	eg.POST("/logout/", controller.logoutSession, verifier)
	eg.POST("/logout-all/", controller.logoutAll, verifier)
	eg.GET("/current-user/", controller.currentUser, verifier)
}

// register creates a new user, and logs them in by setting
// the auth and refresh token cookies on the response.
func (controller *AuthController) register(ec echo.Context) error {
	var request user.RegisterRequest
	if err := util.BindAndValidate(ec, &request); err != nil {
		return err
	}

	u, err := controller.store.RegisterUser(request.Email, request.Username, request.Password)
	if err != nil {
		return util.HTTPError(err)
	}

	if err := controller.setTokenCookies(ec, u.ID); err != nil {
		log.Errorf("Failed to generate tokens for newly registered user %s: %v\n", u.ID, err)
		return util.HTTPError(err)
	}

	return ec.JSON(http.StatusCreated, dto.UserToDto(u))
}

// login accepts a POST request containing the
// alleged username and password in the body and:
//   - Asserts that the user with the username provided exists
//   - The provided password is valid
//   - Generates an auth token, and a refresh token, and stores
//     these in the requests cookies
func (controller *AuthController) login(ec echo.Context) error {
	var request LoginRequest
	if err := ec.Bind(&request); err != nil {
		log.Warnf("Failed to authenticate due to error: %v\n", err)
		return errUnauthorized
	}

	u, err := controller.store.GetUserWithUsernameAndPassword(request.Username, []byte(request.Password))
	if err != nil {
		log.Warnf("Failed to authenticate due to error: %v\n", err)
		if errors.Is(err, catalog.ErrUnauthorized) {
			return errUnauthorized
		}

		return util.HTTPError(err)
	}

	if err := controller.setTokenCookies(ec, u.ID); err != nil {
		log.Warnf("Failed to authenticate due to error: %v\n", err)
		return errUnauthorized
	}

	return ec.JSON(http.StatusOK, dto.UserToDto(u))
}

// refresh allows a client to obtain a new auth and refresh token by
// providing a valid refresh token. The new tokens are stored
// in the requests cookies, same as login.
func (controller *AuthController) refresh(ec echo.Context) error {
	cookie, err := ec.Cookie(jwt.RefreshTokenCookieName)
	if err != nil {
		return errUnauthorized
	}

	authCookie, refreshCookie, err := controller.authProvider.RefreshTokens(cookie.Value)
	if err != nil {
		log.Warnf("Failed to refresh: %s\n", err)
		return errUnauthorized
	}

	ec.SetCookie(authCookie)
	ec.SetCookie(refreshCookie)
	return ec.NoContent(http.StatusOK)
}

func (controller *AuthController) logoutSession(ec echo.Context) error {
	controller.authProvider.RevokeTokensInContext(ec)
	controller.clearTokenCookies(ec)
	return ec.NoContent(http.StatusOK)
}

func (controller *AuthController) logoutAll(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		return errUnauthorized
	}

	controller.authProvider.RevokeAllForUser(authUser.UserID)
	controller.clearTokenCookies(ec)
	return ec.NoContent(http.StatusOK)
}

func (controller *AuthController) currentUser(ec echo.Context) error {
	authUser, err := controller.authProvider.GetAuthenticatedUserFromContext(ec)
	if err != nil {
		log.Errorf("Failed to get current user due to error %v\n", err)
		return errUnauthorized
	}

	u, err := controller.store.GetUserWithID(authUser.UserID)
	if err != nil {
		log.Errorf("Failed to get current user due to error: %v\n", err)
		return errUnauthorized
	}

	return ec.JSON(http.StatusOK, dto.UserToDto(u))
}

func (controller *AuthController) setTokenCookies(ec echo.Context, userID uuid.UUID) error {
	authCookie, refreshCookie, err := controller.authProvider.GenerateTokenCookies(userID)
	if err != nil {
		return err
	}

	ec.SetCookie(authCookie)
	ec.SetCookie(refreshCookie)
	return nil
}

func (controller *AuthController) clearTokenCookies(ec echo.Context) {
	authCookie, refreshCookie := controller.authProvider.ExpiredTokenCookies()
	ec.SetCookie(authCookie)
	ec.SetCookie(refreshCookie)
}
