package jwt

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/user"
	"github.com/hbomb79/Cinelog/pkg/logger"
	typedsync "github.com/hbomb79/Cinelog/pkg/sync"
	"github.com/labstack/echo/v4"
)

var (
	ErrAuthTokenMissing = errors.New("request does not contain required auth token in cookies")

	log = logger.Get("JWT-Auth")
)

const (
	AuthTokenCookieName = "auth-token"
	AuthTokenLifespan   = time.Minute * 30

	RefreshTokenCookieName = "refresh-token"
	RefreshTokenLifespan   = time.Hour * 24 * 30 // 30 days

	userContextKey = "user"
)

type (
	AuthenticatedUser struct {
		UserID uuid.UUID
	}

	tokenClaims struct {
		jwt.RegisteredClaims
		UserID uuid.UUID `json:"user_id"`
	}

	Store interface {
		RecordUserLogin(userID uuid.UUID) error
		GetUserWithID(ID uuid.UUID) (*user.User, error)
	}

	jwtAuthProvider struct {
		store                  Store
		authTokenSecret        []byte
		refreshTokenSecret     []byte
		refreshTokenCookiePath string
		secureCookies          bool

		// This map (acting as a set) is used to keep track of
		// any token which we have explicitly revoked (for example,
		// when a user logs out, the auth and refresh token are revoked).
		//
		// NB: Tokens are removed from this set when they are cleaned up
		// (which happens automatically some time after their expiration).
		blacklistedTokens *typedsync.TypedSyncMap[string, struct{}]

		// Tokens currently 'active' for each user, used to revoke every
		// session a user has when requested. Guarded by userTokensMutex.
		userTokensMutex sync.Mutex
		userTokens      map[uuid.UUID][]string
	}
)

// NewJwtAuth creates a new authentication provider which
// uses JWT tokens to authenticate user actions.
// The refresh route path restricts the transmission of the
// refresh token cookie to the route which consumes it.
// The two secrets are used to sign the tokens; they should
// not match, and should be >= 256 bits in size
func NewJwtAuth(store Store, refreshRoutePath string, authTokenSecret []byte, refreshTokenSecret []byte, secureCookies bool) *jwtAuthProvider {
	return &jwtAuthProvider{
		store:                  store,
		authTokenSecret:        authTokenSecret,
		refreshTokenSecret:     refreshTokenSecret,
		refreshTokenCookiePath: refreshRoutePath,
		secureCookies:          secureCookies,
		blacklistedTokens:      new(typedsync.TypedSyncMap[string, struct{}]),
		userTokens:             make(map[uuid.UUID][]string),
	}
}

// GenerateTokenCookies generates an auth token and a refresh token
// using the appropriate secrets and expiries, returning both as cookies
// ready to be set on the response.
func (auth *jwtAuthProvider) GenerateTokenCookies(userID uuid.UUID) (*http.Cookie, *http.Cookie, error) {
	if _, err := auth.store.GetUserWithID(userID); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch user %s during token generation: %w", userID, err)
	}

	authToken, authTokenExp, err := auth.generateToken(userID, AuthTokenLifespan, auth.authTokenSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate auth token: %w", err)
	}

	refreshToken, refreshTokenExp, err := auth.generateToken(userID, RefreshTokenLifespan, auth.refreshTokenSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	// Don't block the request waiting for this
	go func() {
		if err := auth.store.RecordUserLogin(userID); err != nil {
			log.Warnf("Failed to record user login for %v: %v\n", userID, err)
		}
	}()

	auth.userTokensMutex.Lock()
	auth.userTokens[userID] = append(auth.userTokens[userID], authToken, refreshToken)
	auth.userTokensMutex.Unlock()

	auth.scheduleUserTokenCleanup(userID, authToken, authTokenExp)
	auth.scheduleUserTokenCleanup(userID, refreshToken, refreshTokenExp)

	authTokenCookie := auth.createTokenCookie(AuthTokenCookieName, "/", authToken, authTokenExp)
	refreshTokenCookie := auth.createTokenCookie(RefreshTokenCookieName, auth.refreshTokenCookiePath, refreshToken, refreshTokenExp)
	return authTokenCookie, refreshTokenCookie, nil
}

// GetAuthenticatedUserFromContext provides a way for endpoints
// to extract the users ID from the context of their request. An
// error will be returned if no valid user can be found.
func (auth *jwtAuthProvider) GetAuthenticatedUserFromContext(ec echo.Context) (*AuthenticatedUser, error) {
	u, ok := ec.Get(userContextKey).(*AuthenticatedUser)
	if !ok {
		return nil, errors.New("no user found in request context")
	}

	return u, nil
}

// GetVerifierMiddleware returns a middleware which rejects any request
// which does not carry a valid, unrevoked auth token cookie. The authenticated
// user is stored in the request context for handlers to retrieve.
func (auth *jwtAuthProvider) GetVerifierMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			tokenCookie, err := ec.Cookie(AuthTokenCookieName)
			if err != nil {
				log.Debugf("Rejecting request to %s: %s\n", ec.Path(), ErrAuthTokenMissing)
				return echo.NewHTTPError(http.StatusUnauthorized).SetInternal(ErrAuthTokenMissing)
			}

			userID, err := auth.validateJWT(tokenCookie.Value, auth.authTokenSecret)
			if err != nil {
				log.Debugf("Rejecting request to %s: %s\n", ec.Path(), err)
				return echo.NewHTTPError(http.StatusUnauthorized).SetInternal(err)
			}

			ec.Set(userContextKey, &AuthenticatedUser{UserID: userID})
			return next(ec)
		}
	}
}

// RevokeTokensInContext revokes the auth and refresh token in this
// request context, assuming they are provided. A missing token/cookie
// is ignored.
func (auth *jwtAuthProvider) RevokeTokensInContext(ec echo.Context) {
	if cookie, err := ec.Cookie(AuthTokenCookieName); err == nil && cookie != nil {
		auth.revokeToken(cookie.Value)
	}
	if cookie, err := ec.Cookie(RefreshTokenCookieName); err == nil && cookie != nil {
		auth.revokeToken(cookie.Value)
	}
}

// ExpiredTokenCookies returns a pair of cookies which, when set on a response,
// instruct the client to discard its auth and refresh tokens.
func (auth *jwtAuthProvider) ExpiredTokenCookies() (*http.Cookie, *http.Cookie) {
	authCookie := auth.createTokenCookie(AuthTokenCookieName, "/", "", time.Unix(0, 0))
	authCookie.MaxAge = -1

	refreshCookie := auth.createTokenCookie(RefreshTokenCookieName, auth.refreshTokenCookiePath, "", time.Unix(0, 0))
	refreshCookie.MaxAge = -1

	return authCookie, refreshCookie
}

// RevokeAllForUser finds all the tokens we've granted to a specified
// user ID and revokes all of them (if any). This will require that the
// specified user logs in again on all of their devices.
func (auth *jwtAuthProvider) RevokeAllForUser(userID uuid.UUID) {
	auth.userTokensMutex.Lock()
	defer auth.userTokensMutex.Unlock()

	for _, granted := range auth.userTokens[userID] {
		auth.revokeToken(granted)
	}
}

// RefreshTokens generates new auth and refresh tokens IF the token provided is
// a valid refresh token. The token provided is revoked, and the new cookies
// are returned to the caller on success.
func (auth *jwtAuthProvider) RefreshTokens(allegedRefreshToken string) (*http.Cookie, *http.Cookie, error) {
	userID, err := auth.validateJWT(allegedRefreshToken, auth.refreshTokenSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to refresh: %w", err)
	}

	auth.revokeToken(allegedRefreshToken)
	return auth.GenerateTokenCookies(userID)
}

// validateJWT ensures that the provided token is:
//   - signed using the same secret/algorithm as we expect
//   - contains a valid userID
//   - not expired
//   - not blacklisted
func (auth *jwtAuthProvider) validateJWT(token string, secret []byte) (uuid.UUID, error) {
	claims := &tokenClaims{}
	tkn, err := jwt.ParseWithClaims(
		token,
		claims,
		func(token *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if tkn == nil || !tkn.Valid {
		return uuid.Nil, errors.New("failed to verify JWT: token is expired or invalid")
	}

	if claims.UserID == uuid.Nil {
		return uuid.Nil, errors.New("failed to extract user ID from JWT claims: missing")
	}

	if _, ok := auth.blacklistedTokens.Load(token); ok {
		return uuid.Nil, errors.New("failed to verify JWT: token has been revoked")
	}

	return claims.UserID, nil
}

func (auth *jwtAuthProvider) generateToken(userID uuid.UUID, lifespan time.Duration, secret []byte) (string, time.Time, error) {
	exp := time.Now().Add(lifespan)
	claims := &tokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Now(), err
	}

	return tokenString, exp, nil
}

// scheduleUserTokenCleanup will remove the specified token from the users token map
// at the time specified. This allows for us to store any newly generated
// user tokens inside the map without worrying about the size of the map
// growing with no limit
func (auth *jwtAuthProvider) scheduleUserTokenCleanup(userID uuid.UUID, token string, expiry time.Time) {
	time.AfterFunc(time.Until(expiry.Add(time.Second*5)), func() {
		// Clear from blacklist as it won't be accepted now due to expiring anyway
		auth.blacklistedTokens.Delete(token)

		auth.userTokensMutex.Lock()
		defer auth.userTokensMutex.Unlock()

		remaining := slices.DeleteFunc(auth.userTokens[userID], func(tk string) bool { return tk == token })
		if len(remaining) == 0 {
			delete(auth.userTokens, userID)
		} else {
			auth.userTokens[userID] = remaining
		}
	})
}

func (auth *jwtAuthProvider) revokeToken(token string) {
	auth.blacklistedTokens.Store(token, struct{}{})
}

func (auth *jwtAuthProvider) createTokenCookie(name string, path string, token string, expiration time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Expires:  expiration,
		Path:     path,
		HttpOnly: true,
		Secure:   auth.secureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}
