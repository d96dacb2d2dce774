package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hbomb79/Cinelog/internal/api/jwt"
	"github.com/hbomb79/Cinelog/internal/catalog"
	"github.com/hbomb79/Cinelog/internal/user"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	users map[uuid.UUID]*user.User
}

func (s *stubStore) RecordUserLogin(uuid.UUID) error { return nil }
func (s *stubStore) GetUserWithID(id uuid.UUID) (*user.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}

	return nil, catalog.NotFoundf("user %s does not exist", id)
}

type authProvider interface {
	GenerateTokenCookies(uuid.UUID) (*http.Cookie, *http.Cookie, error)
	RefreshTokens(string) (*http.Cookie, *http.Cookie, error)
	GetVerifierMiddleware() echo.MiddlewareFunc
	GetAuthenticatedUserFromContext(echo.Context) (*jwt.AuthenticatedUser, error)
	RevokeAllForUser(uuid.UUID)
}

func newProvider() (uuid.UUID, authProvider) {
	id := uuid.New()
	store := &stubStore{users: map[uuid.UUID]*user.User{id: {ID: id, Username: "alice"}}}
	return id, jwt.NewJwtAuth(store, "/refresh/", []byte("auth-secret-auth-secret-auth-secret"), []byte("refresh-secret-refresh-secret-refresh"), true)
}

// verify runs the verifier middleware against a request carrying
// the cookie provided, returning the resulting error (if any) and
// the user ID placed in the context.
func verify(provider authProvider, cookie *http.Cookie) (uuid.UUID, error) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	ec := echo.New().NewContext(req, httptest.NewRecorder())

	var userID uuid.UUID
	err := provider.GetVerifierMiddleware()(func(ec echo.Context) error {
		u, err := provider.GetAuthenticatedUserFromContext(ec)
		if err != nil {
			return err
		}

		userID = u.UserID
		return nil
	})(ec)

	return userID, err
}

func assertUnauthorized(t *testing.T, err error) {
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestGenerateTokenCookies(t *testing.T) {
	userID, provider := newProvider()

	authCookie, refreshCookie, err := provider.GenerateTokenCookies(userID)
	require.NoError(t, err)

	assert.Equal(t, jwt.AuthTokenCookieName, authCookie.Name)
	assert.Equal(t, "/", authCookie.Path)
	assert.True(t, authCookie.HttpOnly)
	assert.True(t, authCookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, authCookie.SameSite)

	assert.Equal(t, jwt.RefreshTokenCookieName, refreshCookie.Name)
	assert.Equal(t, "/refresh/", refreshCookie.Path)

	verifiedID, err := verify(provider, authCookie)
	require.NoError(t, err)
	assert.Equal(t, userID, verifiedID)

	t.Run("Refresh token is not an auth token", func(t *testing.T) {
		_, err := verify(provider, &http.Cookie{Name: jwt.AuthTokenCookieName, Value: refreshCookie.Value})
		assertUnauthorized(t, err)
	})

	t.Run("Unknown user", func(t *testing.T) {
		_, _, err := provider.GenerateTokenCookies(uuid.New())
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})
}

func TestVerifier_Rejects(t *testing.T) {
	_, provider := newProvider()

	_, err := verify(provider, nil)
	assertUnauthorized(t, err)

	_, err = verify(provider, &http.Cookie{Name: jwt.AuthTokenCookieName, Value: "not.a.jwt"})
	assertUnauthorized(t, err)
}

func TestRefreshTokens_RevokesOldToken(t *testing.T) {
	userID, provider := newProvider()
	_, refreshCookie, err := provider.GenerateTokenCookies(userID)
	require.NoError(t, err)

	newAuth, newRefresh, err := provider.RefreshTokens(refreshCookie.Value)
	require.NoError(t, err)
	assert.NotEqual(t, refreshCookie.Value, newRefresh.Value)

	_, err = verify(provider, newAuth)
	assert.NoError(t, err)

	_, _, err = provider.RefreshTokens(refreshCookie.Value)
	assert.Error(t, err, "a refresh token must only be usable once")
}

func TestRevokeAllForUser(t *testing.T) {
	userID, provider := newProvider()
	first, _, err := provider.GenerateTokenCookies(userID)
	require.NoError(t, err)
	second, _, err := provider.GenerateTokenCookies(userID)
	require.NoError(t, err)

	provider.RevokeAllForUser(userID)

	_, err = verify(provider, first)
	assertUnauthorized(t, err)
	_, err = verify(provider, second)
	assertUnauthorized(t, err)
}

// Logins racing one another must all be tracked, so that none of the
// resulting sessions survive a revocation of every token for the user.
func TestRevokeAllForUser_ConcurrentLogins(t *testing.T) {
	userID, provider := newProvider()

	const logins = 50
	cookies := make([]*http.Cookie, logins)
	wg := &sync.WaitGroup{}
	for i := 0; i < logins; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			authCookie, _, err := provider.GenerateTokenCookies(userID)
			if assert.NoError(t, err) {
				cookies[i] = authCookie
			}
		}()
	}
	wg.Wait()

	provider.RevokeAllForUser(userID)

	for _, cookie := range cookies {
		require.NotNil(t, cookie)
		_, err := verify(provider, cookie)
		assertUnauthorized(t, err)
	}
}
