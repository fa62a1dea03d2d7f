package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Use(JWTMiddleware(testSecret, func(c echo.Context) bool {
		return c.Request().URL.Path == "/ping"
	}))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	e.GET("/me", func(c echo.Context) error {
		id, err := UserIDFromContext(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return c.String(http.StatusOK, id)
	})
	return e
}

func serve(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	t.Parallel()
	e := newTestEcho()

	token, expiresAt, err := GenerateToken("seller-1", testSecret, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

	rec := serve(e, "/me", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "seller-1", rec.Body.String())

	assert.Equal(t, http.StatusOK, serve(e, "/ping", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/me", "").Code)

	forged, _, err := GenerateToken("seller-1", "other-secret", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/me", forged).Code)
}

func TestJWTMiddlewareRejectsExpired(t *testing.T) {
	t.Parallel()
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "seller-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, serve(newTestEcho(), "/me", signed).Code)
}

func TestUserIDFromContextWithoutToken(t *testing.T) {
	t.Parallel()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, err := UserIDFromContext(c)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestGenerateTokenValidation(t *testing.T) {
	t.Parallel()
	_, _, err := GenerateToken("", testSecret, time.Minute)
	assert.Error(t, err)
	_, _, err = GenerateToken("u", "", time.Minute)
	assert.Error(t, err)
}
