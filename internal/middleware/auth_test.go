package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-jwt-secret"

func performRequest(t *testing.T, mw echo.MiddlewareFunc, authorization string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, c
}

func TestJWTAuthValidToken(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := GenerateToken(testSecret, userID, "treasurer", time.Hour)
	require.NoError(t, err)

	auth := NewJWTAuth(testSecret)
	rec, c := performRequest(t, auth.Middleware(), "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, GetUserID(c))
	assert.Equal(t, "treasurer", GetUserRole(c))
}

func TestJWTAuthMissingHeader(t *testing.T) {
	auth := NewJWTAuth(testSecret)
	rec, _ := performRequest(t, auth.Middleware(), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthMalformedHeader(t *testing.T) {
	auth := NewJWTAuth(testSecret)
	rec, _ := performRequest(t, auth.Middleware(), "Token abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthExpiredToken(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := GenerateToken(testSecret, userID, "member", -time.Hour)
	require.NoError(t, err)

	auth := NewJWTAuth(testSecret)
	rec, _ := performRequest(t, auth.Middleware(), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthWrongSecret(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := GenerateToken("some-other-secret", userID, "member", time.Hour)
	require.NoError(t, err)

	auth := NewJWTAuth(testSecret)
	rec, _ := performRequest(t, auth.Middleware(), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleAllows(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/loans/1/status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(UserRoleKey, "admin")

	handler := RequireRole("admin", "treasurer")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleForbids(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/loans/1/status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(UserRoleKey, "member")

	handler := RequireRole("admin", "treasurer")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetUserIDUnauthenticated(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	assert.True(t, GetUserID(c).IsZero())
	assert.Empty(t, GetUserRole(c))
}
