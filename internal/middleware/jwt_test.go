package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xamle/civic-api/internal/models"
	"github.com/xamle/civic-api/internal/service"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *models.JWTClaims) string {
	t.Helper()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newProtectedRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append(handlers, func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.JSON(http.StatusOK, gin.H{"user": claims.UserID})
	})
	router.GET("/protected", chain...)
	return router
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	tokens := service.NewTokenService(testSecret)
	router := newProtectedRouter(JWT(tokens))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, &models.JWTClaims{UserID: "u1", Role: models.RoleEditor}))
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "u1")
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	tokens := service.NewTokenService(testSecret)
	router := newProtectedRouter(JWT(tokens))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestJWTMiddlewareRejectsWrongSecret(t *testing.T) {
	tokens := service.NewTokenService("another-secret")
	router := newProtectedRouter(JWT(tokens))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, &models.JWTClaims{UserID: "u1", Role: models.RoleEditor}))
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestOptionalJWTPassesThroughWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := service.NewTokenService(testSecret)
	router := gin.New()
	router.GET("/open", OptionalJWT(tokens), func(c *gin.Context) {
		_, authed := c.Get(ContextUserKey)
		c.JSON(http.StatusOK, gin.H{"authed": authed})
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "false")
}

func TestRBACAllowsRoleAndBlocksOthers(t *testing.T) {
	tokens := service.NewTokenService(testSecret)
	router := newProtectedRouter(JWT(tokens), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, &models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}))
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, &models.JWTClaims{UserID: "e1", Role: models.RoleEditor}))
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}
