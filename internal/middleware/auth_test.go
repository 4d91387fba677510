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
)

func signed(t *testing.T, method jwt.SigningMethod, secret string, claims *Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAuthRouter(trustGateway bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/whoami", Auth("secret", trustGateway), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.GetString(ContextUserID), "name": c.GetString(ContextUserName)})
	})
	return router
}

func TestAuth_TokenInQuery(t *testing.T) {
	token := signed(t, jwt.SigningMethodHS256, "secret", &Claims{UserID: "u1", Name: "Uma"})

	w := httptest.NewRecorder()
	newAuthRouter(false).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1","name":"Uma"}`, w.Body.String())
}

func TestAuth_GatewayHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "u2")

	w := httptest.NewRecorder()
	newAuthRouter(true).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u2","name":"u2"}`, w.Body.String())
}

func TestAuth_SpoofedGatewayHeaderRejectedWithSecret(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "host")

	w := httptest.NewRecorder()
	newAuthRouter(false).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := signed(t, jwt.SigningMethodHS256, "secret", &Claims{UserID: "u1", Name: "Uma"})
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "host")
	req.Header.Set("Authorization", "Bearer "+token)

	w = httptest.NewRecorder()
	newAuthRouter(false).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1","name":"Uma"}`, w.Body.String())
}

func TestAuth_HeadersTrustedWithoutSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/whoami", Auth("", false), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("X-User-ID", "u3")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u3", w.Body.String())
}

func TestValidateToken(t *testing.T) {
	expired := signed(t, jwt.SigningMethodHS256, "secret", &Claims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	})
	_, err := ValidateToken(expired, "secret")
	assert.Error(t, err)

	wrongAlg := signed(t, jwt.SigningMethodHS512, "secret", &Claims{UserID: "u1"})
	_, err = ValidateToken(wrongAlg, "secret")
	assert.Error(t, err)

	anonymous := signed(t, jwt.SigningMethodHS256, "secret", &Claims{Name: "nobody"})
	_, err = ValidateToken(anonymous, "secret")
	assert.Error(t, err)

	claims, err := ValidateToken(signed(t, jwt.SigningMethodHS256, "secret", &Claims{UserID: "u1"}), "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestAuth_RejectsMalformedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")

	w := httptest.NewRecorder()
	newAuthRouter(false).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
