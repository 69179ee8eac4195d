package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/volunteer-hub-api/internal/pkg/jwthelper"
)

const testSigningKey = "test-signing-key"

func newAuthTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/protected", NewAuthenticator(testSigningKey).VerifyJWT(), func(ctx *gin.Context) {
		userID, ok := GetUserID(ctx)
		if !ok {
			ctx.Status(http.StatusInternalServerError)

			return
		}

		ctx.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	return router
}

func TestVerifyJWT(t *testing.T) {
	router := newAuthTestRouter()

	t.Run("valid token passes", func(t *testing.T) {
		token, err := jwthelper.GenerateToken([]byte(testSigningKey), 42, "test-agent")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", "test-agent")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":42}`, w.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		token, err := jwthelper.GenerateToken([]byte("other-key"), 42, "test-agent")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", "test-agent")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("user agent mismatch", func(t *testing.T) {
		token, err := jwthelper.GenerateToken([]byte(testSigningKey), 42, "test-agent")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", "another-agent")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
