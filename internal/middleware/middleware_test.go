package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter(cfg AuthConfig) *gin.Engine {
	r := gin.New()
	r.Use(UnifiedAuth(cfg))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func doReq(r *gin.Engine, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthDisabledWhenNoKeyConfigured(t *testing.T) {
	w := doReq(authRouter(AuthConfig{}), nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthAcceptsAllKeySources(t *testing.T) {
	r := authRouter(AuthConfig{Key: "s3cret"})

	for name, mutate := range map[string]func(*http.Request){
		"bearer":       func(req *http.Request) { req.Header.Set("Authorization", "Bearer s3cret") },
		"goog-header":  func(req *http.Request) { req.Header.Set("x-goog-api-key", "s3cret") },
		"query":        func(req *http.Request) { req.URL.RawQuery = "key=s3cret" },
		"raw-auth-hdr": func(req *http.Request) { req.Header.Set("Authorization", "s3cret") },
	} {
		w := doReq(r, mutate)
		require.Equal(t, http.StatusOK, w.Code, name)
	}
}

func TestAuthRejectsWrongOrMissingKey(t *testing.T) {
	r := authRouter(AuthConfig{Key: "s3cret"})

	w := doReq(r, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doReq(r, func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") })
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "invalid_api_key")
}

func TestAuthBcryptHashTakesPrecedence(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	r := authRouter(AuthConfig{Key: "ignored", KeyHash: string(hash)})

	w := doReq(r, func(req *http.Request) { req.Header.Set("x-goog-api-key", "s3cret") })
	require.Equal(t, http.StatusOK, w.Code)

	w = doReq(r, func(req *http.Request) { req.Header.Set("x-goog-api-key", "ignored") })
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(1, 2))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := doReq(r, nil)
		codes = append(codes, w.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterKeysOnAPIKey(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("api_key", c.GetHeader("x-goog-api-key"))
		c.Next()
	})
	r.Use(RateLimiter(1, 1))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := doReq(r, func(req *http.Request) { req.Header.Set("x-goog-api-key", "alice") })
	require.Equal(t, http.StatusOK, w.Code)
	w = doReq(r, func(req *http.Request) { req.Header.Set("x-goog-api-key", "alice") })
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// A different key gets its own bucket.
	w = doReq(r, func(req *http.Request) { req.Header.Set("x-goog-api-key", "bob") })
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDPropagatesAndMints(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := doReq(r, func(req *http.Request) { req.Header.Set("X-Request-ID", "abc-123") })
	require.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = doReq(r, nil)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRecoveryReturnsJSON500(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/ping", func(c *gin.Context) { panic("boom") })

	w := doReq(r, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "panic_recovered")
}
