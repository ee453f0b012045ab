package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds client authentication settings.
type AuthConfig struct {
	// Key is the shared secret clients must present. Empty disables
	// auth unless KeyHash is set.
	Key string
	// KeyHash, when set, is a bcrypt hash checked instead of Key.
	KeyHash string
}

// UnifiedAuth accepts the client key from any of the places Gemini
// tooling puts it:
//   - Authorization: Bearer <key>
//   - x-goog-api-key: <key>
//   - query parameter ?key=<key>
func UnifiedAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Key == "" && cfg.KeyHash == "" {
			c.Next()
			return
		}

		provided := extractClientKey(c)
		if provided == "" {
			respondUnauthorized(c, "API key not provided")
			return
		}

		if cfg.KeyHash != "" {
			if bcrypt.CompareHashAndPassword([]byte(cfg.KeyHash), []byte(provided)) != nil {
				respondUnauthorized(c, "Invalid API key")
				return
			}
		} else if provided != cfg.Key {
			respondUnauthorized(c, "Invalid API key")
			return
		}

		c.Set("api_key", provided)
		c.Next()
	}
}

func extractClientKey(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return strings.TrimSpace(auth[7:])
		}
		return auth
	}
	if key := strings.TrimSpace(c.GetHeader("x-goog-api-key")); key != "" {
		return key
	}
	return strings.TrimSpace(c.Query("key"))
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"message": message,
			"type":    "invalid_request_error",
			"code":    "invalid_api_key",
		},
	})
}
