// Package gemini implements the client-facing generation endpoints. A
// request is tried against up to maxCredentialAttempts pool credentials;
// quota and auth failures rotate to the next credential, everything else
// is forwarded to the client exactly as the upstream produced it.
package gemini

import (
	"context"
	"net/http"
	"time"

	"gcli-nexus-go/internal/credential"

	"github.com/gin-gonic/gin"
)

// maxCredentialAttempts caps how many distinct credentials one request
// may consume before the last upstream rejection is surfaced.
const maxCredentialAttempts = 3

// defaultCooldown applies when a 429 carries no parseable reset time.
const defaultCooldown = 90 * time.Second

// CredentialPool is the slice of the pool surface the dispatcher needs.
type CredentialPool interface {
	GetCredential(ctx context.Context, model string) (credential.Assigned, error)
	ReportRateLimit(id int64, model string, d time.Duration)
	ReportInvalid(id int64)
	ReportBanned(id int64)
}

// Upstream posts a CLI-protocol payload and returns the raw response.
type Upstream interface {
	PostCLI(ctx context.Context, accessToken string, stream bool, payload []byte) (*http.Response, error)
}

type Handler struct {
	pool     CredentialPool
	upstream Upstream
	now      func() time.Time
}

// Option customizes Handler creation.
type Option func(*Handler)

// WithNowFunc overrides the clock (testing).
func WithNowFunc(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func New(pool CredentialPool, upstream Upstream, opts ...Option) *Handler {
	h := &Handler{pool: pool, upstream: upstream, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func abortNoCredential(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no available credential"})
}

func abortUpstreamNetwork(c *gin.Context, err error) {
	c.JSON(http.StatusBadGateway, gin.H{"error": "upstream request failed: " + err.Error()})
}

func abortPoolUnavailable(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "credential service unavailable"})
}
