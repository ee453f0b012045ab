package gemini

import (
	"errors"
	"io"
	"net/http"
	"time"

	"gcli-nexus-go/internal/pool"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// storedResponse keeps the last retryable upstream rejection so it can
// be surfaced verbatim if every credential attempt fails.
type storedResponse struct {
	status int
	header http.Header
	body   []byte
}

// buildCLIPayload wraps the client body in the CLI protocol envelope:
// {"model": ..., "request": <client body>}. The per-credential "project"
// field is patched in by the dispatch loop.
func buildCLIPayload(model string, clientBody []byte) ([]byte, error) {
	if !gjson.ValidBytes(clientBody) {
		return nil, errors.New("request body is not valid JSON")
	}
	payload, err := sjson.SetBytes([]byte(`{}`), "model", model)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(payload, "request", clientBody)
}

// quotaResetDelay extracts the cooldown a 429 body asks for. The first
// error.details[*].metadata.quotaResetTimeStamp in the future wins; a
// body with only past timestamps means "retry now" and a body with no
// parseable timestamp falls back to the default.
func (h *Handler) quotaResetDelay(body []byte) time.Duration {
	now := h.now()
	var futureDelay time.Duration
	foundFuture := false
	sawPast := false

	gjson.GetBytes(body, "error.details").ForEach(func(_, detail gjson.Result) bool {
		raw := detail.Get("metadata.quotaResetTimeStamp").String()
		if raw == "" {
			return true
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return true
		}
		if d := ts.Sub(now); d > 0 {
			futureDelay = d
			foundFuture = true
			return false
		}
		sawPast = true
		return true
	})

	if foundFuture {
		return futureDelay
	}
	if sawPast {
		return 0
	}
	return defaultCooldown
}

// dispatch runs the credential rotation loop and returns the first
// response the client should see. A nil response means dispatch already
// wrote an error to c.
func (h *Handler) dispatch(c *gin.Context, model string, stream bool, clientBody []byte) (*http.Response, bool) {
	ctx := c.Request.Context()

	basePayload, err := buildCLIPayload(model, clientBody)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	var last *storedResponse
	for attempt := 0; attempt < maxCredentialAttempts; attempt++ {
		assigned, err := h.pool.GetCredential(ctx, model)
		if err != nil {
			if errors.Is(err, pool.ErrNoAvailableCredential) {
				// An empty pool ends the request even when an earlier
				// attempt stored a rejection: only exhausting the full
				// attempt budget surfaces that response.
				abortNoCredential(c)
				return nil, false
			}
			if errors.Is(err, pool.ErrServiceUnavailable) {
				abortPoolUnavailable(c)
				return nil, false
			}
			// Context cancellation: the client is gone, nothing to write.
			return nil, false
		}

		payload, err := sjson.SetBytes(basePayload, "project", assigned.ProjectID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build upstream payload"})
			return nil, false
		}

		resp, err := h.upstream.PostCLI(ctx, assigned.AccessToken, stream, payload)
		if err != nil {
			abortUpstreamNetwork(c, err)
			return nil, false
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			body := drainResponse(resp)
			delay := h.quotaResetDelay(body)
			h.pool.ReportRateLimit(assigned.ID, model, delay)
			log.WithFields(log.Fields{
				"credential_id": assigned.ID,
				"model":         model,
				"cooldown":      delay.String(),
			}).Info("credential hit quota, rotating")
			last = &storedResponse{status: resp.StatusCode, header: resp.Header, body: body}
		case http.StatusUnauthorized:
			body := drainResponse(resp)
			h.pool.ReportInvalid(assigned.ID)
			log.WithField("credential_id", assigned.ID).Warn("credential rejected as invalid, rotating")
			last = &storedResponse{status: resp.StatusCode, header: resp.Header, body: body}
		case http.StatusForbidden:
			body := drainResponse(resp)
			h.pool.ReportBanned(assigned.ID)
			log.WithField("credential_id", assigned.ID).Warn("credential forbidden, rotating")
			last = &storedResponse{status: resp.StatusCode, header: resp.Header, body: body}
		default:
			// Success and every other failure belong to the client.
			return resp, true
		}
	}

	if last != nil {
		writeVerbatim(c, last.status, last.header, last.body)
		return nil, false
	}
	abortNoCredential(c)
	return nil, false
}

func drainResponse(resp *http.Response) []byte {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Warn("failed to read upstream error body")
	}
	return body
}

// writeVerbatim relays an upstream response unchanged. Hop-by-hop
// framing headers are recomputed by the server.
func writeVerbatim(c *gin.Context, status int, header http.Header, body []byte) {
	copyHeaders(c.Writer.Header(), header)
	c.Data(status, header.Get("Content-Type"), body)
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		switch http.CanonicalHeaderKey(key) {
		case "Transfer-Encoding", "Content-Length", "Connection":
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
