package gemini

import (
	"io"
	"net/http"
	"strings"

	"gcli-nexus-go/internal/sse"
	"gcli-nexus-go/internal/translator"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// StreamGenerateContent handles streaming generation for model. Events
// are re-emitted as they arrive; data payloads are unwrapped from the
// CLI envelope when possible and passed through otherwise.
func (h *Handler) StreamGenerateContent(c *gin.Context, model string) {
	clientBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	resp, ok := h.dispatch(c, model, true, clientBody)
	if !ok {
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			abortUpstreamNetwork(c, readErr)
			return
		}
		writeVerbatim(c, resp.StatusCode, resp.Header, body)
		return
	}

	copyHeaders(c.Writer.Header(), resp.Header)
	if c.Writer.Header().Get("Content-Type") == "" {
		c.Writer.Header().Set("Content-Type", "text/event-stream")
	}
	c.Writer.WriteHeader(resp.StatusCode)
	c.Writer.Flush()

	reader := sse.NewReader(resp.Body)
	writer := sse.NewWriter(c.Writer)
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.WithError(err).Warn("upstream stream ended abnormally")
			return
		}

		data := strings.TrimSpace(ev.Data)
		if data == "" {
			continue
		}
		if inner, terr := translator.SSEData(data); terr == nil {
			ev.Data = inner
		} else {
			// Keep-alives and error payloads flow through unmodified.
			ev.Data = data
		}
		if werr := writer.WriteEvent(ev); werr != nil {
			log.WithError(werr).Debug("client went away during stream write")
			return
		}
	}
}
