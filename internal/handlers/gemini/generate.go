package gemini

import (
	"io"
	"net/http"
	"strconv"

	"gcli-nexus-go/internal/translator"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// GenerateContent handles non-streaming generation for model.
func (h *Handler) GenerateContent(c *gin.Context, model string) {
	clientBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	resp, ok := h.dispatch(c, model, false, clientBody)
	if !ok {
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		abortUpstreamNetwork(c, err)
		return
	}

	if resp.StatusCode >= 400 {
		writeVerbatim(c, resp.StatusCode, resp.Header, body)
		return
	}

	out, err := translator.Unary(body)
	if err != nil {
		// No envelope to peel: relay the body untouched.
		log.Debug("unary response missing CLI envelope, passing through")
		out = body
	}

	copyHeaders(c.Writer.Header(), resp.Header)
	c.Writer.Header().Set("Content-Type", "application/json")
	c.Writer.Header().Set("Content-Length", strconv.Itoa(len(out)))
	c.Writer.WriteHeader(resp.StatusCode)
	if _, err := c.Writer.Write(out); err != nil {
		log.WithError(err).Debug("client went away during unary write")
	}
}
