package sse

import (
	"io"
	"net/http"
	"strings"
)

// Writer serializes events back onto an HTTP response, flushing after
// every event so clients see tokens as they arrive.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w, detecting http.Flusher support.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// WriteEvent emits one event. The default "message" event type is
// suppressed, matching what EventSource-compatible emitters send.
func (w *Writer) WriteEvent(ev Event) error {
	var b strings.Builder
	if ev.Name != "" && ev.Name != "message" {
		b.WriteString("event: ")
		b.WriteString(ev.Name)
		b.WriteByte('\n')
	}
	if ev.ID != "" {
		b.WriteString("id: ")
		b.WriteString(ev.ID)
		b.WriteByte('\n')
	}
	if ev.Retry != "" {
		b.WriteString("retry: ")
		b.WriteString(ev.Retry)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
