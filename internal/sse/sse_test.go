package sse

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, input string) []Event {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var events []Event
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestReaderBasicEvents(t *testing.T) {
	events := readAll(t, "data: {\"a\":1}\n\ndata: {\"b\":2}\n\n")
	require.Len(t, events, 2)
	require.Equal(t, `{"a":1}`, events[0].Data)
	require.Equal(t, `{"b":2}`, events[1].Data)
	require.Empty(t, events[0].Name)
}

func TestReaderLineEndingVariants(t *testing.T) {
	for name, input := range map[string]string{
		"lf":   "data: x\n\n",
		"crlf": "data: x\r\n\r\n",
		"cr":   "data: x\r\r",
		"mix":  "data: x\r\n\n",
	} {
		events := readAll(t, input)
		require.Len(t, events, 1, name)
		require.Equal(t, "x", events[0].Data, name)
	}
}

func TestReaderMultiLineData(t *testing.T) {
	events := readAll(t, "data: first\ndata: second\ndata:\n\n")
	require.Len(t, events, 1)
	require.Equal(t, "first\nsecond\n", events[0].Data)
}

func TestReaderEventIDRetryFields(t *testing.T) {
	events := readAll(t, "event: delta\nid: 7\nretry: 3000\ndata: payload\n\n")
	require.Len(t, events, 1)
	require.Equal(t, "delta", events[0].Name)
	require.Equal(t, "7", events[0].ID)
	require.Equal(t, "3000", events[0].Retry)
	require.Equal(t, "payload", events[0].Data)
}

func TestReaderLastEventIDPersists(t *testing.T) {
	events := readAll(t, "id: 1\ndata: a\n\ndata: b\n\n")
	require.Len(t, events, 2)
	require.Equal(t, "1", events[0].ID)
	require.Equal(t, "1", events[1].ID, "id sticks until replaced")
}

func TestReaderIgnoresCommentsAndBogusRetry(t *testing.T) {
	events := readAll(t, ": keep-alive\nretry: abc\ndata: x\n\n")
	require.Len(t, events, 1)
	require.Empty(t, events[0].Retry)
	require.Equal(t, "x", events[0].Data)
}

func TestReaderNoDispatchWithoutData(t *testing.T) {
	events := readAll(t, "event: ping\n\ndata: real\n\n")
	require.Len(t, events, 1)
	require.Equal(t, "real", events[0].Data)
	require.Empty(t, events[0].Name, "event buffer resets on empty dispatch")
}

func TestReaderDropsUnterminatedEvent(t *testing.T) {
	events := readAll(t, "data: complete\n\ndata: dangling")
	require.Len(t, events, 1)
	require.Equal(t, "complete", events[0].Data)
}

func TestReaderStripsBOM(t *testing.T) {
	events := readAll(t, "\xef\xbb\xbfdata: x\n\n")
	require.Len(t, events, 1)
	require.Equal(t, "x", events[0].Data)
}

func TestReaderFieldWithoutColon(t *testing.T) {
	events := readAll(t, "data\n\n")
	require.Len(t, events, 1)
	require.Equal(t, "", events[0].Data)
}

func TestWriterSuppressesDefaultEventName(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb)
	require.NoError(t, w.WriteEvent(Event{Name: "message", Data: "x"}))
	require.Equal(t, "data: x\n\n", sb.String())
}

func TestWriterEmitsAllFields(t *testing.T) {
	var sb strings.Builder
	w := NewWriter(&sb)
	require.NoError(t, w.WriteEvent(Event{Name: "delta", ID: "9", Retry: "500", Data: "a\nb"}))
	require.Equal(t, "event: delta\nid: 9\nretry: 500\ndata: a\ndata: b\n\n", sb.String())
}

// Writing then re-reading preserves the event content.
func TestReadWriteRoundTrip(t *testing.T) {
	original := Event{Name: "delta", ID: "3", Retry: "1000", Data: "line1\nline2"}
	var sb strings.Builder
	require.NoError(t, NewWriter(&sb).WriteEvent(original))

	events := readAll(t, sb.String())
	require.Len(t, events, 1)
	require.Equal(t, original, events[0])
}
