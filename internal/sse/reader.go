// Package sse reads and writes text/event-stream payloads following the
// WHATWG EventSource processing model: all three line endings, comment
// lines, multi-line data, and the optional leading BOM.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is one dispatched server-sent event.
type Event struct {
	// Name is the event type. Empty means the default "message" type.
	Name string
	// ID is the last-event-id value carried by the event, if any.
	ID string
	// Data is the payload, with multi-line data joined by "\n".
	Data string
	// Retry is the raw reconnection-time value, empty when unset.
	Retry string
}

// Reader incrementally parses an event stream.
type Reader struct {
	scanner  *bufio.Scanner
	sawFirst bool
	lastID   string
}

// NewReader wraps r in an event-stream parser.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	sc.Split(scanEventLines)
	return &Reader{scanner: sc}
}

// scanEventLines splits on \r\n, \n, or bare \r. A trailing \r at the
// end of the buffer waits for more input in case a \n follows.
func scanEventLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		switch b {
		case '\n':
			return i + 1, data[:i], nil
		case '\r':
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			// Might be the first half of \r\n.
			return 0, nil, nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Next returns the next dispatched event, or io.EOF when the stream
// ends. Buffered fields not followed by a blank line are discarded, as
// the EventSource model requires.
func (r *Reader) Next() (Event, error) {
	var (
		dataLines []string
		name      string
		retry     string
		hasData   bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if !r.sawFirst {
			line = strings.TrimPrefix(line, "\ufeff")
			r.sawFirst = true
		}

		if line == "" {
			// Dispatch only when the data buffer is non-empty.
			if !hasData {
				name = ""
				dataLines = nil
				retry = ""
				continue
			}
			return Event{
				Name:  name,
				ID:    r.lastID,
				Data:  strings.Join(dataLines, "\n"),
				Retry: retry,
			}, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			name = value
		case "id":
			if !strings.ContainsRune(value, '\x00') {
				r.lastID = value
			}
		case "retry":
			if isDigits(value) {
				retry = value
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

func splitField(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
