// Package sse provides readers for streamed event responses: Server-Sent
// Events and newline-delimited JSON.
//
// The SSE reader is not strictly spec compliant. It tolerates the framing
// variants real backends emit ("\n\n", "\r\n\r\n", or "\r\r" between events)
// and ignores fields it does not understand.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// maxEventSize bounds a single event. Final transcription results carry the
// whole word list in one data line, so this is generous.
const maxEventSize = 16 * 1024 * 1024

// Event represents a single server-sent event.
type Event struct {
	// Event is the SSE event type (from "event:" line). Empty for data-only
	// events, which servers conventionally treat as "message".
	Event string
	// Data is the event payload (from "data:" line(s)).
	Data string
	// ID is the event ID (from "id:" line).
	ID string
}

// Reader reads events from a stream.
type Reader interface {
	// Next returns the next event. Returns io.EOF when the stream ends.
	Next() (*Event, error)
	// Close releases the underlying resources.
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewReader creates an SSE reader from a readable stream.
func NewReader(body io.ReadCloser) Reader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 64*1024), maxEventSize)
	sc.Split(scanEventBlocks)
	return &reader{scanner: sc, body: body}
}

// Next returns the next SSE event. Returns io.EOF when the stream ends.
func (r *reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		block := r.scanner.Text()
		ev, ok := parseEventBlock(block)
		if ok {
			return ev, nil
		}
		// comment-only or empty block, keep reading
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the underlying stream.
func (r *reader) Close() error {
	return r.body.Close()
}

// scanEventBlocks splits the stream on SSE event boundaries: a blank line in
// any of the "\r\n\r\n", "\n\n", or "\r\r" forms.
func scanEventBlocks(data []byte, atEOF bool) (advance int, token []byte, err error) {
	pos, dlen := findDelimiter(data)
	if pos >= 0 {
		return pos + dlen, data[:pos], nil
	}
	if atEOF {
		if len(data) == 0 {
			return 0, nil, nil
		}
		// Trailing partial event without a closing delimiter.
		return len(data), data, nil
	}
	return 0, nil, nil
}

func findDelimiter(data []byte) (pos, length int) {
	pos, length = -1, 0
	for _, delim := range [...][]byte{[]byte("\r\n\r\n"), []byte("\n\n"), []byte("\r\r")} {
		if i := bytes.Index(data, delim); i >= 0 && (pos < 0 || i < pos) {
			pos, length = i, len(delim)
		}
	}
	return pos, length
}

// parseEventBlock parses one raw event block into an Event. It reports false
// when the block carries no data (comments, empty keep-alives).
func parseEventBlock(block string) (*Event, bool) {
	var event Event
	var hasData bool

	for _, line := range strings.FieldsFunc(block, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "event":
			event.Event = value
		case "id":
			event.ID = value
		}
	}

	return &event, hasData
}

// parseLine parses a single SSE line into field and value.
func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	// Strip single leading space after colon per SSE spec
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
