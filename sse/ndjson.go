package sse

import (
	"bufio"
	"io"
	"strings"
)

type ndjsonReader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewNDJSONReader creates a Reader over a newline-delimited JSON stream.
// Each non-blank line becomes one Event with the line as its Data and an
// empty event type.
func NewNDJSONReader(body io.ReadCloser) Reader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 64*1024), maxEventSize)
	return &ndjsonReader{scanner: sc, body: body}
}

// Next returns the next record. Returns io.EOF when the stream ends.
func (r *ndjsonReader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		return &Event{Data: line}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the underlying stream.
func (r *ndjsonReader) Close() error {
	return r.body.Close()
}
