package router

import (
	"fmt"
	"net/http"
	"strings"
)

// SSEStream writes Server-Sent Events to a flushing response writer.
type SSEStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// StartSSE sends the event-stream headers. It returns nil when w cannot
// flush.
func StartSSE(w http.ResponseWriter) *SSEStream {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEStream{w: w, flusher: flusher}
}

// WriteData sends one unnamed event. Multi-line payloads are split across
// data fields.
func (s *SSEStream) WriteData(data string) error {
	var b strings.Builder
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return s.write(b.String())
}

// WriteEvent sends a named event.
func (s *SSEStream) WriteEvent(event, data string) error {
	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	return s.WriteData(data)
}

// WriteHeartbeat sends an empty event so idle clients and proxies keep the
// connection open.
func (s *SSEStream) WriteHeartbeat() error {
	return s.write("data: \n\n")
}

func (s *SSEStream) write(payload string) error {
	if _, err := s.w.Write([]byte(payload)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
