package mux

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// ResponseWriter wraps http.ResponseWriter and tracks whether the response
// has been finalized. The status line is committed once: a second
// WriteHeader is not forwarded and is counted as a double finalization.
type ResponseWriter struct {
	http.ResponseWriter

	status  int
	size    int
	written bool
	extra   int
}

func newResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w}
}

// WriteHeader commits the status code. Later calls are ignored and
// recorded.
func (w *ResponseWriter) WriteHeader(code int) {
	if w.written {
		w.extra++
		return
	}

	w.status = code
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

// Write writes body bytes, committing a 200 status first if needed.
func (w *ResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}

	n, err := w.ResponseWriter.Write(b)
	w.size += n

	return n, err
}

// Status returns the committed status code, or 0 before finalization.
func (w *ResponseWriter) Status() int {
	return w.status
}

// Size returns the number of body bytes written.
func (w *ResponseWriter) Size() int {
	return w.size
}

// Written reports whether the response has been finalized.
func (w *ResponseWriter) Written() bool {
	return w.written
}

// Refinalized returns how many times finalization was attempted after the
// response was already committed.
func (w *ResponseWriter) Refinalized() int {
	return w.extra
}

// Flush implements http.Flusher when the underlying writer supports it.
func (w *ResponseWriter) Flush() {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}

	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker when the underlying writer supports it.
func (w *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("mux: underlying ResponseWriter does not implement http.Hijacker")
	}

	conn, rw, err := h.Hijack()
	if err == nil {
		w.written = true
	}

	return conn, rw, err
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
