package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"crosslend/observability"
)

// callRecorder captures what a handler wrote so the call can be labelled by
// lending operation and ledger error code.
type callRecorder struct {
	http.ResponseWriter
	operation string
	status    int
	code      string
	wrote     bool
}

func (c *callRecorder) WriteHeader(status int) {
	if !c.wrote {
		c.status = status
		c.wrote = true
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *callRecorder) Write(b []byte) (int, error) {
	c.wrote = true
	return c.ResponseWriter.Write(b)
}

// Hijack lets the event stream upgrade through the recorder.
func (c *callRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := c.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("server: connection cannot be hijacked")
	}
	c.status = http.StatusSwitchingProtocols
	c.wrote = true
	return hj.Hijack()
}

func (c *callRecorder) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func recordCode(w http.ResponseWriter, code string) {
	if rec, ok := w.(*callRecorder); ok {
		rec.code = code
	}
}

// observeCalls records every call once it returns. Calls rejected before a
// handler ran (auth, throttling, operator checks) fall back to the route
// pattern as their operation.
func observeCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &callRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		operation := rec.operation
		if operation == "" {
			operation = r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				operation = rctx.RoutePattern()
			}
		}
		observability.API().Observe(operation, rec.status, rec.code, time.Since(start))
	})
}

// op names the lending operation a handler performs.
func op(operation string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec, ok := w.(*callRecorder); ok {
			rec.operation = operation
		}
		h(w, r)
	}
}
