package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saint0x/gitfix/pkg/auth"
	"github.com/saint0x/gitfix/pkg/log"
)

type contextKey int

const userKey contextKey = iota

// userFrom returns the authenticated user of the request, if any
func userFrom(ctx context.Context) *auth.User {
	u, _ := ctx.Value(userKey).(*auth.User)
	return u
}

// statusWriter records the status code and keeps streaming working
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// handle registers h under pattern with request logging, metrics, panic
// recovery and, when authed, CORS and bearer authentication.
func (s *Server) handle(mux *http.ServeMux, pattern string, authed bool, h http.HandlerFunc) {
	var next http.Handler = h
	if authed {
		next = s.cors(s.requireAuth(next))
	}
	next = s.recoverPanics(next)
	mux.Handle(pattern, s.instrument(pattern, next))
}

// instrument assigns a request id, stores a request logger in the context
// and records metrics.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		logger := s.logger.With("request_id", id, "route", route)
		ctx := logger.WithContext(r.Context())

		sw := &statusWriter{ResponseWriter: w}
		inflightRequests.Inc()
		defer inflightRequests.Dec()
		next.ServeHTTP(sw, r.WithContext(ctx))

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		if s.logger.IsDebug() {
			logger.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, status, elapsed.Round(time.Millisecond))
		}
	})
}

// cors sets the cross-origin headers on /api routes and answers preflight
// requests before authentication
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.origin)
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Installation-Id, X-Request-Id")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Expose-Headers", "X-Request-Id")
		if s.origin != "*" {
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanics turns a panic into a 500 unless the response has started
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger := log.FromContext(r.Context(), s.logger)
			logger.Error("Panic serving %s: %v\n%s", r.URL.Path, rec, debug.Stack())
			if sw, ok := w.(*statusWriter); ok && sw.status != 0 {
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:   "Internal server error",
				Message: fmt.Sprint(rec),
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// requireAuth verifies the bearer token and stores the user in the context
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		user, err := s.deps.Tokens.Verify(strings.TrimSpace(token))
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			writeError(w, http.StatusUnauthorized, "Token has expired")
			return
		case err != nil:
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = log.FromContext(ctx, s.logger).With("user", user.Login).WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
