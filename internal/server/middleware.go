package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/discover/internal/auth"
	"github.com/lazypower/discover/internal/reqctx"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// validRequestID reports whether an incoming id is safe to echo and log:
// non-empty, bounded, and limited to [A-Za-z0-9._-].
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// requestID attaches a correlation id to the request context and echoes it
// back. A well-formed incoming X-Request-ID is reused.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if !validRequestID(id) {
			id = reqctx.NewRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := reqctx.WithRequestData(r.Context(), &reqctx.RequestData{RequestID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		fields := append([]interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}, reqctx.LogFields(r.Context())...)
		s.log.Debug("request", fields...)
	})
}

// requireAuth resolves the bearer token into an identity or rejects with 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" || s.authn == nil {
			writeError(w, r, s.log, auth.ErrUnauthenticated)
			return
		}
		id, err := s.authn.Authenticate(r.Context(), token)
		if err != nil || id == nil || id.UserID == "" {
			s.log.Debug("authentication failed", append([]interface{}{"error", err}, reqctx.LogFields(r.Context())...)...)
			writeError(w, r, s.log, auth.ErrUnauthenticated)
			return
		}

		ctx := auth.WithIdentity(r.Context(), id)
		if rd := reqctx.GetRequestData(ctx); rd != nil {
			rd.UserID = id.UserID
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
