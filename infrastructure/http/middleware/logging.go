package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fixora/tollgate/infrastructure/http/response"
	"github.com/fixora/tollgate/infrastructure/service/logger"
)

// RequestObserver receives one call per finished request.
type RequestObserver interface {
	ObserveRequest(route string, code int, took time.Duration)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// RequestLogging logs each request and reports it to obs, labelled with the
// mux route template rather than the raw path.
func RequestLogging(log logger.Logger, obs RequestObserver, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			took := time.Since(start)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			if obs != nil {
				obs.ObserveRequest(route, rec.status, took)
			}
			if enabled {
				log.Info(r.Context(), "HTTP request", map[string]interface{}{
					"method":      r.Method,
					"route":       route,
					"status":      rec.status,
					"duration_ms": took.Milliseconds(),
					"remote_ip":   getClientIP(r),
				})
			}
		})
	}
}

// Recovery turns a panic into a 500 envelope.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					log.Error(r.Context(), "Panic recovered", fmt.Errorf("%v", p), map[string]interface{}{
						"path": r.URL.Path,
					})
					response.InternalServerError(w, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
