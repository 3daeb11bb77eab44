package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixora/tollgate/application/port/inbound"
	"github.com/fixora/tollgate/infrastructure/service/logger"
	"github.com/fixora/tollgate/infrastructure/service/ratelimit"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type countingRecorder struct{ n int }

func (c *countingRecorder) RateLimited() { c.n++ }

type requestLog struct {
	route string
	code  int
}

func (l *requestLog) ObserveRequest(route string, code int, took time.Duration) {
	l.route, l.code = route, code
}

func TestCorrelationIDMiddleware(t *testing.T) {
	var seen string
	h := CorrelationIDMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(CorrelationIDHeader))
}

func TestAdminCredentials(t *testing.T) {
	var got inbound.AdminCredential
	h := AdminCredentials(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetAdminCredential(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/pending", nil)
	req.Header.Set(AdminKeyHeader, " secret ")
	req.Header.Set("Authorization", "Bearer tok.en.value")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, inbound.AdminCredential{Key: "secret", Token: "tok.en.value"}, got)

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/pending", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, inbound.AdminCredential{}, got)

	assert.Equal(t, inbound.AdminCredential{}, GetAdminCredential(req.Context()))
}

func TestRateLimitMiddleware(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	svc := ratelimit.NewRedisRateLimitService(redis.NewClient(&redis.Options{Addr: mr.Addr()}), quiet)
	recorder := &countingRecorder{}
	m := NewRateLimitMiddleware(svc, RateLimitPolicy{Limit: 2, Window: time.Minute, BlockDuration: 2 * time.Minute}, recorder, logger.NewNopLogger())
	h := m.RateLimit(okHandler)

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/verify-transfer", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	third := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "120", third.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1").Code, "blocked until the block expires")
	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code, "other clients unaffected")
	assert.Equal(t, 2, recorder.n)

	mr.FastForward(3 * time.Minute)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	svc := ratelimit.NewRedisRateLimitService(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), quiet)
	mr.Close()

	h := NewRateLimitMiddleware(svc, RateLimitPolicy{Limit: 1}, nil, logger.NewNopLogger()).RateLimit(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/verify-transfer", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(req))
}

func TestRequestLoggingUsesRouteTemplate(t *testing.T) {
	obs := &requestLog{}
	r := mux.NewRouter()
	r.Use(RequestLogging(logger.NewNopLogger(), obs, true))
	r.HandleFunc("/v1/admin/pending/{holdId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/admin/pending/abc", nil))

	assert.Equal(t, "/v1/admin/pending/{holdId}", obs.route)
	assert.Equal(t, http.StatusNotFound, obs.code)
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h := CORSMiddleware([]string{"https://dash.example"}, false)(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/v1/admin/status", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Admin-Key")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
