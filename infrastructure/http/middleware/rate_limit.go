package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fixora/tollgate/application/port/inbound"
	"github.com/fixora/tollgate/infrastructure/http/response"
	"github.com/fixora/tollgate/infrastructure/service/logger"
)

// RateLimitRecorder is told about every refused request.
type RateLimitRecorder interface {
	RateLimited()
}

type RateLimitPolicy struct {
	Limit         int
	Window        time.Duration
	BlockDuration time.Duration
}

type RateLimitMiddleware struct {
	rateLimitService inbound.RateLimitService
	policy           RateLimitPolicy
	recorder         RateLimitRecorder
	logger           logger.Logger
}

func NewRateLimitMiddleware(rateLimitService inbound.RateLimitService, policy RateLimitPolicy, recorder RateLimitRecorder, log logger.Logger) *RateLimitMiddleware {
	if policy.Limit <= 0 {
		policy.Limit = 60
	}
	if policy.Window <= 0 {
		policy.Window = time.Minute
	}
	if policy.BlockDuration <= 0 {
		policy.BlockDuration = 5 * time.Minute
	}
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		policy:           policy,
		recorder:         recorder,
		logger:           log,
	}
}

// RateLimit limits requests per client IP. Limiter errors fail open: the
// policy pipeline behind it is the real control.
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if m.rateLimitService == nil {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := getClientIP(r)
		key := fmt.Sprintf("verify:ip:%s", clientIP)

		isBlocked, err := m.rateLimitService.IsBlocked(ctx, key)
		if err != nil {
			m.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{
				"ip":  clientIP,
				"key": key,
			})
		}
		if isBlocked {
			m.reject(w, r, clientIP, key, "rate_limit_blocked")
			return
		}

		allowed, err := m.rateLimitService.CheckLimit(ctx, key, m.policy.Limit, m.policy.Window)
		if err != nil {
			m.logger.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{
				"ip":  clientIP,
				"key": key,
			})
			allowed = true
		}
		if !allowed {
			if err := m.rateLimitService.Block(ctx, key, m.policy.BlockDuration, "Rate limit exceeded"); err != nil {
				m.logger.Error(ctx, "Failed to block IP", err, map[string]interface{}{
					"ip":  clientIP,
					"key": key,
				})
			}
			m.reject(w, r, clientIP, key, "rate_limit_exceeded")
			return
		}

		if err := m.rateLimitService.Increment(ctx, key, m.policy.Window); err != nil {
			m.logger.Error(ctx, "Failed to increment rate limit", err, map[string]interface{}{
				"ip":  clientIP,
				"key": key,
			})
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) reject(w http.ResponseWriter, r *http.Request, clientIP, key, event string) {
	logger.LogSecurityEvent(r.Context(), m.logger, event, "MEDIUM", map[string]interface{}{
		"ip":        clientIP,
		"path":      r.URL.Path,
		"key":       key,
		"userAgent": r.UserAgent(),
	})
	if m.recorder != nil {
		m.recorder.RateLimited()
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(m.policy.BlockDuration.Seconds())))
	response.Error(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
}

// getClientIP extracts client IP from request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
