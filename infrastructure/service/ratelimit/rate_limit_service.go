package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/fixora/tollgate/application/port/inbound"
	"github.com/fixora/tollgate/infrastructure/service/logger"
)

// rateLimitService implementasi RateLimitService dengan Redis
type rateLimitService struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	prefix      string
}

// RateLimitConfig configuration untuk rate limiting
type RateLimitConfig struct {
	Enabled       bool
	RedisURL      string
	IPAttempts    int
	IPWindow      time.Duration
	BlockDuration time.Duration
}

// NewRateLimitService membuat instance baru dari RateLimitService
func NewRateLimitService(config RateLimitConfig, log *logrus.Logger) (inbound.RateLimitService, error) {
	if !config.Enabled {
		log.Info("Rate limiting disabled")
		return &noopRateLimitService{}, nil
	}

	// Parse Redis URL
	opt, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisClient := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.WithFields(logrus.Fields{
		"ip_attempts":    config.IPAttempts,
		"ip_window":      config.IPWindow,
		"block_duration": config.BlockDuration,
	}).Info("Rate limiting service initialized")

	return NewRedisRateLimitService(redisClient, log), nil
}

// NewRedisRateLimitService wraps an existing client. Keys are namespaced
// under "tollgate:".
func NewRedisRateLimitService(client *redis.Client, log *logrus.Logger) inbound.RateLimitService {
	return &rateLimitService{
		redisClient: client,
		logger:      log,
		prefix:      "tollgate:",
	}
}

// CheckLimit mengecek apakah limit telah tercapai
func (s *rateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	currentCount, err := s.GetAttempts(ctx, key)
	if err != nil {
		return false, err
	}

	isUnderLimit := currentCount < limit

	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"key":         key,
		"current":     currentCount,
		"limit":       limit,
		"under_limit": isUnderLimit,
	}).Debug("Rate limit check")

	return isUnderLimit, nil
}

// Increment menambah counter untuk key tertentu. The window starts at the
// first hit and is not extended by later ones.
func (s *rateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	count, err := s.redisClient.Incr(ctx, s.prefix+key).Result()
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to increment rate limit counter")
		return fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := s.redisClient.Expire(ctx, s.prefix+key, window).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"key":    key,
		"count":  count,
		"window": window,
	}).Debug("Rate limit incremented")

	return nil
}

// Block memblokir key untuk durasi tertentu
func (s *rateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	blockKey := s.blockKey(key)

	// Simpan informasi block
	blockData := map[string]interface{}{
		"reason":         reason,
		"blocked_at":     time.Now().Unix(),
		"duration":       duration.Seconds(),
		"correlation_id": logger.CorrelationID(ctx),
	}

	pipeline := s.redisClient.TxPipeline()
	pipeline.HSet(ctx, blockKey, blockData)
	pipeline.Expire(ctx, blockKey, duration)

	if _, err := pipeline.Exec(ctx); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to block key")
		return fmt.Errorf("failed to block key: %w", err)
	}

	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"key":      key,
		"duration": duration,
		"reason":   reason,
	}).Warn("Key blocked due to rate limit exceeded")

	return nil
}

// IsBlocked mengecek apakah key sedang diblokir
func (s *rateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	exists, err := s.redisClient.Exists(ctx, s.blockKey(key)).Result()
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to check block status")
		return false, fmt.Errorf("failed to check block status: %w", err)
	}

	return exists > 0, nil
}

// GetAttempts mendapatkan jumlah attempts untuk key
func (s *rateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	count, err := s.redisClient.Get(ctx, s.prefix+key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		s.logger.WithContext(ctx).WithError(err).Error("Failed to get attempts count")
		return 0, fmt.Errorf("failed to get attempts: %w", err)
	}

	return count, nil
}

func (s *rateLimitService) blockKey(key string) string {
	return fmt.Sprintf("%sblocked:%s", s.prefix, key)
}

// noopRateLimitService implementasi no-op untuk ketika rate limiting disabled
type noopRateLimitService struct{}

func (n *noopRateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func (n *noopRateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	return nil
}

func (n *noopRateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	return nil
}

func (n *noopRateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (n *noopRateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	return 0, nil
}
