package ratelimit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newRedisService(t *testing.T) (*miniredis.Miniredis, *rateLimitService) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisRateLimitService(client, quietLogger()).(*rateLimitService)
}

func TestRedisRateLimit_CountsWithinWindow(t *testing.T) {
	mr, svc := newRedisService(t)
	ctx := context.Background()
	key := "verify:ip:10.0.0.1"

	for i := 0; i < 2; i++ {
		allowed, err := svc.CheckLimit(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		require.NoError(t, svc.Increment(ctx, key, time.Minute))
	}

	allowed, err := svc.CheckLimit(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	attempts, err := svc.GetAttempts(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	mr.FastForward(61 * time.Second)
	attempts, err = svc.GetAttempts(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, attempts, "window expiry resets the counter")
}

func TestRedisRateLimit_WindowStartsAtFirstHit(t *testing.T) {
	mr, svc := newRedisService(t)
	ctx := context.Background()
	key := "verify:ip:10.0.0.2"

	require.NoError(t, svc.Increment(ctx, key, time.Minute))
	mr.FastForward(40 * time.Second)
	require.NoError(t, svc.Increment(ctx, key, time.Minute))

	assert.Equal(t, 20*time.Second, mr.TTL("tollgate:"+key))
}

func TestRedisRateLimit_Block(t *testing.T) {
	mr, svc := newRedisService(t)
	ctx := context.Background()
	key := "verify:ip:10.0.0.3"

	blocked, err := svc.IsBlocked(ctx, key)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, svc.Block(ctx, key, 5*time.Minute, "Rate limit exceeded"))
	blocked, err = svc.IsBlocked(ctx, key)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, "Rate limit exceeded", mr.HGet("tollgate:blocked:"+key, "reason"))

	mr.FastForward(5*time.Minute + time.Second)
	blocked, err = svc.IsBlocked(ctx, key)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestRedisRateLimit_ErrorsWhenRedisDown(t *testing.T) {
	mr, svc := newRedisService(t)
	mr.Close()

	_, err := svc.GetAttempts(context.Background(), "k")
	assert.Error(t, err)
	_, err = svc.IsBlocked(context.Background(), "k")
	assert.Error(t, err)
}

func TestNewRateLimitService_DisabledIsNoop(t *testing.T) {
	svc, err := NewRateLimitService(RateLimitConfig{Enabled: false}, quietLogger())
	require.NoError(t, err)

	ctx := context.Background()
	allowed, err := svc.CheckLimit(ctx, "k", 0, time.Second)
	require.NoError(t, err)
	assert.True(t, allowed)
	require.NoError(t, svc.Block(ctx, "k", time.Hour, "x"))
	blocked, err := svc.IsBlocked(ctx, "k")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestNewRateLimitService_ConnectsToRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	svc, err := NewRateLimitService(RateLimitConfig{
		Enabled:  true,
		RedisURL: "redis://" + mr.Addr() + "/0",
	}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, svc.Increment(context.Background(), "k", time.Minute))
	assert.True(t, mr.Exists("tollgate:k"))

	_, err = NewRateLimitService(RateLimitConfig{Enabled: true, RedisURL: "::not a url"}, quietLogger())
	assert.Error(t, err)
}
