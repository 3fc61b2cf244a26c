package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"

	"github.com/facturio/facturio/internal/config"
)

const (
	keyTicketIntakeUser = "ticket:intake:user:%s"
	keyTicketIntakeLock = "ticket:intake:lock:%s"
	keyAuthAttemptIP    = "auth:attempt:ip:%s"
)

// IntakeLimiter throttles ticket submissions per user and credential
// endpoints per source IP. A nil limiter allows everything, so callers
// never branch on configuration.
type IntakeLimiter struct {
	bucket *TokenBucket
	submit *SubmitLock

	ticketRate  float64
	ticketBurst int
	authRate    float64
	authBurst   int
}

func NewIntakeLimiter(cfg config.Config) *IntakeLimiter {
	if cfg.RedisAddr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	return &IntakeLimiter{
		bucket:      NewTokenBucket(client),
		submit:      NewSubmitLock(client, time.Duration(cfg.RateLimitLockTTL)*time.Second),
		ticketRate:  cfg.RateLimitTicketRate,
		ticketBurst: cfg.RateLimitTicketBurst,
		authRate:    cfg.RateLimitAuthRate,
		authBurst:   cfg.RateLimitAuthBurst,
	}
}

func (l *IntakeLimiter) Enabled() bool {
	return l != nil
}

// AllowTicket rates ticket submissions per requesting user. OCR calls
// are the expensive part, so the budget is deliberately small.
func (l *IntakeLimiter) AllowTicket(ctx context.Context, userID snowflake.ID) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyTicketIntakeUser, userID), l.ticketRate, l.ticketBurst)
}

// AllowAuth rates login and password-reset attempts per source IP.
func (l *IntakeLimiter) AllowAuth(ctx context.Context, ip string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAuthAttemptIP, ip), l.authRate, l.authBurst)
}

// TryLockTicket holds one submission slot per user so concurrent
// uploads of the same ticket don't race the duplicate check.
func (l *IntakeLimiter) TryLockTicket(ctx context.Context, userID snowflake.ID) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.submit.Acquire(ctx, fmt.Sprintf(keyTicketIntakeLock, userID))
}

func (l *IntakeLimiter) ReleaseTicket(ctx context.Context, userID snowflake.ID, holder string) error {
	if !l.Enabled() {
		return nil
	}
	return l.submit.Release(ctx, fmt.Sprintf(keyTicketIntakeLock, userID), holder)
}
