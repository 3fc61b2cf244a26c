// Package scheduler runs periodic maintenance: expired sessions and
// stale password-reset tokens are purged so the auth tables don't grow
// without bound.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/facturio/facturio/internal/auth/domain"
	"github.com/facturio/facturio/internal/clock"
)

type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Hour,
		JobTimeout:  time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Config Config `optional:"true"`
}

type Scheduler struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   Config
	clock clock.Clock
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:    p.DB,
		log:   p.Log.Named("scheduler"),
		cfg:   p.Config.withDefaults(),
		clock: p.Clock,
	}
}

// RunForever ticks until the context is cancelled. The first sweep
// happens one interval after startup, not immediately, so boot stays
// fast.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Scheduler) RunOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	if err := s.purgeExpiredSessions(ctx); err != nil {
		s.log.Warn("session purge failed", zap.Error(err))
	}
	if err := s.purgeExpiredResetTokens(ctx); err != nil {
		s.log.Warn("reset token purge failed", zap.Error(err))
	}
}

func (s *Scheduler) purgeExpiredSessions(ctx context.Context) error {
	now := s.clock.Now()
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&authdomain.Session{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Info("expired sessions purged", zap.Int64("count", result.RowsAffected))
	}
	return nil
}

func (s *Scheduler) purgeExpiredResetTokens(ctx context.Context) error {
	now := s.clock.Now()
	result := s.db.WithContext(ctx).
		Model(&authdomain.User{}).
		Where("reset_token IS NOT NULL AND reset_token_expires_at < ?", now).
		Updates(map[string]any{
			"reset_token":            nil,
			"reset_token_expires_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		s.log.Info("expired reset tokens cleared", zap.Int64("count", result.RowsAffected))
	}
	return nil
}
