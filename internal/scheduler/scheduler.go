// Package scheduler runs periodic maintenance work, currently the
// invitation expiry sweep.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/hearthhq/hearth/internal/clock"
	invitationdomain "github.com/hearthhq/hearth/internal/invitation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Config controls sweep cadence.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
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

	Log           *zap.Logger
	InvitationSvc invitationdomain.Service
	Clock         clock.Clock
	Config        Config `optional:"true"`
}

type Scheduler struct {
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	invitationSvc invitationdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.InvitationSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:           p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		invitationSvc: p.InvitationSvc,
	}, nil
}

// RunOnce performs a single expiry sweep with a bounded timeout.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	start := s.clock.Now()
	expired, err := s.invitationSvc.ExpireStale(ctx)
	if err != nil {
		return err
	}
	if expired > 0 {
		s.log.Info("expiry sweep finished",
			zap.Int("expired", expired),
			zap.Duration("took", s.clock.Now().Sub(start)),
		)
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
