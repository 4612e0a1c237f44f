package safety

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"aeria-sms/config"
)

// Scheduler runs the daily KPI snapshot job on a cron spec.
type Scheduler struct {
	cfg    config.SchedulerConfig
	spec   string
	engine *Engine
	logger *logrus.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(cfg config.SchedulerConfig, spec string, engine *Engine, logger *logrus.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, spec: spec, engine: engine, logger: logger}
}

func (s *Scheduler) StartWithContext(ctx context.Context) {
	if s == nil || s.engine == nil || !s.cfg.Enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}
	c := cron.New()
	if _, err := c.AddFunc(s.spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := s.engine.WriteSnapshot(runCtx, time.Now().UTC()); err != nil {
			s.logger.WithError(err).Warn("safety snapshot failed")
		}
	}); err != nil {
		s.logger.WithError(err).WithField("spec", s.spec).Error("invalid snapshot schedule")
		return
	}
	s.cron = c
	c.Start()
}

func (s *Scheduler) StopWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
