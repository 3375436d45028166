// Package scheduler triggers the periodic counter resets on cron schedules
// in the configured timezone.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"groupwarden/internal/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	cron   *cron.Cron
	store  *storage.Store
	logger *zap.Logger
}

// New builds a scheduler running in the given timezone. weeklyDay is a
// lowercase three-letter weekday ("mon", "sun", ...). Job failures are
// logged, never retried here.
func New(store *storage.Store, logger *zap.Logger, timezone, weeklyDay string) (*Scheduler, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(location)),
		store:  store,
		logger: logger,
	}

	if _, err := s.cron.AddFunc("0 0 * * *", s.runDaily); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("0 0 * * %s", weeklyDay), s.runWeekly); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) runDaily() {
	if err := s.store.ResetDaily(context.Background()); err != nil {
		s.logger.Error("daily reset failed", zap.Error(err))
		return
	}
	s.logger.Info("daily counters reset")
}

func (s *Scheduler) runWeekly() {
	if err := s.store.ResetWeekly(context.Background()); err != nil {
		s.logger.Error("weekly reset failed", zap.Error(err))
		return
	}
	s.logger.Info("weekly counters reset")
}
