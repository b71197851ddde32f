// Package scheduler pulls the inbox on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/pkg/logger"
)

// Syncer imports new inbox files and recomputes the catalogue.
type Syncer interface {
	SyncInbox(ctx context.Context) ([]domain.ImportOutcome, error)
}

// Scheduler runs Syncer.SyncInbox on a cron expression. Overlapping runs
// are skipped.
type Scheduler struct {
	syncer    Syncer
	expr      string
	timeout   time.Duration
	scheduler *gocron.Scheduler
	running   atomic.Bool
	log       zerolog.Logger
}

// New returns a scheduler for expr in the local time zone. Each run is
// bounded by timeout when positive.
func New(syncer Syncer, expr string, timeout time.Duration) *Scheduler {
	return &Scheduler{
		syncer:    syncer,
		expr:      expr,
		timeout:   timeout,
		scheduler: gocron.NewScheduler(time.Local),
		log:       logger.Component("scheduler"),
	}
}

// Start registers the job and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Cron(s.expr).Do(func() { s.Run() }); err != nil {
		return fmt.Errorf("failed to schedule inbox sync %q: %w", s.expr, err)
	}
	s.scheduler.StartAsync()
	s.log.Info().Str("cron", s.expr).Msg("inbox sync scheduled")
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Run performs one sync. It reports false when a sync was already running.
func (s *Scheduler) Run() bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Info().Msg("sync already in progress, skipping")
		return false
	}
	defer s.running.Store(false)

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	outcomes, err := s.syncer.SyncInbox(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("inbox sync failed")
		return true
	}
	s.log.Info().Int("files", len(outcomes)).Dur("took", time.Since(start)).Msg("inbox sync finished")
	return true
}
