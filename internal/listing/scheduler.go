package listing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRefreshSpec runs at UTC midnight.
const DefaultRefreshSpec = "0 0 * * *"

// Refresher reloads the listing cache.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context) error

func (f RefreshFunc) Refresh(ctx context.Context) error { return f(ctx) }

// ServiceRefresher drops the refreshed rows, keeping only the error.
func ServiceRefresher(s *Service) Refresher {
	return RefreshFunc(func(ctx context.Context) error {
		_, _, err := s.Refresh(ctx)
		return err
	})
}

// Scheduler refreshes listings once at start and then on a cron spec.
type Scheduler struct {
	cron    *cron.Cron
	target  Refresher
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewScheduler parses spec as a standard five-field cron expression
// evaluated in UTC. Each run is bounded by timeout.
func NewScheduler(spec string, target Refresher, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultRefreshSpec
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		target:  target,
		timeout: timeout,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid refresh spec %q: %w", spec, err)
	}
	return s, nil
}

// Start runs one refresh in the background and starts the cron loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce()
	}()
	s.cron.Start()
	s.logger.Info("listing scheduler started", zap.Time("next", s.Next()))
}

// Stop halts the cron loop and waits for running refreshes, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		<-cronDone.Done()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("listing refresh still running at shutdown")
	}
}

// Next returns the next scheduled run, or zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.target.Refresh(ctx); err != nil {
		s.logger.Error("scheduled listing refresh failed", zap.Error(err))
	}
}
