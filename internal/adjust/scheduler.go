package adjust

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aimerfeng/TierLink/internal/logging"
)

// Scheduler runs the adjustment aggregator on a fixed interval, away from
// the request path.
type Scheduler struct {
	aggregator *Aggregator
	interval   time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
	logger     zerolog.Logger

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// NewScheduler creates an adjustment scheduler
func NewScheduler(aggregator *Aggregator, interval time.Duration) *Scheduler {
	return &Scheduler{
		aggregator: aggregator,
		interval:   interval,
		stopCh:     make(chan struct{}),
		logger:     logging.NewLogger("adjust"),
	}
}

// Start begins periodic adjustment passes
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("adjustment scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info().Dur("interval", s.interval).Msg("Adjustment scheduler started")
	return nil
}

// Stop halts the scheduler and waits for an in-flight pass to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("Adjustment scheduler stopped")
}

// RunNow triggers an immediate pass over every API
func (s *Scheduler) RunNow(ctx context.Context) error {
	err := s.aggregator.RunAll(ctx)
	s.record(err)
	return err
}

// Status reports the scheduler's current state
type Status struct {
	Running   bool       `json:"running"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// GetStatus returns the scheduler's current status
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{Running: s.running}
	if !s.lastRun.IsZero() {
		status.LastRun = &s.lastRun
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.record(s.aggregator.RunAll(ctx))
		}
	}
}

func (s *Scheduler) record(err error) {
	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()
}
