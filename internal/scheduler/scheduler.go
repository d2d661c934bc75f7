package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kjannette/ape-dashboard/internal/logger"
	"go.uber.org/zap"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

type Config struct {
	Name       string
	Interval   time.Duration // e.g. 30*time.Second
	Timeout    time.Duration // per run; defaults to Interval
	RunOnStart bool
}

// Scheduler runs a Job on a fixed interval until stopped. TriggerNow runs
// on the caller's goroutine and can overlap a scheduled run.
type Scheduler struct {
	job Job
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(job Job, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}
	if cfg.Name == "" {
		cfg.Name = "job"
	}
	return &Scheduler{
		job: job,
		cfg: cfg,
		log: logger.Named("scheduler").With(zap.String("job", cfg.Name)),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Debug("already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if s.cfg.RunOnStart {
			s.runOnce()
		}

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				s.runOnce()
			}
		}
	}()

	s.log.Info("started", zap.Duration("interval", s.cfg.Interval))
}

// Stop halts the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerNow runs the job immediately outside the normal schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	s.log.Debug("manual run triggered")
	return s.job(ctx)
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	if err := s.job(ctx); err != nil {
		s.log.Warn("run failed", zap.Error(err))
	}
}
