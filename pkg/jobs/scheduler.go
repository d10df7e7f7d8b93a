package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a recurring unit of work.
type Task func(context.Context) error

// Scheduler runs tasks on standard five-field cron expressions.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

// NewScheduler builds a scheduler. Each run gets its own context bounded by timeout.
func NewScheduler(logger *zap.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:  logger,
		timeout: timeout,
	}
}

// Add registers task under spec. An empty spec leaves the task unscheduled.
func (s *Scheduler) Add(name, spec string, task Task) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.wrap(name, task)); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.logger.Info("task scheduled", zap.String("task", name), zap.String("spec", spec))
	return nil
}

// Len reports how many tasks are registered.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start begins running scheduled tasks in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) wrap(name string, task Task) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		if err := task(ctx); err != nil {
			s.logger.Warn("scheduled task failed", zap.String("task", name), zap.Error(err))
			return
		}
		s.logger.Debug("scheduled task finished", zap.String("task", name), zap.Duration("took", time.Since(start)))
	}
}

type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
