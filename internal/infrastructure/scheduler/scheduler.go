package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one background task. The context is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler runs named jobs on cron specs. Overlapping runs of the same
// job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	log     logrus.FieldLogger
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

func New(log logrus.FieldLogger, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(log)),
			cron.SkipIfStillRunning(cron.PrintfLogger(log)),
		)),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Add registers job under name. spec accepts the standard five fields and
// descriptors such as "@every 1m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	return err
}

func (s *Scheduler) run(name string, job Job) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	log := s.log.WithField("job", name)
	if err := job(ctx); err != nil {
		log.WithError(err).Error("scheduled job failed")
		return
	}
	log.WithField("elapsed", time.Since(start).String()).Debug("scheduled job done")
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running jobs and waits for them, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
