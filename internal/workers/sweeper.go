package workers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/interviewx/internal/models"
	"github.com/yoockh/interviewx/internal/services"
)

// StaleLister finds evaluations whose orchestration lease has expired.
type StaleLister interface {
	ListStaleProcessing(ctx context.Context, staleBefore time.Time, limit int64) ([]models.Evaluation, error)
}

// StaleSweeper re-enqueues processing evaluations nobody is working on:
// lost stream messages, crashed workers and expired leases.
type StaleSweeper struct {
	Evaluations StaleLister
	Queue       services.Enqueuer
	Liveness    time.Duration
	Interval    time.Duration
	BatchSize   int64
	Logger      *logrus.Logger

	now func() time.Time
}

func (s *StaleSweeper) Run(ctx context.Context) {
	if s.Interval <= 0 {
		s.Interval = time.Minute
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger().WithError(err).Warn("stale evaluation sweep failed")
			}
		}
	}
}

// SweepOnce enqueues one batch of stale evaluations and reports how many were requeued.
func (s *StaleSweeper) SweepOnce(ctx context.Context) (int, error) {
	liveness := s.Liveness
	if liveness <= 0 {
		liveness = services.DefaultOrchestrationLiveness
	}
	limit := s.BatchSize
	if limit <= 0 {
		limit = 100
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}

	stale, err := s.Evaluations.ListStaleProcessing(ctx, now().UTC().Add(-liveness), limit)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range stale {
		if err := s.Queue.Enqueue(ctx, e.ID); err != nil {
			s.logger().WithError(err).WithField("evaluation_id", e.ID).Warn("requeue failed")
			continue
		}
		n++
	}
	if n > 0 {
		s.logger().WithField("count", n).Info("requeued stale evaluations")
	}
	return n, nil
}

func (s *StaleSweeper) logger() *logrus.Logger {
	if s.Logger == nil {
		s.Logger = logrus.New()
	}
	return s.Logger
}
