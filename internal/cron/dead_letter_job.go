package cron

import (
	"context"
	"fmt"

	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/metrics"
)

type deadLetterCounter interface {
	CountExhausted(ctx context.Context, maxAttempts int) (int64, error)
}

// DeadLetterJob reports sale events the publisher gave up on. It only measures; replay
// is an operator decision.
type DeadLetterJob struct {
	logg        *logger.Logger
	repo        deadLetterCounter
	metrics     *metrics.JobMetrics
	maxAttempts int
}

func NewDeadLetterJob(logg *logger.Logger, repo deadLetterCounter, m *metrics.JobMetrics, maxAttempts int) (*DeadLetterJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	return &DeadLetterJob{logg: logg, repo: repo, metrics: m, maxAttempts: maxAttempts}, nil
}

func (j *DeadLetterJob) Name() string { return "outbox-dead-letters" }

func (j *DeadLetterJob) Run(ctx context.Context) error {
	count, err := j.repo.CountExhausted(ctx, j.maxAttempts)
	if err != nil {
		return fmt.Errorf("count exhausted events: %w", err)
	}
	j.metrics.SetDeadLetters(count)
	if count > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "dead_letters", count), "sale events exhausted their publish attempts")
	}
	return nil
}
