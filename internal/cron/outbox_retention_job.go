package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/shoppos/pos-backend/pkg/logger"
)

const defaultOutboxRetentionDays = 30

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxRetentionJob removes sale events that were published more than the retention
// window ago. Unpublished rows are never touched.
type OutboxRetentionJob struct {
	logg          *logger.Logger
	repo          outboxPruner
	retentionDays int
	now           func() time.Time
}

func NewOutboxRetentionJob(logg *logger.Logger, repo outboxPruner, retentionDays int) (*OutboxRetentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if retentionDays <= 0 {
		retentionDays = defaultOutboxRetentionDays
	}
	return &OutboxRetentionJob{logg: logg, repo: repo, retentionDays: retentionDays, now: time.Now}, nil
}

func (j *OutboxRetentionJob) Name() string { return "outbox-retention" }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retentionDays)
	deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune published events: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "outbox retention complete")
	return nil
}
