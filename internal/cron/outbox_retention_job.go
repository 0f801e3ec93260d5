package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/printhub/vendor-ledger/pkg/logger"
)

const (
	defaultOutboxRetention    = 30 * 24 * time.Hour
	defaultOutboxKeepAttempts = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// OutboxRetentionJobParams configure the purge of published outbox rows.
type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPurger
	// Retention defaults to 30 days.
	Retention time.Duration
	// KeepAttempts keeps rows that took this many publish attempts or more.
	KeepAttempts int
}

// OutboxRetentionJob deletes audit and settlement events once they are
// published and older than the retention window.
type OutboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	repo         outboxPurger
	retention    time.Duration
	keepAttempts int
	now          func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (*OutboxRetentionJob, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &OutboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		retention:    params.Retention,
		keepAttempts: params.KeepAttempts,
		now:          time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.keepAttempts <= 0 {
		job.keepAttempts = defaultOutboxKeepAttempts
	}
	return job, nil
}

func (j *OutboxRetentionJob) Name() string { return "outbox-retention" }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)

	var deleted int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.keepAttempts)
		return err
	}); err != nil {
		return fmt.Errorf("purge outbox before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"keep_attempts": j.keepAttempts,
		"rows_deleted":  deleted,
	}), "cron.outbox_retention")
	return nil
}
