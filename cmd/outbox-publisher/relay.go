package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printhub/vendor-ledger/pkg/config"
	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
	"github.com/printhub/vendor-ledger/pkg/logger"
	"github.com/printhub/vendor-ledger/pkg/metrics"
	"github.com/printhub/vendor-ledger/pkg/outbox"
	"github.com/printhub/vendor-ledger/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// RelayParams wires the loop that moves audit and settlement events from
// outbox_events onto their Pub/Sub topics.
type RelayParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         txRunner
	Topics     topicSource
	Repository outboxRepository
	DLQ        dlqRepository
	Registry   resolver
	Metrics    *metrics.OutboxMetrics
	// Publishers overrides the topic lookup; tests inject fakes here.
	Publishers func(topic string) publisher
}

// Relay publishes outbox rows at least once. Rows that can never be
// published, or that exhaust their attempts, move to outbox_dlq.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	topics      topicSource
	repo        outboxRepository
	dlq         dlqRepository
	registry    resolver
	metrics     *metrics.OutboxMetrics
	publishers  func(topic string) publisher
	batchSize   int
	maxAttempts int
	interval    time.Duration
	now         func() time.Time
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetried
	outcomeDeadLettered
)

func (o outcome) label() string {
	switch o {
	case outcomePublished:
		return metrics.RelayPublished
	case outcomeRetried:
		return metrics.RelayRetried
	default:
		return metrics.RelayDeadLettered
	}
}

type batchStats struct {
	fetched      int
	published    int
	retried      int
	deadLettered int
}

func (b *batchStats) add(o outcome) {
	switch o {
	case outcomePublished:
		b.published++
	case outcomeRetried:
		b.retried++
	case outcomeDeadLettered:
		b.deadLettered++
	}
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Topics == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		topics:      params.Topics,
		repo:        params.Repository,
		dlq:         params.DLQ,
		registry:    params.Registry,
		metrics:     params.Metrics,
		publishers:  params.Publishers,
		batchSize:   orDefault(params.Outbox.BatchSize, defaultBatchSize),
		maxAttempts: orDefault(params.Outbox.MaxAttempts, defaultMaxAttempts),
		interval:    time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
		now:         time.Now,
	}
	if r.interval <= 0 {
		r.interval = defaultPollInterval
	}
	if r.publishers == nil {
		r.publishers = r.gcpPublisher
	}
	return r, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Run drains the outbox until ctx is cancelled. A full batch is followed
// immediately by the next one; an empty batch waits one poll interval; a
// failed batch backs off exponentially up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": r.db.Ping,
		"pubsub":   r.topics.Ping,
	} {
		if err := ping(ctx); err != nil {
			r.logg.Error(r.logg.WithField(ctx, "dependency", name), "outbox.dependency_unavailable", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := r.interval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, maxBackoff)
		case stats.fetched > 0:
			wait = r.interval
			r.logBatch(ctx, stats)
			continue
		default:
			wait = r.interval
		}

		if err := sleep(ctx, wait+jitter()); err != nil {
			return err
		}
	}
}

// drain relays one batch inside a single transaction so the row locks taken by
// FetchUnpublishedForPublish hold until every row is marked.
func (r *Relay) drain(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := r.repo.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		stats = batchStats{fetched: len(events)}
		for _, event := range events {
			o, err := r.relayOne(ctx, tx, event)
			if err != nil {
				return err
			}
			stats.add(o)
			r.metrics.Record(string(event.EventType), o.label())
		}
		return nil
	})
	return stats, err
}

// relayOne returns an error only when bookkeeping on the row itself fails.
func (r *Relay) relayOne(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	})

	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, r.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	logCtx = r.logg.WithFields(logCtx, map[string]any{
		"event_id": resolved.Envelope.EventID,
		"topic":    resolved.Descriptor.Topic,
	})

	err = r.publish(ctx, event, resolved)
	if err == nil {
		if err := r.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.metrics.ObserveLag(r.now().Sub(event.CreatedAt).Seconds())
		r.logg.Info(logCtx, "outbox.published")
		return outcomePublished, nil
	}

	if registry.IsNonRetryable(err) {
		return outcomeDeadLettered, r.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	if event.AttemptCount+1 >= r.maxAttempts {
		terminal := fmt.Errorf("max publish attempts reached: %w", err)
		return outcomeDeadLettered, r.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminal)
	}

	r.logg.Warn(r.logg.WithField(logCtx, "error", err.Error()), "outbox.publish_failed")
	if err := r.repo.MarkFailedTx(tx, event.ID, err); err != nil {
		return outcomeRetried, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetried, nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	ctx = r.logg.WithFields(ctx, map[string]any{"error_reason": reason, "error": cause.Error()})
	r.logg.Warn(ctx, "outbox.dead_lettered")

	entry := outbox.NewDLQRecord(event, reason, cause, r.now())
	if err := r.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := r.repo.MarkTerminalTx(tx, event.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (r *Relay) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved.Envelope.EventID),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(ctx)
	return err
}

// messageAttributes are what the settlement consumer routes and dedupes on.
func messageAttributes(event models.OutboxEvent, eventID string) map[string]string {
	return map[string]string{
		"event_id":       eventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (r *Relay) logBatch(ctx context.Context, stats batchStats) {
	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"fetched":       stats.fetched,
		"published":     stats.published,
		"retried":       stats.retried,
		"dead_lettered": stats.deadLettered,
		"batch_size":    r.batchSize,
	}), "outbox.batch_relayed")
}

func (r *Relay) gcpPublisher(topic string) publisher {
	p := r.topics.Publisher(topic)
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(jitterWindow)))
}
