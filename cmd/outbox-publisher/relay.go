package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/config"
	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/metrics"
	"github.com/shoppos/pos-backend/pkg/outbox/payloads"
	"github.com/shoppos/pos-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 1000
	defaultMaxAttempts = 10
	sendTimeout        = 15 * time.Second
	maxIdleWait        = 30 * time.Second
	maxJitter          = 250 * time.Millisecond
)

type txRunner interface {
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// sink delivers one message and blocks until the broker acknowledged it.
type sink interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type RelayParams struct {
	Outbox   config.OutboxConfig
	Logger   *logger.Logger
	DB       txRunner
	Store    eventStore
	Registry resolver
	Sink     sink
	Metrics  *metrics.OutboxMetrics
}

// Relay moves committed sale events from the outbox table to Pub/Sub. Rows are locked
// for the duration of a batch so parallel relays never publish the same event twice.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	store       eventStore
	registry    resolver
	sink        sink
	metrics     *metrics.OutboxMetrics
	batchSize   int
	maxAttempts int
	interval    time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Store == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.Sink == nil:
		return nil, errors.New("pubsub sink is required")
	}

	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		store:       params.Store,
		registry:    params.Registry,
		sink:        params.Sink,
		metrics:     params.Metrics,
		batchSize:   params.Outbox.BatchSize,
		maxAttempts: params.Outbox.MaxAttempts,
		interval:    time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.interval <= 0 {
		r.interval = defaultPollMs * time.Millisecond
	}
	return r, nil
}

// Run drains the outbox until ctx is canceled. A full batch is followed immediately by
// the next one; database errors back off exponentially up to maxIdleWait.
func (r *Relay) Run(ctx context.Context) error {
	wait := r.interval
	for {
		handled, err := r.drain(ctx)
		switch {
		case err != nil:
			r.metrics.BatchFailed()
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = min(max(wait, r.interval)*2, maxIdleWait)
		case handled >= r.batchSize:
			wait = 0
		default:
			wait = r.interval
		}

		if err := pause(ctx, wait); err != nil {
			return err
		}
	}
}

// drain handles one batch inside a single transaction and reports how many rows it touched.
func (r *Relay) drain(ctx context.Context) (int, error) {
	handled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, row := range rows {
			outcome, cause := r.deliver(ctx, row)
			if err := r.record(ctx, tx, row, outcome, cause); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	return handled, err
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) (string, error) {
	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return metrics.DeliveryDropped, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	err = r.sink.Send(sendCtx, resolved.Topic, buildMessage(row, resolved))
	if err == nil {
		return metrics.DeliveryPublished, nil
	}

	if registry.IsPermanent(err) {
		return metrics.DeliveryDropped, err
	}
	if row.AttemptCount+1 >= r.maxAttempts {
		return metrics.DeliveryDropped, fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)
	}
	return metrics.DeliveryRetry, err
}

func (r *Relay) record(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, outcome string, cause error) error {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"sale_id":       row.AggregateID,
		"attempt_count": row.AttemptCount,
		"outcome":       outcome,
	})

	var err error
	switch outcome {
	case metrics.DeliveryPublished:
		err = r.store.MarkPublishedTx(tx, row.ID)
		r.logg.Info(logCtx, "sale event published")
	case metrics.DeliveryRetry:
		err = r.store.MarkFailedTx(tx, row.ID, cause)
		r.logg.Warn(r.logg.WithField(logCtx, "error", cause.Error()), "sale event publish failed, will retry")
	default:
		err = r.store.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts)
		r.logg.Warn(r.logg.WithField(logCtx, "error", cause.Error()), "sale event dropped")
	}
	if err != nil {
		return fmt.Errorf("record %s for %s: %w", outcome, row.ID, err)
	}
	r.metrics.Delivered(outcome)
	return nil
}

// buildMessage carries the stored envelope verbatim. Attributes let subscribers filter
// without decoding the body.
func buildMessage(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":   resolved.Envelope.EventID,
		"event_type": string(row.EventType),
		"sale_id":    strconv.FormatInt(row.AggregateID, 10),
	}
	if sale, ok := resolved.Payload.(*payloads.SaleCreatedEvent); ok {
		attrs["payment_method"] = string(sale.PaymentMethod)
		if sale.LocationID != nil {
			attrs["location_id"] = strconv.FormatInt(*sale.LocationID, 10)
		}
	}
	return &gcppubsub.Message{Data: row.Payload, Attributes: attrs}
}

func pause(ctx context.Context, d time.Duration) error {
	if d > 0 {
		d += rand.N(maxJitter)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type topicPublisher interface {
	Publisher(name string) *gcppubsub.Publisher
}

// pubsubSink keeps one publisher per topic for the lifetime of the relay.
type pubsubSink struct {
	client     topicPublisher
	publishers map[string]*gcppubsub.Publisher
}

func newPubSubSink(client topicPublisher) *pubsubSink {
	return &pubsubSink{client: client, publishers: map[string]*gcppubsub.Publisher{}}
}

func (s *pubsubSink) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub, ok := s.publishers[topic]
	if !ok {
		pub = s.client.Publisher(topic)
		if pub == nil {
			return registry.Permanent("no publisher for topic %q", topic)
		}
		s.publishers[topic] = pub
	}
	_, err := pub.Publish(ctx, msg).Get(ctx)
	return err
}

// Stop flushes and releases every publisher.
func (s *pubsubSink) Stop() {
	for _, pub := range s.publishers {
		pub.Stop()
	}
}
