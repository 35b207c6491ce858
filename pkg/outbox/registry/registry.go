// Package registry maps outbox event types to the Pub/Sub topic they are published on
// and the payload type their envelope carries.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shoppos/pos-backend/pkg/config"
	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/enums"
	"github.com/shoppos/pos-backend/pkg/outbox"
	"github.com/shoppos/pos-backend/pkg/outbox/payloads"
)

// PermanentError marks a row that will never publish, however often it is retried.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "permanent outbox failure"
	}
	return e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

func Permanent(format string, args ...any) error {
	return PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err, or anything it wraps, is a PermanentError.
func IsPermanent(err error) bool {
	var perm PermanentError
	return errors.As(err, &perm)
}

type route struct {
	aggregate enums.OutboxAggregateType
	topic     string
	decode    func(json.RawMessage) (any, error)
}

func decodeAs[T any](data json.RawMessage) (any, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ResolvedEvent is an outbox row ready to publish.
type ResolvedEvent struct {
	Topic    string
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]route
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	salesTopic := strings.TrimSpace(cfg.SalesTopic)
	if salesTopic == "" {
		return nil, errors.New("pubsub sales topic is required")
	}
	return &EventRegistry{routes: map[enums.OutboxEventType]route{
		enums.EventSaleCreated: {
			aggregate: enums.EventSaleCreated.Aggregate(),
			topic:     salesTopic,
			decode:    decodeAs[payloads.SaleCreatedEvent],
		},
	}}, nil
}

// Resolve checks the row against its route and decodes the envelope and payload. Every
// failure is permanent: a malformed row stays malformed.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.routes[row.EventType]
	switch {
	case !ok:
		return nil, Permanent("no route for event type %q", row.EventType)
	case rt.aggregate != row.AggregateType:
		return nil, Permanent("%s belongs to aggregate %s, row says %s", row.EventType, rt.aggregate, row.AggregateType)
	case row.AggregateID <= 0:
		return nil, Permanent("%s row %s has no aggregate id", row.EventType, row.ID)
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return nil, Permanent("decode envelope of %s: %w", row.ID, err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent("%s row %s has an empty payload", row.EventType, row.ID)
	}
	payload, err := rt.decode(envelope.Data)
	if err != nil {
		return nil, Permanent("decode %s payload: %w", row.EventType, err)
	}
	return &ResolvedEvent{Topic: rt.topic, Envelope: envelope, Payload: payload}, nil
}
