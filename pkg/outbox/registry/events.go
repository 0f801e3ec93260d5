package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/printhub/vendor-ledger/pkg/config"
	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
	"github.com/printhub/vendor-ledger/pkg/outbox"
	"github.com/printhub/vendor-ledger/pkg/outbox/payloads"
)

// EventDescriptor routes one event type to its topic and lists the aggregates
// allowed to emit it.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateTypes []enums.OutboxAggregateType
	Topic          string
}

// ResolvedEvent is an outbox row that passed validation, with its payload
// decoded for the envelope's version.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// EventRegistry knows every event the ledger publishes.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NewEventRegistry routes audit events to the audit topic and settlement
// events to the settlement topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.AuditTopic == "" {
		return nil, errors.New("audit topic is required")
	}
	if cfg.SettlementTopic == "" {
		return nil, errors.New("settlement topic is required")
	}

	reg := &EventRegistry{
		routes:   make(map[enums.OutboxEventType]EventDescriptor),
		decoders: NewDecoderRegistry(),
	}
	reg.add(EventDescriptor{
		EventType:      enums.EventAuditRecorded,
		AggregateTypes: []enums.OutboxAggregateType{enums.AggregateLedgerEntry, enums.AggregateVendor},
		Topic:          cfg.AuditTopic,
	}, JSONDecoder[*payloads.AuditRecordedEvent]())
	reg.add(EventDescriptor{
		EventType:      enums.EventOrderSettled,
		AggregateTypes: []enums.OutboxAggregateType{enums.AggregateVendor},
		Topic:          cfg.SettlementTopic,
	}, JSONDecoder[*payloads.OrderSettledEvent]())
	return reg, nil
}

func (r *EventRegistry) add(desc EventDescriptor, v1 Decoder) {
	r.routes[desc.EventType] = desc
	r.decoders.MustRegister(desc.EventType, 1, v1)
}

// Resolve checks a row against its descriptor and decodes the payload. Every
// failure is non-retryable because the stored row will never change.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %q", event.EventType))
	case !slices.Contains(desc.AggregateTypes, event.AggregateType):
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: %s does not accept %s", event.EventType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
