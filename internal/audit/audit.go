package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printhub/vendor-ledger/pkg/db"
	"github.com/printhub/vendor-ledger/pkg/enums"
	"github.com/printhub/vendor-ledger/pkg/logger"
	"github.com/printhub/vendor-ledger/pkg/outbox"
	"github.com/printhub/vendor-ledger/pkg/outbox/payloads"
	"github.com/printhub/vendor-ledger/pkg/validation"
)

// Actor is the authenticated operator performing a ledger mutation. It is
// used for attribution only.
type Actor struct {
	ID    uuid.UUID `json:"id" validate:"required"`
	Email string    `json:"email" validate:"required,email"`
}

// Validate reports a VALIDATION_ERROR when the actor is incomplete.
func (a Actor) Validate() error {
	return validation.Struct(a)
}

// RequestMeta is optional request provenance attached to audit events.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Event is one audit trail record.
type Event struct {
	Action     enums.AuditAction
	Actor      Actor
	TargetType enums.AuditTargetType
	TargetID   uuid.UUID
	Metadata   map[string]any
	Meta       RequestMeta
}

// Recorder accepts audit events. Record never fails the caller.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OutboxRecorder enqueues audit events as outbox rows in their own short
// transaction. Callers invoke it after the ledger transaction has committed.
// Record blocks for that one insert; delivery to the audit sink happens later
// through the outbox relay, so the caller never waits on the sink.
type OutboxRecorder struct {
	tx     db.TxRunner
	outbox emitter
	logg   *logger.Logger
}

// NewOutboxRecorder builds a recorder backed by the transactional outbox.
func NewOutboxRecorder(tx db.TxRunner, emitter emitter, logg *logger.Logger) (*OutboxRecorder, error) {
	if tx == nil {
		return nil, errors.New("tx runner required")
	}
	if emitter == nil {
		return nil, errors.New("outbox emitter required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &OutboxRecorder{tx: tx, outbox: emitter, logg: logg}, nil
}

func (r *OutboxRecorder) Record(ctx context.Context, event Event) {
	aggregate, err := aggregateFor(event.TargetType)
	if err != nil {
		r.logFailure(ctx, event, err)
		return
	}

	domainEvent := outbox.DomainEvent{
		EventType:     enums.EventAuditRecorded,
		AggregateType: aggregate,
		AggregateID:   event.TargetID,
		Actor:         &outbox.ActorRef{ActorID: event.Actor.ID, Email: event.Actor.Email},
		Data: payloads.AuditRecordedEvent{
			Action:     event.Action,
			ActorID:    event.Actor.ID,
			ActorEmail: event.Actor.Email,
			TargetType: event.TargetType,
			TargetID:   event.TargetID.String(),
			Metadata:   event.Metadata,
			IPAddress:  event.Meta.IPAddress,
			UserAgent:  event.Meta.UserAgent,
		},
	}

	if err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return r.outbox.Emit(ctx, tx, domainEvent)
	}); err != nil {
		r.logFailure(ctx, event, err)
	}
}

func (r *OutboxRecorder) logFailure(ctx context.Context, event Event, err error) {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"audit_action": event.Action,
		"target_type":  event.TargetType,
		"target_id":    event.TargetID.String(),
		"actor_id":     event.Actor.ID.String(),
	})
	r.logg.Error(logCtx, "audit.record_failed", err)
}

func aggregateFor(target enums.AuditTargetType) (enums.OutboxAggregateType, error) {
	switch target {
	case enums.AuditTargetLedgerEntry:
		return enums.AggregateLedgerEntry, nil
	case enums.AuditTargetVendor:
		return enums.AggregateVendor, nil
	}
	return "", fmt.Errorf("unsupported audit target %q", target)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Record(context.Context, Event) {}
