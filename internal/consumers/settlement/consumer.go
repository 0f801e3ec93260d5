package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/printhub/vendor-ledger/internal/ledger"
	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
	"github.com/printhub/vendor-ledger/pkg/logger"
	"github.com/printhub/vendor-ledger/pkg/outbox"
	"github.com/printhub/vendor-ledger/pkg/outbox/payloads"
	"github.com/printhub/vendor-ledger/pkg/outbox/registry"
)

const consumerName = "settlement"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type saleRecorder interface {
	RecordSale(ctx context.Context, input ledger.RecordSaleInput) (*models.LedgerEntry, error)
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer books a SALE entry for every order_settled message.
type Consumer struct {
	subscription receiver
	ledger       saleRecorder
	manager      idempotencyChecker
	decoders     *registry.DecoderRegistry
	currency     enums.Currency
	logg         *logger.Logger
}

// NewDecoders registers the payload versions this consumer understands.
func NewDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.MustRegister(enums.EventOrderSettled, 1, registry.JSONDecoder[payloads.OrderSettledEvent]())
	return decoders
}

// NewConsumer wires the settlement intake.
func NewConsumer(subscription receiver, recorder saleRecorder, manager idempotencyChecker, currency enums.Currency, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("settlement subscription is required")
	}
	if recorder == nil {
		return nil, errors.New("ledger service is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("invalid ledger currency %q", currency)
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		ledger:       recorder,
		manager:      manager,
		decoders:     NewDecoders(),
		currency:     currency,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes settlement messages until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}
	logCtx := c.logg.WithFields(ctx, fields)

	eventType := strings.TrimSpace(msg.Attributes["event_type"])
	if eventType != string(enums.EventOrderSettled) {
		fields["event_type"] = eventType
		c.logg.Info(c.logg.WithFields(ctx, fields), "event not handled by settlement consumer")
		return processResult{}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "invalid settlement envelope")
		return processResult{}
	}
	eventID := envelope.ID()
	fields["event_id"] = eventID.String()
	logCtx = c.logg.WithFields(ctx, fields)

	already, err := c.manager.CheckAndMarkProcessed(logCtx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	event, err := registry.DecodeAs[payloads.OrderSettledEvent](c.decoders, enums.EventOrderSettled, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "undecodable settlement payload")
		return processResult{}
	}

	logCtx = c.logg.WithVendorID(logCtx, event.VendorID.String())
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"order_id":     event.OrderID.String(),
		"suborder_id":  event.SuborderID.String(),
		"amount_cents": event.AmountCents,
	})

	if event.Currency != "" && event.Currency != c.currency {
		c.logg.Warn(c.logg.WithField(logCtx, "currency", event.Currency), "settlement currency does not match ledger currency")
		return processResult{}
	}

	_, err = c.ledger.RecordSale(logCtx, ledger.RecordSaleInput{
		VendorID:       event.VendorID,
		OrderID:        event.OrderID,
		SuborderID:     event.SuborderID,
		AmountCents:    event.AmountCents,
		PaymentGateway: event.Gateway,
	})
	switch {
	case err == nil:
		c.logg.Info(logCtx, "settlement event booked")
		return processResult{}
	case pkgerrors.HasCode(err, pkgerrors.CodeInvalidState):
		c.logg.Info(logCtx, "sale already booked for suborder")
		return processResult{}
	case !pkgerrors.Retryable(err):
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "settlement event rejected")
		return processResult{}
	}

	c.logg.Error(c.logg.WithFields(logCtx, pkgerrors.Describe(err).Fields()), "failed to book settlement event", err)
	if derr := c.manager.Delete(logCtx, consumerName, eventID); derr != nil {
		// the redelivery will look processed and be acked; the event must be replayed by hand
		c.logg.Error(logCtx, "settlement.claim_release_failed", derr)
	}
	return processResult{nack: true}
}
