package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printhub/vendor-ledger/internal/ledger"
	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
	"github.com/printhub/vendor-ledger/pkg/logger"
	"github.com/printhub/vendor-ledger/pkg/outbox"
	"github.com/printhub/vendor-ledger/pkg/outbox/payloads"
)

func TestProcessBooksSale(t *testing.T) {
	recorder := &stubRecorder{}
	manager := &stubManager{}
	c := newTestConsumer(t, recorder, manager)

	event := settledEvent()
	res := c.process(context.Background(), buildSettledMessage(t, event))

	assert.False(t, res.nack)
	require.Len(t, recorder.inputs, 1)
	got := recorder.inputs[0]
	assert.Equal(t, event.VendorID, got.VendorID)
	assert.Equal(t, event.SuborderID, got.SuborderID)
	assert.Equal(t, int64(125000), got.AmountCents)
	assert.Equal(t, "vnpay", got.PaymentGateway)
	assert.Len(t, manager.checked, 1)
	assert.Empty(t, manager.deleted)
}

func TestProcessAlreadyProcessed(t *testing.T) {
	recorder := &stubRecorder{}
	manager := &stubManager{checkResult: true}
	c := newTestConsumer(t, recorder, manager)

	res := c.process(context.Background(), buildSettledMessage(t, settledEvent()))

	assert.False(t, res.nack)
	assert.Empty(t, recorder.inputs)
}

func TestProcessIgnoresOtherEventTypes(t *testing.T) {
	recorder := &stubRecorder{}
	manager := &stubManager{}
	c := newTestConsumer(t, recorder, manager)

	msg := buildSettledMessage(t, settledEvent())
	msg.Attributes["event_type"] = string(enums.EventAuditRecorded)

	res := c.process(context.Background(), msg)
	assert.False(t, res.nack)
	assert.Empty(t, manager.checked)
	assert.Empty(t, recorder.inputs)
}

func TestProcessInvalidEnvelopeAcks(t *testing.T) {
	manager := &stubManager{}
	c := newTestConsumer(t, &stubRecorder{}, manager)

	msg := &gcppubsub.Message{
		ID:         "msg-1",
		Data:       []byte("invalid json"),
		Attributes: map[string]string{"event_type": string(enums.EventOrderSettled)},
	}
	res := c.process(context.Background(), msg)
	assert.False(t, res.nack)
	assert.Empty(t, manager.checked)
}

func TestProcessCurrencyMismatchAcks(t *testing.T) {
	recorder := &stubRecorder{}
	c := newTestConsumer(t, recorder, &stubManager{})

	event := settledEvent()
	event.Currency = enums.CurrencyUSD
	res := c.process(context.Background(), buildSettledMessage(t, event))

	assert.False(t, res.nack)
	assert.Empty(t, recorder.inputs)
}

func TestProcessRecorderOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantNack    bool
		wantDeleted int
	}{
		{name: "duplicate sale", err: pkgerrors.New(pkgerrors.CodeInvalidState, "sale already recorded for suborder")},
		{name: "invalid payload", err: pkgerrors.New(pkgerrors.CodeValidation, "validation failed")},
		{name: "unknown vendor", err: pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")},
		{name: "aborted", err: pkgerrors.Wrap(pkgerrors.CodeTransactionAborted, errors.New("deadlock"), "record sale"), wantNack: true, wantDeleted: 1},
		{name: "database down", err: errors.New("connection refused"), wantNack: true, wantDeleted: 1},
		{name: "internal", err: pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("boom"), "record sale"), wantNack: true, wantDeleted: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := &stubManager{}
			c := newTestConsumer(t, &stubRecorder{err: tt.err}, manager)

			res := c.process(context.Background(), buildSettledMessage(t, settledEvent()))
			assert.Equal(t, tt.wantNack, res.nack)
			assert.Len(t, manager.deleted, tt.wantDeleted)
		})
	}
}

func TestProcessIdempotencyFailureNacks(t *testing.T) {
	recorder := &stubRecorder{}
	c := newTestConsumer(t, recorder, &stubManager{checkErr: errors.New("redis down")})

	res := c.process(context.Background(), buildSettledMessage(t, settledEvent()))
	assert.True(t, res.nack)
	assert.Empty(t, recorder.inputs)
}

func TestProcessLogsFailedClaimRelease(t *testing.T) {
	var buf bytes.Buffer
	manager := &stubManager{deleteErr: errors.New("redis timeout")}
	c := newTestConsumer(t, &stubRecorder{err: errors.New("connection refused")}, manager)
	c.logg = logger.New(logger.Options{ServiceName: "settlement-test", Output: &buf})

	event := settledEvent()
	res := c.process(context.Background(), buildSettledMessage(t, event))
	assert.True(t, res.nack)
	assert.Len(t, manager.deleted, 1)
	assert.Contains(t, buf.String(), "settlement.claim_release_failed")
	assert.Contains(t, buf.String(), "redis timeout")
	assert.Contains(t, buf.String(), event.SuborderID.String())
}

func TestNewConsumerValidatesDeps(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "settlement-test", Output: io.Discard})
	_, err := NewConsumer(nil, &stubRecorder{}, &stubManager{}, enums.CurrencyVND, logg)
	assert.Error(t, err)

	_, err = NewConsumer(&stubReceiver{}, &stubRecorder{}, &stubManager{}, enums.Currency("XYZ"), logg)
	assert.Error(t, err)

	c, err := NewConsumer(&stubReceiver{}, &stubRecorder{}, &stubManager{}, enums.CurrencyVND, logg)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func settledEvent() payloads.OrderSettledEvent {
	return payloads.OrderSettledEvent{
		VendorID:    uuid.New(),
		OrderID:     uuid.New(),
		SuborderID:  uuid.New(),
		AmountCents: 125000,
		Currency:    enums.CurrencyVND,
		Gateway:     "vnpay",
	}
}

func buildSettledMessage(t *testing.T, event payloads.OrderSettledEvent) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Data:       data,
	}
	body, err := json.Marshal(envelope)
	require.NoError(t, err)
	return &gcppubsub.Message{
		ID:   "msg-1",
		Data: body,
		Attributes: map[string]string{
			"event_type":     string(enums.EventOrderSettled),
			"aggregate_type": string(enums.AggregateLedgerEntry),
			"aggregate_id":   event.SuborderID.String(),
		},
	}
}

func newTestConsumer(t *testing.T, recorder *stubRecorder, manager *stubManager) *Consumer {
	t.Helper()
	return &Consumer{
		subscription: &stubReceiver{},
		ledger:       recorder,
		manager:      manager,
		decoders:     NewDecoders(),
		currency:     enums.CurrencyVND,
		logg:         logger.New(logger.Options{ServiceName: "settlement-test", Output: io.Discard}),
	}
}

type stubReceiver struct{}

func (stubReceiver) Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error {
	return nil
}

type stubRecorder struct {
	err    error
	inputs []ledger.RecordSaleInput
}

func (s *stubRecorder) RecordSale(ctx context.Context, input ledger.RecordSaleInput) (*models.LedgerEntry, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return &models.LedgerEntry{ID: uuid.New(), VendorID: input.VendorID, AmountCents: input.AmountCents}, nil
}

type stubManager struct {
	checkResult bool
	checkErr    error
	deleteErr   error
	checked     []uuid.UUID
	deleted     []uuid.UUID
}

func (s *stubManager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	s.checked = append(s.checked, eventID)
	return s.checkResult, s.checkErr
}

func (s *stubManager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	s.deleted = append(s.deleted, eventID)
	return s.deleteErr
}
