package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printhub/vendor-ledger/pkg/enums"
	"github.com/printhub/vendor-ledger/pkg/outbox/payloads"
)

func TestDecodeAsTypedPayload(t *testing.T) {
	reg := NewDecoderRegistry()
	require.NoError(t, reg.Register(enums.EventOrderSettled, 1, JSONDecoder[payloads.OrderSettledEvent]()))

	vendorID := uuid.New()
	input := json.RawMessage(`{"vendorId":"` + vendorID.String() + `","amountCents":125000,"currency":"VND"}`)
	event, err := DecodeAs[payloads.OrderSettledEvent](reg, enums.EventOrderSettled, 1, input)
	require.NoError(t, err)
	assert.Equal(t, vendorID, event.VendorID)
	assert.EqualValues(t, 125000, event.AmountCents)

	_, err = DecodeAs[payloads.OrderSettledEvent](reg, enums.EventOrderSettled, 2, input)
	assert.True(t, errors.Is(err, ErrNoDecoder))

	_, err = DecodeAs[payloads.AuditRecordedEvent](reg, enums.EventOrderSettled, 1, input)
	assert.ErrorContains(t, err, "returned")

	_, err = reg.Decode(enums.EventOrderSettled, 1, json.RawMessage(`[`))
	assert.Error(t, err)
}

func TestRegisterRejectsDuplicatesAndBadVersions(t *testing.T) {
	reg := NewDecoderRegistry()
	dec := JSONDecoder[map[string]any]()

	require.NoError(t, reg.Register(enums.EventAuditRecorded, 1, dec))
	assert.Error(t, reg.Register(enums.EventAuditRecorded, 1, dec))
	assert.Error(t, reg.Register(enums.EventAuditRecorded, 0, dec))
	assert.Error(t, reg.Register(enums.EventAuditRecorded, 2, nil))
	assert.Panics(t, func() { reg.MustRegister(enums.EventAuditRecorded, 1, dec) })
}
