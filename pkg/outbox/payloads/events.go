package payloads

import (
	"github.com/google/uuid"

	"github.com/printhub/vendor-ledger/pkg/enums"
)

// AuditRecordedEvent carries one operator action on the ledger.
type AuditRecordedEvent struct {
	Action     enums.AuditAction     `json:"action"`
	ActorID    uuid.UUID             `json:"actorId"`
	ActorEmail string                `json:"actorEmail"`
	TargetType enums.AuditTargetType `json:"targetType"`
	TargetID   string                `json:"targetId"`
	Metadata   map[string]any        `json:"metadata,omitempty"`
	IPAddress  string                `json:"ipAddress,omitempty"`
	UserAgent  string                `json:"userAgent,omitempty"`
}

// OrderSettledEvent is published by checkout once a suborder's vendor share
// is final.
type OrderSettledEvent struct {
	VendorID    uuid.UUID      `json:"vendorId"`
	OrderID     uuid.UUID      `json:"orderId"`
	SuborderID  uuid.UUID      `json:"suborderId"`
	AmountCents int64          `json:"amountCents"`
	Currency    enums.Currency `json:"currency"`
	Gateway     string         `json:"paymentGateway,omitempty"`
}
