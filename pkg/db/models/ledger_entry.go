package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printhub/vendor-ledger/pkg/enums"
)

// PaymentGatewayManual marks entries settled by an operator outside any gateway.
const PaymentGatewayManual = "MANUAL"

// LedgerEntry records one financial movement against a vendor balance. Only
// Status, PaidAt and Notes change after insert.
type LedgerEntry struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID        uuid.UUID                   `gorm:"column:vendor_id;type:uuid;not null"`
	OrderID         uuid.UUID                   `gorm:"column:order_id;type:uuid;not null"`
	SuborderID      uuid.UUID                   `gorm:"column:suborder_id;type:uuid;not null"`
	AmountCents     int64                       `gorm:"column:amount_cents;not null"`
	TransactionType enums.LedgerTransactionType `gorm:"column:transaction_type;type:text;not null"`
	Status          enums.LedgerStatus          `gorm:"column:status;type:text;not null"`
	PaymentGateway  string                      `gorm:"column:payment_gateway;not null;default:'MANUAL'"`
	Notes           string                      `gorm:"column:notes;not null;default:''"`
	PaidAt          *time.Time                  `gorm:"column:paid_at"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table used by the ledger store.
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// HasOrderContext reports whether the entry references a real order.
func (e LedgerEntry) HasOrderContext() bool {
	return e.OrderID != uuid.Nil
}
