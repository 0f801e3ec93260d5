package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/printhub/vendor-ledger/pkg/enums"
)

// Order is the read model of a customer order owned by the checkout service.
// The ledger only reads its payment status and the commission retained by
// the platform.
type Order struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber          string              `gorm:"column:order_number;not null"`
	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	TotalCents           int64               `gorm:"column:total_cents;not null"`
	TotalCommissionCents int64               `gorm:"column:total_commission_cents;not null;default:0"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
