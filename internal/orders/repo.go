package orders

import (
	"context"

	"gorm.io/gorm"

	"github.com/printhub/vendor-ledger/internal/repo"
	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
)

// Repository reads the order aggregate owned by checkout.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	SumPaidCommission(ctx context.Context) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

// SumPaidCommission totals the commission retained on orders whose payment
// has been collected.
func (r *repository) SumPaidCommission(ctx context.Context) (int64, error) {
	q := r.DB(ctx).
		Model(&models.Order{}).
		Where("payment_status = ?", enums.PaymentStatusPaid)
	return repo.SumCents(q, "total_commission_cents")
}
