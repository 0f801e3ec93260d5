package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/printhub/vendor-ledger/internal/repo"
	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
	"github.com/printhub/vendor-ledger/pkg/pagination"
)

// Filter narrows ledger queries. Zero values mean "no constraint".
type Filter struct {
	VendorID    *uuid.UUID
	Types       []enums.LedgerTransactionType
	Statuses    []enums.LedgerStatus
	From        *time.Time
	To          *time.Time
	OldestFirst bool
}

// CreditDebit holds the positive and absolute negative sums over a filter.
type CreditDebit struct {
	TotalCredit int64 `gorm:"column:total_credit"`
	TotalDebit  int64 `gorm:"column:total_debit"`
}

// TypeTotal is one row of a grouped aggregate.
type TypeTotal struct {
	TransactionType enums.LedgerTransactionType `gorm:"column:transaction_type"`
	TotalAmount     int64                       `gorm:"column:total_amount"`
	Count           int64                       `gorm:"column:count"`
}

// StatusTotal is one row of a grouped aggregate.
type StatusTotal struct {
	Status      enums.LedgerStatus `gorm:"column:status"`
	TotalAmount int64              `gorm:"column:total_amount"`
	Count       int64              `gorm:"column:count"`
}

// DatedAmount is a single (created_at, amount) pair used for day bucketing.
type DatedAmount struct {
	CreatedAt   time.Time `gorm:"column:created_at"`
	AmountCents int64     `gorm:"column:amount_cents"`
}

// Repository manages persistence for ledger entries. It does not enforce
// business rules; callers own state checks and transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, txType enums.LedgerTransactionType, from []enums.LedgerStatus, updates map[string]any) (int64, error)
	MarkPaid(ctx context.Context, ids []uuid.UUID, paidAt time.Time) (int64, error)
	List(ctx context.Context, filter Filter, params pagination.Params) ([]models.LedgerEntry, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	SumAmount(ctx context.Context, filter Filter) (int64, error)
	SumAvailable(ctx context.Context, vendorID uuid.UUID) (int64, error)
	CreditDebitTotals(ctx context.Context, filter Filter) (CreditDebit, error)
	TotalsByType(ctx context.Context, filter Filter) ([]TypeTotal, error)
	TotalsByStatus(ctx context.Context, filter Filter) ([]StatusTotal, error)
	ListUnpaidSales(ctx context.Context, vendorID uuid.UUID) ([]models.LedgerEntry, error)
	LastPaidAt(ctx context.Context, vendorID uuid.UUID, txType enums.LedgerTransactionType) (*time.Time, error)
	DatedAmounts(ctx context.Context, filter Filter) ([]DatedAmount, error)
	LockVendor(ctx context.Context, vendorID uuid.UUID) error
}

type repository struct {
	base repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return r.base.DB(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// TransitionStatus applies updates only while the row still matches the
// expected type and one of the allowed source statuses.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, txType enums.LedgerTransactionType, from []enums.LedgerStatus, updates map[string]any) (int64, error) {
	res := r.base.DB(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ? AND transaction_type = ? AND status IN ?", id, txType, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// MarkPaid settles the given entries. Rows no longer UNPAID are left alone.
func (r *repository) MarkPaid(ctx context.Context, ids []uuid.UUID, paidAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.base.DB(ctx).
		Model(&models.LedgerEntry{}).
		Where("id IN ? AND status = ?", ids, enums.LedgerStatusUnpaid).
		Updates(map[string]any{
			"status":     enums.LedgerStatusPaid,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) List(ctx context.Context, filter Filter, params pagination.Params) ([]models.LedgerEntry, error) {
	order := "created_at DESC, id DESC"
	if filter.OldestFirst {
		order = "created_at ASC, id ASC"
	}
	var entries []models.LedgerEntry
	err := r.scoped(ctx, filter).
		Order(order).
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Count(ctx context.Context, filter Filter) (int64, error) {
	var total int64
	if err := r.scoped(ctx, filter).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repository) SumAmount(ctx context.Context, filter Filter) (int64, error) {
	return repo.SumCents(r.scoped(ctx, filter), "amount_cents")
}

// SumAvailable totals the vendor's PAID entries plus every PAYOUT debit.
// A payout reserves its amount from the moment it is requested; a rejected
// one is offset by its PAID adjustment.
func (r *repository) SumAvailable(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	q := r.base.DB(ctx).
		Model(&models.LedgerEntry{}).
		Where("vendor_id = ? AND (status = ? OR transaction_type = ?)", vendorID, enums.LedgerStatusPaid, enums.LedgerTransactionPayout)
	return repo.SumCents(q, "amount_cents")
}

func (r *repository) CreditDebitTotals(ctx context.Context, filter Filter) (CreditDebit, error) {
	var out CreditDebit
	err := r.scoped(ctx, filter).
		Select(`CAST(COALESCE(SUM(CASE WHEN amount_cents > 0 THEN amount_cents ELSE 0 END), 0) AS BIGINT) AS total_credit,
			CAST(COALESCE(SUM(CASE WHEN amount_cents < 0 THEN -amount_cents ELSE 0 END), 0) AS BIGINT) AS total_debit`).
		Scan(&out).Error
	return out, err
}

func (r *repository) TotalsByType(ctx context.Context, filter Filter) ([]TypeTotal, error) {
	var rows []TypeTotal
	err := r.scoped(ctx, filter).
		Select("transaction_type, CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) AS total_amount, COUNT(*) AS count").
		Group("transaction_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) TotalsByStatus(ctx context.Context, filter Filter) ([]StatusTotal, error) {
	var rows []StatusTotal
	err := r.scoped(ctx, filter).
		Select("status, CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) AS total_amount, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListUnpaidSales returns the vendor's unsettled SALE entries, oldest first.
func (r *repository) ListUnpaidSales(ctx context.Context, vendorID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.base.DB(ctx).
		Where("vendor_id = ? AND transaction_type = ? AND status = ?", vendorID, enums.LedgerTransactionSale, enums.LedgerStatusUnpaid).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) LastPaidAt(ctx context.Context, vendorID uuid.UUID, txType enums.LedgerTransactionType) (*time.Time, error) {
	var entries []models.LedgerEntry
	err := r.base.DB(ctx).
		Where("vendor_id = ? AND transaction_type = ? AND status = ? AND paid_at IS NOT NULL", vendorID, txType, enums.LedgerStatusPaid).
		Order("paid_at DESC").
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0].PaidAt, nil
}

func (r *repository) DatedAmounts(ctx context.Context, filter Filter) ([]DatedAmount, error) {
	var rows []DatedAmount
	err := r.scoped(ctx, filter).
		Select("created_at, amount_cents").
		Order("created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LockVendor serializes balance checks for one vendor until the surrounding
// transaction ends. Only Postgres has transaction scoped advisory locks.
func (r *repository) LockVendor(ctx context.Context, vendorID uuid.UUID) error {
	if !r.base.Postgres() {
		return nil
	}
	return r.base.DB(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", vendorID.String()).Error
}

func (r *repository) scoped(ctx context.Context, filter Filter) *gorm.DB {
	q := r.base.DB(ctx).Model(&models.LedgerEntry{})
	if filter.VendorID != nil {
		q = q.Where("vendor_id = ?", *filter.VendorID)
	}
	if len(filter.Types) > 0 {
		q = q.Where("transaction_type IN ?", filter.Types)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", filter.To.UTC())
	}
	return q
}

// AppendNote builds an update expression that appends note on a new line,
// or sets it when the column is empty.
func AppendNote(note string) clause.Expr {
	return gorm.Expr("CASE WHEN notes = '' THEN ? ELSE notes || ? END", note, "\n"+note)
}
