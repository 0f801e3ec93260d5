package balance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printhub/vendor-ledger/internal/ledger"
	"github.com/printhub/vendor-ledger/pkg/enums"
	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
)

const (
	DefaultChartDays = 7
	maxChartDays     = 366
	chartDateLayout  = time.DateOnly
)

// Service derives balances from the ledger. Nothing here is stored.
type Service interface {
	WithTx(tx *gorm.DB) Service
	GetAvailableBalance(ctx context.Context, vendorID uuid.UUID) (int64, error)
	GetPendingBalance(ctx context.Context, vendorID uuid.UUID) (int64, error)
	GetTotalRevenue(ctx context.Context, vendorID uuid.UUID) (int64, error)
	GetPlatformStats(ctx context.Context) (*PlatformStats, error)
	GetWalletSummary(ctx context.Context, vendorID uuid.UUID) (*WalletSummary, error)
	GetRevenueChart(ctx context.Context, vendorID uuid.UUID, days int) ([]RevenuePoint, error)
}

// TypeSummary is the aggregate of one transaction type.
type TypeSummary struct {
	TotalAmount int64 `json:"totalAmount"`
	Count       int64 `json:"count"`
}

// PlatformStats summarizes the whole ledger. Breakdown always carries every
// transaction type.
type PlatformStats struct {
	TotalGMV             int64                                       `json:"totalGMV"`
	TotalPlatformRevenue int64                                       `json:"totalPlatformRevenue"`
	PendingPayouts       int64                                       `json:"pendingPayouts"`
	Breakdown            map[enums.LedgerTransactionType]TypeSummary `json:"breakdown"`
}

// WalletSummary is the vendor-facing balance view.
type WalletSummary struct {
	VendorID         uuid.UUID  `json:"vendorId"`
	AvailableBalance int64      `json:"availableBalance"`
	PendingBalance   int64      `json:"pendingBalance"`
	TotalRevenue     int64      `json:"totalRevenue"`
	LastPayoutAt     *time.Time `json:"lastPayoutDate"`
}

// RevenuePoint is one day of SALE totals.
type RevenuePoint struct {
	Date    string `json:"date"`
	Revenue int64  `json:"revenue"`
}

type service struct {
	repo ledger.Repository
	now  func() time.Time
}

// NewService builds a balance calculator over the ledger repository.
func NewService(repo ledger.Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// WithTx binds every read to tx so checks see a consistent snapshot inside an
// open transaction.
func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

// GetAvailableBalance is the vendor's PAID total net of every payout request.
// Open requests reserve their amount so the same funds cannot be requested
// twice, and a rejection's PAID adjustment offsets the cancelled debit.
func (s *service) GetAvailableBalance(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	total, err := s.repo.SumAvailable(ctx, vendorID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute available balance")
	}
	return total, nil
}

func (s *service) GetPendingBalance(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	return s.sum(ctx, ledger.Filter{
		VendorID: &vendorID,
		Statuses: []enums.LedgerStatus{enums.LedgerStatusUnpaid, enums.LedgerStatusPending},
	}, "pending balance")
}

func (s *service) GetTotalRevenue(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	return s.sum(ctx, ledger.Filter{
		VendorID: &vendorID,
		Types:    []enums.LedgerTransactionType{enums.LedgerTransactionSale},
	}, "total revenue")
}

func (s *service) GetPlatformStats(ctx context.Context) (*PlatformStats, error) {
	totals, err := s.repo.TotalsByType(ctx, ledger.Filter{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate ledger by type")
	}

	breakdown := make(map[enums.LedgerTransactionType]TypeSummary, 4)
	for _, txType := range enums.LedgerTransactionTypes() {
		breakdown[txType] = TypeSummary{}
	}
	for _, row := range totals {
		if !row.TransactionType.IsValid() {
			continue
		}
		breakdown[row.TransactionType] = TypeSummary{TotalAmount: row.TotalAmount, Count: row.Count}
	}

	pending, err := s.sum(ctx, ledger.Filter{
		Types:    []enums.LedgerTransactionType{enums.LedgerTransactionSale},
		Statuses: []enums.LedgerStatus{enums.LedgerStatusUnpaid, enums.LedgerStatusPending},
	}, "pending payouts")
	if err != nil {
		return nil, err
	}

	gmv := breakdown[enums.LedgerTransactionSale].TotalAmount
	return &PlatformStats{
		TotalGMV: gmv,
		TotalPlatformRevenue: gmv +
			breakdown[enums.LedgerTransactionPayout].TotalAmount +
			breakdown[enums.LedgerTransactionRefund].TotalAmount +
			breakdown[enums.LedgerTransactionAdjustment].TotalAmount,
		PendingPayouts: pending,
		Breakdown:      breakdown,
	}, nil
}

func (s *service) GetWalletSummary(ctx context.Context, vendorID uuid.UUID) (*WalletSummary, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	available, err := s.GetAvailableBalance(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	pending, err := s.GetPendingBalance(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	revenue, err := s.GetTotalRevenue(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	lastPayout, err := s.repo.LastPaidAt(ctx, vendorID, enums.LedgerTransactionPayout)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load last payout date")
	}
	return &WalletSummary{
		VendorID:         vendorID,
		AvailableBalance: available,
		PendingBalance:   pending,
		TotalRevenue:     revenue,
		LastPayoutAt:     lastPayout,
	}, nil
}

// GetRevenueChart returns daily SALE totals for the last days calendar days
// (UTC), oldest first, including today. Days without sales report zero.
func (s *service) GetRevenueChart(ctx context.Context, vendorID uuid.UUID, days int) ([]RevenuePoint, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if days <= 0 {
		days = DefaultChartDays
	}
	if days > maxChartDays {
		days = maxChartDays
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))

	rows, err := s.repo.DatedAmounts(ctx, ledger.Filter{
		VendorID: &vendorID,
		Types:    []enums.LedgerTransactionType{enums.LedgerTransactionSale},
		From:     &start,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load revenue chart")
	}

	byDay := make(map[string]int64, days)
	for _, row := range rows {
		byDay[row.CreatedAt.UTC().Format(chartDateLayout)] += row.AmountCents
	}

	points := make([]RevenuePoint, 0, days)
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format(chartDateLayout)
		points = append(points, RevenuePoint{Date: key, Revenue: byDay[key]})
	}
	return points, nil
}

func (s *service) sum(ctx context.Context, filter ledger.Filter, what string) (int64, error) {
	total, err := s.repo.SumAmount(ctx, filter)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute "+what)
	}
	return total, nil
}
