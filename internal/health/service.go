package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/printhub/vendor-ledger/internal/balance"
	"github.com/printhub/vendor-ledger/internal/ledger"
	"github.com/printhub/vendor-ledger/internal/orders"
	"github.com/printhub/vendor-ledger/pkg/enums"
	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
)

const ratioPlaces = 4

// Thresholds are the debt-to-revenue cutoffs. A ratio at or above a cutoff
// takes that classification.
type Thresholds struct {
	Warning  decimal.Decimal
	Critical decimal.Decimal
}

// NewThresholds converts configured ratios.
func NewThresholds(warning, critical float64) (Thresholds, error) {
	w := decimal.NewFromFloat(warning)
	c := decimal.NewFromFloat(critical)
	if !w.IsPositive() || !c.IsPositive() {
		return Thresholds{}, errors.New("health thresholds must be positive")
	}
	if w.GreaterThan(c) {
		return Thresholds{}, fmt.Errorf("warning threshold %s exceeds critical threshold %s", w, c)
	}
	return Thresholds{Warning: w, Critical: c}, nil
}

// DefaultThresholds returns 0.7 and 0.9.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Warning:  decimal.RequireFromString("0.7"),
		Critical: decimal.RequireFromString("0.9"),
	}
}

// ComprehensiveStats extends the platform stats with the solvency check.
type ComprehensiveStats struct {
	balance.PlatformStats
	TotalDebt              int64              `json:"totalDebt"`
	TotalCommissionRevenue int64              `json:"totalCommissionRevenue"`
	PendingPayoutRequests  int64              `json:"pendingPayoutRequests"`
	PendingPayoutAmount    int64              `json:"pendingPayoutAmount"`
	DebtToRevenueRatio     decimal.Decimal    `json:"debtToRevenueRatio"`
	HealthStatus           enums.HealthStatus `json:"healthStatus"`
}

// Service reports platform solvency.
type Service interface {
	GetComprehensiveStats(ctx context.Context) (*ComprehensiveStats, error)
}

type service struct {
	balance    balance.Service
	ledger     ledger.Repository
	orders     orders.Repository
	thresholds Thresholds
}

// NewService builds the platform health reporter.
func NewService(bal balance.Service, ledgerRepo ledger.Repository, orderRepo orders.Repository, thresholds Thresholds) (Service, error) {
	if bal == nil {
		return nil, errors.New("balance service required")
	}
	if ledgerRepo == nil {
		return nil, errors.New("ledger repository required")
	}
	if orderRepo == nil {
		return nil, errors.New("orders repository required")
	}
	if thresholds.Warning.IsZero() && thresholds.Critical.IsZero() {
		thresholds = DefaultThresholds()
	}
	return &service{balance: bal, ledger: ledgerRepo, orders: orderRepo, thresholds: thresholds}, nil
}

func (s *service) GetComprehensiveStats(ctx context.Context) (*ComprehensiveStats, error) {
	platform, err := s.balance.GetPlatformStats(ctx)
	if err != nil {
		return nil, err
	}

	debt, err := s.ledger.SumAmount(ctx, ledger.Filter{
		Statuses: []enums.LedgerStatus{enums.LedgerStatusPaid},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute total debt")
	}

	revenue, err := s.orders.SumPaidCommission(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute commission revenue")
	}

	openPayouts := ledger.Filter{
		Types:    []enums.LedgerTransactionType{enums.LedgerTransactionPayout},
		Statuses: []enums.LedgerStatus{enums.LedgerStatusPending, enums.LedgerStatusProcessing},
	}
	pendingRequests, err := s.ledger.Count(ctx, openPayouts)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count pending payout requests")
	}
	pendingAmount, err := s.ledger.SumAmount(ctx, openPayouts)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum pending payout requests")
	}

	ratio, status := Classify(debt, revenue, s.thresholds)
	return &ComprehensiveStats{
		PlatformStats:          *platform,
		TotalDebt:              debt,
		TotalCommissionRevenue: revenue,
		PendingPayoutRequests:  pendingRequests,
		PendingPayoutAmount:    -pendingAmount,
		DebtToRevenueRatio:     ratio,
		HealthStatus:           status,
	}, nil
}

// Classify computes |debt| / revenue and maps it onto a health status. Zero
// or negative revenue yields a zero ratio. The comparison is exact; only the
// returned ratio is rounded. Warning is reached at its cutoff, critical only
// above its cutoff.
func Classify(totalDebt, commissionRevenue int64, thresholds Thresholds) (decimal.Decimal, enums.HealthStatus) {
	if commissionRevenue <= 0 {
		return decimal.Zero, enums.HealthStatusHealthy
	}
	debt := decimal.NewFromInt(totalDebt).Abs()
	revenue := decimal.NewFromInt(commissionRevenue)
	ratio := debt.DivRound(revenue, ratioPlaces)

	// debt/revenue vs t  <=>  debt vs t*revenue, since revenue > 0
	switch {
	case debt.Cmp(thresholds.Critical.Mul(revenue)) > 0:
		return ratio, enums.HealthStatusCritical
	case debt.Cmp(thresholds.Warning.Mul(revenue)) >= 0:
		return ratio, enums.HealthStatusWarning
	default:
		return ratio, enums.HealthStatusHealthy
	}
}
