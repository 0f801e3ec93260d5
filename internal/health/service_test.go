package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/printhub/vendor-ledger/internal/balance"
	"github.com/printhub/vendor-ledger/internal/ledger"
	"github.com/printhub/vendor-ledger/internal/ledger/ledgertest"
	"github.com/printhub/vendor-ledger/internal/orders"
	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
)

func TestClassifyBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		debt    int64
		revenue int64
		ratio   string
		status  enums.HealthStatus
	}{
		{name: "critical", debt: -91, revenue: 100, ratio: "0.91", status: enums.HealthStatusCritical},
		{name: "critical cutoff stays warning", debt: -90, revenue: 100, ratio: "0.9", status: enums.HealthStatusWarning},
		{name: "just above critical", debt: -90001, revenue: 100000, ratio: "0.9", status: enums.HealthStatusCritical},
		{name: "just below critical", debt: -89995, revenue: 100000, ratio: "0.9", status: enums.HealthStatusWarning},
		{name: "warning at cutoff", debt: -70, revenue: 100, ratio: "0.7", status: enums.HealthStatusWarning},
		{name: "just below warning", debt: -69995, revenue: 100000, ratio: "0.7", status: enums.HealthStatusHealthy},
		{name: "healthy", debt: -50, revenue: 100, ratio: "0.5", status: enums.HealthStatusHealthy},
		{name: "positive debt uses magnitude", debt: 95, revenue: 100, ratio: "0.95", status: enums.HealthStatusCritical},
		{name: "no revenue", debt: -500, revenue: 0, ratio: "0", status: enums.HealthStatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio, status := Classify(tt.debt, tt.revenue, DefaultThresholds())
			assert.True(t, ratio.Equal(decimal.RequireFromString(tt.ratio)), "ratio %s", ratio)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestNewThresholds(t *testing.T) {
	th, err := NewThresholds(0.6, 0.8)
	require.NoError(t, err)
	_, status := Classify(-65, 100, th)
	assert.Equal(t, enums.HealthStatusWarning, status)

	_, err = NewThresholds(0.9, 0.7)
	assert.Error(t, err)
	_, err = NewThresholds(0, 0.7)
	assert.Error(t, err)
}

func TestGetComprehensiveStats(t *testing.T) {
	conn := ledgertest.NewDB(t)
	ledgerRepo := ledger.NewRepository(conn)
	bal, err := balance.NewService(ledgerRepo)
	require.NoError(t, err)
	svc, err := NewService(bal, ledgerRepo, orders.NewRepository(conn), DefaultThresholds())
	require.NoError(t, err)

	vendor := uuid.New()
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 800, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 200, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -300, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPending})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -100, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusProcessing})

	now := time.Now().UTC()
	require.NoError(t, conn.Create(&models.Order{
		ID:                   uuid.New(),
		OrderNumber:          "PH-1001",
		PaymentStatus:        enums.PaymentStatusPaid,
		TotalCents:           10000,
		TotalCommissionCents: 1000,
		CreatedAt:            now,
		UpdatedAt:            now,
	}).Error)

	stats, err := svc.GetComprehensiveStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(800), stats.TotalDebt)
	assert.Equal(t, int64(1000), stats.TotalCommissionRevenue)
	assert.Equal(t, int64(2), stats.PendingPayoutRequests)
	assert.Equal(t, int64(400), stats.PendingPayoutAmount)
	assert.True(t, stats.DebtToRevenueRatio.Equal(decimal.RequireFromString("0.8")))
	assert.Equal(t, enums.HealthStatusWarning, stats.HealthStatus)
	assert.Equal(t, int64(1000), stats.TotalGMV)
	assert.Equal(t, int64(200), stats.PendingPayouts)
	assert.Len(t, stats.Breakdown, 4)
}

type failingOrders struct{}

func (failingOrders) WithTx(*gorm.DB) orders.Repository { return failingOrders{} }
func (failingOrders) SumPaidCommission(context.Context) (int64, error) {
	return 0, errors.New("orders replica unavailable")
}

func TestGetComprehensiveStatsOrdersFailure(t *testing.T) {
	conn := ledgertest.NewDB(t)
	ledgerRepo := ledger.NewRepository(conn)
	bal, err := balance.NewService(ledgerRepo)
	require.NoError(t, err)
	svc, err := NewService(bal, ledgerRepo, failingOrders{}, Thresholds{})
	require.NoError(t, err)

	_, err = svc.GetComprehensiveStats(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}
