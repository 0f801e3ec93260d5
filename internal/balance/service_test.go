package balance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printhub/vendor-ledger/internal/ledger"
	"github.com/printhub/vendor-ledger/internal/ledger/ledgertest"
	"github.com/printhub/vendor-ledger/pkg/enums"
	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
)

func TestVendorBalances(t *testing.T) {
	conn := ledgertest.NewDB(t)
	svc, err := NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	vendor := uuid.New()
	other := uuid.New()
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 500, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 300, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -200, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPending})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -100, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusProcessing})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: other, Amount: 999, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid})

	ctx := context.Background()
	available, err := svc.GetAvailableBalance(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(200), available)

	pending, err := svc.GetPendingBalance(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(100), pending)

	revenue, err := svc.GetTotalRevenue(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(800), revenue)

	empty, err := svc.GetAvailableBalance(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestGetPlatformStatsAlwaysListsEveryType(t *testing.T) {
	conn := ledgertest.NewDB(t)
	svc, err := NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	vendor := uuid.New()
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 1000, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 400, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -600, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPaid})

	stats, err := svc.GetPlatformStats(context.Background())
	require.NoError(t, err)

	require.Len(t, stats.Breakdown, 4)
	assert.Equal(t, TypeSummary{TotalAmount: 1400, Count: 2}, stats.Breakdown[enums.LedgerTransactionSale])
	assert.Equal(t, TypeSummary{TotalAmount: -600, Count: 1}, stats.Breakdown[enums.LedgerTransactionPayout])
	assert.Equal(t, TypeSummary{}, stats.Breakdown[enums.LedgerTransactionRefund])
	assert.Equal(t, TypeSummary{}, stats.Breakdown[enums.LedgerTransactionAdjustment])
	assert.Equal(t, int64(1400), stats.TotalGMV)
	assert.Equal(t, int64(800), stats.TotalPlatformRevenue)
	assert.Equal(t, int64(400), stats.PendingPayouts)
}

func TestGetWalletSummary(t *testing.T) {
	conn := ledgertest.NewDB(t)
	svc, err := NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	vendor := uuid.New()
	paidAt := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 700, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -200, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPaid, PaidAt: &paidAt})

	summary, err := svc.GetWalletSummary(context.Background(), vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(500), summary.AvailableBalance)
	assert.Equal(t, int64(700), summary.TotalRevenue)
	require.NotNil(t, summary.LastPayoutAt)
	assert.True(t, paidAt.Equal(*summary.LastPayoutAt))

	_, err = svc.GetWalletSummary(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestGetRevenueChartZeroFillsMissingDays(t *testing.T) {
	conn := ledgertest.NewDB(t)
	built, err := NewService(ledger.NewRepository(conn))
	require.NoError(t, err)
	svc := built.(*service)
	now := time.Date(2026, 6, 10, 15, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	vendor := uuid.New()
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 100, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid, CreatedAt: time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 50, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid, CreatedAt: time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 70, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid, CreatedAt: time.Date(2026, 6, 4, 23, 0, 0, 0, time.UTC)})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 999, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid, CreatedAt: time.Date(2026, 6, 3, 23, 0, 0, 0, time.UTC)})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -30, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPending, CreatedAt: time.Date(2026, 6, 10, 10, 0, 0, 0, time.UTC)})

	points, err := svc.GetRevenueChart(context.Background(), vendor, 0)
	require.NoError(t, err)
	require.Len(t, points, DefaultChartDays)
	assert.Equal(t, RevenuePoint{Date: "2026-06-04", Revenue: 70}, points[0])
	assert.Equal(t, RevenuePoint{Date: "2026-06-07", Revenue: 0}, points[3])
	assert.Equal(t, RevenuePoint{Date: "2026-06-10", Revenue: 150}, points[6])
}

func TestWithTxSeesUncommittedRows(t *testing.T) {
	conn := ledgertest.NewDB(t)
	svc, err := NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	vendor := uuid.New()
	tx := conn.Begin()
	require.NoError(t, tx.Error)
	defer tx.Rollback()
	ledgertest.Insert(t, tx, ledgertest.Entry{VendorID: vendor, Amount: 250, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid})

	available, err := svc.WithTx(tx).GetAvailableBalance(context.Background(), vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(250), available)
}
