package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printhub/vendor-ledger/internal/ledger/ledgertest"
	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
	"github.com/printhub/vendor-ledger/pkg/pagination"
)

func TestRepository_CreateAssignsIDAndTimestamps(t *testing.T) {
	conn := ledgertest.NewDB(t)
	repo := NewRepository(conn)

	entry := &models.LedgerEntry{
		VendorID:        uuid.New(),
		OrderID:         uuid.New(),
		SuborderID:      uuid.New(),
		AmountCents:     4200,
		TransactionType: enums.LedgerTransactionSale,
		Status:          enums.LedgerStatusUnpaid,
		PaymentGateway:  models.PaymentGatewayManual,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := repo.FindByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), got.AmountCents)
	assert.Nil(t, got.PaidAt)
}

func TestRepository_TransitionStatusIsConditional(t *testing.T) {
	conn := ledgertest.NewDB(t)
	repo := NewRepository(conn)
	vendor := uuid.New()

	payout := ledgertest.Insert(t, conn, ledgertest.Entry{
		VendorID: vendor, Amount: -500, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPending,
	})

	rows, err := repo.TransitionStatus(context.Background(), payout.ID, enums.LedgerTransactionPayout,
		[]enums.LedgerStatus{enums.LedgerStatusPending},
		map[string]any{"status": enums.LedgerStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.TransitionStatus(context.Background(), payout.ID, enums.LedgerTransactionPayout,
		[]enums.LedgerStatus{enums.LedgerStatusPending},
		map[string]any{"status": enums.LedgerStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	rows, err = repo.TransitionStatus(context.Background(), payout.ID, enums.LedgerTransactionSale,
		[]enums.LedgerStatus{enums.LedgerStatusProcessing},
		map[string]any{"status": enums.LedgerStatusPaid})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "type mismatch must not update")
}

func TestRepository_AppendNote(t *testing.T) {
	conn := ledgertest.NewDB(t)
	repo := NewRepository(conn)
	vendor := uuid.New()

	empty := ledgertest.Insert(t, conn, ledgertest.Entry{
		VendorID: vendor, Amount: -500, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPending,
	})
	noted := ledgertest.Insert(t, conn, ledgertest.Entry{
		VendorID: vendor, Amount: -700, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPending,
		Notes: "Payout to ACB - account 123",
	})

	for _, id := range []uuid.UUID{empty.ID, noted.ID} {
		_, err := repo.TransitionStatus(context.Background(), id, enums.LedgerTransactionPayout,
			[]enums.LedgerStatus{enums.LedgerStatusPending},
			map[string]any{"notes": AppendNote("Rejected: wrong account")})
		require.NoError(t, err)
	}

	assert.Equal(t, "Rejected: wrong account", ledgertest.Load(t, conn, empty.ID).Notes)
	assert.Equal(t, "Payout to ACB - account 123\nRejected: wrong account", ledgertest.Load(t, conn, noted.ID).Notes)
}

func TestRepository_MarkPaidSkipsSettledRows(t *testing.T) {
	conn := ledgertest.NewDB(t)
	repo := NewRepository(conn)
	vendor := uuid.New()

	unpaid := ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 100, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid})
	paid := ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 200, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid})

	rows, err := repo.MarkPaid(context.Background(), []uuid.UUID{unpaid.ID, paid.ID}, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	reloaded := ledgertest.Load(t, conn, unpaid.ID)
	assert.Equal(t, enums.LedgerStatusPaid, reloaded.Status)
	require.NotNil(t, reloaded.PaidAt)
}

func TestRepository_ListOrdersAndPaginates(t *testing.T) {
	conn := ledgertest.NewDB(t)
	repo := NewRepository(conn)
	vendor := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		row := ledgertest.Insert(t, conn, ledgertest.Entry{
			VendorID: vendor, Amount: int64(100 * (i + 1)), Type: enums.LedgerTransactionSale,
			Status: enums.LedgerStatusUnpaid, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		ids = append(ids, row.ID)
	}
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: uuid.New(), Amount: 999, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid})

	filter := Filter{VendorID: &vendor}
	page, err := repo.List(context.Background(), filter, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	page, err = repo.List(context.Background(), filter, pagination.Params{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	total, err := repo.Count(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	from := base.Add(90 * time.Minute)
	to := base.Add(3 * time.Hour)
	total, err = repo.Count(context.Background(), Filter{VendorID: &vendor, From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestRepository_Aggregates(t *testing.T) {
	conn := ledgertest.NewDB(t)
	repo := NewRepository(conn)
	vendor := uuid.New()

	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 100, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -40, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 25, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid})

	totals, err := repo.CreditDebitTotals(context.Background(), Filter{VendorID: &vendor})
	require.NoError(t, err)
	assert.Equal(t, int64(125), totals.TotalCredit)
	assert.Equal(t, int64(40), totals.TotalDebit)

	sum, err := repo.SumAmount(context.Background(), Filter{VendorID: &vendor, Statuses: []enums.LedgerStatus{enums.LedgerStatusPaid}})
	require.NoError(t, err)
	assert.Equal(t, int64(60), sum)

	empty := uuid.New()
	sum, err = repo.SumAmount(context.Background(), Filter{VendorID: &empty})
	require.NoError(t, err)
	assert.Equal(t, int64(0), sum)

	byType, err := repo.TotalsByType(context.Background(), Filter{})
	require.NoError(t, err)
	got := map[enums.LedgerTransactionType]TypeTotal{}
	for _, row := range byType {
		got[row.TransactionType] = row
	}
	assert.Equal(t, int64(125), got[enums.LedgerTransactionSale].TotalAmount)
	assert.Equal(t, int64(2), got[enums.LedgerTransactionSale].Count)
	assert.Equal(t, int64(-40), got[enums.LedgerTransactionPayout].TotalAmount)

	byStatus, err := repo.TotalsByStatus(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)
}

func TestRepository_UnpaidSalesAndLastPaid(t *testing.T) {
	conn := ledgertest.NewDB(t)
	repo := NewRepository(conn)
	vendor := uuid.New()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	newer := ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 200, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid, CreatedAt: base.Add(time.Hour)})
	older := ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 100, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid, CreatedAt: base})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 300, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid, CreatedAt: base})

	sales, err := repo.ListUnpaidSales(context.Background(), vendor)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, older.ID, sales[0].ID)
	assert.Equal(t, newer.ID, sales[1].ID)

	last, err := repo.LastPaidAt(context.Background(), vendor, enums.LedgerTransactionPayout)
	require.NoError(t, err)
	assert.Nil(t, last)

	paidAt := base.Add(48 * time.Hour)
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -50, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPaid, CreatedAt: base, PaidAt: &paidAt})
	last, err = repo.LastPaidAt(context.Background(), vendor, enums.LedgerTransactionPayout)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.Equal(paidAt))
}

func TestRepository_LockVendorIsNoopOnSqlite(t *testing.T) {
	conn := ledgertest.NewDB(t)
	require.NoError(t, NewRepository(conn).LockVendor(context.Background(), uuid.New()))
}

func TestRepository_SumAvailableReservesOpenPayouts(t *testing.T) {
	conn := ledgertest.NewDB(t)
	repo := NewRepository(conn)
	vendor := uuid.New()

	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 1000, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusPaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 300, Type: enums.LedgerTransactionSale, Status: enums.LedgerStatusUnpaid})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -250, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusPending})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: -100, Type: enums.LedgerTransactionPayout, Status: enums.LedgerStatusCancelled})
	ledgertest.Insert(t, conn, ledgertest.Entry{VendorID: vendor, Amount: 100, Type: enums.LedgerTransactionAdjustment, Status: enums.LedgerStatusPaid})

	available, err := repo.SumAvailable(context.Background(), vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(750), available)
}
