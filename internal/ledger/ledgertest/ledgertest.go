// Package ledgertest provides sqlite fixtures shared by the ledger package tests.
package ledgertest

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/printhub/vendor-ledger/pkg/db/models"
	"github.com/printhub/vendor-ledger/pkg/enums"
	"github.com/printhub/vendor-ledger/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  suborder_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL CHECK (amount_cents <> 0),
  transaction_type TEXT NOT NULL,
  status TEXT NOT NULL,
  payment_gateway TEXT NOT NULL DEFAULT 'MANUAL',
  notes TEXT NOT NULL DEFAULT '',
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_sale_suborder_uniq
  ON ledger_entries (vendor_id, suborder_id)
  WHERE transaction_type = 'SALE';
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  total_cents INTEGER NOT NULL,
  total_commission_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);
CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`

// NewDB opens an isolated in-memory sqlite database with the ledger schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Entry describes a fixture row. Zero ids are generated.
type Entry struct {
	ID         uuid.UUID
	VendorID   uuid.UUID
	OrderID    uuid.UUID
	SuborderID uuid.UUID
	Amount     int64
	Type       enums.LedgerTransactionType
	Status     enums.LedgerStatus
	CreatedAt  time.Time
	PaidAt     *time.Time
	Notes      string
}

// Insert writes a fixture row and returns the stored model.
func Insert(t testing.TB, conn *gorm.DB, e Entry) models.LedgerEntry {
	t.Helper()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Type == enums.LedgerTransactionSale {
		if e.OrderID == uuid.Nil {
			e.OrderID = uuid.New()
		}
		if e.SuborderID == uuid.Nil {
			e.SuborderID = uuid.New()
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == enums.LedgerStatusPaid && e.PaidAt == nil {
		paid := e.CreatedAt
		e.PaidAt = &paid
	}

	row := models.LedgerEntry{
		ID:              e.ID,
		VendorID:        e.VendorID,
		OrderID:         e.OrderID,
		SuborderID:      e.SuborderID,
		AmountCents:     e.Amount,
		TransactionType: e.Type,
		Status:          e.Status,
		PaymentGateway:  models.PaymentGatewayManual,
		Notes:           e.Notes,
		PaidAt:          e.PaidAt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.CreatedAt,
	}
	require.NoError(t, conn.Create(&row).Error)
	return row
}

// Load re-reads an entry by id.
func Load(t testing.TB, conn *gorm.DB, id uuid.UUID) models.LedgerEntry {
	t.Helper()

	var row models.LedgerEntry
	require.NoError(t, conn.Where("id = ?", id).Take(&row).Error)
	return row
}

// SumPaid returns the vendor's PAID total straight from the table.
func SumPaid(t testing.TB, conn *gorm.DB, vendorID uuid.UUID) int64 {
	t.Helper()

	var total int64
	require.NoError(t, conn.Raw(
		"SELECT COALESCE(SUM(amount_cents), 0) FROM ledger_entries WHERE vendor_id = ? AND status = ?",
		vendorID, enums.LedgerStatusPaid,
	).Scan(&total).Error)
	return total
}

// Logger returns a logger that discards output.
func Logger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "ledger-test", Output: io.Discard})
}
