package repo

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type centsRow struct {
	ID          int
	Kind        string
	AmountCents int64
}

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&centsRow{}))
	return conn
}

func TestBaseDBBindsContext(t *testing.T) {
	conn := openSQLite(t)
	base := NewBase(conn)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	scoped := base.DB(ctx)
	require.NotNil(t, scoped.Statement)
	assert.Equal(t, ctx, scoped.Statement.Context)

	assert.Same(t, conn, base.DB(nil))
}

func TestBaseBind(t *testing.T) {
	conn := openSQLite(t)
	base := NewBase(conn)

	assert.Same(t, conn, base.Bind(nil).conn)

	tx := conn.Begin()
	defer tx.Rollback()
	assert.Same(t, tx, base.Bind(tx).conn)
	assert.False(t, base.Postgres())
}

func TestSumCents(t *testing.T) {
	conn := openSQLite(t)
	require.NoError(t, conn.Create([]centsRow{
		{Kind: "SALE", AmountCents: 1500},
		{Kind: "SALE", AmountCents: 2500},
		{Kind: "PAYOUT", AmountCents: -1000},
	}).Error)

	total, err := SumCents(conn.Model(&centsRow{}), "amount_cents")
	require.NoError(t, err)
	assert.EqualValues(t, 3000, total)

	sales, err := SumCents(conn.Model(&centsRow{}).Where("kind = ?", "SALE"), "amount_cents")
	require.NoError(t, err)
	assert.EqualValues(t, 4000, sales)

	none, err := SumCents(conn.Model(&centsRow{}).Where("kind = ?", "REFUND"), "amount_cents")
	require.NoError(t, err)
	assert.Zero(t, none)
}
