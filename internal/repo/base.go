package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/printhub/vendor-ledger/pkg/db"
)

// Base carries the connection a repository was bound to, either the shared
// pool or an open transaction.
type Base struct {
	conn *gorm.DB
}

func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// Bind returns a Base over tx, or b itself when tx is nil.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{conn: tx}
}

// DB returns the connection scoped to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}

// Postgres reports whether the bound connection talks to Postgres.
func (b Base) Postgres() bool {
	return db.IsPostgres(b.conn)
}

// SumCents totals column over q as a BIGINT, treating no rows as zero.
func SumCents(q *gorm.DB, column string) (int64, error) {
	var out struct {
		Total int64 `gorm:"column:total"`
	}
	err := q.Select("CAST(COALESCE(SUM(" + column + "), 0) AS BIGINT) AS total").Scan(&out).Error
	if err != nil {
		return 0, err
	}
	return out.Total, nil
}
