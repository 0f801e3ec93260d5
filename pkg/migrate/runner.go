package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// Runner applies the ledger schema with goose. The migrations target
// Postgres only.
type Runner struct {
	provider *goose.Provider
}

// StatusLine is one migration as reported by Status.
type StatusLine struct {
	Version int64
	Path    string
	Applied bool
}

func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		fsys = Migrations()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Up applies every pending migration and returns how many ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("goose up: %w", err)
	}
	return len(results), nil
}

// Down rolls back the latest applied migration.
func (r *Runner) Down(ctx context.Context) error {
	if _, err := r.provider.Down(ctx); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

func (r *Runner) Status(ctx context.Context) ([]StatusLine, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	lines := make([]StatusLine, 0, len(statuses))
	for _, st := range statuses {
		lines = append(lines, StatusLine{
			Version: st.Source.Version,
			Path:    st.Source.Path,
			Applied: st.State == goose.StateApplied,
		})
	}
	return lines, nil
}

// To moves the schema up or down until the database sits at target, a
// YYYYMMDDHHMMSS version.
func (r *Runner) To(ctx context.Context, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || len(target) != versionDigits {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("goose db version: %w", err)
	}
	switch {
	case current < version:
		_, err = r.provider.UpTo(ctx, version)
	case current > version:
		_, err = r.provider.DownTo(ctx, version)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, version, err)
	}
	return nil
}

func (r *Runner) Close() error {
	return r.provider.Close()
}
