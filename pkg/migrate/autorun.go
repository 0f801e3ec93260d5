package migrate

import (
	"context"
	"fmt"

	"github.com/printhub/vendor-ledger/pkg/config"
	"github.com/printhub/vendor-ledger/pkg/db"
	"github.com/printhub/vendor-ledger/pkg/logger"
)

// AutoRun applies the embedded migrations at startup when running in dev with
// LEDGER_AUTO_MIGRATE enabled.
func AutoRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if !db.IsPostgres(client.DB()) {
		logg.Warn(ctx, "auto migrate skipped: schema targets postgres")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, nil)
	if err != nil {
		return err
	}
	defer runner.Close()

	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", applied), "auto migrate completed")
	return nil
}
