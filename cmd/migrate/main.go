package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/printhub/vendor-ledger/pkg/config"
	"github.com/printhub/vendor-ledger/pkg/db"
	"github.com/printhub/vendor-ledger/pkg/logger"
	"github.com/printhub/vendor-ledger/pkg/migrate"
)

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()
	if err := run(*cmd, *dir, *name, *version); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", *cmd, err)
		os.Exit(1)
	}
}

func run(cmd, dir, name, version string) error {
	source := migrate.Migrations()
	if dir != "" {
		source = os.DirFS(dir)
	}

	// create and validate work on files only
	switch cmd {
	case "create":
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.Create(dir, name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.Validate(source); err != nil {
			return err
		}
		fmt.Println("migrations valid")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{
		ServiceName: "ledger-migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": cmd})

	dbClient, err := db.New(ctx, cfg.DB, cfg.Ledger.TxTimeout, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, source)
	if err != nil {
		return err
	}
	defer runner.Close()

	switch cmd {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
	case "down":
		return runner.Down(ctx)
	case "status":
		lines, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(lines)
	case "version":
		if version == "" {
			return fmt.Errorf("-version is required")
		}
		return runner.To(ctx, version)
	default:
		return fmt.Errorf("unknown command")
	}
	return nil
}

func printStatus(lines []migrate.StatusLine) {
	for _, l := range lines {
		state := "pending"
		if l.Applied {
			state = "applied"
		}
		fmt.Printf("%-8s %d %s\n", state, l.Version, l.Path)
	}
}
