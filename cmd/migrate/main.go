package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/shoppos/pos-backend/pkg/config"
	"github.com/shoppos/pos-backend/pkg/db"
	"github.com/shoppos/pos-backend/pkg/logger"
	"github.com/shoppos/pos-backend/pkg/migrate"
)

type options struct {
	cmd      string
	dir      string
	embedded bool
	name     string
	version  string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory, relative to the working directory")
	flag.BoolVar(&opts.embedded, "embedded", true, "use the migrations compiled into this binary")
	flag.StringVar(&opts.name, "name", "", "name of the new migration (create)")
	flag.StringVar(&opts.version, "version", "", "target schema version (version)")
	flag.Parse()

	if err := offline(opts); err != errNeedsDatabase {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	src := migrate.Disk(opts.dir)
	if opts.embedded {
		src = migrate.Embedded()
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"source": src.String(),
	})

	if err := apply(ctx, cfg, logg, src, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

var errNeedsDatabase = errors.New("needs database")

// offline handles the commands that only touch the source tree.
func offline(opts options) error {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("create: -name is required")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return fmt.Errorf("create: %w", err)
		}
		fmt.Println("created", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
		fmt.Println("migrations ok")
		return nil
	}
	return errNeedsDatabase
}

func apply(ctx context.Context, cfg *config.Config, logg *logger.Logger, src migrate.Source, opts options) (err error) {
	var target int64
	switch opts.cmd {
	case "up", "down", "status":
	case "version":
		target, err = strconv.ParseInt(opts.version, 10, 64)
		if err != nil {
			return fmt.Errorf("-version %q: %w", opts.version, err)
		}
	default:
		return fmt.Errorf("unknown -cmd %q", opts.cmd)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	if opts.cmd == "version" {
		return migrate.ToVersion(ctx, sqlDB, src, target)
	}
	return migrate.Run(ctx, sqlDB, src, opts.cmd)
}
