package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/tourlink-backend/pkg/config"
	"github.com/angelmondragon/tourlink-backend/pkg/db"
	"github.com/angelmondragon/tourlink-backend/pkg/logger"
	"github.com/angelmondragon/tourlink-backend/pkg/migrate"
)

// options are the parsed command line. Dir empty means the migrations
// compiled into the binary.
type options struct {
	Cmd     string
	Dir     string
	Name    string
	Version string
}

// gooseCommands pass straight through to goose against the database.
var gooseCommands = map[string]bool{"up": true, "down": true, "redo": true, "status": true}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.Cmd, "cmd", "up", "up|down|redo|status|version|create|validate")
	fs.StringVar(&opts.Dir, "dir", "", "migrations directory on disk; empty uses the embedded set")
	fs.StringVar(&opts.Name, "name", "", "migration name for -cmd=create")
	fs.StringVar(&opts.Version, "version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	switch {
	case opts.Cmd == "create" && opts.Name == "":
		return options{}, errors.New("-cmd=create needs -name")
	case opts.Cmd == "version" && opts.Version == "":
		return options{}, errors.New("-cmd=version needs -version")
	case opts.Cmd == "create", opts.Cmd == "validate", opts.Cmd == "version", gooseCommands[opts.Cmd]:
		return opts, nil
	}
	return options{}, fmt.Errorf("unknown -cmd %q", opts.Cmd)
}

// offline reports whether the command works on files only.
func (o options) offline() bool {
	return o.Cmd == "create" || o.Cmd == "validate"
}

func runOffline(opts options, stdout io.Writer, now time.Time) error {
	switch opts.Cmd {
	case "create":
		dir := opts.Dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.Name, now)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, "created migration:", path)
	case "validate":
		if err := migrate.ValidateDir(opts.Dir); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "migrations are valid")
	}
	return nil
}

func runOnline(ctx context.Context, opts options, sqlDB *sql.DB) error {
	if opts.Cmd == "version" {
		return migrate.MigrateToVersion(ctx, sqlDB, opts.Dir, opts.Version)
	}
	return migrate.Run(ctx, sqlDB, opts.Dir, opts.Cmd)
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.offline() {
		if err := runOffline(opts, os.Stdout, time.Now()); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", opts.Cmd, err)
			os.Exit(1)
		}
		return
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "migrate"}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.Cmd,
		"dir": opts.Dir,
	})

	if err := migrateDatabase(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

func migrateDatabase(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	return runOnline(ctx, opts, sqlDB)
}
