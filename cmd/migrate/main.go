package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/chatwoot-scheduler/internal/bootstrap"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/db"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&o.dir, "dir", "", "migrations directory; empty uses the embedded migrations")
	flag.StringVar(&o.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&o.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()
	if runFileCommand(opts) {
		return
	}

	proc := bootstrap.Start("migrate")
	source := opts.dir
	if source == "" {
		source = "embedded"
	}
	ctx := proc.Logger.WithFields(context.Background(), map[string]any{
		"env":    proc.Config.App.Env,
		"cmd":    opts.cmd,
		"source": source,
		"driver": proc.Config.DB.Driver,
	})
	defer proc.Close(ctx)

	dbClient, err := db.New(ctx, proc.Config.DB, proc.Logger)
	proc.Must(ctx, "database", err)
	proc.Track("database", dbClient)

	proc.Must(ctx, "goose "+opts.cmd, runDatabaseCommand(ctx, proc.Config, dbClient, opts))
	proc.Logger.Info(ctx, "migration command finished")
}

// runFileCommand handles the commands that only touch migration files and
// need neither config nor a database. It reports whether opts was one.
func runFileCommand(opts options) bool {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			exitf("missing -name for create")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name, time.Now())
		if err != nil {
			exitf("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return true
	case "validate":
		if err := migrate.ValidateDir(opts.dir); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return true
	}
	return false
}

func runDatabaseCommand(ctx context.Context, cfg *config.Config, dbClient *db.Client, opts options) error {
	if cfg.DB.Driver == config.DBDriverSQLite {
		if opts.cmd != "up" {
			return fmt.Errorf("sqlite databases only support -cmd=up, got %q", opts.cmd)
		}
		return migrate.AutoMigrateModels(ctx, dbClient)
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
