package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/angelmondragon/inventory-tracker/pkg/config"
	"github.com/angelmondragon/inventory-tracker/pkg/db"
	"github.com/angelmondragon/inventory-tracker/pkg/logger"
	"github.com/angelmondragon/inventory-tracker/pkg/migrate"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()
	// bootstrap logger early (then re-init after config load)
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	// Flags
	cmd := flag.String("cmd", "up", "migration command: up|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory (default: embedded for up/status/version, pkg/migrate/migrations/<driver> for create/validate)")

	// Command-specific flags
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target schema version for -cmd=version (default: INVENTORY_SCHEMA_VERSION)")

	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	driver := cfg.Storage.DriverKind()
	if !driver.IsRelational() {
		fmt.Fprintf(os.Stderr, "driver %q has no sql migrations; the bolt schema is applied by the gateway itself\n", driver)
		os.Exit(1)
	}

	sourceDir := *dir
	if sourceDir == "" && (*cmd == "create" || *cmd == "validate") {
		sourceDir = filepath.Join(migrate.DefaultDir, driver.String())
	}

	ctx = logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"dir":    sourceDir,
		"driver": driver.String(),
	})

	// Commands that do NOT require DB
	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "missing -name for create")
			os.Exit(1)
		}
		logg.Info(ctx, "migrate ready")
		path, err := migrate.CreateSQLMigration(sourceDir, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		logg.Info(ctx, "migrate ready")
		if err := migrate.ValidateDir(sourceDir); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	// Everything else needs DB
	dbClient, err := db.New(ctx, cfg.Storage, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	var fsys fs.FS
	if sourceDir != "" {
		fsys = os.DirFS(sourceDir)
	}
	provider, err := migrate.NewProvider(sqlDB, driver, fsys)
	requireResource(ctx, logg, "migration provider", err)

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up":
		res, err := migrate.MigrateToVersion(ctx, provider, migrate.LatestVersion(provider))
		if err != nil {
			fmt.Fprintf(os.Stderr, "goose up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("schema version %d -> %d\n", res.From, res.To)

	case "status":
		lines, err := migrate.Status(ctx, provider)
		if err != nil {
			fmt.Fprintf(os.Stderr, "goose status failed: %v\n", err)
			os.Exit(1)
		}
		for _, l := range lines {
			fmt.Println(l)
		}

	case "version":
		target := cfg.Storage.SchemaVersion
		if *version != "" {
			target, err = strconv.ParseInt(*version, 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid -version %q: %v\n", *version, err)
				os.Exit(1)
			}
		}
		res, err := migrate.MigrateToVersion(ctx, provider, target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "goose version migrate failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("schema version %d -> %d\n", res.From, res.To)

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
