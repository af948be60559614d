package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/angelmondragon/inventory-tracker/pkg/enums"
	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations
var embedded embed.FS

var (
	// ErrDowngrade is returned when the stored schema is newer than the requested one.
	ErrDowngrade = errors.New("stored schema version is newer than requested")
	// ErrUnknownVersion is returned when no migration exists for the requested version.
	ErrUnknownVersion = errors.New("requested schema version has no migration")
)

// Result describes one MigrateToVersion call.
type Result struct {
	From    int64
	To      int64
	Applied []int64
}

// Upgraded reports whether any migration ran.
func (r *Result) Upgraded() bool {
	return r != nil && len(r.Applied) > 0
}

// MigrationsFS returns the embedded migrations for the relational driver.
func MigrationsFS(driver enums.StorageDriver) (fs.FS, error) {
	if !driver.IsRelational() {
		return nil, fmt.Errorf("driver %q has no sql migrations", driver)
	}
	return fs.Sub(embedded, "migrations/"+driver.String())
}

func dialectFor(driver enums.StorageDriver) (goose.Dialect, error) {
	switch driver {
	case enums.StorageDriverSQLite:
		return goose.DialectSQLite3, nil
	case enums.StorageDriverPostgres:
		return goose.DialectPostgres, nil
	default:
		return "", fmt.Errorf("driver %q has no goose dialect", driver)
	}
}

// NewProvider builds a goose provider over fsys, defaulting to the embedded
// migrations for driver when fsys is nil.
func NewProvider(db *sql.DB, driver enums.StorageDriver, fsys fs.FS) (*goose.Provider, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if fsys == nil {
		fsys, err = MigrationsFS(driver)
		if err != nil {
			return nil, err
		}
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	return provider, nil
}

// LatestVersion returns the highest version known to the provider.
func LatestVersion(provider *goose.Provider) int64 {
	var latest int64
	for _, src := range provider.ListSources() {
		if src.Version > latest {
			latest = src.Version
		}
	}
	return latest
}

// MigrateToVersion upgrades the schema to target. Downgrades are refused.
func MigrateToVersion(ctx context.Context, provider *goose.Provider, target int64) (*Result, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if target < 1 {
		return nil, fmt.Errorf("invalid version %d", target)
	}
	if latest := LatestVersion(provider); target > latest {
		return nil, fmt.Errorf("%w: %d (latest %d)", ErrUnknownVersion, target, latest)
	}

	current, err := provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	result := &Result{From: current, To: current}
	switch {
	case current == target:
		return result, nil

	case current > target:
		return result, fmt.Errorf("%w: stored %d, requested %d", ErrDowngrade, current, target)
	}

	applied, err := provider.UpTo(ctx, target)
	for _, r := range applied {
		if r != nil && r.Source != nil && r.Error == nil {
			result.Applied = append(result.Applied, r.Source.Version)
			result.To = r.Source.Version
		}
	}
	if err != nil {
		return result, fmt.Errorf("goose up-to %d: %w", target, err)
	}
	return result, nil
}

// Status lists every known migration with its applied state.
func Status(ctx context.Context, provider *goose.Provider) ([]string, error) {
	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	lines := make([]string, 0, len(statuses))
	for _, st := range statuses {
		line := fmt.Sprintf("%05d %-40s %s", st.Source.Version, st.Source.Path, st.State)
		if !st.AppliedAt.IsZero() {
			line += " " + st.AppliedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		lines = append(lines, line)
	}
	return lines, nil
}
