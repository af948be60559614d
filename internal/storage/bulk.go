package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/angelmondragon/inventory-tracker/pkg/db/models"
	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/types"
	"github.com/angelmondragon/inventory-tracker/pkg/validate"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Snapshot is the export payload. Images are not included.
type Snapshot struct {
	Products   []*models.Product     `json:"products"`
	Categories []*models.Category    `json:"categories"`
	Settings   map[string]types.JSON `json:"settings"`
	ExportDate time.Time             `json:"exportDate"`
	Version    int64                 `json:"version"`
}

// StorageUsage is a best-effort estimate of space used against the quota.
type StorageUsage struct {
	Used       int64  `json:"used"`
	Available  int64  `json:"available"`
	Percentage string `json:"percentage"`
}

// ClearAllData empties all four collections in one unit of work.
func (g *Gateway) ClearAllData(ctx context.Context) error {
	return g.run(ctx, "clear_all_data", func(ctx context.Context, engine Engine) error {
		unit := NewUnit()
		for _, c := range AllCollections() {
			unit.Clear(c)
		}
		if err := g.apply(ctx, engine, unit); err != nil {
			return err
		}
		g.log.Info(g.log.WithUnitID(ctx, unit.ID), "all data cleared")
		return nil
	})
}

// ExportAllData reads products, categories and settings concurrently.
// Each read is its own transaction, so the snapshot is not point-in-time.
func (g *Gateway) ExportAllData(ctx context.Context) (*Snapshot, error) {
	if _, err := g.current(); err != nil {
		g.finish(ctx, "export_all_data", time.Now(), err)
		return nil, err
	}

	var (
		products   []*models.Product
		categories []*models.Category
		settings   map[string]types.JSON
	)
	start := time.Now()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		products, err = g.GetAllProducts(egCtx)
		return err
	})
	eg.Go(func() error {
		var err error
		categories, err = g.GetAllCategories(egCtx)
		return err
	})
	eg.Go(func() error {
		var err error
		settings, err = g.GetAllSettings(egCtx)
		return err
	})
	err := eg.Wait()
	g.finish(ctx, "export_all_data", start, err)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Products:   products,
		Categories: categories,
		Settings:   settings,
		ExportDate: utc(g.opts.Now()),
		Version:    g.SchemaVersion(),
	}
	g.log.Info(g.log.WithFields(ctx, map[string]any{
		"products":   len(products),
		"categories": len(categories),
		"settings":   len(settings),
	}), "data exported")
	return snap, nil
}

// ImportAllData upserts every record of snap in one unit of work.
// Existing records not named in snap are kept.
func (g *Gateway) ImportAllData(ctx context.Context, snap *Snapshot) error {
	return g.run(ctx, "import_all_data", func(ctx context.Context, engine Engine) error {
		if snap == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "snapshot is required")
		}
		if current := g.SchemaVersion(); snap.Version > current {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("snapshot version %d is newer than store version %d", snap.Version, current))
		}

		unit := NewUnit()
		var errs error
		for i, p := range snap.Products {
			rec, err := prepareProduct(p)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("products[%d]: %w", i, err))
				continue
			}
			unit.Put(Products, rec)
		}
		for i, c := range snap.Categories {
			if c == nil {
				errs = multierr.Append(errs, fmt.Errorf("categories[%d]: missing", i))
				continue
			}
			if err := validate.Struct(c); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("categories[%d]: %w", i, err))
				continue
			}
			rec := *c
			unit.Put(Categories, &rec)
		}
		for key, value := range snap.Settings {
			if key == "" {
				errs = multierr.Append(errs, fmt.Errorf("settings: empty key"))
				continue
			}
			unit.Put(Settings, &models.Setting{Key: key, Value: value})
		}
		if errs != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, errs, "snapshot has invalid records").
				WithDetails(map[string]any{"invalid": len(multierr.Errors(errs))})
		}
		if len(unit.Mutations) == 0 {
			return nil
		}
		if err := g.apply(ctx, engine, unit); err != nil {
			return err
		}
		g.log.Info(g.log.WithFields(g.log.WithUnitID(ctx, unit.ID), map[string]any{"records": len(unit.Mutations)}), "data imported")
		return nil
	})
}

// GetStorageUsage returns nil when usage or quota cannot be determined.
// Failures are logged as warnings since absence is an expected answer.
func (g *Gateway) GetStorageUsage(ctx context.Context) *StorageUsage {
	const op = "get_storage_usage"
	start := time.Now()
	usage, err := g.storageUsage(ctx)
	if err != nil {
		code, fields := failureFields(op, err)
		fields["error"] = err.Error()
		g.opts.Metrics.Track(op, start, string(code), true)
		g.log.Warn(g.log.WithFields(ctx, fields), "storage usage unavailable")
		return nil
	}
	g.opts.Metrics.Track(op, start, "", false)
	return usage
}

func (g *Gateway) storageUsage(ctx context.Context) (*StorageUsage, error) {
	engine, err := g.current()
	if err != nil {
		return nil, err
	}
	used, err := engine.Usage(ctx)
	if err != nil {
		return nil, err
	}
	quota, err := g.quota(engine, used)
	if err != nil {
		return nil, err
	}
	if quota <= 0 {
		return nil, fmt.Errorf("quota is zero")
	}
	return &StorageUsage{
		Used:       used,
		Available:  quota,
		Percentage: fmt.Sprintf("%.2f", float64(used)/float64(quota)*100),
	}, nil
}

// quota is the configured byte budget, or the bytes used plus the free space
// of the filesystem holding the store.
func (g *Gateway) quota(engine Engine, used int64) (int64, error) {
	if q := g.opts.Storage.QuotaBytes; q > 0 {
		return int64(q), nil
	}
	loc := engine.Location()
	if loc == "" {
		return 0, fmt.Errorf("store has no local path to probe")
	}
	stats, err := g.opts.Quota(filepath.Dir(loc))
	if err != nil {
		return 0, err
	}
	return used + int64(stats.Available), nil
}
