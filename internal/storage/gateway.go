package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/inventory-tracker/pkg/config"
	"github.com/angelmondragon/inventory-tracker/pkg/db"
	"github.com/angelmondragon/inventory-tracker/pkg/diskusage"
	"github.com/angelmondragon/inventory-tracker/pkg/enums"
	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/kv"
	"github.com/angelmondragon/inventory-tracker/pkg/logger"
	"github.com/angelmondragon/inventory-tracker/pkg/metrics"
	"go.uber.org/multierr"
)

// QuotaFunc reports filesystem capacity for the directory holding the store.
type QuotaFunc func(path string) (diskusage.Stats, error)

// Options wires a Gateway.
type Options struct {
	Storage config.StorageConfig
	Logger  *logger.Logger
	Metrics *metrics.OperationMetrics
	// Now stamps image and export timestamps. Defaults to time.Now.
	Now func() time.Time
	// Quota probes capacity when Storage.QuotaBytes is zero. Defaults to diskusage.For.
	Quota QuotaFunc
}

// Gateway is the handle through which callers read and write inventory data.
// It must be initialized with Init before use.
type Gateway struct {
	opts Options
	log  *logger.Logger

	mu      sync.RWMutex
	engine  Engine
	version int64
}

// New returns an uninitialized gateway.
func New(opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Quota == nil {
		opts.Quota = diskusage.For
	}
	return &Gateway{opts: opts, log: opts.Logger}
}

// Open builds a gateway and initializes it.
func Open(ctx context.Context, opts Options) (*Gateway, error) {
	g := New(opts)
	if err := g.Init(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// Init opens the store and brings its schema to the configured version.
// Calling it on an initialized gateway is a no-op.
func (g *Gateway) Init(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.engine != nil {
		return nil
	}

	start := time.Now()
	cfg := g.opts.Storage
	ctx = g.log.WithFields(ctx, map[string]any{
		"store":  cfg.Name,
		"driver": cfg.DriverKind().String(),
	})

	engine, err := openEngine(ctx, cfg, g.log)
	if err != nil {
		g.finish(ctx, "init", start, err)
		return err
	}

	res, err := engine.Migrate(ctx, cfg.SchemaVersion)
	if err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeSchemaUpgradeFailed) {
			err = pkgerrors.Wrap(pkgerrors.CodeSchemaUpgradeFailed, err, "schema upgrade failed")
		}
		err = multierr.Append(err, engine.Close())
		g.finish(ctx, "init", start, err)
		return err
	}
	if res.Upgraded() {
		g.log.Info(g.log.WithFields(ctx, map[string]any{"from": res.From, "to": res.To}), "schema upgraded")
	}

	g.engine = engine
	g.version = res.To
	g.log.Info(ctx, "storage initialized")
	g.opts.Metrics.Track("init", start, "", false)
	return nil
}

func openEngine(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (Engine, error) {
	switch driver := cfg.DriverKind(); driver {
	case enums.StorageDriverSQLite, enums.StorageDriverPostgres:
		client, err := db.New(ctx, cfg, log)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, fmt.Sprintf("open %s store", driver))
		}
		return newSQLEngine(client), nil
	case enums.StorageDriverBolt:
		store, err := kv.Open(cfg.Path, kv.Options{Timeout: cfg.OpenTimeout})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageUnavailable, err, "open bolt store")
		}
		return newBoltEngine(store), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStorageUnavailable, fmt.Sprintf("storage driver %q is not available", cfg.Driver))
	}
}

// Close releases the engine. The gateway returns to the uninitialized state.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.engine == nil {
		return nil
	}
	err := g.engine.Close()
	g.engine = nil
	g.version = 0
	return err
}

// SchemaVersion reports the version the store was brought to by Init.
func (g *Gateway) SchemaVersion() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

func (g *Gateway) current() (Engine, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.engine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotInitialized, "storage gateway used before Init")
	}
	return g.engine, nil
}

// run executes fn against the engine, recording metrics and logging failures.
func (g *Gateway) run(ctx context.Context, op string, fn func(context.Context, Engine) error) error {
	start := time.Now()
	engine, err := g.current()
	if err == nil {
		err = fn(ctx, engine)
	}
	g.finish(ctx, op, start, err)
	return err
}

func (g *Gateway) finish(ctx context.Context, op string, start time.Time, err error) {
	if err == nil {
		g.opts.Metrics.Track(op, start, "", false)
		return
	}
	code, fields := failureFields(op, err)
	g.opts.Metrics.Track(op, start, string(code), true)
	g.log.Error(g.log.WithFields(ctx, fields), "storage operation failed", err)
}

// failureFields resolves the error code and the log fields describing err.
// Postgres errors contribute their constraint and table.
func failureFields(op string, err error) (pkgerrors.Code, map[string]any) {
	dump := pkgerrors.Dump(err)
	code := dump.Code
	if code == "" {
		code = pkgerrors.CodeTransactionFailed
	}
	fields := map[string]any{"operation": op, "code": string(code)}
	if len(dump.Chain) > 1 {
		fields["chain"] = dump.Chain
	}
	if dump.PGCode != "" {
		fields["pg_code"] = dump.PGCode
		fields["pg_constraint"] = dump.PGConstraint
		fields["pg_table"] = dump.PGTable
		fields["pg_detail"] = dump.PGDetail
	}
	return code, fields
}

func (g *Gateway) apply(ctx context.Context, engine Engine, unit *UnitOfWork) error {
	if err := unit.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit of work")
	}
	return engine.Apply(g.log.WithUnitID(ctx, unit.ID), unit)
}

func (g *Gateway) mutated(ctx context.Context, c Collection, key, msg string) {
	g.log.Info(g.log.WithFields(ctx, map[string]any{"collection": string(c), "key": key}), msg)
}

func (g *Gateway) read(ctx context.Context, c Collection, count int) {
	g.log.Debug(g.log.WithFields(g.log.WithCollection(ctx, string(c)), map[string]any{"count": count}), "records read")
}
