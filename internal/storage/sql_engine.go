package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/inventory-tracker/pkg/db"
	"github.com/angelmondragon/inventory-tracker/pkg/enums"
	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/migrate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sqlEngine stores each collection in its own table.
type sqlEngine struct {
	client *db.Client
}

func newSQLEngine(client *db.Client) *sqlEngine {
	return &sqlEngine{client: client}
}

func (e *sqlEngine) Migrate(ctx context.Context, version int64) (SchemaResult, error) {
	sqlDB, err := e.client.DB().DB()
	if err != nil {
		return SchemaResult{}, pkgerrors.Wrap(pkgerrors.CodeSchemaUpgradeFailed, err, "sql handle unavailable")
	}
	provider, err := migrate.NewProvider(sqlDB, e.client.Driver(), nil)
	if err != nil {
		return SchemaResult{}, pkgerrors.Wrap(pkgerrors.CodeSchemaUpgradeFailed, err, "build migration provider")
	}
	res, err := migrate.MigrateToVersion(ctx, provider, version)
	if err != nil {
		return SchemaResult{}, pkgerrors.Wrap(pkgerrors.CodeSchemaUpgradeFailed, err, fmt.Sprintf("migrate to version %d", version))
	}
	return SchemaResult{From: res.From, To: res.To}, nil
}

func (e *sqlEngine) Apply(ctx context.Context, unit *UnitOfWork) error {
	err := e.client.WithTx(ctx, func(tx *gorm.DB) error {
		for i, m := range unit.Mutations {
			if err := applySQLMutation(tx, m); err != nil {
				return fmt.Errorf("mutation %d (%s %s): %w", i, m.Op, m.Collection, err)
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeDuplicateKey, err, "record already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeTransactionFailed, err, "unit of work failed")
}

func applySQLMutation(tx *gorm.DB, m Mutation) error {
	spec, err := specFor(m.Collection)
	if err != nil {
		return err
	}
	switch m.Op {
	case enums.MutationOpInsert:
		return tx.Create(m.Record).Error
	case enums.MutationOpPut:
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: spec.keyColumn}},
			UpdateAll: true,
		}).Create(m.Record).Error
	case enums.MutationOpDelete:
		return tx.Where(keyEq(spec, m.Key)).Delete(spec.newRecord()).Error
	case enums.MutationOpClear:
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(spec.newRecord()).Error
	default:
		return fmt.Errorf("unsupported op %q", m.Op)
	}
}

func keyEq(spec collectionSpec, key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: spec.keyColumn}, Value: key}
}

func (e *sqlEngine) Get(ctx context.Context, c Collection, key string, dst Record) (bool, error) {
	spec, err := specFor(c)
	if err != nil {
		return false, err
	}
	err = e.client.DB().WithContext(ctx).Where(keyEq(spec, key)).Take(dst).Error
	if db.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeTransactionFailed, err, fmt.Sprintf("get %s/%s", c, key))
	}
	return true, nil
}

func (e *sqlEngine) List(ctx context.Context, c Collection) ([]Record, error) {
	spec, err := specFor(c)
	if err != nil {
		return nil, err
	}
	records, err := spec.findAll(e.ordered(ctx, spec))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransactionFailed, err, fmt.Sprintf("list %s", c))
	}
	return records, nil
}

func (e *sqlEngine) ListBy(ctx context.Context, c Collection, lookup, value string) ([]Record, error) {
	spec, err := specFor(c)
	if err != nil {
		return nil, err
	}
	l, ok := spec.lookup(lookup)
	if !ok {
		return nil, fmt.Errorf("collection %s has no lookup %q", c, lookup)
	}
	var arg any = value
	if l.Time {
		ts, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("lookup %s expects an RFC 3339 timestamp", lookup))
		}
		arg = ts.UTC()
	}
	tx := e.ordered(ctx, spec).Where(clause.Eq{Column: clause.Column{Name: l.Column}, Value: arg})
	records, err := spec.findAll(tx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransactionFailed, err, fmt.Sprintf("list %s by %s", c, lookup))
	}
	return records, nil
}

func (e *sqlEngine) ordered(ctx context.Context, spec collectionSpec) *gorm.DB {
	return e.client.DB().WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: spec.keyColumn}})
}

func (e *sqlEngine) Usage(ctx context.Context) (int64, error) {
	return e.client.UsedBytes(ctx)
}

func (e *sqlEngine) Location() string {
	return e.client.Path()
}

func (e *sqlEngine) Close() error {
	return e.client.Close()
}
