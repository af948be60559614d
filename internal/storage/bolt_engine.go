package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/inventory-tracker/pkg/enums"
	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/kv"
)

const (
	metaBucket       = "meta"
	schemaVersionKey = "schema_version"
	indexSep         = "\x00"
)

// boltSchemas maps each schema version to the buckets it introduces.
var boltSchemas = map[int64]func(tx kv.WriteTx) error{
	1: func(tx kv.WriteTx) error {
		for _, c := range AllCollections() {
			if err := createCollectionBuckets(tx, registry[c]); err != nil {
				return err
			}
		}
		return nil
	},
}

var errDuplicate = errors.New("key already exists")

// boltEngine keeps one bucket per collection plus one bucket per lookup.
// Lookup buckets hold keys of the form value\x00primaryKey with empty values.
type boltEngine struct {
	store *kv.Store
}

func newBoltEngine(store *kv.Store) *boltEngine {
	return &boltEngine{store: store}
}

func indexBucket(c Collection, lookup string) string {
	return "idx:" + string(c) + ":" + lookup
}

func indexKey(value, pk string) string {
	return value + indexSep + pk
}

func createCollectionBuckets(tx kv.WriteTx, spec collectionSpec) error {
	if err := tx.CreateBucketIfNotExists(string(spec.name)); err != nil {
		return fmt.Errorf("create bucket %s: %w", spec.name, err)
	}
	for _, l := range spec.lookups {
		if err := tx.CreateBucketIfNotExists(indexBucket(spec.name, l.Name)); err != nil {
			return fmt.Errorf("create lookup %s.%s: %w", spec.name, l.Name, err)
		}
	}
	return nil
}

func latestBoltSchema() int64 {
	var latest int64
	for v := range boltSchemas {
		if v > latest {
			latest = v
		}
	}
	return latest
}

func (e *boltEngine) Migrate(_ context.Context, version int64) (SchemaResult, error) {
	var res SchemaResult
	err := e.store.Update(func(tx kv.WriteTx) error {
		if err := tx.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}
		current, err := storedVersion(tx)
		if err != nil {
			return err
		}
		res = SchemaResult{From: current, To: current}

		if version < 1 {
			return fmt.Errorf("invalid version %d", version)
		}
		if latest := latestBoltSchema(); version > latest {
			return fmt.Errorf("requested schema version %d has no migration (latest %d)", version, latest)
		}
		if current > version {
			return fmt.Errorf("stored schema version %d is newer than requested %d", current, version)
		}
		for v := current + 1; v <= version; v++ {
			if err := boltSchemas[v](tx); err != nil {
				return fmt.Errorf("apply schema %d: %w", v, err)
			}
		}
		res.To = version
		return tx.Put(metaBucket, schemaVersionKey, []byte(strconv.FormatInt(version, 10)))
	})
	if err != nil {
		return SchemaResult{From: res.From, To: res.From}, pkgerrors.Wrap(pkgerrors.CodeSchemaUpgradeFailed, err, fmt.Sprintf("migrate to version %d", version))
	}
	return res, nil
}

func storedVersion(tx kv.ReadTx) (int64, error) {
	raw, ok := tx.Get(metaBucket, schemaVersionKey)
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt schema version %q: %w", raw, err)
	}
	return v, nil
}

func (e *boltEngine) Apply(_ context.Context, unit *UnitOfWork) error {
	err := e.store.Update(func(tx kv.WriteTx) error {
		for i, m := range unit.Mutations {
			if err := applyBoltMutation(tx, m); err != nil {
				return fmt.Errorf("mutation %d (%s %s): %w", i, m.Op, m.Collection, err)
			}
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errDuplicate):
		return pkgerrors.Wrap(pkgerrors.CodeDuplicateKey, err, "record already exists")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeTransactionFailed, err, "unit of work failed")
	}
}

func applyBoltMutation(tx kv.WriteTx, m Mutation) error {
	spec, err := specFor(m.Collection)
	if err != nil {
		return err
	}
	bucket := string(spec.name)
	switch m.Op {
	case enums.MutationOpInsert:
		if _, exists := tx.Get(bucket, m.Key); exists {
			return fmt.Errorf("%s/%s: %w", bucket, m.Key, errDuplicate)
		}
		return putRecord(tx, spec, m.Record)
	case enums.MutationOpPut:
		if err := dropIndexes(tx, spec, m.Record.PrimaryKey()); err != nil {
			return err
		}
		return putRecord(tx, spec, m.Record)
	case enums.MutationOpDelete:
		if err := dropIndexes(tx, spec, m.Key); err != nil {
			return err
		}
		return tx.Delete(bucket, m.Key)
	case enums.MutationOpClear:
		if err := tx.ClearBucket(bucket); err != nil {
			return err
		}
		for _, l := range spec.lookups {
			if err := tx.ClearBucket(indexBucket(spec.name, l.Name)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported op %q", m.Op)
	}
}

func putRecord(tx kv.WriteTx, spec collectionSpec, rec Record) error {
	data, err := kv.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", spec.name, rec.PrimaryKey(), err)
	}
	pk := rec.PrimaryKey()
	if err := tx.Put(string(spec.name), pk, data); err != nil {
		return err
	}
	values := rec.IndexValues()
	for _, l := range spec.lookups {
		if err := tx.Put(indexBucket(spec.name, l.Name), indexKey(values[l.Name], pk), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

// dropIndexes removes lookup entries of the record currently stored under pk.
func dropIndexes(tx kv.WriteTx, spec collectionSpec, pk string) error {
	if len(spec.lookups) == 0 {
		return nil
	}
	raw, ok := tx.Get(string(spec.name), pk)
	if !ok {
		return nil
	}
	old := spec.newRecord()
	if err := kv.Unmarshal(raw, old); err != nil {
		return fmt.Errorf("decode %s/%s: %w", spec.name, pk, err)
	}
	values := old.IndexValues()
	for _, l := range spec.lookups {
		if err := tx.Delete(indexBucket(spec.name, l.Name), indexKey(values[l.Name], pk)); err != nil {
			return err
		}
	}
	return nil
}

func (e *boltEngine) Get(_ context.Context, c Collection, key string, dst Record) (bool, error) {
	if _, err := specFor(c); err != nil {
		return false, err
	}
	var found bool
	err := e.store.View(func(tx kv.ReadTx) error {
		raw, ok := tx.Get(string(c), key)
		if !ok {
			return nil
		}
		found = true
		return kv.Unmarshal(raw, dst)
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeTransactionFailed, err, fmt.Sprintf("get %s/%s", c, key))
	}
	return found, nil
}

func (e *boltEngine) List(_ context.Context, c Collection) ([]Record, error) {
	spec, err := specFor(c)
	if err != nil {
		return nil, err
	}
	var out []Record
	err = e.store.View(func(tx kv.ReadTx) error {
		return tx.ForEach(string(c), func(_, v []byte) error {
			rec := spec.newRecord()
			if err := kv.Unmarshal(v, rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransactionFailed, err, fmt.Sprintf("list %s", c))
	}
	return out, nil
}

func (e *boltEngine) ListBy(_ context.Context, c Collection, lookup, value string) ([]Record, error) {
	spec, err := specFor(c)
	if err != nil {
		return nil, err
	}
	l, ok := spec.lookup(lookup)
	if !ok {
		return nil, fmt.Errorf("collection %s has no lookup %q", c, lookup)
	}
	if l.Time {
		ts, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("lookup %s expects an RFC 3339 timestamp", lookup))
		}
		value = ts.UTC().Format(time.RFC3339Nano)
	}

	var out []Record
	prefix := []byte(value + indexSep)
	err = e.store.View(func(tx kv.ReadTx) error {
		return tx.ForEachPrefix(indexBucket(c, l.Name), prefix, func(k, _ []byte) error {
			pk := strings.TrimPrefix(string(k), string(prefix))
			raw, ok := tx.Get(string(c), pk)
			if !ok {
				return nil
			}
			rec := spec.newRecord()
			if err := kv.Unmarshal(raw, rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeTransactionFailed, err, fmt.Sprintf("list %s by %s", c, lookup))
	}
	return out, nil
}

func (e *boltEngine) Usage(context.Context) (int64, error) {
	return e.store.SizeBytes()
}

func (e *boltEngine) Location() string {
	return e.store.Path()
}

func (e *boltEngine) Close() error {
	return e.store.Close()
}
