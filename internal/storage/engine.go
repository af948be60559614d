package storage

import "context"

// SchemaResult reports the schema version before and after Migrate.
type SchemaResult struct {
	From int64
	To   int64
}

// Upgraded reports whether Migrate changed the stored version.
func (r SchemaResult) Upgraded() bool {
	return r.To != r.From
}

// Engine is the persistence backend behind the gateway.
type Engine interface {
	// Migrate brings the schema to version, creating collections and lookups as needed.
	Migrate(ctx context.Context, version int64) (SchemaResult, error)
	// Apply commits every mutation in unit or none of them.
	Apply(ctx context.Context, unit *UnitOfWork) error
	// Get loads the record under key into dst. Absence yields false and no error.
	Get(ctx context.Context, c Collection, key string, dst Record) (bool, error)
	List(ctx context.Context, c Collection) ([]Record, error)
	ListBy(ctx context.Context, c Collection, lookup, value string) ([]Record, error)
	// Usage reports bytes occupied by the store.
	Usage(ctx context.Context) (int64, error)
	// Location is the filesystem path backing the store, or empty when remote.
	Location() string
	Close() error
}
