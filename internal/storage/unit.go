package storage

import (
	"fmt"

	"github.com/angelmondragon/inventory-tracker/pkg/enums"
	"github.com/google/uuid"
)

// Mutation is one change inside a unit of work.
type Mutation struct {
	Collection Collection
	Op         enums.MutationOp
	Key        string
	Record     Record
}

// UnitOfWork is an ordered list of mutations committed all-or-nothing.
type UnitOfWork struct {
	ID        string
	Mutations []Mutation
}

// NewUnit starts an empty unit of work with a fresh id.
func NewUnit() *UnitOfWork {
	return &UnitOfWork{ID: uuid.NewString()}
}

// Insert adds rec, failing the whole unit if its key already exists.
func (u *UnitOfWork) Insert(c Collection, rec Record) *UnitOfWork {
	return u.add(Mutation{Collection: c, Op: enums.MutationOpInsert, Key: rec.PrimaryKey(), Record: rec})
}

// Put creates or overwrites rec.
func (u *UnitOfWork) Put(c Collection, rec Record) *UnitOfWork {
	return u.add(Mutation{Collection: c, Op: enums.MutationOpPut, Key: rec.PrimaryKey(), Record: rec})
}

// Delete removes the record under key. A missing record is not an error.
func (u *UnitOfWork) Delete(c Collection, key string) *UnitOfWork {
	return u.add(Mutation{Collection: c, Op: enums.MutationOpDelete, Key: key})
}

// Clear empties the collection.
func (u *UnitOfWork) Clear(c Collection) *UnitOfWork {
	return u.add(Mutation{Collection: c, Op: enums.MutationOpClear})
}

func (u *UnitOfWork) add(m Mutation) *UnitOfWork {
	u.Mutations = append(u.Mutations, m)
	return u
}

// Collections returns the distinct collections the unit touches.
func (u *UnitOfWork) Collections() []Collection {
	seen := make(map[Collection]struct{}, len(u.Mutations))
	var out []Collection
	for _, m := range u.Mutations {
		if _, ok := seen[m.Collection]; ok {
			continue
		}
		seen[m.Collection] = struct{}{}
		out = append(out, m.Collection)
	}
	return out
}

// Validate checks that every mutation is well formed before any engine sees it.
func (u *UnitOfWork) Validate() error {
	if u == nil || len(u.Mutations) == 0 {
		return fmt.Errorf("unit of work is empty")
	}
	for i, m := range u.Mutations {
		if _, err := specFor(m.Collection); err != nil {
			return fmt.Errorf("mutation %d: %w", i, err)
		}
		if !m.Op.IsValid() {
			return fmt.Errorf("mutation %d: invalid op %q", i, m.Op)
		}
		if m.Op.NeedsRecord() && m.Record == nil {
			return fmt.Errorf("mutation %d: %s requires a record", i, m.Op)
		}
		if m.Op == enums.MutationOpDelete && m.Key == "" {
			return fmt.Errorf("mutation %d: delete requires a key", i)
		}
		if m.Op.NeedsRecord() && m.Record.PrimaryKey() == "" {
			return fmt.Errorf("mutation %d: record has an empty key", i)
		}
	}
	return nil
}
