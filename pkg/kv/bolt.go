package kv

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
)

// ErrBucketMissing is returned by writes against a bucket that was never created.
var ErrBucketMissing = errors.New("bucket does not exist")

// Store wraps bbolt.DB with transaction adapters.
type Store struct {
	db *bbolt.DB
}

// Options tunes how the store file is opened.
type Options struct {
	// Timeout bounds the wait for the file lock held by another process.
	Timeout time.Duration
}

// Open opens (creating if absent) the bolt file at path.
func Open(path string, opts Options) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}
	return &Store{db: db}, nil
}

// View executes a read-only transaction
func (s *Store) View(fn func(ReadTx) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return fn(&boltReadTx{tx: tx})
	})
}

// Update executes a read-write transaction
func (s *Store) Update(fn func(WriteTx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltWriteTx{boltReadTx{tx: tx}})
	})
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.db.Path()
}

// SizeBytes reports the on-disk size of the store file.
func (s *Store) SizeBytes() (int64, error) {
	info, err := os.Stat(s.db.Path())
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

type ReadTx interface {
	Get(bucket, key string) ([]byte, bool)
	ForEach(bucket string, fn func(k, v []byte) error) error
	ForEachPrefix(bucket string, prefix []byte, fn func(k, v []byte) error) error
	BucketExists(bucket string) bool
}

type WriteTx interface {
	ReadTx
	Put(bucket, key string, value []byte) error
	Delete(bucket, key string) error
	CreateBucketIfNotExists(bucket string) error
	ClearBucket(bucket string) error
}

type boltReadTx struct {
	tx *bbolt.Tx
}

func (b *boltReadTx) Get(bucket, key string) ([]byte, bool) {
	buck := b.tx.Bucket([]byte(bucket))
	if buck == nil {
		return nil, false
	}
	value := buck.Get([]byte(key))
	if value == nil {
		return nil, false
	}
	result := make([]byte, len(value))
	copy(result, value)
	return result, true
}

func (b *boltReadTx) ForEach(bucket string, fn func(k, v []byte) error) error {
	buck := b.tx.Bucket([]byte(bucket))
	if buck == nil {
		return nil
	}
	return buck.ForEach(func(k, v []byte) error {
		return fn(clone(k), clone(v))
	})
}

func (b *boltReadTx) ForEachPrefix(bucket string, prefix []byte, fn func(k, v []byte) error) error {
	buck := b.tx.Bucket([]byte(bucket))
	if buck == nil {
		return nil
	}
	c := buck.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(clone(k), clone(v)); err != nil {
			return err
		}
	}
	return nil
}

func (b *boltReadTx) BucketExists(bucket string) bool {
	return b.tx.Bucket([]byte(bucket)) != nil
}

type boltWriteTx struct {
	boltReadTx
}

func (b *boltWriteTx) Put(bucket, key string, value []byte) error {
	buck := b.tx.Bucket([]byte(bucket))
	if buck == nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, ErrBucketMissing)
	}
	return buck.Put([]byte(key), value)
}

func (b *boltWriteTx) Delete(bucket, key string) error {
	buck := b.tx.Bucket([]byte(bucket))
	if buck == nil {
		return nil
	}
	return buck.Delete([]byte(key))
}

func (b *boltWriteTx) CreateBucketIfNotExists(bucket string) error {
	_, err := b.tx.CreateBucketIfNotExists([]byte(bucket))
	return err
}

// ClearBucket empties bucket by dropping and recreating it.
func (b *boltWriteTx) ClearBucket(bucket string) error {
	name := []byte(bucket)
	if b.tx.Bucket(name) != nil {
		if err := b.tx.DeleteBucket(name); err != nil {
			return fmt.Errorf("failed to drop bucket %s: %w", bucket, err)
		}
	}
	_, err := b.tx.CreateBucket(name)
	return err
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
