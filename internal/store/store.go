// Package store wraps the embedded bbolt database behind the small ordered
// key-value contract the registries are built on: put, get, delete, and an
// ordered prefix scan. Each logical keyspace maps to one bolt bucket.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Keyspace names. Primary records and their secondary index entries share a
// keyspace and are told apart by key shape alone.
const (
	UsersKeyspace    = "users"
	SessionsKeyspace = "sessions"
	// PermissionsKeyspace is reserved for standalone permission templates.
	PermissionsKeyspace = "permissions"
)

var keyspaces = []string{UsersKeyspace, SessionsKeyspace, PermissionsKeyspace}

// ErrNotFound marks an absent key. Registries translate it into an absent
// result; it never reaches a client.
var ErrNotFound = errors.New("store: key not found")

// Error wraps an underlying bolt I/O failure. These are hard errors and
// must not be swallowed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Store owns the bolt database handle. It is opened once at startup and
// closed at shutdown; everything else borrows keyspace handles from it.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the database file and ensures all
// keyspace buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, &Error{Op: "open " + path, Err: err}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range keyspaces {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &Error{Op: "init buckets", Err: err}
	}

	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Keyspace returns a handle scoped to one bucket. The name must be one of
// the constants above; unknown buckets surface as errors on first use.
func (s *Store) Keyspace(name string) *Keyspace {
	return &Keyspace{db: s.db, name: []byte(name)}
}

// Keyspace is a byte-string keyed view over one bucket.
type Keyspace struct {
	db   *bolt.DB
	name []byte
}

// Entry is one key-value pair produced by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Put durably writes value under key.
func (k *Keyspace) Put(key string, value []byte) error {
	err := k.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(k.name)
		if b == nil {
			return fmt.Errorf("missing bucket %q", k.name)
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return &Error{Op: "put", Err: err}
	}
	return nil
}

// Get returns the value stored under key, or ErrNotFound.
func (k *Keyspace) Get(key string) ([]byte, error) {
	var out []byte
	err := k.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(k.name)
		if b == nil {
			return fmt.Errorf("missing bucket %q", k.name)
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Op: "get", Err: err}
	}
	return out, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (k *Keyspace) Delete(key string) error {
	err := k.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(k.name)
		if b == nil {
			return fmt.Errorf("missing bucket %q", k.name)
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return &Error{Op: "delete", Err: err}
	}
	return nil
}

// Scan returns every entry whose key starts with prefix, in key order.
// An empty prefix scans the whole keyspace. Keys and values are copied out
// of the transaction, so the result is a point-in-time snapshot.
func (k *Keyspace) Scan(prefix string) ([]Entry, error) {
	var entries []Entry
	err := k.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(k.name)
		if b == nil {
			return fmt.Errorf("missing bucket %q", k.name)
		}
		c := b.Cursor()
		p := []byte(prefix)
		for key, val := c.Seek(p); key != nil && bytes.HasPrefix(key, p); key, val = c.Next() {
			entries = append(entries, Entry{
				Key:   string(key),
				Value: append([]byte(nil), val...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "scan", Err: err}
	}
	return entries, nil
}
