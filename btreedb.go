// Package btreedb is an embedded, disk-backed, ordered key-value store
// built on a B+-tree over fixed 4096-byte pages with write-ahead logging
// for crash safety. A DB handle owns one database file (plus its "-wal"
// sidecar) exclusively; concurrent callers must serialize their own
// access to a handle.
package btreedb

import (
	"btreedb/internal/index/btree"

	"github.com/spf13/afero"
)

// Options configures Open.
type Options struct {
	// CreateIfMissing creates a new, empty database when path does not
	// exist. Defaults to false.
	CreateIfMissing bool

	// ReadOnly rejects Insert, Delete, and the writing half of Sync.
	// Recovery still runs on open even for a read-only handle, since it
	// only restores consistency and is not itself an application write.
	ReadOnly bool

	// FS is the filesystem Open uses. A nil FS defaults to the OS
	// filesystem (afero.NewOsFs()).
	FS afero.Fs
}

// DB is an open handle to one database file.
type DB struct {
	tree *btree.Tree
}

// Open opens the database at path, creating it if CreateIfMissing is set
// and it does not exist. Opening replays any pending write-ahead log
// records before returning.
func Open(path string, opts Options) (*DB, error) {
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	tree, err := btree.Open(fs, path, btree.OpenOptions{
		CreateIfMissing: opts.CreateIfMissing,
		ReadOnly:        opts.ReadOnly,
	})
	if err != nil {
		return nil, err
	}
	return &DB{tree: tree}, nil
}

// Get looks up key, reporting whether it was present. A missing key is
// reported via ok == false, never as an error.
func (db *DB) Get(key string) (value string, ok bool, err error) {
	return db.tree.Get(key)
}

// Insert adds key with value, or overwrites the existing value if key is
// already present.
func (db *DB) Insert(key, value string) error {
	return db.tree.Insert(key, value)
}

// Delete removes key if present, reporting whether it was found.
func (db *DB) Delete(key string) (removed bool, err error) {
	return db.tree.Delete(key)
}

// Sync fsyncs the database file and checkpoints the write-ahead log. A
// handle that never calls Sync still gets this for free on Close.
func (db *DB) Sync() error {
	return db.tree.Sync()
}

// Close performs a final checkpoint and releases the database's file
// handles.
func (db *DB) Close() error {
	return db.tree.Close()
}

// Cursor is a forward-only iterator over the database's keys in sorted
// order, bounded by the range passed to Scan.
type Cursor struct {
	c   *btree.Cursor
	end *string
}

// Valid reports whether the cursor is positioned at a pair within range.
func (c *Cursor) Valid() bool {
	if !c.c.Valid() {
		return false
	}
	return c.end == nil || c.c.Key() < *c.end
}

// Key returns the key at the cursor's position.
func (c *Cursor) Key() string { return c.c.Key() }

// Value returns the value at the cursor's position.
func (c *Cursor) Value() string { return c.c.Value() }

// Next advances to the next key, invalidating the cursor once the last
// key (or the end of the requested range) has been passed.
func (c *Cursor) Next() error { return c.c.Next() }

// Scan returns a cursor over [start, end): start nil means "from the
// first key", end nil means "to the last key". The cursor already
// enforces the end bound, so callers only need to loop on Valid/Next.
func (db *DB) Scan(start, end *string) (*Cursor, error) {
	inner := db.tree.NewCursor()
	if start != nil {
		if err := inner.Seek(*start); err != nil {
			return nil, err
		}
	} else {
		if err := inner.SeekFirst(); err != nil {
			return nil, err
		}
	}
	return &Cursor{c: inner, end: end}, nil
}
