// Package manager multiplexes several named database handles inside one
// process, the way original_source/src/manager.rs's DatabaseManager opens,
// tracks, and closes multiple BTree instances by name. Generalized to use
// the public btreedb.DB handle and an afero.Fs, and to attach a session
// id to each handle for diagnostics.
package manager

import (
	"fmt"
	"sync"

	"btreedb"
	"btreedb/internal/dberr"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Handle is one open, named database plus bookkeeping about it.
type Handle struct {
	DB        *btreedb.DB
	SessionID uuid.UUID
	Path      string
	Options   btreedb.Options

	mu    sync.Mutex
	dirty bool
}

// MarkDirty flags the handle as modified since its last sync. Called
// internally after every successful write.
func (h *Handle) MarkDirty() {
	h.mu.Lock()
	h.dirty = true
	h.mu.Unlock()
}

// IsDirty reports whether the handle has unsynced writes.
func (h *Handle) IsDirty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirty
}

// Sync flushes the handle to disk and clears its dirty flag.
func (h *Handle) Sync() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.DB.Sync(); err != nil {
		return err
	}
	h.dirty = false
	return nil
}

// Insert writes through the handle, marking it dirty on success.
func (h *Handle) Insert(key, value string) error {
	if err := h.DB.Insert(key, value); err != nil {
		return err
	}
	h.MarkDirty()
	return nil
}

// Delete removes through the handle, marking it dirty if anything changed.
func (h *Handle) Delete(key string) (bool, error) {
	removed, err := h.DB.Delete(key)
	if err != nil {
		return false, err
	}
	if removed {
		h.MarkDirty()
	}
	return removed, nil
}

// Manager owns a set of named, open database handles.
type Manager struct {
	mu        sync.Mutex
	fs        afero.Fs
	databases map[string]*Handle
}

// New returns an empty Manager backed by fs. A nil fs defaults to the OS
// filesystem.
func New(fs afero.Fs) *Manager {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Manager{fs: fs, databases: make(map[string]*Handle)}
}

// Open opens path under name, failing with a state-violation error if
// name is already open.
func (m *Manager) Open(name, path string, opts btreedb.Options) error {
	const op = "manager.Open"
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.databases[name]; ok {
		return dberr.New(dberr.KindStateViolation, op, fmt.Errorf("database %q is already open", name))
	}

	opts.FS = m.fs
	db, err := btreedb.Open(path, opts)
	if err != nil {
		return err
	}

	m.databases[name] = &Handle{
		DB:        db,
		SessionID: uuid.New(),
		Path:      path,
		Options:   opts,
	}
	return nil
}

// Get returns the handle open under name, if any.
func (m *Manager) Get(name string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.databases[name]
	return h, ok
}

// IsOpen reports whether name is currently open.
func (m *Manager) IsOpen(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.databases[name]
	return ok
}

// IsPathOpen reports whether any open handle points at path. Used by
// backup.Restore to refuse to clobber a live database file.
func (m *Manager) IsPathOpen(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.databases {
		if h.Path == path {
			return true
		}
	}
	return false
}

// Count returns the number of open databases.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.databases)
}

// Names returns the names of all open databases, in no particular order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.databases))
	for n := range m.databases {
		names = append(names, n)
	}
	return names
}

// Close syncs and closes the database open under name, removing it from
// the manager.
func (m *Manager) Close(name string) error {
	const op = "manager.Close"
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.databases[name]
	if !ok {
		return dberr.New(dberr.KindStateViolation, op, fmt.Errorf("database %q is not open", name))
	}
	delete(m.databases, name)
	return h.DB.Close()
}

// SyncAll syncs every open database.
func (m *Manager) SyncAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.databases {
		if err := h.Sync(); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll syncs and closes every open database, clearing the manager.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, h := range m.databases {
		if err := h.DB.Close(); err != nil {
			return err
		}
		delete(m.databases, name)
	}
	return nil
}
