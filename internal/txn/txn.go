// Package txn is an illustrative transaction façade: it tracks
// begin/commit/rollback state and savepoint bookkeeping for a caller that
// wants ACID-flavored terminology, but — exactly as spec.md's Design Note
// (b) calls out — it never calls into internal/index/btree and does not
// interlock with Insert/Delete in any way. Grounded in
// original_source/src/transaction.rs's Transaction/TransactionManager
// pair.
package txn

import (
	"fmt"

	"btreedb/internal/dberr"
)

// State is the lifecycle stage of a Transaction.
type State int

const (
	StateActive State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// Savepoint marks a point within a transaction that RollbackTo can
// return to, recording how much state to discard.
type Savepoint struct {
	Name          string
	WALOffset     uint64
	ModifiedCount int
}

// Transaction tracks state transitions and a log of touched page IDs. It
// is a bookkeeping object only: nothing here reads or writes the actual
// database file.
type Transaction struct {
	id             uint64
	state          State
	walStartOffset uint64
	modifiedPages  []uint32
	seen           map[uint32]bool
	savepoints     []Savepoint
}

func newTransaction(id uint64, walStartOffset uint64) *Transaction {
	return &Transaction{
		id:             id,
		state:          StateActive,
		walStartOffset: walStartOffset,
		seen:           make(map[uint32]bool),
	}
}

// ID returns the transaction's unique identifier.
func (t *Transaction) ID() uint64 { return t.id }

// State returns the transaction's current lifecycle stage.
func (t *Transaction) State() State { return t.state }

// IsActive reports whether the transaction can still accept operations.
func (t *Transaction) IsActive() bool { return t.state == StateActive }

// WALStartOffset returns the WAL offset recorded when the transaction began.
func (t *Transaction) WALStartOffset() uint64 { return t.walStartOffset }

// RecordModification notes that pageID was touched by this transaction,
// deduplicating repeated calls for the same page.
func (t *Transaction) RecordModification(pageID uint32) {
	if t.seen[pageID] {
		return
	}
	t.seen[pageID] = true
	t.modifiedPages = append(t.modifiedPages, pageID)
}

// ModifiedPages returns the page IDs recorded so far, in first-touch order.
func (t *Transaction) ModifiedPages() []uint32 {
	return t.modifiedPages
}

// Savepoint records a named point in the transaction's history.
func (t *Transaction) Savepoint(name string, walOffset uint64) {
	t.savepoints = append(t.savepoints, Savepoint{
		Name:          name,
		WALOffset:     walOffset,
		ModifiedCount: len(t.modifiedPages),
	})
}

// RollbackTo discards every savepoint and modification recorded after the
// named savepoint, returning the WAL offset to truncate to.
func (t *Transaction) RollbackTo(name string) (uint64, bool) {
	for i, sp := range t.savepoints {
		if sp.Name != name {
			continue
		}
		t.savepoints = t.savepoints[:i+1]
		t.modifiedPages = t.modifiedPages[:sp.ModifiedCount]
		for pid := range t.seen {
			keep := false
			for _, m := range t.modifiedPages {
				if m == pid {
					keep = true
					break
				}
			}
			if !keep {
				delete(t.seen, pid)
			}
		}
		return sp.WALOffset, true
	}
	return 0, false
}

// ReleaseSavepoint removes a savepoint without rolling back to it.
func (t *Transaction) ReleaseSavepoint(name string) bool {
	for i, sp := range t.savepoints {
		if sp.Name == name {
			t.savepoints = append(t.savepoints[:i], t.savepoints[i+1:]...)
			return true
		}
	}
	return false
}

// Commit marks the transaction committed, failing if it is not active.
func (t *Transaction) Commit() error {
	const op = "txn.Commit"
	if t.state != StateActive {
		return dberr.New(dberr.KindStateViolation, op,
			fmt.Errorf("cannot commit transaction in state %s", t.state))
	}
	t.state = StateCommitted
	return nil
}

// Rollback marks the transaction rolled back, failing if it is not active.
func (t *Transaction) Rollback() error {
	const op = "txn.Rollback"
	if t.state != StateActive {
		return dberr.New(dberr.KindStateViolation, op,
			fmt.Errorf("cannot rollback transaction in state %s", t.state))
	}
	t.state = StateRolledBack
	return nil
}

// Manager coordinates a single active Transaction at a time, the way
// original_source/src/transaction.rs's TransactionManager does. It holds
// no lock because spec.md's cooperative single-threaded-per-handle model
// already requires external serialization; this is purely state tracking.
type Manager struct {
	nextID uint64
	active *Transaction
}

// NewManager returns a Manager with no active transaction.
func NewManager() *Manager {
	return &Manager{nextID: 1}
}

// HasActive reports whether a transaction is currently open.
func (m *Manager) HasActive() bool { return m.active != nil }

// Active returns the currently open transaction, if any.
func (m *Manager) Active() (*Transaction, bool) {
	if m.active == nil {
		return nil, false
	}
	return m.active, true
}

// Begin opens a new transaction, failing if one is already active.
func (m *Manager) Begin(walOffset uint64) (uint64, error) {
	const op = "txn.Manager.Begin"
	if m.active != nil {
		return 0, dberr.New(dberr.KindStateViolation, op,
			fmt.Errorf("another transaction is already active"))
	}
	id := m.nextID
	m.nextID++
	m.active = newTransaction(id, walOffset)
	return id, nil
}

// Commit commits and clears the active transaction.
func (m *Manager) Commit() (*Transaction, error) {
	const op = "txn.Manager.Commit"
	if m.active == nil {
		return nil, dberr.New(dberr.KindStateViolation, op, fmt.Errorf("no active transaction to commit"))
	}
	t := m.active
	m.active = nil
	if err := t.Commit(); err != nil {
		return nil, err
	}
	return t, nil
}

// Rollback rolls back and clears the active transaction.
func (m *Manager) Rollback() (*Transaction, error) {
	const op = "txn.Manager.Rollback"
	if m.active == nil {
		return nil, dberr.New(dberr.KindStateViolation, op, fmt.Errorf("no active transaction to rollback"))
	}
	t := m.active
	m.active = nil
	if err := t.Rollback(); err != nil {
		return nil, err
	}
	return t, nil
}

// RecordModification forwards to the active transaction, if any.
func (m *Manager) RecordModification(pageID uint32) {
	if m.active != nil {
		m.active.RecordModification(pageID)
	}
}

// Savepoint creates a savepoint in the active transaction.
func (m *Manager) Savepoint(name string, walOffset uint64) error {
	const op = "txn.Manager.Savepoint"
	if m.active == nil {
		return dberr.New(dberr.KindStateViolation, op, fmt.Errorf("no active transaction for savepoint"))
	}
	m.active.Savepoint(name, walOffset)
	return nil
}

// RollbackToSavepoint rolls the active transaction back to a named savepoint.
func (m *Manager) RollbackToSavepoint(name string) (uint64, error) {
	const op = "txn.Manager.RollbackToSavepoint"
	if m.active == nil {
		return 0, dberr.New(dberr.KindStateViolation, op, fmt.Errorf("no active transaction for savepoint rollback"))
	}
	offset, ok := m.active.RollbackTo(name)
	if !ok {
		return 0, dberr.New(dberr.KindStateViolation, op, fmt.Errorf("savepoint %q not found", name))
	}
	return offset, nil
}
