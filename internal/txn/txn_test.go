package txn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransaction_Lifecycle(t *testing.T) {
	tr := newTransaction(1, 100)
	require.True(t, tr.IsActive())
	require.Equal(t, uint64(1), tr.ID())
	require.Equal(t, uint64(100), tr.WALStartOffset())

	tr.RecordModification(10)
	tr.RecordModification(20)
	tr.RecordModification(10)
	require.Equal(t, []uint32{10, 20}, tr.ModifiedPages())

	require.NoError(t, tr.Commit())
	require.Equal(t, StateCommitted, tr.State())
}

func TestTransaction_Rollback(t *testing.T) {
	tr := newTransaction(2, 200)
	tr.RecordModification(30)
	require.NoError(t, tr.Rollback())
	require.Equal(t, StateRolledBack, tr.State())
}

func TestTransaction_CommitTwiceFails(t *testing.T) {
	tr := newTransaction(1, 0)
	require.NoError(t, tr.Commit())
	require.Error(t, tr.Commit())
}

func TestTransaction_Savepoints(t *testing.T) {
	tr := newTransaction(3, 300)
	tr.RecordModification(1)
	tr.RecordModification(2)
	tr.Savepoint("sp1", 400)

	tr.RecordModification(3)
	tr.RecordModification(4)
	tr.Savepoint("sp2", 500)

	tr.RecordModification(5)
	require.Len(t, tr.ModifiedPages(), 5)

	offset, ok := tr.RollbackTo("sp2")
	require.True(t, ok)
	require.Equal(t, uint64(500), offset)
	require.Len(t, tr.ModifiedPages(), 4)

	offset, ok = tr.RollbackTo("sp1")
	require.True(t, ok)
	require.Equal(t, uint64(400), offset)
	require.Len(t, tr.ModifiedPages(), 2)
}

func TestTransaction_RollbackToUnknownSavepoint(t *testing.T) {
	tr := newTransaction(1, 0)
	_, ok := tr.RollbackTo("nope")
	require.False(t, ok)
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager()
	require.False(t, m.HasActive())

	id, err := m.Begin(100)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	require.True(t, m.HasActive())

	m.RecordModification(10)

	_, err = m.Begin(200)
	require.Error(t, err)

	tr, err := m.Commit()
	require.NoError(t, err)
	require.Equal(t, StateCommitted, tr.State())
	require.False(t, m.HasActive())

	id, err = m.Begin(300)
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)
}

func TestManager_CommitWithoutActiveFails(t *testing.T) {
	m := NewManager()
	_, err := m.Commit()
	require.Error(t, err)
}

func TestManager_RollbackWithoutActiveFails(t *testing.T) {
	m := NewManager()
	_, err := m.Rollback()
	require.Error(t, err)
}

func TestManager_SavepointRoundTrip(t *testing.T) {
	m := NewManager()
	_, err := m.Begin(0)
	require.NoError(t, err)

	require.NoError(t, m.Savepoint("sp1", 50))
	offset, err := m.RollbackToSavepoint("sp1")
	require.NoError(t, err)
	require.Equal(t, uint64(50), offset)

	_, err = m.RollbackToSavepoint("missing")
	require.Error(t, err)
}
