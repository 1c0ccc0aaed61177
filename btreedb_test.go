package btreedb

import (
	"fmt"
	"testing"

	"btreedb/internal/storage/wal"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, fs afero.Fs, path string) *DB {
	t.Helper()
	db, err := Open(path, Options{CreateIfMissing: true, FS: fs})
	require.NoError(t, err)
	return db
}

func TestDB_InsertGetDelete(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := open(t, fs, "/db")
	defer db.Close()

	require.NoError(t, db.Insert("k", "v"))
	v, ok, err := db.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	removed, err := db.Delete("k")
	require.NoError(t, err)
	require.True(t, removed)

	_, ok, err = db.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

// Property A: a leaf split survives a close/reopen cycle with every key
// still reachable.
func TestDB_LeafSplitSurvivesReopen(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := open(t, fs, "/db")

	for i := 0; i < 8; i++ {
		require.NoError(t, db.Insert(fmt.Sprintf("k%02d", i), fmt.Sprintf("v%02d", i)))
	}
	require.NoError(t, db.Close())

	db2, err := Open("/db", Options{FS: fs})
	require.NoError(t, err)
	defer db2.Close()

	for i := 0; i < 8; i++ {
		v, ok, err := db2.Get(fmt.Sprintf("k%02d", i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("v%02d", i), v)
	}
}

// Property B: 1000 sequential inserts are all readable back in the same
// session.
func TestDB_ThousandSequentialInserts(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := open(t, fs, "/db")
	defer db.Close()

	const n = 1000
	for i := 0; i < n; i++ {
		require.NoError(t, db.Insert(fmt.Sprintf("key-%05d", i), fmt.Sprintf("val-%05d", i)))
	}
	for i := 0; i < n; i++ {
		v, ok, err := db.Get(fmt.Sprintf("key-%05d", i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("val-%05d", i), v)
	}
}

// Property C: reopening and appending more data does not corrupt what
// was already there.
func TestDB_ReopenThenAppendIsSafe(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := open(t, fs, "/db")
	for i := 0; i < 20; i++ {
		require.NoError(t, db.Insert(fmt.Sprintf("a%02d", i), "first"))
	}
	require.NoError(t, db.Close())

	db2, err := Open("/db", Options{FS: fs})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, db2.Insert(fmt.Sprintf("b%02d", i), "second"))
	}
	require.NoError(t, db2.Close())

	db3, err := Open("/db", Options{FS: fs})
	require.NoError(t, err)
	defer db3.Close()
	for i := 0; i < 20; i++ {
		v, ok, err := db3.Get(fmt.Sprintf("a%02d", i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "first", v)

		v, ok, err = db3.Get(fmt.Sprintf("b%02d", i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "second", v)
	}
}

// Property D: a root split persists across reopen (covered in depth at
// the engine level; this checks the public handle sees the same thing).
func TestDB_RootSplitPersists(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := open(t, fs, "/db")
	for i := 0; i < 100; i++ {
		require.NoError(t, db.Insert(fmt.Sprintf("k%04d", i), fmt.Sprintf("v%04d", i)))
	}
	require.NoError(t, db.Close())

	db2, err := Open("/db", Options{FS: fs})
	require.NoError(t, err)
	defer db2.Close()
	v, ok, err := db2.Get("k0099")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v0099", v)
}

// Property E: deletes that trigger merges leave every surviving key
// intact.
func TestDB_DeleteWithMergeLeavesOthersIntact(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := open(t, fs, "/db")
	defer db.Close()

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, db.Insert(fmt.Sprintf("k%03d", i), fmt.Sprintf("v%03d", i)))
	}
	for i := 0; i < n; i += 3 {
		removed, err := db.Delete(fmt.Sprintf("k%03d", i))
		require.NoError(t, err)
		require.True(t, removed)
	}
	for i := 0; i < n; i++ {
		_, ok, err := db.Get(fmt.Sprintf("k%03d", i))
		require.NoError(t, err)
		require.Equal(t, i%3 != 0, ok)
	}
}

// Property F: crash safety. WAL records that were synced but never
// checkpointed are replayed on the next open, and the replayed pages
// leave every acknowledged write readable.
func TestDB_CrashRecoveryReplaysWAL(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := open(t, fs, "/db")
	require.NoError(t, db.Insert("pre-crash", "value"))
	require.NoError(t, db.Sync())

	// Simulate a crash by inserting once more without checkpointing, then
	// dropping the handle without a clean Close.
	require.NoError(t, db.Insert("also-pre-crash", "value2"))

	raw, err := afero.ReadFile(fs, "/db-wal")
	require.NoError(t, err)
	require.Greater(t, len(raw), wal.HeaderSize)

	db2, err := Open("/db", Options{FS: fs})
	require.NoError(t, err)
	defer db2.Close()

	v, ok, err := db2.Get("pre-crash")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value", v)

	v, ok, err = db2.Get("also-pre-crash")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value2", v)
}

func TestDB_ScanOrderedRange(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := open(t, fs, "/db")
	defer db.Close()

	for _, k := range []string{"banana", "apple", "cherry", "date"} {
		require.NoError(t, db.Insert(k, k+"-v"))
	}

	start, end := "apple", "cherry"
	cur, err := db.Scan(&start, &end)
	require.NoError(t, err)

	var got []string
	for cur.Valid() {
		got = append(got, cur.Key())
		require.NoError(t, cur.Next())
	}
	require.Equal(t, []string{"apple", "banana"}, got)
}

func TestDB_ScanFullRange(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := open(t, fs, "/db")
	defer db.Close()

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, db.Insert(k, k))
	}

	cur, err := db.Scan(nil, nil)
	require.NoError(t, err)
	var got []string
	for cur.Valid() {
		got = append(got, cur.Key())
		require.NoError(t, cur.Next())
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDB_OpenMissingWithoutCreateFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Open("/nope", Options{FS: fs})
	require.Error(t, err)
}

func TestDB_ReadOnlyRejectsWrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	db := open(t, fs, "/db")
	require.NoError(t, db.Insert("k", "v"))
	require.NoError(t, db.Close())

	ro, err := Open("/db", Options{ReadOnly: true, FS: fs})
	require.NoError(t, err)
	defer ro.Close()

	v, ok, err := ro.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	err = ro.Insert("k2", "v2")
	require.Error(t, err)

	_, err = ro.Delete("k")
	require.Error(t, err)
}
