package backup

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestBackup_CopiesDBFileOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/db", []byte("data"), 0o644))

	info, err := Backup(fs, "/db", "/backup/db", false)
	require.NoError(t, err)
	require.Equal(t, int64(4), info.DBBytes)
	require.False(t, info.IncludesWAL)

	got, err := afero.ReadFile(fs, "/backup/db")
	require.NoError(t, err)
	require.Equal(t, "data", string(got))
}

func TestBackup_IncludesWALWhenPresent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/db", []byte("data"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/db-wal", []byte("walbytes"), 0o644))

	info, err := Backup(fs, "/db", "/backup/db", true)
	require.NoError(t, err)
	require.True(t, info.IncludesWAL)
	require.Equal(t, int64(8), info.WALBytes)

	got, err := afero.ReadFile(fs, "/backup/db-wal")
	require.NoError(t, err)
	require.Equal(t, "walbytes", string(got))
}

func TestBackup_MissingSourceFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Backup(fs, "/nope", "/backup/db", false)
	require.Error(t, err)
}

func TestRestore_CopiesBackupOntoDBPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/backup/db", []byte("restored"), 0o644))

	info, err := Restore(fs, "/backup/db", "/db", nil)
	require.NoError(t, err)
	require.Equal(t, int64(8), info.DBBytes)

	got, err := afero.ReadFile(fs, "/db")
	require.NoError(t, err)
	require.Equal(t, "restored", string(got))
}

func TestRestore_RefusesWhenDestinationIsOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/backup/db", []byte("restored"), 0o644))

	_, err := Restore(fs, "/backup/db", "/db", func(path string) bool { return path == "/db" })
	require.Error(t, err)
}

func TestRestore_MissingBackupFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Restore(fs, "/nope", "/db", nil)
	require.Error(t, err)
}
