// Package backup copies a database file (and optionally its write-ahead
// log) to and from a backup location, grounded in
// original_source/src/backup.rs's backup/restore pair. Unlike the
// original, Restore refuses to overwrite a database path that a Manager
// reports as currently open, since this module has no file-locking
// primitive of its own to detect that.
package backup

import (
	"fmt"
	"io"

	"btreedb/internal/dberr"
	"btreedb/internal/storage/wal"

	"github.com/spf13/afero"
)

// Info describes what a Backup or Restore call copied.
type Info struct {
	DBBytes     int64
	WALBytes    int64
	IncludesWAL bool
}

// Backup copies dbPath to destPath, and its WAL sidecar alongside it if
// includeWAL is set and a WAL file exists.
func Backup(fs afero.Fs, dbPath, destPath string, includeWAL bool) (Info, error) {
	const op = "backup.Backup"

	exists, err := afero.Exists(fs, dbPath)
	if err != nil {
		return Info{}, dberr.New(dberr.KindIO, op, err)
	}
	if !exists {
		return Info{}, dberr.New(dberr.KindIO, op, fmt.Errorf("database file not found: %s", dbPath))
	}

	dbSize, err := copyFile(fs, dbPath, destPath)
	if err != nil {
		return Info{}, dberr.New(dberr.KindIO, op, err)
	}

	info := Info{DBBytes: dbSize}
	if includeWAL {
		walSrc := wal.Path(dbPath)
		walExists, err := afero.Exists(fs, walSrc)
		if err != nil {
			return Info{}, dberr.New(dberr.KindIO, op, err)
		}
		if walExists {
			walSize, err := copyFile(fs, walSrc, wal.Path(destPath))
			if err != nil {
				return Info{}, dberr.New(dberr.KindIO, op, err)
			}
			info.WALBytes = walSize
			info.IncludesWAL = true
		}
	}
	return info, nil
}

// Restore copies srcPath (a prior backup) onto dbPath, restoring the WAL
// sidecar alongside it if present. It refuses to run if isOpen reports
// dbPath as currently open.
func Restore(fs afero.Fs, srcPath, dbPath string, isOpen func(path string) bool) (Info, error) {
	const op = "backup.Restore"

	if isOpen != nil && isOpen(dbPath) {
		return Info{}, dberr.New(dberr.KindStateViolation, op,
			fmt.Errorf("refusing to restore onto open database %q", dbPath))
	}

	exists, err := afero.Exists(fs, srcPath)
	if err != nil {
		return Info{}, dberr.New(dberr.KindIO, op, err)
	}
	if !exists {
		return Info{}, dberr.New(dberr.KindIO, op, fmt.Errorf("backup file not found: %s", srcPath))
	}

	dbSize, err := copyFile(fs, srcPath, dbPath)
	if err != nil {
		return Info{}, dberr.New(dberr.KindIO, op, err)
	}

	info := Info{DBBytes: dbSize}
	walSrc := wal.Path(srcPath)
	walExists, err := afero.Exists(fs, walSrc)
	if err != nil {
		return Info{}, dberr.New(dberr.KindIO, op, err)
	}
	if walExists {
		walSize, err := copyFile(fs, walSrc, wal.Path(dbPath))
		if err != nil {
			return Info{}, dberr.New(dberr.KindIO, op, err)
		}
		info.WALBytes = walSize
		info.IncludesWAL = true
	}
	return info, nil
}

func copyFile(fs afero.Fs, src, dst string) (int64, error) {
	in, err := fs.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := fs.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return 0, err
	}
	return n, out.Sync()
}
