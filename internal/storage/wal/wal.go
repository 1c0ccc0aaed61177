// Package wal implements the write-ahead log sidecar file: an append-only
// stream of page images fsynced before the corresponding main-file write,
// giving the tree engine crash safety without requiring every mutation to
// fsync the (potentially large) main database file.
//
// The shape — a magic-prefixed file opened once and appended to through a
// mutex-guarded handle — follows the teacher's
// internal/storage/filestore/wal.go (walLogger), generalized from
// per-transaction SQL records to the spec's simpler per-page image record.
package wal

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"btreedb/internal/dberr"
	"btreedb/internal/storage/pager"

	"github.com/spf13/afero"
)

// Magic is the 8-byte literal at the start of every WAL file.
const Magic = "BTREEWAL"

// HeaderSize is the size of the WAL file header: magic + 24 reserved bytes.
const HeaderSize = 32

// recordHeaderSize is record_len + page_id + checksum, each a u32 LE.
const recordHeaderSize = 12

// RecordLen is the fixed on-disk length of the record_len field's value:
// 8 bytes of record header (page_id + checksum) plus one page image.
const RecordLen = 8 + pager.PageSize

// Record is one decoded WAL entry: a page image destined for PageID.
type Record struct {
	PageID uint32
	Data   []byte
}

// WAL is an append-only sidecar file of Records.
type WAL struct {
	mu   sync.Mutex
	path string
	f    afero.File
}

// Path returns the conventional WAL sidecar path for a database file.
func Path(dbPath string) string {
	return dbPath + "-wal"
}

// Open opens (creating if necessary) the WAL file alongside dbPath.
func Open(fs afero.Fs, dbPath string) (*WAL, error) {
	const op = "wal.Open"
	path := Path(dbPath)

	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, dberr.New(dberr.KindIO, op, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dberr.New(dberr.KindIO, op, err)
	}

	if info.Size() == 0 {
		header := make([]byte, HeaderSize)
		copy(header, []byte(Magic))
		if _, err := f.Write(header); err != nil {
			f.Close()
			return nil, dberr.New(dberr.KindIO, op, err)
		}
	} else {
		magic := make([]byte, len(Magic))
		if _, err := f.ReadAt(magic, 0); err != nil {
			f.Close()
			return nil, dberr.New(dberr.KindIO, op, err)
		}
		if string(magic) != Magic {
			f.Close()
			return nil, dberr.New(dberr.KindInvalidData, op,
				fmt.Errorf("bad WAL magic %q", magic))
		}
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, dberr.New(dberr.KindIO, op, err)
	}

	return &WAL{path: path, f: f}, nil
}

// Append writes one WAL record for (pageID, data). data must be exactly
// pager.PageSize bytes. The record is not fsynced; call Sync afterward.
func (w *WAL) Append(pageID uint32, data []byte) error {
	const op = "wal.Append"

	if len(data) != pager.PageSize {
		return dberr.NewPage(dberr.KindInvalidArgument, op, pageID,
			fmt.Errorf("page data has length %d, want %d", len(data), pager.PageSize))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return dberr.NewPage(dberr.KindIO, op, pageID, err)
	}

	buf := make([]byte, recordHeaderSize+pager.PageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(RecordLen))
	binary.LittleEndian.PutUint32(buf[4:8], pageID)
	binary.LittleEndian.PutUint32(buf[8:12], checksum(data))
	copy(buf[recordHeaderSize:], data)

	if _, err := w.f.Write(buf); err != nil {
		return dberr.NewPage(dberr.KindIO, op, pageID, err)
	}
	return nil
}

// Sync fsyncs the WAL file.
func (w *WAL) Sync() error {
	const op = "wal.Sync"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.Sync(); err != nil {
		return dberr.New(dberr.KindIO, op, err)
	}
	return nil
}

// Checkpoint truncates the WAL back to its header and fsyncs it. The
// caller is responsible for fsyncing the main file first, per spec.
func (w *WAL) Checkpoint() error {
	const op = "wal.Checkpoint"
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.f.Truncate(HeaderSize); err != nil {
		return dberr.New(dberr.KindIO, op, err)
	}
	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return dberr.New(dberr.KindIO, op, err)
	}
	if err := w.f.Sync(); err != nil {
		return dberr.New(dberr.KindIO, op, err)
	}
	return nil
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	const op = "wal.Close"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.Close(); err != nil {
		return dberr.New(dberr.KindIO, op, err)
	}
	return nil
}

// checksum is a wrap-add of each 4-byte LE chunk of data, the last
// partial chunk right-padded with zeros.
func checksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		var chunk [4]byte
		end := i + 4
		if end > len(data) {
			end = len(data)
		}
		copy(chunk[:], data[i:end])
		sum += binary.LittleEndian.Uint32(chunk[:])
	}
	return sum
}
