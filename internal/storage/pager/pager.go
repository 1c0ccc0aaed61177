// Package pager implements the fixed-size page device described by the
// on-disk layout: a single file addressed in aligned 4096-byte pages.
//
// The device is deliberately dumb. It knows nothing about node layout or
// the B-tree above it; it only reads and writes whole pages by index, the
// way the teacher's internal/storage/filestore opens one *os.File per
// table and seeks to row offsets. Here the file abstraction is
// afero.Fs instead of the bare os package, so the tree engine's tests can
// run against an in-memory filesystem without touching disk.
package pager

import (
	"fmt"
	"io"
	"os"
	"sync"

	"btreedb/internal/dberr"

	"github.com/spf13/afero"
)

// PageSize is the fixed page size for both the main database file and the
// WAL's page images. It is not configurable: the spec's fanout constants
// assume it.
const PageSize = 4096

// Device owns one open file and serves aligned page reads and writes.
type Device struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	f    afero.File
}

// Open opens (creating if necessary) the database file at path on fs.
// readOnly callers still get a *Device (the tree engine enforces the
// read-only contract at a higher level) but the underlying file is opened
// without write permission so accidental writes fail fast at the OS level.
func Open(fs afero.Fs, path string, readOnly bool) (*Device, error) {
	const op = "pager.Open"

	flags := defaultFlags(readOnly)
	f, err := fs.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, dberr.New(dberr.KindIO, op, err)
	}

	return &Device{fs: fs, path: path, f: f}, nil
}

// GetPage reads page i. If the file is shorter than (i+1)*PageSize it
// returns an all-zero page instead of an error, per spec.
func (d *Device) GetPage(i uint32) ([]byte, error) {
	const op = "pager.GetPage"

	d.mu.Lock()
	defer d.mu.Unlock()

	buf := make([]byte, PageSize)
	off := int64(i) * PageSize

	n, err := d.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, dberr.NewPage(dberr.KindIO, op, i, err)
	}
	if n < PageSize {
		// Short or missing page: the tail is implicitly zero.
		for j := n; j < PageSize; j++ {
			buf[j] = 0
		}
	}
	return buf, nil
}

// WritePage writes a full page at index i, extending the file if needed.
// data must be exactly PageSize bytes.
func (d *Device) WritePage(i uint32, data []byte) error {
	const op = "pager.WritePage"

	if len(data) != PageSize {
		return dberr.NewPage(dberr.KindInvalidArgument, op, i,
			fmt.Errorf("page buffer has length %d, want %d", len(data), PageSize))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	off := int64(i) * PageSize
	if _, err := d.f.WriteAt(data, off); err != nil {
		return dberr.NewPage(dberr.KindIO, op, i, err)
	}
	return nil
}

// PageCount reports ceil(file_length / PageSize), zero for an empty file.
func (d *Device) PageCount() (uint32, error) {
	const op = "pager.PageCount"

	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := d.f.Stat()
	if err != nil {
		return 0, dberr.New(dberr.KindIO, op, err)
	}
	size := info.Size()
	if size <= 0 {
		return 0, nil
	}
	return uint32((size + PageSize - 1) / PageSize), nil
}

// Sync fsyncs the underlying file.
func (d *Device) Sync() error {
	const op = "pager.Sync"

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.f.Sync(); err != nil {
		return dberr.New(dberr.KindIO, op, err)
	}
	return nil
}

// Close releases the underlying file handle.
func (d *Device) Close() error {
	const op = "pager.Close"

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.f.Close(); err != nil {
		return dberr.New(dberr.KindIO, op, err)
	}
	return nil
}

func defaultFlags(readOnly bool) int {
	if readOnly {
		return os.O_RDONLY
	}
	return os.O_RDWR | os.O_CREATE
}
