package wal

import (
	"encoding/binary"
	"errors"
	"io"

	"btreedb/internal/dberr"
	"btreedb/internal/storage/pager"
)

// errStop marks the first malformed or torn record encountered while
// reading: recovery stops there and discards the remainder, per spec's
// tail-truncation semantics. It never escapes this package.
var errStop = errors.New("wal: malformed or torn record")

// ReadAll reads every well-formed record from offset HeaderSize to EOF,
// stopping at the first malformed or torn record and discarding the rest
// (torn WAL tails are tolerated, not fatal). It repositions the file to
// EOF afterward so further Append calls continue to work.
func (w *WAL) ReadAll() ([]Record, error) {
	const op = "wal.ReadAll"

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.f.Seek(HeaderSize, io.SeekStart); err != nil {
		return nil, dberr.New(dberr.KindIO, op, err)
	}

	var records []Record
	for {
		rec, err := readRecord(w.f)
		if err == io.EOF || err == errStop {
			break
		}
		if err != nil {
			return nil, dberr.New(dberr.KindIO, op, err)
		}
		records = append(records, rec)
	}

	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return nil, dberr.New(dberr.KindIO, op, err)
	}
	return records, nil
}

// readRecord reads one record from r. It returns io.EOF at a clean
// boundary (nothing left to read) and errStop for any short read, bad
// record_len, or checksum mismatch — both are "torn or malformed" and
// are handled identically by ReadAll.
func readRecord(r io.Reader) (Record, error) {
	var header [recordHeaderSize]byte
	n, err := io.ReadFull(r, header[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, errStop
	}

	recordLen := binary.LittleEndian.Uint32(header[0:4])
	if recordLen != uint32(RecordLen) {
		return Record{}, errStop
	}
	pageID := binary.LittleEndian.Uint32(header[4:8])
	wantChecksum := binary.LittleEndian.Uint32(header[8:12])

	data := make([]byte, pager.PageSize)
	if _, err := io.ReadFull(r, data); err != nil {
		return Record{}, errStop
	}
	if checksum(data) != wantChecksum {
		return Record{}, errStop
	}

	return Record{PageID: pageID, Data: data}, nil
}

// Recover replays any records found in the WAL onto dev, then checkpoints.
// If the WAL carries no well-formed records it only checkpoints, which
// drops any torn tail.
func Recover(w *WAL, dev *pager.Device) error {
	records, err := w.ReadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return w.Checkpoint()
	}

	for _, rec := range records {
		if err := dev.WritePage(rec.PageID, rec.Data); err != nil {
			return err
		}
	}
	if err := dev.Sync(); err != nil {
		return err
	}
	return w.Checkpoint()
}
