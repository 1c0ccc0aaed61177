package pager

import (
	"encoding/binary"
	"fmt"

	"btreedb/internal/dberr"
)

// HeaderMagic is the literal at bytes 0..7 of page 0.
const HeaderMagic = "BTREEDB"

// HeaderSize is the portion of page 0 the header owns (bytes 0..100); the
// rest of the page is reserved and left as zero.
const HeaderSize = 100

// Header is the database header stored in page 0.
type Header struct {
	RootPageID uint32
}

// EncodeHeader writes h into page (which must be a full PageSize buffer),
// preserving bytes HeaderSize..PageSize untouched (read-modify-write).
func EncodeHeader(h Header, page []byte) error {
	const op = "pager.EncodeHeader"
	if len(page) != PageSize {
		return dberr.New(dberr.KindInvalidArgument, op,
			fmt.Errorf("page buffer has length %d, want %d", len(page), PageSize))
	}
	copy(page[0:7], []byte(HeaderMagic))
	binary.LittleEndian.PutUint32(page[7:11], h.RootPageID)
	for i := 11; i < HeaderSize; i++ {
		page[i] = 0
	}
	return nil
}

// DecodeHeader reads the header from page 0's bytes, failing invalid-data
// if the magic does not match.
func DecodeHeader(page []byte) (Header, error) {
	const op = "pager.DecodeHeader"
	if len(page) != PageSize {
		return Header{}, dberr.New(dberr.KindInvalidArgument, op,
			fmt.Errorf("page buffer has length %d, want %d", len(page), PageSize))
	}
	if string(page[0:7]) != HeaderMagic {
		return Header{}, dberr.New(dberr.KindInvalidData, op,
			fmt.Errorf("bad magic %q", page[0:7]))
	}
	root := binary.LittleEndian.Uint32(page[7:11])
	return Header{RootPageID: root}, nil
}

// ReadHeader reads and decodes page 0 from dev.
func ReadHeader(dev *Device) (Header, error) {
	page, err := dev.GetPage(0)
	if err != nil {
		return Header{}, err
	}
	return DecodeHeader(page)
}

// WriteHeader read-modify-writes page 0 on dev with h.
func WriteHeader(dev *Device, h Header) error {
	page, err := dev.GetPage(0)
	if err != nil {
		return err
	}
	if err := EncodeHeader(h, page); err != nil {
		return err
	}
	return dev.WritePage(0, page)
}
