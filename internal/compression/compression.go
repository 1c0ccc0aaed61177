// Package compression is an optional façade for compressing large values
// before they are stored, grounded in
// original_source/src/compression.rs's CompressedData container (marker
// byte + original size + payload). The original implements its own
// toy RLE "for educational purposes"; this port uses a real codec,
// github.com/klauspost/compress/s2, the way a production build of the
// same idea would.
package compression

import (
	"encoding/binary"
	"fmt"

	"btreedb/internal/dberr"

	"github.com/klauspost/compress/s2"
)

// Threshold is the minimum input size for compression to be attempted.
// Below it the data is stored as-is (s2 has per-frame overhead that makes
// compressing tiny values counterproductive).
const Threshold = 64

const (
	markerNone byte = 0
	markerS2   byte = 1
)

// Compress returns data wrapped in a one-byte marker plus either the raw
// bytes (below Threshold, or if s2 fails to shrink it) or the original
// length (u32 LE) followed by an s2-encoded payload.
func Compress(data []byte) []byte {
	if len(data) < Threshold {
		return append([]byte{markerNone}, data...)
	}
	encoded := s2.Encode(nil, data)
	if len(encoded) >= len(data) {
		return append([]byte{markerNone}, data...)
	}
	out := make([]byte, 0, 1+4+len(encoded))
	out = append(out, markerS2)
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(data)))
	out = append(out, sizeBuf[:]...)
	out = append(out, encoded...)
	return out
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	const op = "compression.Decompress"
	if len(data) == 0 {
		return nil, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("empty compressed payload"))
	}
	switch data[0] {
	case markerNone:
		return data[1:], nil
	case markerS2:
		if len(data) < 5 {
			return nil, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("truncated s2 payload header"))
		}
		originalSize := binary.LittleEndian.Uint32(data[1:5])
		decoded, err := s2.Decode(make([]byte, originalSize), data[5:])
		if err != nil {
			return nil, dberr.New(dberr.KindInvalidData, op, err)
		}
		return decoded, nil
	default:
		return nil, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("bad compression marker %d", data[0]))
	}
}
