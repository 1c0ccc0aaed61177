// Package btree implements the on-disk B-tree: the node codec (this file),
// the tree engine (tree.go), and forward-scanning cursors (cursor.go).
//
// The node layout and split/merge bookkeeping are grounded in the
// teacher's internal/index/btree/page.go and file.go, generalized from an
// int64-keyed secondary index over heap-file RIDs to a string-keyed
// primary store whose leaves hold the values directly.
package btree

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"btreedb/internal/dberr"
	"btreedb/internal/storage/pager"
)

const (
	typeLeaf     uint8 = 0
	typeInternal uint8 = 1

	// MaxLeafKeys is the overflow threshold for a leaf: a leaf splits once
	// it would hold more than this many entries.
	MaxLeafKeys = 3
	// MaxInternalKeys is the overflow threshold for an internal node.
	MaxInternalKeys = 10

	// MinLeafKeys and MinInternalKeys are the minimum occupancy for a
	// non-root node, ceil(max/2).
	MinLeafKeys     = (MaxLeafKeys + 1) / 2
	MinInternalKeys = (MaxInternalKeys + 1) / 2

	maxKeyLen  = 4080
	maxValLen  = 4080
	maxEntries = 1000

	headerFieldsSize = 5 // type tag (1) + key count (4)
)

// Node is a decoded B-tree page: either a leaf (Keys/Values populated) or
// an internal node (Keys/Children populated). The two variants are kept
// as one struct, tagged by IsLeaf, the way the teacher keeps PageHeader's
// PageType as the discriminant for otherwise-shared page bytes.
type Node struct {
	IsLeaf   bool
	Keys     []string
	Values   []string // leaf only, parallel to Keys
	Children []uint32 // internal only, len(Children) == len(Keys)+1
}

// NewEmptyLeaf returns a fresh, empty leaf node.
func NewEmptyLeaf() *Node {
	return &Node{IsLeaf: true}
}

// Encode serializes n into a full PageSize buffer.
func Encode(n *Node) ([]byte, error) {
	if n.IsLeaf {
		return EncodeLeaf(n.Keys, n.Values)
	}
	return EncodeInternal(n.Keys, n.Children)
}

// EncodeLeaf serializes a leaf's sorted (key,value) pairs.
func EncodeLeaf(keys, values []string) ([]byte, error) {
	const op = "btree.EncodeLeaf"
	if len(keys) != len(values) {
		return nil, dberr.New(dberr.KindInvalidArgument, op,
			fmt.Errorf("keys/values length mismatch: %d vs %d", len(keys), len(values)))
	}

	buf := make([]byte, pager.PageSize)
	buf[0] = typeLeaf
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(keys)))

	off := headerFieldsSize
	for i := range keys {
		k, v := []byte(keys[i]), []byte(values[i])
		if len(k) > maxKeyLen {
			return nil, dberr.New(dberr.KindInvalidArgument, op, fmt.Errorf("key too long: %d bytes", len(k)))
		}
		if len(v) > maxValLen {
			return nil, dberr.New(dberr.KindInvalidArgument, op, fmt.Errorf("value too long: %d bytes", len(v)))
		}
		need := 4 + len(k) + 4 + len(v)
		if off+need > pager.PageSize {
			return nil, dberr.New(dberr.KindInvalidArgument, op,
				fmt.Errorf("leaf node would exceed page size (%d bytes)", pager.PageSize))
		}
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(k)))
		off += 4
		copy(buf[off:off+len(k)], k)
		off += len(k)
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(v)))
		off += 4
		copy(buf[off:off+len(v)], v)
		off += len(v)
	}
	return buf, nil
}

// EncodeInternal serializes an internal node's separator keys and child
// page indices. len(children) must be len(keys)+1.
func EncodeInternal(keys []string, children []uint32) ([]byte, error) {
	const op = "btree.EncodeInternal"
	if len(children) != len(keys)+1 {
		return nil, dberr.New(dberr.KindInvalidArgument, op,
			fmt.Errorf("children/keys length mismatch: %d children, %d keys", len(children), len(keys)))
	}

	buf := make([]byte, pager.PageSize)
	buf[0] = typeInternal
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(keys)))

	off := headerFieldsSize
	for _, k := range keys {
		kb := []byte(k)
		if len(kb) > maxKeyLen {
			return nil, dberr.New(dberr.KindInvalidArgument, op, fmt.Errorf("key too long: %d bytes", len(kb)))
		}
		need := 4 + len(kb)
		if off+need > pager.PageSize {
			return nil, dberr.New(dberr.KindInvalidArgument, op,
				fmt.Errorf("internal node would exceed page size (%d bytes)", pager.PageSize))
		}
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(kb)))
		off += 4
		copy(buf[off:off+len(kb)], kb)
		off += len(kb)
	}
	if off+4*len(children) > pager.PageSize {
		return nil, dberr.New(dberr.KindInvalidArgument, op,
			fmt.Errorf("internal node would exceed page size (%d bytes)", pager.PageSize))
	}
	for _, c := range children {
		binary.LittleEndian.PutUint32(buf[off:off+4], c)
		off += 4
	}
	return buf, nil
}

// Decode parses page (exactly PageSize bytes) into a Node. Every
// length-prefixed field is bounds-checked against the page before use, so
// corrupted input reports invalid-data instead of panicking.
func Decode(page []byte) (*Node, error) {
	const op = "btree.Decode"
	if len(page) != pager.PageSize {
		return nil, dberr.New(dberr.KindInvalidArgument, op,
			fmt.Errorf("page buffer has length %d, want %d", len(page), pager.PageSize))
	}

	n, err := readU32(page, 1, op)
	if err != nil {
		return nil, err
	}
	if n > maxEntries {
		return nil, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("key count %d exceeds cap %d", n, maxEntries))
	}

	switch page[0] {
	case typeLeaf:
		keys := make([]string, 0, n)
		values := make([]string, 0, n)
		off := headerFieldsSize
		for i := uint32(0); i < n; i++ {
			k, newOff, err := readLenPrefixed(page, off, maxKeyLen, op)
			if err != nil {
				return nil, err
			}
			off = newOff
			v, newOff, err := readLenPrefixed(page, off, maxValLen, op)
			if err != nil {
				return nil, err
			}
			off = newOff
			keys = append(keys, k)
			values = append(values, v)
		}
		return &Node{IsLeaf: true, Keys: keys, Values: values}, nil

	case typeInternal:
		keys := make([]string, 0, n)
		off := headerFieldsSize
		for i := uint32(0); i < n; i++ {
			k, newOff, err := readLenPrefixed(page, off, maxKeyLen, op)
			if err != nil {
				return nil, err
			}
			off = newOff
			keys = append(keys, k)
		}
		children := make([]uint32, 0, n+1)
		for i := uint32(0); i <= n; i++ {
			c, err := readU32(page, off, op)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
			off += 4
		}
		return &Node{IsLeaf: false, Keys: keys, Children: children}, nil

	default:
		return nil, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("bad node type tag %d", page[0]))
	}
}

func readU32(page []byte, off int, op string) (uint32, error) {
	if off < 0 || off+4 > len(page) {
		return 0, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("field at offset %d overruns page", off))
	}
	return binary.LittleEndian.Uint32(page[off : off+4]), nil
}

// readLenPrefixed reads a (len u32, bytes) field at off, validating the
// length against cap and the page boundary, and the bytes as UTF-8. It
// returns the decoded string and the offset just past it.
func readLenPrefixed(page []byte, off, cap int, op string) (string, int, error) {
	l, err := readU32(page, off, op)
	if err != nil {
		return "", 0, err
	}
	off += 4
	if int(l) > cap {
		return "", 0, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("length %d exceeds cap %d", l, cap))
	}
	if off+int(l) > len(page) {
		return "", 0, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("field of length %d at offset %d overruns page", l, off))
	}
	b := page[off : off+int(l)]
	if !utf8.Valid(b) {
		return "", 0, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("non-UTF-8 bytes at offset %d", off))
	}
	return string(b), off + int(l), nil
}
