// Package typedvalue is a typed-value façade over the store's raw
// string values, so callers can round-trip int64/float64/bool/string/null
// through the core's plain string API without the tree itself knowing
// about types. The tagged-union shape and one-byte-tag wire format follow
// the teacher's internal/sql.Value/DataType pair, generalized with the
// numeric/null tags from original_source/src/value.rs's Value enum (its
// Binary variant is dropped: nothing in this store needs raw blobs, since
// arbitrary bytes already round-trip through the String variant).
package typedvalue

import (
	"encoding/binary"
	"fmt"
	"math"

	"btreedb/internal/dberr"
)

// Kind is the tag of a typed value.
type Kind int

const (
	KindInt64 Kind = iota
	KindFloat64
	KindBool
	KindString
	KindNull
)

const (
	tagInt64 byte = iota
	tagFloat64
	tagBool
	tagString
	tagNull
)

// Value is a tagged union mirroring the teacher's sql.Value, but
// independent of the SQL package: only the field matching Kind is
// meaningful.
type Value struct {
	Kind    Kind
	Int64   int64
	Float64 float64
	Bool    bool
	String  string
}

func Int64(v int64) Value     { return Value{Kind: KindInt64, Int64: v} }
func Float64(v float64) Value { return Value{Kind: KindFloat64, Float64: v} }
func Bool(v bool) Value       { return Value{Kind: KindBool, Bool: v} }
func String(v string) Value   { return Value{Kind: KindString, String: v} }
func Null() Value             { return Value{Kind: KindNull} }

// Encode serializes v as one tag byte followed by its payload. The result
// is a plain Go string, suitable for storing directly as a value in the
// core key-value store.
func Encode(v Value) string {
	switch v.Kind {
	case KindInt64:
		buf := make([]byte, 9)
		buf[0] = tagInt64
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.Int64))
		return string(buf)
	case KindFloat64:
		buf := make([]byte, 9)
		buf[0] = tagFloat64
		binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(v.Float64))
		return string(buf)
	case KindBool:
		buf := make([]byte, 2)
		buf[0] = tagBool
		if v.Bool {
			buf[1] = 1
		}
		return string(buf)
	case KindString:
		return string(tagString) + v.String
	case KindNull:
		return string(tagNull)
	default:
		return string(tagNull)
	}
}

// Decode parses the wire format Encode produces.
func Decode(s string) (Value, error) {
	const op = "typedvalue.Decode"
	if len(s) == 0 {
		return Value{}, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("empty encoded value"))
	}
	tag := s[0]
	payload := s[1:]
	switch tag {
	case tagInt64:
		if len(payload) != 8 {
			return Value{}, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("int64 payload has length %d, want 8", len(payload)))
		}
		return Int64(int64(binary.LittleEndian.Uint64([]byte(payload)))), nil
	case tagFloat64:
		if len(payload) != 8 {
			return Value{}, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("float64 payload has length %d, want 8", len(payload)))
		}
		return Float64(math.Float64frombits(binary.LittleEndian.Uint64([]byte(payload)))), nil
	case tagBool:
		if len(payload) != 1 {
			return Value{}, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("bool payload has length %d, want 1", len(payload)))
		}
		return Bool(payload[0] != 0), nil
	case tagString:
		return String(payload), nil
	case tagNull:
		if len(payload) != 0 {
			return Value{}, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("null value carries %d trailing bytes", len(payload)))
		}
		return Null(), nil
	default:
		return Value{}, dberr.New(dberr.KindInvalidData, op, fmt.Errorf("bad value tag %d", tag))
	}
}
