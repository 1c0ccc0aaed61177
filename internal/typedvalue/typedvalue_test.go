package typedvalue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip_Int64(t *testing.T) {
	v, err := Decode(Encode(Int64(-42)))
	require.NoError(t, err)
	require.Equal(t, KindInt64, v.Kind)
	require.Equal(t, int64(-42), v.Int64)
}

func TestRoundTrip_Float64(t *testing.T) {
	v, err := Decode(Encode(Float64(3.14159)))
	require.NoError(t, err)
	require.Equal(t, KindFloat64, v.Kind)
	require.InDelta(t, 3.14159, v.Float64, 1e-9)
}

func TestRoundTrip_Bool(t *testing.T) {
	v, err := Decode(Encode(Bool(true)))
	require.NoError(t, err)
	require.True(t, v.Bool)

	v, err = Decode(Encode(Bool(false)))
	require.NoError(t, err)
	require.False(t, v.Bool)
}

func TestRoundTrip_String(t *testing.T) {
	v, err := Decode(Encode(String("hello, world")))
	require.NoError(t, err)
	require.Equal(t, KindString, v.Kind)
	require.Equal(t, "hello, world", v.String)
}

func TestRoundTrip_Null(t *testing.T) {
	v, err := Decode(Encode(Null()))
	require.NoError(t, err)
	require.Equal(t, KindNull, v.Kind)
}

func TestDecode_RejectsEmptyInput(t *testing.T) {
	_, err := Decode("")
	require.Error(t, err)
}

func TestDecode_RejectsBadTag(t *testing.T) {
	_, err := Decode(string([]byte{0xFF}))
	require.Error(t, err)
}

func TestDecode_RejectsTruncatedInt64(t *testing.T) {
	_, err := Decode(string([]byte{tagInt64, 1, 2, 3}))
	require.Error(t, err)
}
