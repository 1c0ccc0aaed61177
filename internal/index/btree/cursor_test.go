package btree

import (
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestCursor_EmptyTreeIsInvalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	tr := openTree(t, fs, "/db")
	defer tr.Close()

	c := tr.NewCursor()
	require.NoError(t, c.SeekFirst())
	require.False(t, c.Valid())
}

func TestCursor_ScansInOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	tr := openTree(t, fs, "/db")
	defer tr.Close()

	keys := []string{"d", "b", "a", "c", "e"}
	for _, k := range keys {
		require.NoError(t, tr.Insert(k, k+"v"))
	}

	c := tr.NewCursor()
	require.NoError(t, c.SeekFirst())

	var got []string
	for c.Valid() {
		got = append(got, c.Key())
		require.NoError(t, c.Next())
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestCursor_SeekPositionsAtLowerBound(t *testing.T) {
	fs := afero.NewMemMapFs()
	tr := openTree(t, fs, "/db")
	defer tr.Close()

	for _, k := range []string{"a", "c", "e", "g"} {
		require.NoError(t, tr.Insert(k, k+"v"))
	}

	c := tr.NewCursor()
	require.NoError(t, c.Seek("d"))
	require.True(t, c.Valid())
	require.Equal(t, "e", c.Key())
}

func TestCursor_SeekPastEndIsInvalid(t *testing.T) {
	fs := afero.NewMemMapFs()
	tr := openTree(t, fs, "/db")
	defer tr.Close()

	require.NoError(t, tr.Insert("a", "1"))
	c := tr.NewCursor()
	require.NoError(t, c.Seek("z"))
	require.False(t, c.Valid())
}

func TestCursor_ScansAcrossManySplitPages(t *testing.T) {
	fs := afero.NewMemMapFs()
	tr := openTree(t, fs, "/db")
	defer tr.Close()

	const n = 150
	for i := 0; i < n; i++ {
		require.NoError(t, tr.Insert(fmt.Sprintf("k%04d", i), fmt.Sprintf("v%04d", i)))
	}

	c := tr.NewCursor()
	require.NoError(t, c.SeekFirst())

	count := 0
	prev := ""
	for c.Valid() {
		require.True(t, c.Key() > prev || count == 0)
		prev = c.Key()
		count++
		require.NoError(t, c.Next())
	}
	require.Equal(t, n, count)
}

func TestCursor_ScanRangeRespectsEndBound(t *testing.T) {
	fs := afero.NewMemMapFs()
	tr := openTree(t, fs, "/db")
	defer tr.Close()

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, tr.Insert(k, k+"v"))
	}

	c := tr.NewCursor()
	require.NoError(t, c.Seek("b"))
	end := "d"
	var got []string
	for c.Valid() && c.Key() < end {
		got = append(got, c.Key())
		require.NoError(t, c.Next())
	}
	require.Equal(t, []string{"b", "c"}, got)
}
