package pager

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestDevice_MissingPageReadsZero(t *testing.T) {
	fs := afero.NewMemMapFs()
	dev, err := Open(fs, "/db", false)
	require.NoError(t, err)
	defer dev.Close()

	page, err := dev.GetPage(5)
	require.NoError(t, err)
	require.Len(t, page, PageSize)
	for _, b := range page {
		require.Zero(t, b)
	}
}

func TestDevice_WriteThenReadBack(t *testing.T) {
	fs := afero.NewMemMapFs()
	dev, err := Open(fs, "/db", false)
	require.NoError(t, err)
	defer dev.Close()

	page := make([]byte, PageSize)
	copy(page, []byte("hello page"))
	require.NoError(t, dev.WritePage(2, page))

	got, err := dev.GetPage(2)
	require.NoError(t, err)
	require.Equal(t, page, got)

	count, err := dev.PageCount()
	require.NoError(t, err)
	require.Equal(t, uint32(3), count)
}

func TestDevice_WritePageWrongLength(t *testing.T) {
	fs := afero.NewMemMapFs()
	dev, err := Open(fs, "/db", false)
	require.NoError(t, err)
	defer dev.Close()

	err = dev.WritePage(0, make([]byte, 10))
	require.Error(t, err)
}

func TestDevice_PageCountEmptyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	dev, err := Open(fs, "/db", false)
	require.NoError(t, err)
	defer dev.Close()

	count, err := dev.PageCount()
	require.NoError(t, err)
	require.Equal(t, uint32(0), count)
}

func TestHeader_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	dev, err := Open(fs, "/db", false)
	require.NoError(t, err)
	defer dev.Close()

	require.NoError(t, WriteHeader(dev, Header{RootPageID: 7}))

	h, err := ReadHeader(dev)
	require.NoError(t, err)
	require.Equal(t, uint32(7), h.RootPageID)
}

func TestHeader_BadMagic(t *testing.T) {
	page := make([]byte, PageSize)
	copy(page, []byte("NOPE"))
	_, err := DecodeHeader(page)
	require.Error(t, err)
}

func TestHeader_PreservesReservedTail(t *testing.T) {
	fs := afero.NewMemMapFs()
	dev, err := Open(fs, "/db", false)
	require.NoError(t, err)
	defer dev.Close()

	page, err := dev.GetPage(0)
	require.NoError(t, err)
	page[200] = 0xAB
	require.NoError(t, dev.WritePage(0, page))

	require.NoError(t, WriteHeader(dev, Header{RootPageID: 1}))

	got, err := dev.GetPage(0)
	require.NoError(t, err)
	require.Equal(t, byte(0xAB), got[200])
}
