package ds

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameHashTableRoundTrip(t *testing.T) {
	dict := "# comment, ignored\n" +
		"\n" +
		"0x0584e6f5 param/gameparam/gameparam.parambnd\n" +
		"0x8eb01211 chr/c4110.chrbnd\n"

	table, err := NewNameHashTable(bytes.NewReader([]byte(dict)))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	path, err := table.Lookup(0x0584e6f5)
	require.NoError(t, err)
	require.Equal(t, "param/gameparam/gameparam.parambnd", path)

	path, err = table.Lookup(0x8eb01211)
	require.NoError(t, err)
	require.Equal(t, "chr/c4110.chrbnd", path)
}

func TestNameHashTableUnknownHash(t *testing.T) {
	table, err := NewNameHashTable(bytes.NewReader([]byte("0x1 a/b\n")))
	require.NoError(t, err)

	_, err = table.Lookup(0xFFFFFFFF)
	require.ErrorIs(t, err, ErrUnknownHash)
}

func TestNewDefaultNameHashTable(t *testing.T) {
	table, err := NewDefaultNameHashTable()
	require.NoError(t, err)
	require.Greater(t, table.Len(), 0)
}

func TestNameHashTableMalformedLine(t *testing.T) {
	_, err := NewNameHashTable(bytes.NewReader([]byte("not-a-valid-line-at-all\n")))
	require.Error(t, err)
}
