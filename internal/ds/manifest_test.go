package ds

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManifestWriteTo(t *testing.T) {
	var m Manifest
	m.AddContainer("chr/c0000.chrbnd", []string{"chr/c0000/c0000.anibnd", "chr/c0000/c0000.tae"})
	m.AddCustomFile("n_root/chr/c4110.chrbnd")

	var out strings.Builder
	require.NoError(t, m.WriteTo(&out))

	text := out.String()
	require.Contains(t, text, "chr/c0000.chrbnd\n")
	require.Contains(t, text, "  chr/c0000/c0000.anibnd\n")
	require.Contains(t, text, "-- Custom --\n")
	require.Contains(t, text, "  n_root/chr/c4110.chrbnd\n")
}

func TestManifestWriteToNoCustomFiles(t *testing.T) {
	var m Manifest
	m.AddContainer("chr/c0000.chrbnd", []string{"x"})

	var out strings.Builder
	require.NoError(t, m.WriteTo(&out))
	require.NotContains(t, out.String(), "-- Custom --")
}
