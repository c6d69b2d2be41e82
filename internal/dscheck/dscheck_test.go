package dscheck

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestGetChecksum(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "file.bin", []byte("hello"), 0o644))

	sum, err := GetChecksum(fs, "file.bin")
	require.NoError(t, err)
	// SHA-256("hello")
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)
}

func TestClassifyExeUnexpected(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, ExeFilename, []byte("not the real executable"), 0o644))

	result, err := ClassifyExe(fs)
	require.NoError(t, err)
	require.Equal(t, StatusUnexpected, result.Status)
	require.Equal(t, ExeFilename, result.Filename)
}

func TestClassifyExeGFWL(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, GFWLFilename, []byte("gfwl exe"), 0o644))

	result, err := ClassifyExe(fs)
	require.NoError(t, err)
	require.Equal(t, StatusGFWL, result.Status)
}

func TestClassifyExeNone(t *testing.T) {
	fs := afero.NewMemMapFs()
	result, err := ClassifyExe(fs)
	require.NoError(t, err)
	require.Equal(t, StatusNone, result.Status)
}

// TestClassifyArchivesMatching overrides one entry of ArchiveChecksums (a
// package variable, unlike the executable constants which are tied to the
// real binary) with the digest of fixture content, to exercise the
// matching-checksum branch without shipping a real archive file.
func TestClassifyArchivesMatching(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "dvdbnd0.bdt", []byte("fixture archive content"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "dvdbnd1.bdt", []byte("wrong content"), 0o644))

	want, err := GetChecksum(fs, "dvdbnd0.bdt")
	require.NoError(t, err)

	original := ArchiveChecksums["dvdbnd0.bdt"]
	ArchiveChecksums["dvdbnd0.bdt"] = want
	defer func() { ArchiveChecksums["dvdbnd0.bdt"] = original }()

	result, err := ClassifyArchives(fs)
	require.NoError(t, err)
	require.Contains(t, result.Existing, "dvdbnd0.bdt")
	require.Contains(t, result.Existing, "dvdbnd1.bdt")
	require.Contains(t, result.HasMatchingChecksum, "dvdbnd0.bdt")
	require.NotContains(t, result.HasMatchingChecksum, "dvdbnd1.bdt")
	require.Contains(t, result.Missing, "dvdbnd0.bhd5")
}
