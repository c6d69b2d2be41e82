package ds

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// buildOuterArchivePair assembles a BHD5 header + BDT data pair for one of
// the four outer archives holding a single record.
func buildOuterArchivePair(hash uint32, payload []byte) (header, data []byte) {
	offset := uint32(len(bdtPreamble))
	data = append(append([]byte{}, bdtPreamble...), payload...)
	header = buildBHD5([][]bhd5Record{{{hash: hash, size: uint32(len(payload)), offset: offset}}})
	return header, data
}

func writeOuterArchives(t *testing.T, fs afero.Fs, root string, dcxHash uint32, dcxPayload []byte) {
	t.Helper()
	for i := 0; i < 4; i++ {
		var header, data []byte
		if i == 0 {
			header, data = buildOuterArchivePair(dcxHash, dcxPayload)
		} else {
			header = buildBHD5(nil)
			data = append([]byte{}, bdtPreamble...)
		}
		require.NoError(t, afero.WriteFile(fs, filepath.Join(root, archiveName(i, "bhd5")), header, 0o644))
		require.NoError(t, afero.WriteFile(fs, filepath.Join(root, archiveName(i, "bdt")), data, 0o644))
	}
}

func archiveName(i int, ext string) string {
	return "dvdbnd" + string(rune('0'+i)) + "." + ext
}

func TestDispatcherUnpackOuterArchivesInflatesDCX(t *testing.T) {
	fs := afero.NewMemMapFs()

	innerBND3 := buildBND3(bnd3Flag74, []bnd3Record{{name: "child.txt", payload: []byte("inner-data")}})
	dcxPayload := buildDCX(t, innerBND3)

	names, err := NewNameHashTable(bytes.NewReader([]byte("0x1 chr/c0000.chrbnd.dcx\n")))
	require.NoError(t, err)

	writeOuterArchives(t, fs, ".", 1, dcxPayload)

	d := NewDispatcher(fs, names, nil)
	leaves, err := d.UnpackOuterArchives(".", ".")
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	require.Equal(t, filepath.Join("chr", "c0000.chrbnd"), leaves[0])

	got, err := afero.ReadFile(fs, leaves[0])
	require.NoError(t, err)
	require.Equal(t, innerBND3, got)
}

func TestDispatcherRecurseBND3AndManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	names := testNames(t)

	leaf := filepath.Join("chr", "c0000.chrbnd")
	content := buildBND3(bnd3Flag70, []bnd3Record{
		{name: "data.txt", payload: []byte("data-root-file")},
		{name: `N:\extra\file.txt`, payload: []byte("n-root-file")},
	})
	require.NoError(t, afero.WriteFile(fs, leaf, content, 0o644))

	d := NewDispatcher(fs, names, nil)
	require.NoError(t, d.RecurseBND3([]string{leaf}, ".", "temp"))
	require.NoError(t, d.InjectCustomFile("temp"))
	require.NoError(t, d.WriteManifest("temp"))

	dataGot, err := afero.ReadFile(fs, filepath.Join("temp", contentDataDir, "chr", "data.txt"))
	require.NoError(t, err)
	require.Equal(t, "data-root-file", string(dataGot))

	nGot, err := afero.ReadFile(fs, filepath.Join("temp", contentNDir, "extra", "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "n-root-file", string(nGot))

	custom, err := afero.ReadFile(fs, filepath.Join("temp", contentNDir, c4110ReplacementPath))
	require.NoError(t, err)
	require.Equal(t, c4110Replacement, custom)

	manifest, err := afero.ReadFile(fs, filepath.Join("temp", manifestName))
	require.NoError(t, err)
	require.Contains(t, string(manifest), leaf)
	require.Contains(t, string(manifest), "-- Custom --")
}

func TestDispatcherPairAndExtract(t *testing.T) {
	fs := afero.NewMemMapFs()

	content := buildBHF3(0x74, []bhf3Record{{payloadSize: 4, payloadOffset: uint32(len(bdtPreamble)), fileID: 0, name: "foo.hkx"}})
	data := append(append([]byte{}, bdtPreamble...), []byte("body")...)

	require.NoError(t, afero.WriteFile(fs, "sample.hkxbhd", content, 0o644))
	require.NoError(t, afero.WriteFile(fs, "sample.hkxbdt", data, 0o644))

	d := NewDispatcher(fs, testNames(t), nil)
	require.NoError(t, d.PairAndExtract("."))

	got, err := afero.ReadFile(fs, filepath.Join("map", "foo.hkx"))
	require.NoError(t, err)
	require.Equal(t, "body", string(got))

	_, err = fs.Stat("sample.hkxbdt")
	require.True(t, os.IsNotExist(err))
	_, err = fs.Stat("sample.hkxbhd")
	require.True(t, os.IsNotExist(err))
}

func TestDispatcherPairAndExtractUnpairedAggregates(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "orphan1.hkxbdt", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "orphan2.tpfbdt", []byte("x"), 0o644))

	d := NewDispatcher(fs, testNames(t), nil)
	err := d.PairAndExtract(".")
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok)

	count := 0
	for _, e := range merr.Errors {
		if errors.Is(e, ErrUnpaired) {
			count++
		}
	}
	require.Equal(t, 2, count)
}
