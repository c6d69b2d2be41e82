// Package dscheck implements the SHA-256 classification of the Dark Souls
// executable and archive files against known digests, grounded on
// original_source/unpacker_file_handler.py (get_checksum / check_exe /
// check_archives). It is pure computation over an afero.Fs so it can be
// exercised against an in-memory filesystem in tests.
package dscheck

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"

	"github.com/spf13/afero"
)

// ExeStatus classifies the Dark Souls executable found in a directory.
type ExeStatus string

const (
	StatusExpected      ExeStatus = "Expected"
	StatusExpectedDebug ExeStatus = "Expected Debug"
	StatusUnpacked      ExeStatus = "Unpacked"
	StatusUnpackedDebug ExeStatus = "Unpacked Debug"
	StatusUnexpected    ExeStatus = "Unexpected"
	StatusGFWL          ExeStatus = "GFWL"
	StatusNone          ExeStatus = "None"
)

// Known SHA-256 digests of the Steam release executable, its debug build,
// and each after the archive-redirect patch has been applied.
const (
	ExeChecksum         = "67bcab513c8f0ed6164279d85f302e06b1d8a53abff5df7f3d10e1d4dfd81459"
	ModExeChecksum      = "52877d26431ae4f543c97a8fbe2d0eb0b836de29e8946556f99cf05c94a670b5"
	DebugExeChecksum    = "b6958f3f0db5fdb7ce6f56bff14353d8d81da8bae3456795a39dbe217c1897cf"
	ModDebugExeChecksum = "13e5333bbf11cdcc1a20d9c53ca822ce872ce0405c6cc8cc5eaa04174f991fd0"

	ExeFilename  = "DARKSOULS.exe"
	GFWLFilename = "DATA.exe"
)

// ArchiveChecksums are the known SHA-256 digests of the eight archive files
// shipped with the Steam release.
var ArchiveChecksums = map[string]string{
	"dvdbnd0.bdt":  "5ba004380a984a08acbe7e231a26ebe5aeafba68cf2803ee76d5b73e61cfd41b",
	"dvdbnd1.bdt":  "c3d7827642e76564c4c13eccb0280e105896f88c0b3f68c58025cce051e9c98f",
	"dvdbnd2.bdt":  "3d085778404185881a60c12dadaaca6041af643efbbf63f2da15a7ab6af45e0a",
	"dvdbnd3.bdt":  "13578a204b1fb3efa246b63bd15ed45006017d416a91b06659b4d3c3ee5f8a89",
	"dvdbnd0.bhd5": "48f8df35af7dbece0805994fe699e6e8ff99351022d135b0ea49e1a119078107",
	"dvdbnd1.bhd5": "a1d814182df2f71be406aab5dc6da7bca696028d1ae7dfad12666d0f7c6cd9e0",
	"dvdbnd2.bhd5": "e4fb6eec5f38225c4f785f0172128bcd885605a49ee2acb5d8def513c3a14b83",
	"dvdbnd3.bhd5": "a0e0d0255e375838dc4a0ccff85b21f4896e01a06f43a4e78282dc4e3cba5de6",
}

// ExeClassification is the result of ClassifyExe.
type ExeClassification struct {
	Filename string
	Status   ExeStatus
	Checksum string
}

// GetChecksum computes the SHA-256 hex digest of name, read in 64 KiB
// blocks.
func GetChecksum(fs afero.Fs, name string) (string, error) {
	f, err := fs.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ClassifyExe looks in the working directory of fs for a known Dark Souls
// executable and classifies it by SHA-256 digest.
func ClassifyExe(fs afero.Fs) (ExeClassification, error) {
	if exists, err := afero.Exists(fs, ExeFilename); err != nil {
		return ExeClassification{}, err
	} else if exists {
		sum, err := GetChecksum(fs, ExeFilename)
		if err != nil {
			return ExeClassification{}, err
		}
		status := StatusUnexpected
		switch sum {
		case ExeChecksum:
			status = StatusExpected
		case DebugExeChecksum:
			status = StatusExpectedDebug
		case ModExeChecksum:
			status = StatusUnpacked
		case ModDebugExeChecksum:
			status = StatusUnpackedDebug
		}
		return ExeClassification{Filename: ExeFilename, Status: status, Checksum: sum}, nil
	}

	if exists, err := afero.Exists(fs, GFWLFilename); err != nil {
		return ExeClassification{}, err
	} else if exists {
		return ExeClassification{Filename: GFWLFilename, Status: StatusGFWL}, nil
	}

	return ExeClassification{Status: StatusNone}, nil
}

// ArchiveClassification reports which of the eight known archive files
// exist and which of those have the expected checksum.
type ArchiveClassification struct {
	Existing            []string
	HasMatchingChecksum []string
	Missing             []string
}

// ClassifyArchives computes checksums for the eight known archive files and
// classifies each as existing/matching/missing.
func ClassifyArchives(fs afero.Fs) (ArchiveClassification, error) {
	var result ArchiveClassification

	names := make([]string, 0, len(ArchiveChecksums))
	for name := range ArchiveChecksums {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		exists, err := afero.Exists(fs, name)
		if err != nil {
			return result, err
		}
		if !exists {
			result.Missing = append(result.Missing, name)
			continue
		}
		result.Existing = append(result.Existing, name)
		sum, err := GetChecksum(fs, name)
		if err != nil {
			return result, err
		}
		if sum == ArchiveChecksums[name] {
			result.HasMatchingChecksum = append(result.HasMatchingChecksum, name)
		}
	}
	return result, nil
}
