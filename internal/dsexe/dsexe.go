// Package dsexe implements the in-place executable patch that redirects
// archive-backed path lookups onto the loose unpacked file tree, grounded on
// original_source/unpacker_file_handler.py: modify_exe. Unlike the source,
// which mmaps the file for an in-place rewrite, Patch operates on a []byte
// read fully into memory: none of the pack's dependencies offer a
// memory-mapping facility, and a Dark Souls executable comfortably fits in
// memory for a single rewrite pass (see DESIGN.md).
package dsexe

import (
	"bytes"
	"fmt"

	"github.com/spf13/afero"

	"github.com/HotPocketRemix/dsunpack/internal/dscheck"
)

// needle/replacement pair. Every needle is UTF-16LE encoded, and so is every
// replacement except the one for "%stpf", which is the six raw bytes
// "chr\0\0\0".
type replacement struct {
	name string
	find []byte
	with []byte
}

func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), 0)
	}
	return out
}

var replacements = []replacement{
	{"dvdbnd0", utf16le("dvdbnd0:"), utf16le("dvdroot:")},
	{"dvdbnd1", utf16le("dvdbnd1:"), utf16le("dvdroot:")},
	{"dvdbnd2", utf16le("dvdbnd2:"), utf16le("dvdroot:")},
	{"dvdbnd3", utf16le("dvdbnd3:"), utf16le("dvdroot:")},
	{"hkxbnd", utf16le("hkxbnd:"), utf16le("maphkx:")},
	{"tpfbnd", utf16le("tpfbnd:"), utf16le("map:/tx")},
	{"%stpf", utf16le("%stpf"), append(append([]byte("chr"), 0, 0), 0)},
}

// dcxDisablePatch is the two-byte overwrite ("EB 12", an unconditional short
// jump) that disables DCX decompression in the patched executable. The
// absolute offset is release/debug specific and is not known for every
// build; ReleaseDCXDisableOffset and DebugDCXDisableOffset are the two this
// package knows, selected via Patch's kind argument.
var dcxDisablePatch = []byte{0xEB, 0x12}

// BuildKind selects which absolute offset the DCX-disable patch is written
// at, since it differs between the release and debug executable.
type BuildKind int

const (
	BuildUnknown BuildKind = iota
	BuildRelease
	BuildDebug
)

// Offsets of the two-byte DCX-disable patch, by build. These are specific to
// the executable revision pinned by dscheck.ExeChecksum / dscheck.DebugExeChecksum.
const (
	ReleaseDCXDisableOffset = 0x1CF2B2
	DebugDCXDisableOffset   = 0x1D114A
)

// Result reports how many occurrences of each needle were replaced.
type Result struct {
	Counts     map[string]int
	PatchedDCX bool
	DCXOffset  int
}

// classifyOffset returns the DCX-disable offset for kind, or -1 if kind does
// not select a known offset (BuildUnknown, or a non-release/debug build).
func classifyOffset(kind BuildKind) int {
	switch kind {
	case BuildRelease:
		return ReleaseDCXDisableOffset
	case BuildDebug:
		return DebugDCXDisableOffset
	default:
		return -1
	}
}

// BuildKindFor maps an ExeStatus produced by dscheck.ClassifyExe onto the
// BuildKind that selects the DCX-disable offset.
func BuildKindFor(status dscheck.ExeStatus) BuildKind {
	switch status {
	case dscheck.StatusExpected:
		return BuildRelease
	case dscheck.StatusExpectedDebug:
		return BuildDebug
	default:
		return BuildUnknown
	}
}

// Patch rewrites the needle strings in content and, if kind selects a known
// offset, overwrites the two DCX-disable bytes there. content is modified in
// place; callers that need to retain the original bytes should copy before
// calling Patch.
func Patch(content []byte, kind BuildKind) (Result, error) {
	res := Result{Counts: make(map[string]int, len(replacements)), DCXOffset: -1}

	for _, r := range replacements {
		count := 0
		for {
			idx := bytes.Index(content, r.find)
			if idx < 0 {
				break
			}
			copy(content[idx:idx+len(r.with)], r.with)
			// Overwrite any trailing bytes of a longer needle with zero so a
			// shorter replacement can't leave stale bytes behind.
			for i := idx + len(r.with); i < idx+len(r.find); i++ {
				content[i] = 0
			}
			count++
		}
		res.Counts[r.name] = count
	}

	if off := classifyOffset(kind); off >= 0 {
		if off+len(dcxDisablePatch) > len(content) {
			return res, fmt.Errorf("dsexe: DCX-disable offset %#x exceeds executable length %d", off, len(content))
		}
		copy(content[off:off+len(dcxDisablePatch)], dcxDisablePatch)
		res.PatchedDCX = true
		res.DCXOffset = off
	}

	return res, nil
}

// PatchFile reads name from fs, applies Patch, and writes the result back in
// place.
func PatchFile(fs afero.Fs, name string, kind BuildKind) (Result, error) {
	content, err := afero.ReadFile(fs, name)
	if err != nil {
		return Result{}, err
	}
	res, err := Patch(content, kind)
	if err != nil {
		return Result{}, err
	}
	if err := afero.WriteFile(fs, name, content, 0o755); err != nil {
		return Result{}, err
	}
	return res, nil
}
