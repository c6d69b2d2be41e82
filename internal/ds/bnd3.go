package ds

import (
	"fmt"
	"strings"
)

var bnd3Magic = []byte("BND3")

const (
	bnd3FlagOffset    = 0x0C
	bnd3RecordsOffset = 0x20
)

// BND3 magic_flag values (SPEC_FULL.md §4.4).
const (
	bnd3Flag70 = 0x70
	bnd3Flag74 = 0x74
	bnd3Flag54 = 0x54
)

// AppearsBND3 reports whether content begins with the BND3 magic.
func AppearsBND3(content []byte) bool {
	return NewByteCursor(content).ExpectTag(bnd3Magic) == nil
}

// ParseBND3 parses a BND3 container (SPEC_FULL.md §4.4). Records' payload
// bytes live inside content itself, not a paired file. A record whose name
// begins with the "N:"/"n:" prefix is returned with that prefix stripped and
// NRooted set, per the N: routing rule.
func ParseBND3(content []byte) (*ArchiveIndex, error) {
	c := NewByteCursor(content)

	if err := c.ExpectTag(bnd3Magic); err != nil {
		return nil, err
	}
	if err := c.SeekTo(bnd3FlagOffset); err != nil {
		return nil, err
	}
	magicFlag, err := c.U32LE()
	if err != nil {
		return nil, err
	}
	if magicFlag != bnd3Flag70 && magicFlag != bnd3Flag74 && magicFlag != bnd3Flag54 {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownFlag, magicFlag)
	}
	numRecords, err := c.U32LE()
	if err != nil {
		return nil, err
	}
	if _, err := c.U32LE(); err != nil { // filename_end_offset, unused
		return nil, err
	}

	if err := c.SeekTo(bnd3RecordsOffset); err != nil {
		return nil, err
	}

	idx := &ArchiveIndex{}
	for i := uint32(0); i < numRecords; i++ {
		recordSep, err := c.U32LE()
		if err != nil {
			return nil, err
		}
		if recordSep != recordSeparator {
			return nil, fmt.Errorf("%w: record separator %#x, want %#x", ErrMalformed, recordSep, recordSeparator)
		}
		payloadSize, err := c.U32LE()
		if err != nil {
			return nil, err
		}
		payloadOffset, err := c.U32LE()
		if err != nil {
			return nil, err
		}
		fileID, err := c.U32LE()
		if err != nil {
			return nil, err
		}
		nameOffset, err := c.U32LE()
		if err != nil {
			return nil, err
		}

		if magicFlag == bnd3Flag74 || magicFlag == bnd3Flag54 {
			payloadSizeDup, err := c.U32LE()
			if err != nil {
				return nil, err
			}
			if payloadSize != payloadSizeDup {
				return nil, fmt.Errorf("%w: payload size %d does not match duplicate %d", ErrMalformed, payloadSize, payloadSizeDup)
			}
		}

		name, err := c.StrZ(int(nameOffset))
		if err != nil {
			return nil, err
		}
		name = strings.ReplaceAll(name, `\`, "/")

		nRooted := false
		if len(name) >= 2 && strings.EqualFold(name[:2], "N:") {
			name = name[2:]
			nRooted = true
		}

		idx.Append(ArchiveRecord{
			Name:          name,
			PayloadOffset: payloadOffset,
			PayloadSize:   payloadSize,
			FileID:        fileID,
			NRooted:       nRooted,
		})
	}

	return idx, nil
}
