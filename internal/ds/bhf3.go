package ds

import (
	"fmt"
	"strings"
)

var bhf3Magic = []byte("BHF307D7R6\x00\x00")

const (
	bhf3FlagOffset    = 0x0C
	bhf3RecordsOffset = 0x20
	bhf3RecordSize    = 24
	recordSeparator   = 0x40
)

// AppearsBHF3 reports whether content begins with the BHF3 magic.
func AppearsBHF3(content []byte) bool {
	return NewByteCursor(content).ExpectTag(bhf3Magic) == nil
}

// ParseBHF3 parses a BHD (BHF3) index header (SPEC_FULL.md §4.3).
//
// The source this is ported from checks "flag must not be 0x74 or 0x54" with
// an always-true predicate (logical-or of two inequalities), making the
// validation a no-op; real fixtures only ever carry 0x74 or 0x54 so the bug
// stayed latent. This enforces the intended check instead of reproducing it.
func ParseBHF3(header []byte) (*ArchiveIndex, error) {
	c := NewByteCursor(header)

	if err := c.ExpectTag(bhf3Magic); err != nil {
		return nil, err
	}
	if err := c.SeekTo(bhf3FlagOffset); err != nil {
		return nil, err
	}
	magicFlag, err := c.U32LE()
	if err != nil {
		return nil, err
	}
	if magicFlag != 0x74 && magicFlag != 0x54 {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownFlag, magicFlag)
	}
	numRecords, err := c.U32LE()
	if err != nil {
		return nil, err
	}

	if err := c.SeekTo(bhf3RecordsOffset); err != nil {
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
		payloadSizeDup, err := c.U32LE()
		if err != nil {
			return nil, err
		}
		if payloadSize != payloadSizeDup {
			return nil, fmt.Errorf("%w: payload size %d does not match duplicate %d", ErrMalformed, payloadSize, payloadSizeDup)
		}

		name, err := c.StrZ(int(nameOffset))
		if err != nil {
			return nil, err
		}
		name = strings.ReplaceAll(name, `\`, "/")

		idx.Append(ArchiveRecord{
			Name:          name,
			PayloadOffset: payloadOffset,
			PayloadSize:   payloadSize,
			FileID:        fileID,
		})
	}

	return idx, nil
}
