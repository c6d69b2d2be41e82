package ds

import (
	"fmt"
)

var bhd5Preamble = []byte{'B', 'H', 'D', '5', 0xFF, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}

// bdtPreamble is the fixed 16-byte literal every paired data file (BDT or
// BDF3) must begin with.
var bdtPreamble = []byte("BDF307D7R6\x00\x00\x00\x00\x00\x00")

// ParseBHD5 parses a BHD5 index header (SPEC_FULL.md §4.2) and resolves each
// record's name hash against names. A hash absent from names fails the whole
// parse with ErrUnknownHash, per the distilled spec's "Lookup failure on a
// hash present in a BHD5 is fatal for that record."
func ParseBHD5(header []byte, names *NameHashTable) (*ArchiveIndex, error) {
	c := NewByteCursor(header)

	if err := c.ExpectTag(bhd5Preamble); err != nil {
		return nil, err
	}
	if _, err := c.U32LE(); err != nil { // file_size, informational
		return nil, err
	}
	binCount, err := c.U32LE()
	if err != nil {
		return nil, err
	}
	if _, err := c.U32LE(); err != nil { // bin_offset, informational
		return nil, err
	}

	type binDirEntry struct {
		recordCount uint32
		recordAbs   uint32
	}
	bins := make([]binDirEntry, binCount)
	for i := range bins {
		count, err := c.U32LE()
		if err != nil {
			return nil, err
		}
		abs, err := c.U32LE()
		if err != nil {
			return nil, err
		}
		bins[i] = binDirEntry{recordCount: count, recordAbs: abs}
	}

	idx := &ArchiveIndex{}
	for _, bin := range bins {
		rc := NewByteCursor(header)
		if err := rc.SeekTo(int(bin.recordAbs)); err != nil {
			return nil, err
		}
		for i := uint32(0); i < bin.recordCount; i++ {
			hash, err := rc.U32LE()
			if err != nil {
				return nil, err
			}
			size, err := rc.U32LE()
			if err != nil {
				return nil, err
			}
			offset, err := rc.U32LE()
			if err != nil {
				return nil, err
			}
			terminator, err := rc.U32LE()
			if err != nil {
				return nil, err
			}
			if terminator != 0 {
				return nil, fmt.Errorf("%w: bin record terminator is %d, want 0", ErrMalformed, terminator)
			}

			name, err := names.Lookup(hash)
			if err != nil {
				return nil, err
			}

			idx.Append(ArchiveRecord{
				Name:          name,
				PayloadOffset: offset,
				PayloadSize:   size,
			})
		}
	}

	return idx, nil
}

// AppearsBHD5 reports whether content begins with the BHD5 preamble.
func AppearsBHD5(content []byte) bool {
	return NewByteCursor(content).ExpectTag(bhd5Preamble) == nil
}

// ValidateBDTPreamble checks a paired data file's fixed 16-byte header,
// shared by both the BHD5/BDT and BHD/BDT (BHF3/BDF3) variants.
func ValidateBDTPreamble(data []byte) error {
	return NewByteCursor(data).ExpectTag(bdtPreamble)
}

// ReadPayload returns the record's payload bytes from data (a paired BDT
// buffer already validated with ValidateBDTPreamble), bounds-checked against
// the invariant payload_offset + payload_size <= len(data).
func ReadPayload(data []byte, r ArchiveRecord) ([]byte, error) {
	return NewByteCursor(data).Slice(int(r.PayloadOffset), int(r.PayloadSize))
}
