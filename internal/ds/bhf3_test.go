package ds

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

type bhf3Record struct {
	payloadSize   uint32
	payloadOffset uint32
	fileID        uint32
	name          string
}

func buildBHF3(flag uint32, records []bhf3Record) []byte {
	buf := &bytes.Buffer{}
	buf.Write(bhf3Magic)
	writeU32LE(buf, flag)
	writeU32LE(buf, uint32(len(records)))

	// Pad out to the fixed records offset (0x20), then lay out the names
	// immediately after the fixed-size record table.
	for buf.Len() < bhf3RecordsOffset {
		buf.WriteByte(0)
	}

	recordTableLen := len(records) * bhf3RecordSize
	namesStart := bhf3RecordsOffset + recordTableLen

	var names bytes.Buffer
	nameOffsets := make([]uint32, len(records))
	for i, r := range records {
		nameOffsets[i] = uint32(namesStart) + uint32(names.Len())
		names.WriteString(r.name)
		names.WriteByte(0)
	}

	for i, r := range records {
		writeU32LE(buf, recordSeparator)
		writeU32LE(buf, r.payloadSize)
		writeU32LE(buf, r.payloadOffset)
		writeU32LE(buf, r.fileID)
		writeU32LE(buf, nameOffsets[i])
		writeU32LE(buf, r.payloadSize) // payload_size_dup
	}
	buf.Write(names.Bytes())

	return buf.Bytes()
}

func TestParseBHF3RoundTrip(t *testing.T) {
	header := buildBHF3(0x74, []bhf3Record{
		{payloadSize: 5, payloadOffset: 0x10, fileID: 1, name: `chr\c0000.chrbnd`},
		{payloadSize: 9, payloadOffset: 0x20, fileID: 2, name: "map/m10.mapbnd"},
	})

	idx, err := ParseBHF3(header)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())
	require.Equal(t, "chr/c0000.chrbnd", idx.Records()[0].Name)
	require.Equal(t, "map/m10.mapbnd", idx.Records()[1].Name)
	require.Equal(t, uint32(1), idx.Records()[0].FileID)
}

func TestParseBHF3UnknownFlag(t *testing.T) {
	header := buildBHF3(0x99, nil)
	_, err := ParseBHF3(header)
	require.ErrorIs(t, err, ErrUnknownFlag)
}

func TestParseBHF3PayloadSizeMismatch(t *testing.T) {
	header := buildBHF3(0x54, []bhf3Record{{payloadSize: 5, payloadOffset: 0, fileID: 0, name: "x"}})
	// Corrupt the duplicate size field of the one record.
	header[bhf3RecordsOffset+20] = 0xFF
	_, err := ParseBHF3(header)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestAppearsBHF3(t *testing.T) {
	header := buildBHF3(0x74, nil)
	require.True(t, AppearsBHF3(header))
	require.False(t, AppearsBHF3([]byte("BND3")))
}
