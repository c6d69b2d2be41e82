package ds

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

var (
	dcxTag  = []byte("DCX\x00")
	dcsTag  = []byte("DCS\x00")
	dcpTag  = []byte("DCP\x00")
	dfltTag = []byte("DFLT")
	dcaTag  = []byte("DCA\x00")
)

// dcxOpaqueLen is the length of the region between "DFLT" and "DCA\0" whose
// meaning is unknown (distilled spec §9, Open Questions). It is skipped, not
// validated.
const dcxOpaqueLen = 0x18

// DcxFrame is a parsed DCX header: the declared uncompressed/compressed
// sizes and the byte range of the raw DEFLATE payload within the source
// buffer (zlib's 2-byte "78 DA" prefix already stripped).
type DcxFrame struct {
	UncompressedSize uint32
	CompressedSize   uint32
	PayloadStart     int
	PayloadLen       int
}

// AppearsDCX reports whether content begins with the DCX magic.
func AppearsDCX(content []byte) bool {
	return len(content) >= 4 && string(content[:4]) == "DCX\x00"
}

// ParseDCXFrame validates the DCX frame layout described in SPEC_FULL.md §4.5
// and returns the parsed header plus the payload byte range. It does not
// decompress.
func ParseDCXFrame(content []byte) (DcxFrame, error) {
	c := NewByteCursor(content)
	var f DcxFrame

	if err := c.ExpectTag(dcxTag); err != nil {
		return f, err
	}

	req1, err := c.U32LE()
	if err != nil {
		return f, err
	}
	if req1 != 0x100 {
		return f, fmt.Errorf("%w: expected DCX header int 0x100, got %#x", ErrMalformed, req1)
	}

	req2, err := c.U32BE()
	if err != nil {
		return f, err
	}
	if req2 != 0x18 {
		return f, fmt.Errorf("%w: expected DCX header int 0x18, got %#x", ErrMalformed, req2)
	}

	req3, err := c.U32BE()
	if err != nil {
		return f, err
	}
	if req3 != 0x24 {
		return f, fmt.Errorf("%w: expected DCX header int 0x24, got %#x", ErrMalformed, req3)
	}

	req4, err := c.U32BE()
	if err != nil {
		return f, err
	}
	if req4 != 0x24 {
		return f, fmt.Errorf("%w: expected DCX header int 0x24, got %#x", ErrMalformed, req4)
	}

	if _, err := c.U32BE(); err != nil { // header_length, informational
		return f, err
	}

	if err := c.ExpectTag(dcsTag); err != nil {
		return f, err
	}

	uncompSize, err := c.U32BE()
	if err != nil {
		return f, err
	}
	compSize, err := c.U32BE()
	if err != nil {
		return f, err
	}

	if err := c.ExpectTag(dcpTag); err != nil {
		return f, err
	}
	if err := c.ExpectTag(dfltTag); err != nil {
		return f, err
	}
	if err := c.Skip(dcxOpaqueLen); err != nil {
		return f, err
	}
	if err := c.ExpectTag(dcaTag); err != nil {
		return f, err
	}
	if _, err := c.U32BE(); err != nil { // comp_header_length, informational
		return f, err
	}

	if err := c.ExpectTag([]byte{0x78, 0xDA}); err != nil {
		return f, err
	}

	payloadStart := c.Offset()
	payloadLen := int(compSize) - 2
	if payloadLen < 0 {
		return f, fmt.Errorf("%w: compressed size %d too small for zlib prefix", ErrMalformed, compSize)
	}
	if _, err := c.Slice(payloadStart, payloadLen); err != nil {
		return f, err
	}

	f.UncompressedSize = uncompSize
	f.CompressedSize = compSize
	f.PayloadStart = payloadStart
	f.PayloadLen = payloadLen
	return f, nil
}

// InflateDCX parses and decompresses a DCX-framed buffer, returning the raw
// inflated bytes. The inflated length must equal the frame's declared
// UncompressedSize, or ErrMalformed is returned.
func InflateDCX(content []byte) ([]byte, error) {
	frame, err := ParseDCXFrame(content)
	if err != nil {
		return nil, err
	}

	payload := content[frame.PayloadStart : frame.PayloadStart+frame.PayloadLen]
	r := flate.NewReader(bytes.NewReader(payload))
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, int64(frame.UncompressedSize)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: inflating DCX payload: %v", ErrMalformed, err)
	}
	if uint32(len(out)) != frame.UncompressedSize {
		return nil, fmt.Errorf("%w: inflated %d bytes, expected %d", ErrMalformed, len(out), frame.UncompressedSize)
	}
	return out, nil
}
