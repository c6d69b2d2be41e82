package ds

import "errors"

// Sentinel error kinds returned by the decoder stack. Every raising site
// wraps one of these with %w plus contextual detail (offending archive,
// record index, offset) so callers can both errors.Is against the kind and
// read a human message.
var (
	// ErrTruncated indicates a read past the end of the source buffer.
	ErrTruncated = errors.New("ds: truncated read")

	// ErrBadMagic indicates a fixed tag did not match what was expected.
	ErrBadMagic = errors.New("ds: bad magic")

	// ErrUnknownFlag indicates a magic_flag value outside the enumerated set.
	ErrUnknownFlag = errors.New("ds: unknown magic flag")

	// ErrMalformed indicates a structural invariant violation: a duplicated
	// size field mismatch, a non-zero record terminator, a constant mismatch,
	// or an inflate length mismatch.
	ErrMalformed = errors.New("ds: malformed archive")

	// ErrUnknownHash indicates a BHD5 record hash absent from the name-hash
	// dictionary.
	ErrUnknownHash = errors.New("ds: unknown name hash")

	// ErrUnpaired indicates a .*bdt file with no matching .*bhd file.
	ErrUnpaired = errors.New("ds: unpaired archive")

	// ErrUnknownExtension indicates a paired BDT extension outside the three
	// recognised ones (chrtpfbdt, hkxbdt, tpfbdt).
	ErrUnknownExtension = errors.New("ds: unknown archive extension")
)
