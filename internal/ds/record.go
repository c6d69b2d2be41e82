package ds

// ArchiveRecord describes a single packed file within an archive: either a
// BHD5/BHF3 index entry pointing into a paired BDT, or a BND3 entry pointing
// into the same buffer. PayloadOffset is absolute within whichever buffer the
// reader that produced the record reads from.
type ArchiveRecord struct {
	Name          string
	PayloadOffset uint32
	PayloadSize   uint32

	// FileID is parsed from BND3/BHF3 records but not otherwise used by this
	// decoder; it is preserved for downstream tooling (distilled spec Open
	// Questions).
	FileID uint32

	// NRooted is set when Name began with the "N:"/"n:" prefix (BND3 only);
	// Name has already had the prefix stripped.
	NRooted bool
}

// ArchiveIndex is an ordered collection of ArchiveRecord values. Insertion
// order is preserved for deterministic extraction; if a name repeats, both
// records are kept, and extracting in append order leaves the later record's
// bytes on disk.
type ArchiveIndex struct {
	records []ArchiveRecord
}

// Append adds a record to the index.
func (idx *ArchiveIndex) Append(r ArchiveRecord) {
	idx.records = append(idx.records, r)
}

// Records returns the records in insertion order.
func (idx *ArchiveIndex) Records() []ArchiveRecord {
	return idx.records
}

// Len returns the number of records in the index.
func (idx *ArchiveIndex) Len() int {
	return len(idx.records)
}
