// Package common holds the data model shared by the indexer, reader,
// and pipeline packages: archive identity, checkpoint records, and the
// sentinel error taxonomy.
package common

import "sort"

// Format identifies the on-disk shape of an archive.
type Format int

const (
	FormatUnknown Format = iota
	FormatGzip
	FormatTarGz
)

func (f Format) String() string {
	switch f {
	case FormatGzip:
		return "gzip"
	case FormatTarGz:
		return "tar.gz"
	default:
		return "unknown"
	}
}

// IndexExtension returns the on-disk extension used for the persistent
// index of an archive of this format (spec §6).
func (f Format) IndexExtension() string {
	if f == FormatTarGz {
		return ".tar.idx"
	}
	return ".idx"
}

// ArchiveHandle is an immutable reference to an on-disk compressed
// file: its logical name, size, modification time, and content
// fingerprint. The fingerprint validates a cached index.
type ArchiveHandle struct {
	LogicalName string
	ByteSize    int64
	ModTimeUnix int64
	SHA256Hex   string
}

// CheckpointRecord is one entry in a single archive's checkpoint
// table, ordered by CheckpointIdx (spec §3).
type CheckpointRecord struct {
	CheckpointIdx  int64
	UCOffset       int64  // uncompressed byte offset this checkpoint applies from
	UCSize         int64  // uncompressed bytes covered until the next checkpoint (or EOF)
	COffset        int64  // compressed byte offset of the DEFLATE block start
	CSize          int64  // compressed bytes covered
	Bits           uint8  // bit offset [0,7] within the byte at COffset
	DictCompressed []byte // 32 KiB sliding window, itself gzip-compressed
	NumLines       int64  // newlines within [UCOffset, UCOffset+UCSize), plus one on the last record if the final line has no newline
}

// IndexMetadata holds the per-archive totals and build parameters
// stored alongside the checkpoint table.
type IndexMetadata struct {
	CheckpointSize int64
	TotalLines     int64
	TotalUCSize    int64

	// HeaderLen is the byte length of the archive's gzip member header,
	// i.e. the compressed offset at which the raw DEFLATE stream
	// begins. It lets the reader resume decoding from the true start of
	// the stream when no real checkpoint precedes a requested offset --
	// the synthetic zero-checkpoint case (spec §3: "a checkpoint is
	// never stored at uncompressed offset 0").
	HeaderLen int64
}

// TarMember records one member's uncompressed byte range inside a
// tar-in-gzip archive (spec §6, the tar member boundaries open
// question — resolved in SPEC_FULL.md).
type TarMember struct {
	Name          string
	UCStartOffset int64
	UCLength      int64
}

// NearestCheckpoint finds the checkpoint with the largest UCOffset <=
// wantUC using binary search, since CheckpointRecord.UCOffset is
// strictly increasing by construction (spec §3 invariants). Records
// must be sorted ascending by UCOffset; ok is false if wantUC precedes
// every checkpoint (the caller should fall back to the synthetic
// zero-checkpoint).
func NearestCheckpoint(records []CheckpointRecord, wantUC int64) (rec CheckpointRecord, ok bool) {
	if len(records) == 0 {
		return CheckpointRecord{}, false
	}

	i := sort.Search(len(records), func(i int) bool {
		return records[i].UCOffset > wantUC
	}) - 1

	if i < 0 {
		return CheckpointRecord{}, false
	}

	return records[i], true
}

// MemberAt finds the tar member covering uncompressed offset off,
// mirroring NearestCheckpoint's search but validated against the
// member's length.
func MemberAt(members []TarMember, off int64) (TarMember, bool) {
	i := sort.Search(len(members), func(i int) bool {
		return members[i].UCStartOffset > off
	}) - 1

	if i < 0 {
		return TarMember{}, false
	}

	m := members[i]
	if off >= m.UCStartOffset+m.UCLength {
		return TarMember{}, false
	}
	return m, true
}
