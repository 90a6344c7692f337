// Package checkpoint is C3: streaming a gzip archive exactly once,
// capturing raw-DEFLATE resume state at a configurable cadence, and
// producing the checkpoint table a persistent index store (C2)
// persists.
package checkpoint

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/dftracer-utils/traceindex/pkg/checkpoint/rawinflate"
	"github.com/dftracer-utils/traceindex/pkg/common"
	"github.com/dftracer-utils/traceindex/pkg/metrics"
)

// DefaultCheckpointSize is the default cadence, measured in
// uncompressed bytes between checkpoints (spec §3).
const DefaultCheckpointSize int64 = 32 * 1024 * 1024

// DefaultMaxCheckpointSize is the default hard cap on a checkpoint's
// uncompressed span (spec §6), independent of CheckpointSize's cadence
// floor: it forces a checkpoint even if the cadence target hasn't been
// reached, bounding how much a single resume has to re-decode.
const DefaultMaxCheckpointSize int64 = 512 * 1024 * 1024

// Options configures a Build call.
type Options struct {
	// CheckpointSize is the minimum number of uncompressed bytes
	// between two checkpoints. A value <= 0 uses DefaultCheckpointSize.
	CheckpointSize int64

	// MaxCheckpointSize is a hard cap on a checkpoint's uncompressed
	// span: a checkpoint is forced once this many bytes have passed
	// since the last one, even if CheckpointSize's cadence hasn't been
	// reached. A value <= 0 uses DefaultMaxCheckpointSize.
	MaxCheckpointSize int64

	// MaxParts caps the total number of checkpoints recorded,
	// regardless of CheckpointSize; 0 means unbounded. Exists so a
	// degenerate CheckpointSize can't produce an unbounded index for a
	// very large archive.
	MaxParts int64
}

func (o Options) normalized() Options {
	if o.CheckpointSize <= 0 {
		o.CheckpointSize = DefaultCheckpointSize
	}
	if o.MaxCheckpointSize <= 0 {
		o.MaxCheckpointSize = DefaultMaxCheckpointSize
	}
	return o
}

// Result is everything a checkpoint build produces for one archive.
type Result struct {
	Handle      common.ArchiveHandle
	Checkpoints []common.CheckpointRecord
	Metadata    common.IndexMetadata
}

// Build streams r (the archive's bytes from its start, e.g. a section
// reader over an archivesrc.Source) exactly once:
// computing its SHA-256 fingerprint, decompressing it, and recording a
// checkpoint every time at least opts.CheckpointSize uncompressed
// bytes have passed since the previous one.
func Build(ctx context.Context, logicalName string, size int64, modTimeUnix int64, r io.Reader, opts Options) (Result, error) {
	opts = opts.normalized()

	hasher := sha256.New()
	tee := io.TeeReader(r, hasher)
	br := bufio.NewReaderSize(tee, 64*1024)

	headerLen, err := gzipHeaderLength(br)
	if err != nil {
		return Result{}, common.Wrap(common.CategoryCorruptArchive, "parse gzip header for "+logicalName, err)
	}

	counter := &lineCountingWriter{}

	var pending []common.CheckpointRecord
	var lastUC int64

	inf := rawinflate.NewInflater(br, counter)
	inf.SetBoundaryHook(func(b rawinflate.BlockBoundary) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if b.IsFirst {
			// The very first DEFLATE block boundary is always at
			// UOffset 0; a checkpoint is never stored there (spec §3,
			// §4.3) since decoding can always resume from the true
			// start of the stream instead.
			lastUC = b.UOffset
			return nil
		}

		span := b.UOffset - lastUC
		if span < opts.CheckpointSize && span < opts.MaxCheckpointSize {
			return nil
		}
		if opts.MaxParts > 0 && int64(len(pending)) >= opts.MaxParts {
			return nil
		}

		dictCompressed, err := compressDict(b.Dict)
		if err != nil {
			return err
		}

		pending = append(pending, common.CheckpointRecord{
			CheckpointIdx:  int64(len(pending)),
			UCOffset:       b.UOffset,
			COffset:        headerLen + b.COffset,
			Bits:           b.Bits,
			DictCompressed: dictCompressed,
		})
		lastUC = b.UOffset
		metrics.Global.RecordCheckpointBuilt()
		return nil
	})

	if err := inf.Run(); err != nil {
		return Result{}, common.Wrap(common.CategoryCorruptArchive, "inflate "+logicalName, err)
	}

	// Drain any trailing gzip trailer/multi-member bytes into the
	// hasher so the fingerprint covers the whole file even though
	// inflate itself stopped at the final DEFLATE block.
	if _, err := io.Copy(io.Discard, tee); err != nil && err != io.EOF {
		return Result{}, common.Wrap(common.CategoryIoError, "drain trailer for "+logicalName, err)
	}

	totalUC := counter.total
	finalizeCoverage(pending, totalUC, size)

	fillLineCounts(pending, counter.newlineOffsets, totalUC)

	// An unterminated final line still counts as a line.
	totalLines := counter.lines
	if n := len(counter.newlineOffsets); totalUC > 0 && (n == 0 || counter.newlineOffsets[n-1] != totalUC-1) {
		totalLines++
		if len(pending) > 0 {
			pending[len(pending)-1].NumLines++
		}
	}

	handle := common.ArchiveHandle{
		LogicalName: logicalName,
		ByteSize:    size,
		ModTimeUnix: modTimeUnix,
		SHA256Hex:   hex.EncodeToString(hasher.Sum(nil)),
	}

	return Result{
		Handle:      handle,
		Checkpoints: pending,
		Metadata: common.IndexMetadata{
			CheckpointSize: opts.CheckpointSize,
			TotalLines:     totalLines,
			TotalUCSize:    totalUC,
			HeaderLen:      headerLen,
		},
	}, nil
}

// finalizeCoverage fills in each checkpoint's UCSize/CSize now that
// every checkpoint's starting offset, and the stream's final extent,
// are known.
func finalizeCoverage(records []common.CheckpointRecord, totalUC, totalC int64) {
	for i := range records {
		if i+1 < len(records) {
			records[i].UCSize = records[i+1].UCOffset - records[i].UCOffset
			records[i].CSize = records[i+1].COffset - records[i].COffset
		} else {
			records[i].UCSize = totalUC - records[i].UCOffset
			if totalC > records[i].COffset {
				records[i].CSize = totalC - records[i].COffset
			}
		}
	}
}

// fillLineCounts assigns each checkpoint the number of newlines within
// its [UCOffset, UCOffset+UCSize) span using the recorded newline
// positions.
func fillLineCounts(records []common.CheckpointRecord, newlineOffsets []int64, totalUC int64) {
	for i := range records {
		start := records[i].UCOffset
		end := start + records[i].UCSize
		if i+1 == len(records) {
			end = totalUC
		}
		count := int64(0)
		for _, off := range newlineOffsets {
			if off >= start && off < end {
				count++
			}
		}
		records[i].NumLines = count
	}
}

// lineCountingWriter discards bytes but remembers the offset of every
// newline seen, since checkpoint building only needs line statistics,
// not a materialized copy of the decompressed content (the
// random-access reader reconstructs content on demand instead).
type lineCountingWriter struct {
	total          int64
	lines          int64
	newlineOffsets []int64
}

func (w *lineCountingWriter) Write(p []byte) (int, error) {
	for i, b := range p {
		if b == '\n' {
			w.newlineOffsets = append(w.newlineOffsets, w.total+int64(i))
			w.lines++
		}
	}
	w.total += int64(len(p))
	return len(p), nil
}
