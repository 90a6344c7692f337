// Package reader is C4: byte-range random access into a gzip/tar.gz
// archive using its persistent checkpoint index, decompressing only
// from the nearest preceding checkpoint instead of from the start of
// the file.
package reader

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/beam-cloud/ristretto"

	"github.com/dftracer-utils/traceindex/pkg/archivesrc"
	"github.com/dftracer-utils/traceindex/pkg/checkpoint"
	"github.com/dftracer-utils/traceindex/pkg/checkpoint/rawinflate"
	"github.com/dftracer-utils/traceindex/pkg/common"
	"github.com/dftracer-utils/traceindex/pkg/metrics"
)

// Reader serves random-access byte-range reads over one archive's
// decompressed content, given its checkpoint table.
type Reader struct {
	src         archivesrc.Source
	logicalName string
	checkpoints []common.CheckpointRecord
	meta        common.IndexMetadata

	// cache holds already-decoded byte ranges, the same local
	// chunk-cache shape the teacher keeps per storage instance
	// (CDNClipStorage.localCache) for CDN-fetched byte ranges,
	// repurposed here for ranges resumed from a checkpoint. It is
	// scoped to this Reader, not shared process-wide, so a stale
	// Reader from before an index rebuild can never serve another
	// Reader's cached bytes.
	cache *ristretto.Cache[string, []byte]
}

// New builds a Reader from an already-open source and an already
// loaded checkpoint table (spec §4, random-access reader).
// Checkpoints must be sorted ascending by UCOffset (the order
// index.Store.LoadCheckpoints returns them in).
func New(src archivesrc.Source, logicalName string, checkpoints []common.CheckpointRecord, meta common.IndexMetadata) *Reader {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e5,
		MaxCost:     64 * 1024 * 1024,
		BufferItems: 64,
	})
	if err != nil {
		panic(fmt.Sprintf("reader: failed to initialize range cache: %v", err))
	}
	return &Reader{src: src, logicalName: logicalName, checkpoints: checkpoints, meta: meta, cache: cache}
}

func rangeCacheKey(start, end int64) string {
	return fmt.Sprintf("%d:%d", start, end)
}

// TotalUncompressedSize returns the archive's total decompressed byte
// length, as recorded at index-build time.
func (r *Reader) TotalUncompressedSize() int64 {
	return r.meta.TotalUCSize
}

// resumePoint finds the checkpoint to resume decoding from for a read
// starting at off. When no real checkpoint precedes off -- always true
// for offsets before the first stored checkpoint, and for every offset
// in an archive small enough that none were ever stored -- it falls
// back to the synthetic zero-checkpoint: the true start of the raw
// DEFLATE stream, immediately after the gzip header, with no preset
// dictionary (spec §3's "synthetic zero-checkpoint is implied").
func (r *Reader) resumePoint(off int64) common.CheckpointRecord {
	if cp, ok := common.NearestCheckpoint(r.checkpoints, off); ok {
		return cp
	}
	return common.CheckpointRecord{CheckpointIdx: 0, UCOffset: 0, COffset: r.meta.HeaderLen, Bits: 0}
}

// ReadRange returns the uncompressed bytes in [start, end). end is
// silently truncated to the archive's total uncompressed size rather
// than erroring (spec §4.4, §8: "end > total_uc_size truncates to EOF
// without error"); it is still an error for start > end.
func (r *Reader) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	if start < 0 || end < start {
		return nil, common.Wrap(common.CategoryInvalidArgument, fmt.Sprintf("invalid range [%d,%d)", start, end), nil)
	}
	if end > r.meta.TotalUCSize {
		end = r.meta.TotalUCSize
	}
	if start > end {
		start = end
	}
	if start == end {
		return []byte{}, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	key := rangeCacheKey(start, end)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	cp := r.resumePoint(start)

	dict, err := checkpoint.DecompressDict(cp.DictCompressed)
	if err != nil {
		return nil, common.Wrap(common.CategoryCorruptIndex, "decompress checkpoint dictionary", err)
	}

	firstByteBuf := make([]byte, 1)
	readStart := time.Now()
	if _, err := r.src.ReadAt(firstByteBuf, cp.COffset); err != nil {
		return nil, common.Wrap(common.CategoryIoError, "read checkpoint resume byte", err)
	}

	rest := io.NewSectionReader(r.src, cp.COffset+1, r.src.Size()-(cp.COffset+1))

	want := end - start
	skip := start - cp.UCOffset

	sink := &rangeCollector{skip: skip, want: want}
	inf := rawinflate.NewInflaterResume(firstByteBuf[0], cp.Bits, cp.COffset, rest, dict, sink)

	err = inf.Run()
	metrics.Global.RecordRangeRead(r.logicalName, int64(len(sink.buf)), time.Since(readStart))
	if err != nil && err != rawinflate.ErrStop {
		return nil, common.Wrap(common.CategoryCorruptArchive, "resume decode for range read", err)
	}

	if int64(len(sink.buf)) < want {
		return nil, common.Wrap(common.CategoryCorruptArchive, "archive ended before requested range was satisfied", nil)
	}

	metrics.Global.RecordRead(int64(len(sink.buf)), false) // every decode starts a fresh inflater
	r.cache.SetWithTTL(key, sink.buf, int64(len(sink.buf)), time.Hour)
	return sink.buf, nil
}

// ReadLineBytes returns the uncompressed bytes of [start, end) widened
// to line boundaries: it starts right after the nearest preceding
// newline (or offset 0) and ends right after the next newline at or
// after end (or EOF), then reads exactly that widened span (spec §6's
// `read_line_bytes`, §4.4/§4.5, §8 E2E Scenario 3).
func (r *Reader) ReadLineBytes(ctx context.Context, start, end int64) ([]byte, error) {
	lineStart, lineEnd, err := r.ExtendToLineBoundaries(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return r.ReadRange(ctx, lineStart, lineEnd)
}

// rangeCollector discards `skip` leading bytes, then collects up to
// `want` bytes, signaling rawinflate.ErrStop the instant it has
// enough so decoding never runs past what was actually requested.
type rangeCollector struct {
	skip int64
	want int64
	buf  []byte
}

func (c *rangeCollector) Write(p []byte) (int, error) {
	n := len(p)
	if c.skip > 0 {
		if int64(n) <= c.skip {
			c.skip -= int64(n)
			return n, nil
		}
		p = p[c.skip:]
		c.skip = 0
	}

	remaining := c.want - int64(len(c.buf))
	if remaining <= 0 {
		return n, rawinflate.ErrStop
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	c.buf = append(c.buf, p...)

	if int64(len(c.buf)) >= c.want {
		return n, rawinflate.ErrStop
	}
	return n, nil
}
