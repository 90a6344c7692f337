package reader

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dftracer-utils/traceindex/pkg/checkpoint"
	"github.com/dftracer-utils/traceindex/pkg/checkpoint/rawinflate"
	"github.com/dftracer-utils/traceindex/pkg/common"
)

// TotalLines returns the archive's total line count; an unterminated
// final line counts as a line.
func (r *Reader) TotalLines() int64 {
	return r.meta.TotalLines
}

// cumulativeLinesBefore returns, for checkpoint index i, the number of
// '\n' bytes strictly before that checkpoint's UCOffset -- equivalently,
// the 0-indexed line number currently open at that offset.
func (r *Reader) cumulativeLinesBefore(i int) int64 {
	// Newlines before the first stored checkpoint belong to no record's
	// NumLines: they are the part of TotalLines the records leave over.
	cum := r.meta.TotalLines
	for j := range r.checkpoints {
		cum -= r.checkpoints[j].NumLines
	}
	for j := 0; j < i; j++ {
		cum += r.checkpoints[j].NumLines
	}
	return cum
}

// checkpointForLine finds the latest checkpoint whose cumulative line
// count is below wantLine, so the start of wantLine lies after it and
// decoding from it forward only ever needs to skip newlines, never
// seek backwards. When no stored
// checkpoint covers wantLine -- including the case where the archive
// has none at all -- it falls back to the synthetic zero-checkpoint
// (the true start of the stream), same as resumePoint does for byte
// offsets.
func (r *Reader) checkpointForLine(wantLine int64) (common.CheckpointRecord, int64, bool) {
	if len(r.checkpoints) == 0 {
		return r.resumePoint(0), 0, true
	}

	i := sort.Search(len(r.checkpoints), func(i int) bool {
		return r.cumulativeLinesBefore(i) >= wantLine
	}) - 1
	if i < 0 {
		return r.resumePoint(0), 0, true
	}
	return r.checkpoints[i], r.cumulativeLinesBefore(i), true
}

// ReadLines returns the raw bytes of the half-open, 0-indexed line
// range [startLine, endLine), each line including its trailing
// delimiter (spec §4, C5). If the archive's final line lacks a
// trailing newline and endLine reaches the last line, a '\n' is
// synthesized so the result always has one delimiter per requested
// line (the trailing-newline-policy decision).
func (r *Reader) ReadLines(ctx context.Context, startLine, endLine int64) ([]byte, error) {
	if startLine < 0 || endLine < startLine {
		return nil, common.Wrap(common.CategoryInvalidArgument, fmt.Sprintf("invalid line range [%d,%d)", startLine, endLine), nil)
	}
	if endLine > r.meta.TotalLines {
		return nil, common.Wrap(common.CategoryInvalidArgument, fmt.Sprintf("end line %d exceeds total lines %d", endLine, r.meta.TotalLines), nil)
	}
	if startLine == endLine {
		return []byte{}, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cp, cumBefore, ok := r.checkpointForLine(startLine)
	if !ok {
		return nil, common.Wrap(common.CategoryCorruptIndex, "no checkpoint available for line lookup", nil)
	}

	dict, err := checkpoint.DecompressDict(cp.DictCompressed)
	if err != nil {
		return nil, common.Wrap(common.CategoryCorruptIndex, "decompress checkpoint dictionary", err)
	}

	firstByteBuf := make([]byte, 1)
	if _, err := r.src.ReadAt(firstByteBuf, cp.COffset); err != nil {
		return nil, common.Wrap(common.CategoryIoError, "read checkpoint resume byte", err)
	}
	rest := io.NewSectionReader(r.src, cp.COffset+1, r.src.Size()-(cp.COffset+1))

	collector := &lineCollector{
		skipNewlines: startLine - cumBefore,
		takeNewlines: endLine - startLine,
	}
	inf := rawinflate.NewInflaterResume(firstByteBuf[0], cp.Bits, cp.COffset, rest, dict, collector)

	runErr := inf.Run()
	if runErr != nil && runErr != rawinflate.ErrStop {
		return nil, common.Wrap(common.CategoryCorruptArchive, "resume decode for line read", runErr)
	}

	if !collector.done {
		if collector.skipNewlines > 0 {
			return nil, common.Wrap(common.CategoryCorruptIndex, "archive ended before reaching requested start line", nil)
		}
		if endLine == r.meta.TotalLines && (len(collector.buf) == 0 || collector.buf[len(collector.buf)-1] != '\n') {
			collector.buf = append(collector.buf, '\n')
		} else if collector.seenAfterSkip < collector.takeNewlines {
			return nil, common.Wrap(common.CategoryCorruptArchive, "archive ended before requested line range was satisfied", nil)
		}
	}

	return collector.buf, nil
}

// ExtendToLineBoundaries widens [start, end) in byte-offset space so
// it starts right after the nearest preceding newline (or at 0) and
// ends right after the next newline at or after end (or at EOF),
// matching C5's "extend byte ranges to line boundaries" contract. It
// does this by translating through line numbers rather than scanning
// bytes directly, reusing the same checkpoint machinery as ReadLines.
func (r *Reader) ExtendToLineBoundaries(ctx context.Context, start, end int64) (int64, int64, error) {
	if start < 0 || end < start {
		return 0, 0, common.Wrap(common.CategoryInvalidArgument, fmt.Sprintf("invalid byte range [%d,%d)", start, end), nil)
	}
	if end > r.meta.TotalUCSize {
		end = r.meta.TotalUCSize
	}
	if start > end {
		start = end
	}

	startLine, err := r.lineContaining(ctx, start)
	if err != nil {
		return 0, 0, err
	}
	endLine, err := r.lineContaining(ctx, end)
	if err != nil {
		return 0, 0, err
	}
	if end > 0 {
		endLine++ // include the line end falls inside
	}
	if endLine > r.meta.TotalLines {
		endLine = r.meta.TotalLines
	}

	lineStart, err := r.byteOffsetOfLine(ctx, startLine)
	if err != nil {
		return 0, 0, err
	}
	lineEnd, err := r.byteOffsetOfLine(ctx, endLine)
	if err != nil {
		return 0, 0, err
	}
	return lineStart, lineEnd, nil
}

// lineContaining returns the 0-indexed line number whose span
// contains byte offset off. For off==TotalUCSize it is the number of
// newlines in the archive: TotalLines when the archive ends with a
// newline, otherwise the index of the unterminated final line.
func (r *Reader) lineContaining(ctx context.Context, off int64) (int64, error) {
	cp := r.resumePoint(off)
	before := int64(0)
	if cp.UCOffset > 0 { // a stored checkpoint, not the synthetic start
		before = r.cumulativeLinesBefore(int(cp.CheckpointIdx))
	}

	if off == cp.UCOffset {
		return before, nil
	}

	bytes, err := r.ReadRange(ctx, cp.UCOffset, off)
	if err != nil {
		return 0, err
	}
	newlines := int64(0)
	for _, b := range bytes {
		if b == '\n' {
			newlines++
		}
	}
	return before + newlines, nil
}

// byteOffsetOfLine returns the byte offset at which 0-indexed line
// lineNo begins (or TotalUCSize if lineNo==TotalLines).
func (r *Reader) byteOffsetOfLine(ctx context.Context, lineNo int64) (int64, error) {
	if lineNo >= r.meta.TotalLines {
		return r.meta.TotalUCSize, nil
	}
	if lineNo == 0 {
		return 0, nil
	}

	out, err := r.ReadLines(ctx, 0, lineNo)
	if err != nil {
		return 0, err
	}
	return int64(len(out)), nil
}

// lineCollector discards bytes until skipNewlines newlines have been
// seen, then collects bytes (including the delimiter) until
// takeNewlines further newlines have been seen.
type lineCollector struct {
	skipNewlines int64
	takeNewlines int64
	seenAfterSkip int64
	buf          []byte
	done         bool
}

func (c *lineCollector) Write(p []byte) (int, error) {
	n := len(p)
	for _, b := range p {
		if c.skipNewlines > 0 {
			if b == '\n' {
				c.skipNewlines--
			}
			continue
		}
		c.buf = append(c.buf, b)
		if b == '\n' {
			c.seenAfterSkip++
			if c.seenAfterSkip >= c.takeNewlines {
				c.done = true
				return n, rawinflate.ErrStop
			}
		}
	}
	return n, nil
}
