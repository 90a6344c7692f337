// Package analyzer is C10: a thin binding that reads JSON-lines trace
// records through the line-aware reader (C5), classifies and bins
// them, and reduces them into high-level metrics through the typed
// pipeline engine (C6-C9). It exists to give the indexer and pipeline
// packages a concrete end-to-end consumer, mirroring (in miniature)
// original_source's analyzers pipeline.
package analyzer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/dftracer-utils/traceindex/pkg/common"
	"github.com/dftracer-utils/traceindex/pkg/reader"
)

// TraceRecord is one event from a dftracer-style JSON-lines trace.
type TraceRecord struct {
	Cat  string `json:"cat"`
	Name string `json:"name"`
	TS   int64  `json:"ts"`  // microseconds since trace start
	Dur  int64  `json:"dur"` // microseconds
}

// ReadJSONLines reads the 0-indexed line range [startLine, endLine)
// through r and parses each line as one TraceRecord, mirroring
// reader_impl.h's read_json_lines: a window over the trace expressed
// in line numbers, not byte offsets, since every trace line is exactly
// one JSON record.
func ReadJSONLines(ctx context.Context, r *reader.Reader, startLine, endLine int64) ([]TraceRecord, error) {
	raw, err := r.ReadLines(ctx, startLine, endLine)
	if err != nil {
		return nil, err
	}

	var records []TraceRecord
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec TraceRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, common.Wrap(common.CategoryCorruptArchive, "parse trace record", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, common.Wrap(common.CategoryIoError, "scan trace lines", err)
	}
	return records, nil
}

// posixMetadataFunctions mirrors original_source's
// POSIX_METADATA_FUNCTIONS set: syscalls that only touch filesystem
// metadata, never file content.
var posixMetadataFunctions = map[string]bool{
	"access": true, "chmod": true, "chown": true, "fchmod": true, "fchown": true,
	"link": true, "unlink": true, "rename": true, "mkdir": true, "rmdir": true,
	"symlink": true, "readlink": true, "truncate": true, "ftruncate": true,
	"utime": true, "utimes": true, "futimes": true, "statfs": true, "fstatfs": true,
}

// posixIOCatMapping mirrors derive_io_cat.cpp's POSIX_IO_CAT_MAPPING.
var posixIOCatMapping = map[string]string{
	"read": "read", "pread": "read", "pread64": "read", "readv": "read", "preadv": "read",
	"write": "write", "pwrite": "write", "pwrite64": "write", "writev": "write", "pwritev": "write",
	"open": "open", "open64": "open", "openat": "open",
	"close":  "close",
	"stat":   "stat", "lstat": "stat", "fstat": "stat", "__xstat64": "stat", "__lxstat64": "stat",
}

// ToIOCategory classifies a trace record's function name into a
// coarse I/O category, mirroring derive_io_cat.cpp: metadata-only
// syscalls first, then the explicit read/write/open/close/stat
// mapping, falling back to "other".
func ToIOCategory(rec TraceRecord) string {
	name := rec.Name
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}

	if posixMetadataFunctions[name] {
		return "metadata"
	}
	if cat, ok := posixIOCatMapping[name]; ok {
		return cat
	}
	return "other"
}

// durationBinBounds and durationBinLabels mirror bins.cpp's log-scale
// bucketing, applied to event duration instead of transfer size: each
// bound is the upper (exclusive) edge of the bin in microseconds.
var durationBinBounds = []int64{1, 10, 100, 1_000, 10_000, 100_000, 1_000_000}
var durationBinLabels = []string{
	"<1us", "1-10us", "10-100us", "100us-1ms", "1-10ms", "10-100ms", "100ms-1s", ">1s",
}

// BinDuration assigns dur (in microseconds) to a log-scale bucket
// label, mirroring bins.cpp's upper_bound-based placement for size
// bins.
func BinDuration(dur int64) string {
	for i, bound := range durationBinBounds {
		if dur < bound {
			return durationBinLabels[i]
		}
	}
	return durationBinLabels[len(durationBinLabels)-1]
}
