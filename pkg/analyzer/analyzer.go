package analyzer

import (
	"context"
	"sync"

	"github.com/dftracer-utils/traceindex/pkg/checkpoint"
	"github.com/dftracer-utils/traceindex/pkg/index"
	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
	"github.com/dftracer-utils/traceindex/pkg/pipeline/plan"
	"github.com/dftracer-utils/traceindex/pkg/reader"
)

// Analyzer binds an archive's checkpoint index (C1-C3), its
// random-access line reader (C4-C5), and the metrics reduction (C9-C10)
// into one entry point: given a trace archive path, produce its
// high-level metrics.
type Analyzer struct {
	handle *index.Handle
	reader *reader.Reader
}

// Open ensures archivePath's index exists and is fresh, then wraps it
// in a Reader ready to serve JSON-line trace reads.
func Open(ctx context.Context, archivePath string, opts checkpoint.Options) (*Analyzer, error) {
	h, err := index.EnsureIndex(ctx, archivePath, opts)
	if err != nil {
		return nil, err
	}
	r := reader.New(h.Source, archivePath, h.Checkpoints, h.Metadata)
	return &Analyzer{handle: h, reader: r}, nil
}

// Close releases the underlying archive source.
func (a *Analyzer) Close() error {
	return a.handle.Source.Close()
}

// TotalLines returns the archive's total line count.
func (a *Analyzer) TotalLines() int64 {
	return a.reader.TotalLines()
}

// Analyze reads the whole archive in batchLines-sized line windows and
// folds the resulting trace records into HighLevelMetrics, built as one
// plan.Plan: source batches, map each batch to its parsed records,
// flatten, repartition by metrics key, reduce each partition. Running
// it through Plan.Run(ctx, ec) is what makes the planner (C9) actually
// drive the read-and-reduce pipeline end to end, rather than the
// analyzer orchestrating engine calls on its own.
func (a *Analyzer) Analyze(ctx context.Context, ec exec.Context, batchLines int64, numPartitions int) ([]HighLevelMetrics, error) {
	if batchLines <= 0 {
		batchLines = 100_000
	}
	if numPartitions <= 0 {
		numPartitions = 1
	}

	total := a.reader.TotalLines()
	var batches [][2]int64
	for start := int64(0); start < total; start += batchLines {
		end := start + batchLines
		if end > total {
			end = total
		}
		batches = append(batches, [2]int64{start, end})
	}

	var mu sync.Mutex
	var readErr error

	p := plan.New()
	srcID := plan.AddSource(p, batches)
	recordsID := plan.AddMap(p, srcID, func(b [2]int64) []TraceRecord {
		recs, err := ReadJSONLines(ctx, a.reader, b[0], b[1])
		if err != nil {
			mu.Lock()
			if readErr == nil {
				readErr = err
			}
			mu.Unlock()
			return nil
		}
		return recs
	})
	flatID := plan.AddFlatMap(p, recordsID, func(recs []TraceRecord) []TraceRecord { return recs })
	repID, err := plan.AddRepartitionByHash(p, flatID, numPartitions, 0, func(r TraceRecord) []byte {
		return []byte(metricsKey(ToIOCategory(r), BinDuration(r.Dur)))
	}, true)
	if err != nil {
		return nil, err
	}
	// RepartitionByHash's output is numPartitions boxed []TraceRecord
	// elements, so this Map's per-element fn is really "reduce one
	// partition" -- engine.Map's ParallelFor(n=numPartitions, ...)
	// parallelizes the reduce across partitions for free.
	reduceID := plan.AddMap(p, repID, reduceOnePartition)
	collectID := plan.AddCollect(p, reduceID)

	results, err := p.Run(ctx, ec)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	rerr := readErr
	mu.Unlock()
	if rerr != nil {
		return nil, rerr
	}

	partials, err := plan.Get[map[string]HighLevelMetrics](results, collectID)
	if err != nil {
		return nil, err
	}
	return mergePartials(partials), nil
}
