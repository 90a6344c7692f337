package analyzer

import (
	"context"
	"fmt"

	"github.com/dftracer-utils/traceindex/pkg/pipeline/engine"
	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
)

// HighLevelMetrics is one (IOCategory, DurationBin) reduction bucket,
// the supplemented reduction target mirroring
// analyzers/pipeline/high_level_metrics.h's aggregation, trimmed to
// the two fields that reduction actually needs downstream.
type HighLevelMetrics struct {
	Category   string // IOCategory
	DurationBin string
	Count      int64
	TotalDur   int64
}

func metricsKey(cat, bin string) string {
	return cat + "\x00" + bin
}

// reduceOnePartition folds one hash-partition's records into
// HighLevelMetrics grouped by (IOCategory, DurationBin). It is the per-
// partition reduce step shared by Reduce and Analyze's plan.Plan, the
// latter applying it as the Map fn over a repartition_by_hash node's
// output.
func reduceOnePartition(part []TraceRecord) map[string]HighLevelMetrics {
	acc := make(map[string]HighLevelMetrics)
	for _, r := range part {
		cat := ToIOCategory(r)
		bin := BinDuration(r.Dur)
		key := metricsKey(cat, bin)
		m := acc[key]
		m.Category = cat
		m.DurationBin = bin
		m.Count++
		m.TotalDur += r.Dur
		acc[key] = m
	}
	return acc
}

// mergePartials folds per-partition HighLevelMetrics maps into one
// final slice, summing counts and durations per key. Reduce partitions
// by a hash of the same key, so each key comes from a single
// partition's map; the sum does not rely on that.
func mergePartials(partials []map[string]HighLevelMetrics) []HighLevelMetrics {
	merged := make(map[string]HighLevelMetrics)
	for _, acc := range partials {
		for key, m := range acc {
			total := merged[key]
			total.Category = m.Category
			total.DurationBin = m.DurationBin
			total.Count += m.Count
			total.TotalDur += m.TotalDur
			merged[key] = total
		}
	}

	out := make([]HighLevelMetrics, 0, len(merged))
	for _, m := range merged {
		out = append(out, m)
	}
	return out
}

// Reduce classifies and bins every record, then folds them into
// HighLevelMetrics grouped by (IOCategory, DurationBin). The Open
// Question decision (SPEC_FULL.md §5) keeps Reduce/GroupBy out of the
// pipeline engine core, so this is an application-level fold built on
// top of RepartitionByHash rather than a new C8 engine: records are
// hash-partitioned by their group key so each partition can be reduced
// independently and in parallel, and the partial per-partition totals
// are merged with one final sequential pass.
func Reduce(ctx context.Context, ec exec.Context, records []TraceRecord, numPartitions int) ([]HighLevelMetrics, error) {
	if numPartitions <= 0 {
		numPartitions = 1
	}

	partitions, err := engine.RepartitionByHash(ctx, ec, records, numPartitions, 0, func(r TraceRecord) []byte {
		return []byte(metricsKey(ToIOCategory(r), BinDuration(r.Dur)))
	}, true, nil)
	if err != nil {
		return nil, fmt.Errorf("partition trace records: %w", err)
	}

	partials := make([]map[string]HighLevelMetrics, len(partitions))
	err = ec.ParallelFor(ctx, len(partitions), func(p int) error {
		partials[p] = reduceOnePartition(partitions[p])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reduce trace record partitions: %w", err)
	}

	return mergePartials(partials), nil
}
