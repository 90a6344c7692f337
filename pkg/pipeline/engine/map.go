// Package engine is C8: concrete operator implementations. Every
// engine takes an exec.Context so the same algorithm runs
// sequentially, threaded, or distributed without its own code
// changing; only the ordering and multi-pass structure described by
// the spec is engine-specific.
package engine

import (
	"context"

	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
)

// Map applies fn to every element independently and in place into a
// pre-sized output slice, so output order always matches input order
// regardless of which goroutine finishes first (spec §5, map
// preserves input order).
func Map[T, U any](ctx context.Context, ec exec.Context, in []T, fn func(T) U) ([]U, error) {
	out := make([]U, len(in))
	err := ec.ParallelFor(ctx, len(in), func(i int) error {
		out[i] = fn(in[i])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MapPartitions splits in into numPartitions contiguous, order
// preserving chunks, applies fn to each chunk independently, and
// concatenates the results in partition order (spec §5).
func MapPartitions[T, U any](ctx context.Context, ec exec.Context, in []T, numPartitions int, fn func([]T) []U) ([]U, error) {
	if numPartitions <= 0 {
		numPartitions = 1
	}
	bounds := partitionBounds(len(in), numPartitions)

	results := make([][]U, numPartitions)
	err := ec.ParallelFor(ctx, numPartitions, func(p int) error {
		lo, hi := bounds[p], bounds[p+1]
		results[p] = fn(in[lo:hi])
		return nil
	})
	if err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]U, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// partitionBounds divides [0,n) into numPartitions contiguous,
// as-equal-as-possible spans; bounds has numPartitions+1 entries.
func partitionBounds(n, numPartitions int) []int {
	bounds := make([]int, numPartitions+1)
	base := n / numPartitions
	rem := n % numPartitions
	offset := 0
	for p := 0; p < numPartitions; p++ {
		bounds[p] = offset
		size := base
		if p < rem {
			size++
		}
		offset += size
	}
	bounds[numPartitions] = n
	return bounds
}
