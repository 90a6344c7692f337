package engine

import (
	"context"

	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
)

// FlatMap applies fn to every element in parallel, then flattens the
// per-element result slices into one output preserving input order
// (spec §5): first pass produces each element's expansion and its
// count, a sequential prefix sum over those counts gives every
// expansion its destination range, and a parallel scatter copies each
// expansion into that range.
func FlatMap[T, U any](ctx context.Context, ec exec.Context, in []T, fn func(T) []U) ([]U, error) {
	n := len(in)
	expansions := make([][]U, n)

	err := ec.ParallelFor(ctx, n, func(i int) error {
		expansions[i] = fn(in[i])
		return nil
	})
	if err != nil {
		return nil, err
	}

	offsets := make([]int, n+1)
	for i := 0; i < n; i++ {
		offsets[i+1] = offsets[i] + len(expansions[i])
	}
	total := offsets[n]

	out := make([]U, total)
	err = ec.ParallelFor(ctx, n, func(i int) error {
		copy(out[offsets[i]:offsets[i+1]], expansions[i])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
