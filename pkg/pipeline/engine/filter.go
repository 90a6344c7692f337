package engine

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
)

// Filter keeps only elements for which pred returns true, preserving
// their relative input order, via the three-pass algorithm spec §5
// requires for a stable parallel filter:
//
//  1. evaluate pred for every element in parallel into a keep-bit array
//  2. sequential exclusive prefix sum over the keep bits, giving each
//     kept element its final output index
//  3. parallel scatter of kept elements into the output slice
//
// Passes 1 and 3 are where parallelism pays for itself; pass 2 is a
// single sequential scan too cheap to parallelize and whose result
// every pass-3 worker depends on.
func Filter[T any](ctx context.Context, ec exec.Context, in []T, pred func(T) bool) ([]T, error) {
	n := len(in)
	keep := bitset.New(uint(n))
	var keepMu sync.Mutex // neighbouring indices share a bitset word

	err := ec.ParallelFor(ctx, n, func(i int) error {
		if pred(in[i]) {
			keepMu.Lock()
			keep.Set(uint(i))
			keepMu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	offsets := make([]int, n+1)
	for i := 0; i < n; i++ {
		offsets[i+1] = offsets[i]
		if keep.Test(uint(i)) {
			offsets[i+1]++
		}
	}
	total := offsets[n]

	out := make([]T, total)
	err = ec.ParallelFor(ctx, n, func(i int) error {
		if keep.Test(uint(i)) {
			out[offsets[i]] = in[i]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
