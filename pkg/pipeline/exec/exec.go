// Package exec is C7: pluggable execution contexts built around a
// single primitive, ParallelFor(n, body), so every engine in C8 can be
// written once against the Context interface and run sequentially,
// threaded, or (simulated) distributed without change.
package exec

import (
	"context"
	"fmt"
	"sync"
)

// Context runs n independent units of work, indexed 0..n-1, and
// reports the first error any of them returns (others still run to
// completion; this package makes no cancellation guarantee beyond
// that, matching spec §7's "no cancellation" execution semantics).
type Context interface {
	ParallelFor(ctx context.Context, n int, body func(i int) error) error
	Rank() int
	NumRanks() int
}

// Sequential runs every iteration on the calling goroutine, in order.
// It is the reference implementation every engine's ordering
// invariant is checked against.
type Sequential struct{}

func (Sequential) ParallelFor(ctx context.Context, n int, body func(i int) error) error {
	var firstErr error
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := body(i); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (Sequential) Rank() int     { return 0 }
func (Sequential) NumRanks() int { return 1 }

// Threaded runs iterations across a bounded worker pool: a buffered
// channel of size maxWorkers gates concurrency, and a WaitGroup joins
// all iterations before ParallelFor returns, the same shape the
// teacher package's fast OCI layer indexer uses for its worker pool.
type Threaded struct {
	MaxWorkers int
}

func (t Threaded) ParallelFor(ctx context.Context, n int, body func(i int) error) error {
	workers := t.MaxWorkers
	if workers <= 0 {
		workers = 1
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := body(idx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	return firstErr
}

func (Threaded) Rank() int     { return 0 }
func (Threaded) NumRanks() int { return 1 }

// Distributed simulates NumRanks independent workers, each running
// its share of the index range through an inner Threaded context, the
// way the teacher's concurrency primitives compose when layered
// (spec §7 treats real cross-process transport as out of scope; this
// context exists so the planner's interface doesn't special-case the
// distributed case).
type Distributed struct {
	Ranks          int
	WorkersPerRank int
}

func (d Distributed) ParallelFor(ctx context.Context, n int, body func(i int) error) error {
	ranks := d.Ranks
	if ranks <= 0 {
		ranks = 1
	}

	inner := Threaded{MaxWorkers: d.WorkersPerRank}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for r := 0; r < ranks; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			lo, hi := d.shardBounds(n, ranks, rank)
			if lo >= hi {
				return
			}
			err := inner.ParallelFor(ctx, hi-lo, func(i int) error {
				return body(lo + i)
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("rank %d: %w", rank, err)
				}
				mu.Unlock()
			}
		}(r)
	}

	wg.Wait()
	return firstErr
}

func (d Distributed) shardBounds(n, ranks, rank int) (int, int) {
	base := n / ranks
	rem := n % ranks
	lo := rank*base + min(rank, rem)
	hi := lo + base
	if rank < rem {
		hi++
	}
	return lo, hi
}

func (d Distributed) Rank() int     { return 0 }
func (d Distributed) NumRanks() int { return max(d.Ranks, 1) }
