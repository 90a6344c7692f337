package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dftracer-utils/traceindex/pkg/pipeline/engine"
	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
)

func rangeSlice(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestMapPreservesOrderThreaded(t *testing.T) {
	in := rangeSlice(10_000)
	out, err := engine.Map(context.Background(), exec.Threaded{MaxWorkers: 16}, in, func(x int) int { return x * 2 })
	require.NoError(t, err)
	for i, v := range out {
		require.Equal(t, i*2, v)
	}
}

func TestFilterDeterministicOrderAndCount(t *testing.T) {
	in := rangeSlice(1_000_001) // 0..1,000,000 inclusive
	out, err := engine.Filter(context.Background(), exec.Threaded{MaxWorkers: 8}, in, func(x int) bool { return x%3 == 0 })
	require.NoError(t, err)

	expectedCount := 0
	for _, x := range in {
		if x%3 == 0 {
			expectedCount++
		}
	}
	require.Len(t, out, expectedCount)

	last := -1
	for _, v := range out {
		require.Greater(t, v, last)
		require.Zero(t, v%3)
		last = v
	}
}

func TestFlatMapPreservesOrder(t *testing.T) {
	in := rangeSlice(500)
	out, err := engine.FlatMap(context.Background(), exec.Threaded{MaxWorkers: 8}, in, func(x int) []int {
		return []int{x, x}
	})
	require.NoError(t, err)
	require.Len(t, out, 1000)
	for i, v := range out {
		require.Equal(t, i/2, v)
	}
}

func TestMapPartitionsConcatenatesInOrder(t *testing.T) {
	in := rangeSlice(97)
	out, err := engine.MapPartitions(context.Background(), exec.Threaded{MaxWorkers: 4}, in, 8, func(part []int) []string {
		s := make([]string, len(part))
		for i, v := range part {
			s[i] = string(rune('a' + v%26))
		}
		return s
	})
	require.NoError(t, err)
	require.Len(t, out, 97)
	for i, s := range out {
		require.Equal(t, string(rune('a'+i%26)), s)
	}
}

func TestRepartitionByHashConservesElementsAndOrder(t *testing.T) {
	in := rangeSlice(10_000)
	keyFn := func(x int) []byte { return []byte{byte(x), byte(x >> 8), byte(x >> 16), byte(x >> 24)} }

	partitions, err := engine.RepartitionByHash(context.Background(), exec.Threaded{MaxWorkers: 8}, in, 8, 42, keyFn, true, nil)
	require.NoError(t, err)
	require.Len(t, partitions, 8)

	total := 0
	seen := make(map[int]bool, len(in))
	for _, part := range partitions {
		total += len(part)
		last := -1
		for _, v := range part {
			require.Greater(t, v, last, "within-partition order must be preserved when stable=true")
			last = v
			require.False(t, seen[v], "element must appear in exactly one partition")
			seen[v] = true
		}
	}
	require.Equal(t, len(in), total)
}

func TestRepartitionByHashDeterministic(t *testing.T) {
	in := rangeSlice(2000)
	keyFn := func(x int) []byte { return []byte{byte(x), byte(x >> 8)} }

	p1, err := engine.RepartitionByHash(context.Background(), exec.Sequential{}, in, 8, 7, keyFn, true, nil)
	require.NoError(t, err)
	p2, err := engine.RepartitionByHash(context.Background(), exec.Sequential{}, in, 8, 7, keyFn, true, nil)
	require.NoError(t, err)
	require.Equal(t, p1, p2)
}

func TestRepartitionByHashRejectsUnstable(t *testing.T) {
	in := rangeSlice(10)
	_, err := engine.RepartitionByHash(context.Background(), exec.Sequential{}, in, 2, 1, func(x int) []byte { return []byte{byte(x)} }, false, nil)
	require.Error(t, err)
}
