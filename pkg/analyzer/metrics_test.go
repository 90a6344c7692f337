package analyzer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dftracer-utils/traceindex/pkg/analyzer"
	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
)

func TestReduceGroupsByCategoryAndBin(t *testing.T) {
	records := []analyzer.TraceRecord{
		{Name: "read", Dur: 5},
		{Name: "pread", Dur: 6},
		{Name: "write", Dur: 500_000},
		{Name: "chmod", Dur: 1},
	}

	out, err := analyzer.Reduce(context.Background(), exec.Threaded{MaxWorkers: 4}, records, 4)
	require.NoError(t, err)

	byKey := make(map[string]analyzer.HighLevelMetrics)
	for _, m := range out {
		byKey[m.Category+"|"+m.DurationBin] = m
	}

	readBucket := byKey["read|1-10us"]
	require.Equal(t, int64(2), readBucket.Count)
	require.Equal(t, int64(11), readBucket.TotalDur)

	writeBucket := byKey["write|100ms-1s"]
	require.Equal(t, int64(1), writeBucket.Count)

	metaBucket := byKey["metadata|1-10us"]
	require.Equal(t, int64(1), metaBucket.Count)
}

func TestReduceSequentialMatchesThreaded(t *testing.T) {
	var records []analyzer.TraceRecord
	for i := 0; i < 5000; i++ {
		records = append(records, analyzer.TraceRecord{Name: "read", Dur: int64(i % 1000)})
	}

	seq, err := analyzer.Reduce(context.Background(), exec.Sequential{}, records, 1)
	require.NoError(t, err)
	threaded, err := analyzer.Reduce(context.Background(), exec.Threaded{MaxWorkers: 8}, records, 8)
	require.NoError(t, err)

	total := func(ms []analyzer.HighLevelMetrics) (int64, int64) {
		var count, dur int64
		for _, m := range ms {
			count += m.Count
			dur += m.TotalDur
		}
		return count, dur
	}

	sc, sd := total(seq)
	tc, td := total(threaded)
	require.Equal(t, sc, tc)
	require.Equal(t, sd, td)
}
