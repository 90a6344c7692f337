package analyzer_test

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dftracer-utils/traceindex/pkg/analyzer"
	"github.com/dftracer-utils/traceindex/pkg/checkpoint"
	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
)

func writeGzipFile(t *testing.T, path string, lines []string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := gzip.NewWriter(f)
	for _, line := range lines {
		_, err := w.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestAnalyzerOpenAndAnalyzeEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json.gz")
	writeGzipFile(t, path, []string{
		`{"cat":"POSIX","name":"read","ts":1,"dur":5}`,
		`{"cat":"POSIX","name":"write","ts":2,"dur":50}`,
		`{"cat":"POSIX","name":"openat","ts":3,"dur":2}`,
	})

	a, err := analyzer.Open(context.Background(), path, checkpoint.Options{})
	require.NoError(t, err)
	defer a.Close()

	require.Equal(t, int64(3), a.TotalLines())

	metrics, err := a.Analyze(context.Background(), exec.Threaded{MaxWorkers: 4}, 2, 4)
	require.NoError(t, err)

	var total int64
	for _, m := range metrics {
		total += m.Count
	}
	require.Equal(t, int64(3), total)

	// Re-opening must hit the persisted, fresh index rather than rebuild.
	a2, err := analyzer.Open(context.Background(), path, checkpoint.Options{})
	require.NoError(t, err)
	defer a2.Close()
	require.Equal(t, int64(3), a2.TotalLines())
}
