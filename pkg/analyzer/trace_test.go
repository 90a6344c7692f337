package analyzer_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dftracer-utils/traceindex/pkg/analyzer"
	"github.com/dftracer-utils/traceindex/pkg/checkpoint"
	"github.com/dftracer-utils/traceindex/pkg/reader"
)

type memSource struct {
	data []byte
	mod  time.Time
}

func (m *memSource) Size() int64        { return int64(len(m.data)) }
func (m *memSource) ModTime() time.Time { return m.mod }
func (m *memSource) Close() error       { return nil }
func (m *memSource) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(m.data).ReadAt(p, off)
}

func gzipOf(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func buildTraceReader(t *testing.T, raw []byte) *reader.Reader {
	t.Helper()
	data := gzipOf(t, raw)
	src := &memSource{data: data, mod: time.Now()}

	result, err := checkpoint.Build(context.Background(), "trace.json.gz", int64(len(data)), time.Now().Unix(), bytes.NewReader(data), checkpoint.Options{})
	require.NoError(t, err)

	return reader.New(src, "trace.json.gz", result.Checkpoints, result.Metadata)
}

func TestToIOCategory(t *testing.T) {
	require.Equal(t, "read", analyzer.ToIOCategory(analyzer.TraceRecord{Name: "read"}))
	require.Equal(t, "write", analyzer.ToIOCategory(analyzer.TraceRecord{Name: "pwrite64"}))
	require.Equal(t, "metadata", analyzer.ToIOCategory(analyzer.TraceRecord{Name: "chmod"}))
	require.Equal(t, "other", analyzer.ToIOCategory(analyzer.TraceRecord{Name: "mmap"}))
}

func TestBinDuration(t *testing.T) {
	require.Equal(t, "<1us", analyzer.BinDuration(0))
	require.Equal(t, "1-10us", analyzer.BinDuration(5))
	require.Equal(t, "100ms-1s", analyzer.BinDuration(500_000))
	require.Equal(t, ">1s", analyzer.BinDuration(5_000_000))
}

func TestReadJSONLines(t *testing.T) {
	raw := []byte(
		`{"cat":"POSIX","name":"read","ts":1,"dur":5}` + "\n" +
			`{"cat":"POSIX","name":"write","ts":2,"dur":50}` + "\n" +
			`{"cat":"POSIX","name":"close","ts":3,"dur":1}` + "\n",
	)

	r := buildTraceReader(t, raw)

	recs, err := analyzer.ReadJSONLines(context.Background(), r, 0, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, "read", recs[0].Name)
	require.Equal(t, int64(5), recs[0].Dur)
	require.Equal(t, "close", recs[2].Name)
}
