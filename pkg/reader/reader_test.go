package reader_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

func buildReader(t *testing.T, raw []byte, checkpointSize int64) (*reader.Reader, []byte) {
	t.Helper()
	data := gzipOf(t, raw)
	src := &memSource{data: data, mod: time.Now()}

	result, err := checkpoint.Build(context.Background(), "test.gz", int64(len(data)), time.Now().Unix(), bytes.NewReader(data), checkpoint.Options{CheckpointSize: checkpointSize})
	require.NoError(t, err)

	return reader.New(src, "test.gz", result.Checkpoints, result.Metadata), raw
}

func TestReadRangeSmall(t *testing.T) {
	r, raw := buildReader(t, []byte("alpha\nbeta\ngamma\n"), 0)

	got, err := r.ReadRange(context.Background(), 6, 16)
	require.NoError(t, err)
	require.Equal(t, string(raw[6:16]), string(got))
}

func TestReadLinesSmall(t *testing.T) {
	r, _ := buildReader(t, []byte("alpha\nbeta\ngamma\n"), 0)

	got, err := r.ReadLines(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Equal(t, "beta\ngamma\n", string(got))
}

func TestReadLinesTrailingNewlineSynthesis(t *testing.T) {
	r, _ := buildReader(t, []byte("aaa\nbbb\nccc"), 0)

	got, err := r.ReadLines(context.Background(), 2, 3)
	require.NoError(t, err)
	require.Equal(t, "ccc\n", string(got))
}

func TestReadRangeAcrossCheckpoints(t *testing.T) {
	// Checkpoints only sit on DEFLATE block boundaries; numbered lines
	// make compress/gzip emit many blocks, where one repeated line would
	// compress into a single block. The read span covers several of them.
	var raw bytes.Buffer
	for i := 0; raw.Len() < 4*1024*1024; i++ {
		fmt.Fprintf(&raw, "line %d the quick brown fox jumps over the lazy dog\n", i)
	}
	data := raw.Bytes()

	r, _ := buildReader(t, data, 256*1024)

	start := int64(1_000_000)
	end := start + 2_000_000
	got, err := r.ReadRange(context.Background(), start, end)
	require.NoError(t, err)
	require.Equal(t, string(data[start:end]), string(got))
}

func TestReadRangeEmpty(t *testing.T) {
	r, _ := buildReader(t, []byte("one\ntwo\n"), 0)
	got, err := r.ReadRange(context.Background(), 3, 3)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestReadRangeTruncatesToEOF(t *testing.T) {
	r, raw := buildReader(t, []byte("one\ntwo\n"), 0)
	got, err := r.ReadRange(context.Background(), 0, 1000)
	require.NoError(t, err)
	require.Equal(t, string(raw), string(got))
}

func TestReadLineBytesExtendsToLineBoundaries(t *testing.T) {
	r, _ := buildReader(t, []byte("aaa\nbbb\nccc\n"), 0)

	got, err := r.ReadLineBytes(context.Background(), 5, 6)
	require.NoError(t, err)
	require.Equal(t, "bbb\n", string(got))
}
