package checkpoint_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dftracer-utils/traceindex/pkg/checkpoint"
)

func gzipOf(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestBuildSmallArchive(t *testing.T) {
	raw := []byte("alpha\nbeta\ngamma\n")
	data := gzipOf(t, raw)

	result, err := checkpoint.Build(context.Background(), "small.pfw.gz", int64(len(data)), time.Now().Unix(), bytes.NewReader(data), checkpoint.Options{})
	require.NoError(t, err)

	assert := require.New(t)
	assert.Equal(int64(3), result.Metadata.TotalLines)
	assert.Equal(int64(len(raw)), result.Metadata.TotalUCSize)

	sum := sha256.Sum256(data)
	assert.Equal(hex.EncodeToString(sum[:]), result.Handle.SHA256Hex)

	// A checkpoint is never stored at uncompressed offset 0 (spec §3,
	// §4.3): a small, single-block archive therefore produces zero
	// non-synthetic checkpoints, reconstructed at read time instead.
	require.Len(t, result.Checkpoints, 0)
	require.Greater(t, result.Metadata.HeaderLen, int64(0))
}

func TestBuildMultiCheckpoint(t *testing.T) {
	// 8MiB of numbered lines with a tiny checkpoint cadence forces
	// several checkpoints, exercising cadence clamping and
	// multi-checkpoint coverage accounting. Checkpoints only sit on
	// DEFLATE block boundaries: the line numbers make compress/gzip
	// emit many blocks, where one repeated line would compress into a
	// single block.
	var raw bytes.Buffer
	for i := 0; raw.Len() < 8*1024*1024; i++ {
		fmt.Fprintf(&raw, "line %d the quick brown fox jumps over the lazy dog\n", i)
	}
	data := gzipOf(t, raw.Bytes())

	result, err := checkpoint.Build(context.Background(), "multi.pfw.gz", int64(len(data)), time.Now().Unix(), bytes.NewReader(data), checkpoint.Options{CheckpointSize: 512 * 1024})
	require.NoError(t, err)

	require.Greater(t, len(result.Checkpoints), 1)

	var totalUC int64
	for i, c := range result.Checkpoints {
		require.Equal(t, int64(i), c.CheckpointIdx)
		require.GreaterOrEqual(t, c.UCSize, int64(0))
		totalUC += c.UCSize
	}
	// Stored checkpoints cover everything from the first one onward; the
	// prefix before it is served from the synthetic zero-checkpoint.
	require.Equal(t, result.Metadata.TotalUCSize-result.Checkpoints[0].UCOffset, totalUC)

	for i := 1; i < len(result.Checkpoints); i++ {
		require.Greater(t, result.Checkpoints[i].UCOffset, result.Checkpoints[i-1].UCOffset)
		require.NotEmpty(t, result.Checkpoints[i].DictCompressed)
	}
}

func TestBuildIdempotentRebuild(t *testing.T) {
	raw := []byte("one\ntwo\nthree\nfour\n")
	data := gzipOf(t, raw)

	r1, err := checkpoint.Build(context.Background(), "idem.pfw.gz", int64(len(data)), 100, bytes.NewReader(data), checkpoint.Options{})
	require.NoError(t, err)
	r2, err := checkpoint.Build(context.Background(), "idem.pfw.gz", int64(len(data)), 100, bytes.NewReader(data), checkpoint.Options{})
	require.NoError(t, err)

	require.Equal(t, r1.Handle, r2.Handle)
	require.Equal(t, r1.Metadata, r2.Metadata)
	require.Equal(t, len(r1.Checkpoints), len(r2.Checkpoints))
}
