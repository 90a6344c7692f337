package format_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dftracer-utils/traceindex/pkg/common"
	"github.com/dftracer-utils/traceindex/pkg/format"
)

func gzipOf(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func tarGzOf(t *testing.T, name string, raw []byte) []byte {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(raw)), Mode: 0644}))
	_, err := tw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	return gzipOf(t, tarBuf.Bytes())
}

func TestDetectPlainGzip(t *testing.T) {
	data := gzipOf(t, []byte("alpha\nbeta\ngamma\n"))
	got, err := format.Detect(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, common.FormatGzip, got)
}

func TestDetectTarGz(t *testing.T) {
	data := tarGzOf(t, "trace.pfw", []byte("alpha\nbeta\ngamma\n"))
	got, err := format.Detect(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, common.FormatTarGz, got)
}

func TestDetectUnknown(t *testing.T) {
	got, err := format.Detect(bytes.NewReader([]byte("not an archive")))
	require.NoError(t, err)
	assert.Equal(t, common.FormatUnknown, got)
}

func TestDetectEmpty(t *testing.T) {
	got, err := format.Detect(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, common.FormatUnknown, got)
}

func TestDetectShortGzipPayload(t *testing.T) {
	// A gzip stream whose uncompressed payload is shorter than one tar
	// block: cannot be tar.gz, must fall back to plain gzip.
	data := gzipOf(t, []byte("tiny"))
	got, err := format.Detect(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, common.FormatGzip, got)
}
