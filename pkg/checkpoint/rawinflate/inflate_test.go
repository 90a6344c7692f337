package rawinflate

import (
	"bytes"
	"compress/flate"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func deflateRaw(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

func TestInflaterMatchesStdlibSmall(t *testing.T) {
	data := []byte("alpha\nbeta\ngamma\n")
	raw := deflateRaw(t, data)

	var out bytes.Buffer
	inf := NewInflater(bytes.NewReader(raw), &out)
	require.NoError(t, inf.Run())
	require.Equal(t, data, out.Bytes())
}

func TestInflaterMatchesStdlibLarge(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := make([]byte, 2*1024*1024)
	// Repetitive-ish content so DEFLATE actually produces back-references
	// exercising copyMatch, not just literals.
	pattern := []byte("the quick brown fox jumps over the lazy dog 0123456789\n")
	for i := 0; i < len(data); {
		if rng.Intn(10) == 0 {
			data[i] = byte(rng.Intn(256))
			i++
			continue
		}
		i += copy(data[i:], pattern)
	}
	raw := deflateRaw(t, data)

	var out bytes.Buffer
	inf := NewInflater(bytes.NewReader(raw), &out)
	require.NoError(t, inf.Run())
	require.Equal(t, data, out.Bytes())
}

func TestInflaterBoundaryResume(t *testing.T) {
	data := make([]byte, 512*1024)
	for i := range data {
		data[i] = byte(i % 251)
	}
	raw := deflateRaw(t, data)

	var boundaries []BlockBoundary
	var out bytes.Buffer
	inf := NewInflater(bytes.NewReader(raw), &out)
	inf.SetBoundaryHook(func(b BlockBoundary) error {
		boundaries = append(boundaries, b)
		return nil
	})
	require.NoError(t, inf.Run())
	require.Equal(t, data, out.Bytes())
	require.NotEmpty(t, boundaries)

	// Pick a boundary roughly in the middle and verify resuming from it
	// reproduces the remainder of the stream exactly.
	mid := boundaries[len(boundaries)/2]

	firstByte := raw[mid.COffset]
	rest := bytes.NewReader(raw[mid.COffset+1:])

	var resumed bytes.Buffer
	rinf := NewInflaterResume(firstByte, mid.Bits, mid.COffset, rest, mid.Dict, &resumed)
	require.NoError(t, rinf.Run())

	require.Equal(t, data[mid.UOffset:], resumed.Bytes())
}
