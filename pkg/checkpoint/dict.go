package checkpoint

import (
	"bytes"
	"compress/gzip"
	"io"
)

// compressDict gzip-compresses a captured 32KiB window before it's
// persisted in the checkpoints table, since most windows compress
// well and an archive with a fine checkpoint cadence can accumulate
// thousands of them.
func compressDict(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressDict reverses compressDict.
func DecompressDict(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(stored))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
