package index

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/dftracer-utils/traceindex/pkg/archivesrc"
	"github.com/dftracer-utils/traceindex/pkg/common"
)

const defaultLockRetry = 50 * time.Millisecond

func newByteReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// hashSource computes the SHA-256 fingerprint of the entire source,
// compared against a stored row whenever one exists (spec §7: all
// three fields must agree for an index to be considered fresh).
func hashSource(src archivesrc.Source) (string, error) {
	h := sha256.New()
	_, err := io.Copy(h, io.NewSectionReader(src, 0, src.Size()))
	if err != nil {
		return "", common.Wrap(common.CategoryIoError, "hash archive for freshness check", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
