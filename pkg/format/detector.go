// Package format implements C1: identifying whether an archive is a
// plain gzip stream or a tar member wrapped in gzip, by magic bytes
// and an inner POSIX tar header checksum check (spec §4.1).
package format

import (
	"bytes"
	"compress/gzip"
	"io"
	"strconv"
	"strings"

	"github.com/dftracer-utils/traceindex/pkg/common"
)

const tarBlockSize = 512

// Detect reads up to the first tar block of r's decompressed content
// to classify the archive. r is read from its current position; the
// caller is responsible for positioning it at the start of the file
// and must not assume r's position is preserved afterwards.
func Detect(r io.Reader) (common.Format, error) {
	magic := make([]byte, 2)
	n, err := io.ReadFull(r, magic)
	if n < 2 || (err != nil && err != io.ErrUnexpectedEOF) {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return common.FormatUnknown, nil
		}
		return common.FormatUnknown, err
	}

	if magic[0] != 0x1F || magic[1] != 0x8B {
		return common.FormatUnknown, nil
	}

	// Re-assemble a reader over the two consumed magic bytes plus the
	// rest of the stream so gzip.NewReader sees a complete header.
	full := io.MultiReader(bytes.NewReader(magic), r)

	gzr, err := gzip.NewReader(full)
	if err != nil {
		// Bytes matched the gzip magic but the header is malformed;
		// still a gzip-family file, just not a valid one. Treat as
		// plain gzip so the caller's build step surfaces the real
		// CorruptArchive error.
		return common.FormatGzip, nil //nolint:nilerr
	}
	defer gzr.Close()

	block := make([]byte, tarBlockSize)
	read, _ := io.ReadFull(gzr, block)
	if read < tarBlockSize {
		return common.FormatGzip, nil
	}

	if isValidTarHeader(block) {
		return common.FormatTarGz, nil
	}
	return common.FormatGzip, nil
}

// isValidTarHeader checks the POSIX ustar/pax checksum field (offset
// 148, 8 bytes) against the unsigned sum of all 512 header bytes with
// the checksum field itself treated as eight ASCII spaces.
func isValidTarHeader(block []byte) bool {
	if len(block) != tarBlockSize {
		return false
	}

	raw := strings.TrimRight(strings.TrimSpace(string(block[148:156])), "\x00")
	if raw == "" {
		return false
	}
	stored, err := strconv.ParseInt(raw, 8, 64)
	if err != nil {
		return false
	}

	var sum int64
	for i, b := range block {
		if i >= 148 && i < 156 {
			sum += int64(' ')
			continue
		}
		sum += int64(b)
	}

	return sum == stored
}
