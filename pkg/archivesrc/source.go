// Package archivesrc abstracts the byte-range-readable backing store
// for an archive: a local file or an S3 object addressed by an
// "s3://bucket/key" logical name. Both the checkpoint builder (C3) and
// the random-access reader (C4) read exclusively through Source so
// neither cares where the bytes actually live.
package archivesrc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Source is a byte-range-readable archive backing store.
type Source interface {
	io.Closer

	// Size is the total byte length of the archive.
	Size() int64

	// ModTime is the backing store's last-modified time, used for the
	// mtime half of the index staleness check (spec §4, StaleIndex).
	ModTime() time.Time

	// ReadAt reads len(p) bytes starting at off, per io.ReaderAt
	// semantics: a short read returns a non-nil error (io.EOF when the
	// archive ends first) rather than padding with zeros.
	ReadAt(p []byte, off int64) (int, error)
}

// Open resolves name to a Source. Names with an "s3://" prefix are
// served from S3; everything else is treated as a local file path.
func Open(ctx context.Context, name string) (Source, error) {
	if strings.HasPrefix(name, "s3://") {
		bucket, key, err := splitS3URL(name)
		if err != nil {
			return nil, err
		}
		return newS3Source(ctx, bucket, key)
	}
	return newLocalSource(name)
}

func splitS3URL(name string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(name, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: want s3://bucket/key", name)
	}
	return parts[0], parts[1], nil
}
