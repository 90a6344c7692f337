// Package tarindex implements the tar member boundaries the core spec
// leaves as an extension ([MODULE: tarindex]): for a tar.gz archive,
// which byte ranges of the decompressed stream belong to which tar
// member, so a caller can ask "what member covers this offset" the
// same way the reader asks "what checkpoint covers this offset".
package tarindex

import (
	"archive/tar"
	"compress/gzip"
	"io"

	"github.com/dftracer-utils/traceindex/pkg/common"
)

// Scan decompresses r (a tar.gz archive, from its start) once and
// records each regular-file member's name and uncompressed byte range
// within the decompressed tar stream; directories, links and other
// entry types are skipped. It is run once at index-build time, after
// the checkpoint table itself, since it needs its own independent
// pass over the archive's content rather than the checkpoint table.
func Scan(r io.Reader) ([]common.TarMember, error) {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return nil, common.Wrap(common.CategoryCorruptArchive, "open gzip stream for tar scan", err)
	}
	defer gzr.Close()

	cr := &countingReader{r: gzr}
	tr := tar.NewReader(cr)

	var members []common.TarMember
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, common.Wrap(common.CategoryCorruptArchive, "read tar header", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		members = append(members, common.TarMember{
			Name:          hdr.Name,
			UCStartOffset: cr.n,
			UCLength:      hdr.Size,
		})

		if _, err := io.Copy(io.Discard, tr); err != nil {
			return nil, common.Wrap(common.CategoryCorruptArchive, "skip tar member "+hdr.Name, err)
		}
	}

	return members, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
