package archivesrc

import (
	"fmt"
	"os"
	"time"
)

type localSource struct {
	f    *os.File
	size int64
	mod  time.Time
}

func newLocalSource(path string) (*localSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	return &localSource{f: f, size: info.Size(), mod: info.ModTime()}, nil
}

func (l *localSource) Size() int64         { return l.size }
func (l *localSource) ModTime() time.Time  { return l.mod }
func (l *localSource) Close() error        { return l.f.Close() }

func (l *localSource) ReadAt(p []byte, off int64) (int, error) {
	return l.f.ReadAt(p, off)
}
