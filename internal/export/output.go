package export

import (
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
)

// Create opens path for writing. Paths ending in .gz are gzip-compressed and
// "-" writes to stdout.
func Create(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{os.Stdout}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	return &gzipFile{Writer: pgzip.NewWriter(f), f: f}, nil
}

type gzipFile struct {
	*pgzip.Writer
	f *os.File
}

func (g *gzipFile) Close() error {
	if err := g.Writer.Close(); err != nil {
		_ = g.f.Close()
		return errors.Wrap(err, "flush gzip")
	}
	return g.f.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
