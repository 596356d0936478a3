// Package compress writes and reads the compressed files of yum repodata.
package compress

import (
	"io"
	"os"
	"sort"
	"strings"

	"emperror.dev/errors"
)

// Format names.
const (
	Bzip2 = "bzip2"
	XZ    = "xz"
	Gzip  = "gzip"
)

const (
	ErrEmptyFile     = errors.Sentinel("destination file is empty")
	ErrUnknownFormat = errors.Sentinel("unknown compression format")
)

// Compressor compresses a stream.
type Compressor interface {
	Compress(w io.Writer, r io.Reader) (int64, error)
	CompressToTemp(src, dir string) (string, error)
}

// A CompressorFunc reads data from a stream, compresses it and writes it to
// another stream. It returns the number of uncompressed bytes read.
type CompressorFunc func(io.Writer, io.Reader) (int64, error)

func (fn CompressorFunc) Compress(w io.Writer, r io.Reader) (int64, error) {
	return fn(w, r)
}

// CompressToTemp compresses the given file to a temporary file in dir (or the
// default temporary directory if dir is empty) and returns its path.
func (fn CompressorFunc) CompressToTemp(src, dir string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	tmp, err := os.CreateTemp(dir, "yum-")
	if err != nil {
		return "", errors.WithStack(err)
	}
	n, err := fn(tmp, f)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = errors.WithDetails(ErrEmptyFile, "src", src)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", errors.WrapIfWithDetails(err, "compress to temporary file", "src", src)
	}
	return tmp.Name(), nil
}

type format struct {
	ext    string
	writer CompressorFunc
	reader func(io.Reader) (io.ReadCloser, error)
}

var formats = map[string]format{
	Bzip2: {".bz2", bzip2Compress, bzip2Reader},
	XZ:    {".xz", xzCompress, xzReader},
	Gzip:  {".gz", gzipCompress, gzipReader},
}

func lookup(name string) (format, error) {
	f, ok := formats[name]
	if !ok {
		return format{}, errors.WithDetails(ErrUnknownFormat, "format", name)
	}
	return f, nil
}

// New returns the compressor of the named format.
func New(name string) (Compressor, error) {
	f, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return f.writer, nil
}

// Ext returns the file name suffix of the named format, including the dot.
func Ext(name string) (string, error) {
	f, err := lookup(name)
	if err != nil {
		return "", err
	}
	return f.ext, nil
}

// FormatOf returns the name of the format whose suffix ends path.
func FormatOf(path string) (string, error) {
	for name, f := range formats {
		if strings.HasSuffix(path, f.ext) {
			return name, nil
		}
	}
	return "", errors.WithDetails(ErrUnknownFormat, "path", path)
}

// NewReader decompresses r as the named format.
func NewReader(name string, r io.Reader) (io.ReadCloser, error) {
	f, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return f.reader(r)
}

// Formats returns the supported format names, sorted.
func Formats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// closeAfterCopy copies r into wc and closes wc so that trailing blocks are
// flushed.
func closeAfterCopy(wc io.WriteCloser, r io.Reader) (int64, error) {
	n, err := io.Copy(wc, r)
	if cerr := wc.Close(); err == nil {
		err = cerr
	}
	return n, errors.WithStack(err)
}
