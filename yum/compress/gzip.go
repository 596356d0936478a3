package compress

import (
	"compress/gzip"
	"io"

	"emperror.dev/errors"
)

func gzipCompress(w io.Writer, r io.Reader) (int64, error) {
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return closeAfterCopy(zw, r)
}

func gzipReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return zr, nil
}
