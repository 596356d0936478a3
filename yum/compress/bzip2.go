package compress

import (
	"io"

	"emperror.dev/errors"
	"github.com/dsnet/compress/bzip2"
)

func bzip2Compress(w io.Writer, r io.Reader) (int64, error) {
	conf := &bzip2.WriterConfig{
		Level: bzip2.BestCompression,
	}

	zw, err := bzip2.NewWriter(w, conf)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return closeAfterCopy(zw, r)
}

func bzip2Reader(r io.Reader) (io.ReadCloser, error) {
	zr, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return zr, nil
}
