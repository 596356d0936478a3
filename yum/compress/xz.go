package compress

import (
	"io"

	"emperror.dev/errors"
	"github.com/ulikunitz/xz"
)

func xzCompress(w io.Writer, r io.Reader) (int64, error) {
	zw, err := xz.NewWriter(w)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return closeAfterCopy(zw, r)
}

func xzReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return io.NopCloser(zr), nil
}
