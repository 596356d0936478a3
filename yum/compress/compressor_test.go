package compress

import (
	"bytes"
	"crypto/sha256"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compressible returns n bytes of repetitive pseudo random text.
func compressible(n int) []byte {
	rnd := rand.New(rand.NewSource(1))
	words := []string{"name", "version", "release", "x86_64", "noarch", "el7", "GPLv2+"}
	buf := &bytes.Buffer{}
	for buf.Len() < n {
		buf.WriteString(words[rnd.Intn(len(words))])
		buf.WriteByte(' ')
	}
	return buf.Bytes()[:n]
}

func TestFormats(t *testing.T) {
	in := compressible(1 << 20)
	for _, name := range Formats() {
		t.Run(name, func(t *testing.T) {
			c, err := New(name)
			require.NoError(t, err)

			out := &bytes.Buffer{}
			n, err := c.Compress(out, bytes.NewReader(in))
			require.NoError(t, err)
			assert.Equal(t, int64(len(in)), n)
			assert.Less(t, out.Len(), len(in))
			t.Logf("%d bytes compressed down to %d bytes", len(in), out.Len())

			r, err := NewReader(name, out)
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, in, got)
		})
	}
	assert.Equal(t, []string{Bzip2, Gzip, XZ}, Formats())
}

func TestExt(t *testing.T) {
	ext, err := Ext(Bzip2)
	require.NoError(t, err)
	assert.Equal(t, ".bz2", ext)
	ext, err = Ext(XZ)
	require.NoError(t, err)
	assert.Equal(t, ".xz", ext)

	_, err = Ext("lzma")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
	_, err = New("lzma")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
	_, err = NewReader("lzma", nil)
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestFormatOf(t *testing.T) {
	for _, name := range Formats() {
		ext, err := Ext(name)
		require.NoError(t, err)
		got, err := FormatOf("repodata/abc-primary.sqlite" + ext)
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}
	_, err := FormatOf("repodata/abc-primary.sqlite")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestCompressToTemp(t *testing.T) {
	dir := t.TempDir()
	p := compressible(1 << 16)
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, p, 0o644))

	// a pass-through "compressor" must reproduce the input exactly
	cmp := CompressorFunc(io.Copy)
	dst, err := cmp.CompressToTemp(src, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(dst))

	out, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, sha256.Sum256(p), sha256.Sum256(out))
}

func TestCompressToTempEmpty(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(src, nil, 0o644))

	_, err := CompressorFunc(io.Copy).CompressToTemp(src, dir)
	assert.True(t, errors.Is(err, ErrEmptyFile))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "the temporary file is removed")

	_, err = CompressorFunc(io.Copy).CompressToTemp(filepath.Join(dir, "missing"), dir)
	assert.Error(t, err)
}
