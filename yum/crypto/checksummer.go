// Package crypto computes the hex digests used by yum repodata.
package crypto

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"emperror.dev/errors"
)

const ErrUnsupported = errors.Sentinel("unsupported checksum type")

type Checksummer interface {
	// Type is the name of the digest as written in repomd.xml.
	Type() string
	Checksum(r io.Reader) (string, error)
	ChecksumFile(src string) (string, error)
}

type checksummer struct {
	typ string
	h   hash.Hash
}

func (c *checksummer) Type() string { return c.typ }

func (c *checksummer) Checksum(r io.Reader) (string, error) {
	c.h.Reset()

	if _, err := io.Copy(c.h, r); err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(c.h.Sum(nil)), nil
}

func (c *checksummer) ChecksumFile(src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	return c.Checksum(f)
}

func NewSha256() Checksummer {
	return &checksummer{"sha256", sha256.New()}
}

// New returns a checksummer by repomd name. "sha" is the legacy name of
// sha1.
func New(typ string) (Checksummer, error) {
	switch typ {
	case "sha256":
		return NewSha256(), nil
	case "sha", "sha1":
		return &checksummer{typ, sha1.New()}, nil
	case "sha512":
		return &checksummer{typ, sha512.New()}, nil
	}
	return nil, errors.WithDetails(ErrUnsupported, "type", typ)
}
