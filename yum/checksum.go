package yum

import (
	"io"
	"os"

	"emperror.dev/errors"

	"github.com/cavaliercoder/rpmq/yum/crypto"
)

// ErrChecksumMismatch indicates that the checksum value of two items does not
// match.
const ErrChecksumMismatch = errors.Sentinel("checksum mismatch")

// RepoDatabaseChecksum is the XML element of a repo metadata file which
// describes the checksum required to validate a repository database.
type RepoDatabaseChecksum struct {
	Type string `xml:"type,attr"`
	Hash string `xml:",chardata"`
}

// Check creates a checksum of the given io.Reader content and compares it to
// the expected checksum value.
func (c *RepoDatabaseChecksum) Check(r io.Reader) error {
	return ValidateChecksum(r, c.Hash, c.Type)
}

// CheckFile is Check on the content of a file.
func (c *RepoDatabaseChecksum) CheckFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	return errors.WithDetails(c.Check(f), "file", name)
}

// ValidateChecksum creates a checksum of the given io.Reader content and
// compares it to the given checksum value. If the checksums do not match,
// ErrChecksumMismatch is returned.
func ValidateChecksum(r io.Reader, checksum string, checksumType string) error {
	c, err := crypto.New(checksumType)
	if err != nil {
		return err
	}
	actual, err := c.Checksum(r)
	if err != nil {
		return err
	}
	if checksum != actual {
		return errors.WithDetails(ErrChecksumMismatch, "expected", checksum, "actual", actual)
	}
	return nil
}
