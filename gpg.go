package main

import (
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/cavaliercoder/go-rpm"
	"golang.org/x/crypto/openpgp"
)

// OpenKeyRing returns the GPG keyring for the given gpgkey file. A file://
// prefix is accepted.
func OpenKeyRing(path string) (openpgp.KeyRing, error) {
	if path == "" {
		return nil, errors.New("gpgkey not specified")
	}

	if strings.HasPrefix(strings.ToLower(path), "file://") {
		path = path[7:]
	}

	keyring, err := rpm.KeyRingFromFile(path)
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "read GPG key", "path", path)
	}
	return keyring, nil
}

// CheckSignature verifies the package file at path against keyring and
// returns the identity of the signer.
func CheckSignature(path string, keyring openpgp.KeyRing) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	signer, err := rpm.GPGCheck(f, keyring)
	if err != nil {
		return "", errors.WrapIfWithDetails(err, "GPG check failed", "path", path)
	}
	Dprintf("%s is signed by %s", path, signer)
	return signer, nil
}
