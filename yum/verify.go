package yum

import (
	"io"
	"os"
	"path/filepath"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cavaliercoder/rpmq/yum/compress"
)

// Verification is the content of a published repository as read back from
// disk.
type Verification struct {
	Packages     PackageEntries
	Files        int
	Dependencies int
}

// Verify reads back a published repository. It checks the checksums recorded
// in repodata/repomd.xml, decompresses the primary database and reads every
// package with its files and dependencies.
func (c *Repo) Verify() (*Verification, error) {
	f, err := os.Open(filepath.Join(c.repodata(), "repomd.xml"))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	md, err := ReadRepoMetadata(f)
	if err != nil {
		return nil, err
	}
	m := md.Database("primary_db")
	if m == nil {
		return nil, errors.NewWithDetails("repomd.xml lists no primary_db", "path", c.BasePath)
	}

	path := filepath.Join(c.BasePath, m.Location.Href)
	if err := m.Checksum.CheckFile(path); err != nil {
		return nil, err
	}

	plain, err := c.decompress(path)
	if err != nil {
		return nil, err
	}
	defer os.Remove(plain)
	if err := m.OpenChecksum.CheckFile(plain); err != nil {
		return nil, err
	}

	pdb, err := OpenPrimaryDB(plain)
	if err != nil {
		return nil, err
	}
	defer pdb.Close()

	if v, err := pdb.Version(); err != nil {
		return nil, err
	} else if v != m.DatabaseVersion {
		return nil, errors.NewWithDetails("primary_db version mismatch", "repomd", m.DatabaseVersion, "db_info", v)
	}

	v := &Verification{}
	if v.Packages, err = pdb.Packages(); err != nil {
		return nil, err
	}
	for _, p := range v.Packages {
		files, err := pdb.FilesByPackage(p.Key)
		if err != nil {
			return nil, err
		}
		v.Files += len(files)
		for typ := range dependencyTables {
			deps, err := pdb.DependenciesByPackage(p.Key, typ)
			if err != nil {
				return nil, err
			}
			v.Dependencies += len(deps)
		}
	}

	log.WithFields(log.Fields{
		"packages":     len(v.Packages),
		"files":        v.Files,
		"dependencies": v.Dependencies,
	}).Debug("verified repository")
	return v, nil
}

// decompress writes the decompressed content of path to a temporary file
// next to it and returns its name.
func (c *Repo) decompress(path string) (string, error) {
	format, err := compress.FormatOf(path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	r, err := compress.NewReader(format, f)
	if err != nil {
		return "", err
	}
	defer r.Close()

	w, err := os.CreateTemp(filepath.Dir(path), ".verify-*.sqlite")
	if err != nil {
		return "", errors.WithStack(err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		os.Remove(w.Name())
		return "", errors.WrapIfWithDetails(err, "decompress database", "path", path)
	}
	if err := w.Close(); err != nil {
		os.Remove(w.Name())
		return "", errors.WithStack(err)
	}
	return w.Name(), nil
}
