// Package yum writes a package inventory as yum repository metadata: an
// SQLite primary_db, compressed and described by repodata/repomd.xml.
package yum

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cavaliercoder/rpmq/yum/compress"
	"github.com/cavaliercoder/rpmq/yum/crypto"
)

type Repo struct {
	// BasePath is a directory where the package repository file structure will
	// be written.
	BasePath string

	// Compression is the format of published databases. Defaults to bzip2.
	Compression string

	// list of active databases
	dbs map[string]DB
}

func NewRepo(path string) *Repo {
	return &Repo{
		BasePath:    path,
		Compression: compress.Bzip2,
		dbs:         make(map[string]DB),
	}
}

func (c *Repo) repodata() string { return filepath.Join(c.BasePath, "repodata") }
func (c *Repo) gen() string      { return filepath.Join(c.repodata(), "gen") }

// Bootstrap creates the repository file structure and empty databases.
func (c *Repo) Bootstrap() error {
	if _, err := compress.Ext(c.Compression); err != nil {
		return err
	}
	if err := os.MkdirAll(c.gen(), 0o755); err != nil {
		return errors.WithStack(err)
	}

	pdb, err := NewPrimaryDB(filepath.Join(c.gen(), "primary_db.sqlite"))
	if err != nil {
		return errors.WrapIf(err, "create primary database")
	}
	c.dbs[pdb.Name()] = pdb
	return nil
}

// names returns the active database names, sorted.
func (c *Repo) names() []string {
	names := make([]string, 0, len(c.dbs))
	for name := range c.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Begin starts a transaction on every database.
func (c *Repo) Begin() (RepoTx, error) {
	var txs RepoTx
	for _, name := range c.names() {
		tx, err := c.dbs[name].Begin()
		if err != nil {
			txs.Rollback()
			return nil, errors.WrapIfWithDetails(err, "begin transaction", "db", name)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// AddPackages adds packages to all active databases in one transaction.
func (c *Repo) AddPackages(pkgs ...*Package) error {
	tx, err := c.Begin()
	if err != nil {
		return err
	}
	if err := tx.AddPackage(pkgs...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Publish compresses all databases, writes the metadata document and deletes
// the working files in repodata/gen.
func (c *Repo) Publish() (*RepoMetadata, error) {
	repomd := &RepoMetadata{
		Revision:  int(time.Now().Unix()),
		Databases: make([]RepoDatabase, 0, len(c.dbs)),
	}

	for _, name := range c.names() {
		m, err := c.publishDB(c.dbs[name])
		if err != nil {
			return nil, err
		}
		repomd.Databases = append(repomd.Databases, *m)
	}

	w, err := os.OpenFile(filepath.Join(c.repodata(), "repomd.xml"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer w.Close()

	if err := repomd.Write(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := os.RemoveAll(c.gen()); err != nil {
		return nil, errors.WrapIf(err, "clean up repodata")
	}
	c.dbs = make(map[string]DB)
	return repomd, nil
}

func (c *Repo) publishDB(db DB) (*RepoDatabase, error) {
	if err := db.Close(); err != nil {
		return nil, errors.WrapIfWithDetails(err, "close database", "db", db.Name())
	}

	cmp, err := compress.New(c.Compression)
	if err != nil {
		return nil, err
	}
	ext, _ := compress.Ext(c.Compression)

	tmp, err := cmp.CompressToTemp(db.Path(), c.repodata())
	if err != nil {
		return nil, err
	}

	h := crypto.NewSha256()
	sum, err := h.ChecksumFile(tmp)
	if err != nil {
		return nil, err
	}

	// <checksum>-primary.sqlite.bz2
	base := filepath.Base(db.Path())
	name := fmt.Sprintf("%s-%s%s", sum, trimDBSuffix(base), ext)
	rel := filepath.Join("repodata", name)
	path := filepath.Join(c.BasePath, rel)
	if err := os.Rename(tmp, path); err != nil {
		return nil, errors.WithStack(err)
	}

	m := &RepoDatabase{
		Type:            db.Name(),
		DatabaseVersion: PrimaryDBVersion,
		Location:        RepoDatabaseLocation{rel},
		Checksum:        RepoDatabaseChecksum{h.Type(), sum},
	}

	fi, err := os.Stat(db.Path())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	m.Timestamp = fi.ModTime().Unix()
	m.OpenSize = int(fi.Size())

	openSum, err := h.ChecksumFile(db.Path())
	if err != nil {
		return nil, err
	}
	m.OpenChecksum = RepoDatabaseChecksum{h.Type(), openSum}

	fi, err = os.Stat(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	m.Size = int(fi.Size())

	log.WithFields(log.Fields{
		"db":       db.Name(),
		"location": rel,
		"size":     m.Size,
	}).Debug("published database")
	return m, nil
}

// trimDBSuffix maps "primary_db.sqlite" to "primary.sqlite".
func trimDBSuffix(base string) string {
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	if len(name) > 3 && name[len(name)-3:] == "_db" {
		name = name[:len(name)-3]
	}
	return name + ext
}
