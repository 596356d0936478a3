package yum

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"emperror.dev/errors"
	_ "github.com/mattn/go-sqlite3"
)

// PrimaryDBVersion is the database_version written to repomd.xml.
const PrimaryDBVersion = 10

// sqlPrimaryDBSchema is the primary_db schema of createrepo, version 10.
const sqlPrimaryDBSchema = `
CREATE TABLE db_info (dbversion INTEGER, checksum TEXT);
INSERT INTO db_info (dbversion, checksum) VALUES (10, '');
CREATE TABLE packages (
	pkgKey INTEGER PRIMARY KEY
	, pkgId TEXT
	, name TEXT
	, arch TEXT
	, version TEXT
	, epoch TEXT
	, release TEXT
	, summary TEXT
	, description TEXT
	, url TEXT
	, time_file INTEGER
	, time_build INTEGER
	, rpm_license TEXT
	, rpm_vendor TEXT
	, rpm_group TEXT
	, rpm_buildhost TEXT
	, rpm_sourcerpm TEXT
	, rpm_header_start INTEGER
	, rpm_header_end INTEGER
	, rpm_packager TEXT
	, size_package INTEGER
	, size_installed INTEGER
	, size_archive INTEGER
	, location_href TEXT
	, location_base TEXT
	, checksum_type TEXT
);
CREATE TABLE files ( name TEXT, type TEXT, pkgKey INTEGER);
CREATE TABLE requires ( name TEXT, flags TEXT, epoch TEXT, version TEXT, release TEXT, pkgKey INTEGER , pre BOOLEAN DEFAULT FALSE);
CREATE TABLE provides ( name TEXT, flags TEXT, epoch TEXT, version TEXT, release TEXT, pkgKey INTEGER );
CREATE TABLE conflicts ( name TEXT, flags TEXT, epoch TEXT, version TEXT, release TEXT, pkgKey INTEGER );
CREATE TABLE obsoletes ( name TEXT, flags TEXT, epoch TEXT, version TEXT, release TEXT, pkgKey INTEGER );

CREATE INDEX packagename ON packages (name);
CREATE INDEX packageId ON packages (pkgId);
CREATE INDEX filenames ON files (name);
CREATE INDEX pkgfiles ON files (pkgKey);
CREATE INDEX pkgrequires on requires (pkgKey);
CREATE INDEX requiresname ON requires (name);
CREATE INDEX pkgprovides on provides (pkgKey);
CREATE INDEX providesname ON provides (name);
CREATE INDEX pkgconflicts on conflicts (pkgKey);
CREATE INDEX pkgobsoletes on obsoletes (pkgKey);

CREATE TRIGGER removals AFTER DELETE ON packages
BEGIN
	DELETE FROM files WHERE pkgKey = old.pkgKey;
	DELETE FROM requires WHERE pkgKey = old.pkgKey;
	DELETE FROM provides WHERE pkgKey = old.pkgKey;
	DELETE FROM conflicts WHERE pkgKey = old.pkgKey;
	DELETE FROM obsoletes WHERE pkgKey = old.pkgKey;
END;`

const sqlSelectPackages = `SELECT
 pkgKey
 , name
 , arch
 , epoch
 , version
 , release
 , summary
 , rpm_license
 , size_package
 , size_installed
 , location_href
 , pkgId
 , checksum_type
 , time_build
FROM packages
ORDER BY name, arch, pkgKey;`

// dependencyTables are the tables read by DependenciesByPackage.
var dependencyTables = map[string]bool{
	"requires":  true,
	"provides":  true,
	"conflicts": true,
	"obsoletes": true,
}

// PackageEntry is a package row read back from a primary_db.
type PackageEntry struct {
	Key           int
	Name          string
	Arch          string
	Epoch         string
	Version       string
	Release       string
	Summary       string
	License       string
	PackageSize   int64
	InstalledSize int64
	Location      string
	ID            string
	ChecksumType  string
	BuildTime     int64
}

// String returns the NEVRA of the entry. A zero epoch is omitted.
func (e PackageEntry) String() string {
	if e.Epoch == "" || e.Epoch == "0" {
		return fmt.Sprintf("%s-%s-%s.%s", e.Name, e.Version, e.Release, e.Arch)
	}
	return fmt.Sprintf("%s-%s:%s-%s.%s", e.Name, e.Epoch, e.Version, e.Release, e.Arch)
}

type PackageEntries []PackageEntry

// PrimaryDB is an SQLite database which contains package data for a
// yum package repository.
type PrimaryDB struct {
	sync.Mutex

	db   *sql.DB
	path string
}

// NewPrimaryDB initializes a new and empty primary_db SQLite database on
// disk. Any existing file at path is deleted.
func NewPrimaryDB(path string) (*PrimaryDB, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.WithStack(err)
	}

	pdb, err := OpenPrimaryDB(path)
	if err != nil {
		return nil, err
	}

	if _, err = pdb.db.Exec(sqlPrimaryDBSchema); err != nil {
		pdb.db.Close()
		return nil, errors.WrapIfWithDetails(err, "provision primary_db schema", "path", path)
	}
	return pdb, nil
}

// OpenPrimaryDB opens an existing primary_db SQLite database.
func OpenPrimaryDB(path string) (*PrimaryDB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "open primary_db", "path", path)
	}
	return &PrimaryDB{
		db:   db,
		path: path,
	}, nil
}

// Version returns the dbversion recorded in db_info.
func (c *PrimaryDB) Version() (int, error) {
	c.Lock()
	defer c.Unlock()

	var v int
	if err := c.db.QueryRow("SELECT dbversion FROM db_info").Scan(&v); err != nil {
		return 0, errors.WrapIfWithDetails(err, "read db_info", "path", c.path)
	}
	return v, nil
}

// String implements Stringer
func (c *PrimaryDB) String() string {
	return c.Name()
}

func (c *PrimaryDB) Name() string {
	return "primary_db"
}

func (c *PrimaryDB) Path() string {
	return c.path
}

func (c *PrimaryDB) Close() error {
	c.Lock()
	defer c.Unlock()
	return errors.WithStack(c.db.Close())
}

func (c *PrimaryDB) Begin() (Tx, error) {
	c.Lock()
	defer c.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &PrimaryDBTx{tx: tx}, nil
}

// Packages returns all packages listed in the primary_db.
func (c *PrimaryDB) Packages() (PackageEntries, error) {
	c.Lock()
	defer c.Unlock()

	rows, err := c.db.Query(sqlSelectPackages)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	packages := make(PackageEntries, 0)
	for rows.Next() {
		var p PackageEntry
		if err = rows.Scan(&p.Key, &p.Name, &p.Arch, &p.Epoch, &p.Version, &p.Release, &p.Summary, &p.License, &p.PackageSize, &p.InstalledSize, &p.Location, &p.ID, &p.ChecksumType, &p.BuildTime); err != nil {
			return nil, errors.WrapIf(err, "scan packages")
		}
		packages = append(packages, p)
	}
	return packages, errors.WithStack(rows.Err())
}

// DependenciesByPackage returns the dependency names of the given type for
// the given package key. The dependency type may be one of 'requires',
// 'provides', 'conflicts' or 'obsoletes'.
func (c *PrimaryDB) DependenciesByPackage(pkgKey int, typ string) ([]string, error) {
	if !dependencyTables[typ] {
		return nil, errors.NewWithDetails("unknown dependency type", "type", typ)
	}
	return c.strings(fmt.Sprintf("SELECT name FROM %s WHERE pkgKey = ? ORDER BY rowid", typ), pkgKey)
}

// FilesByPackage returns all known files included in the package of the given
// package key.
func (c *PrimaryDB) FilesByPackage(pkgKey int) ([]string, error) {
	return c.strings("SELECT name FROM files WHERE pkgKey = ? ORDER BY rowid", pkgKey)
}

func (c *PrimaryDB) strings(q string, args ...interface{}) ([]string, error) {
	c.Lock()
	defer c.Unlock()

	rows, err := c.db.Query(q, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	v := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.WrapIf(err, "scan names")
		}
		v = append(v, s)
	}
	return v, errors.WithStack(rows.Err())
}
