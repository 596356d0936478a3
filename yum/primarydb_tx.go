package yum

import (
	"database/sql"

	"emperror.dev/errors"
)

const (
	sqlInsertPackage = `INSERT INTO packages(
 name
 , arch
 , epoch
 , version
 , release
 , summary
 , description
 , url
 , time_file
 , size_package
 , size_installed
 , size_archive
 , location_href
 , pkgId
 , checksum_type
 , time_build
 , rpm_license
 , rpm_vendor
 , rpm_group
 , rpm_buildhost
 , rpm_sourcerpm
 , rpm_header_start
 , rpm_header_end
 , rpm_packager
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	sqlInsertPackageFiles = `INSERT INTO files(name, type, pkgKey) VALUES (?, ?, ?);`
)

// dependency tables in insert order
var dependencyInserts = []struct {
	table string
	names func(*Package) []string
}{
	{"requires", func(p *Package) []string { return p.Requires }},
	{"provides", func(p *Package) []string { return p.Provides }},
	{"conflicts", func(p *Package) []string { return p.Conflicts }},
	{"obsoletes", func(p *Package) []string { return p.Obsoletes }},
}

// PrimaryDBTx is a database transaction opened on the primary database.
type PrimaryDBTx struct {
	tx *sql.Tx
}

func (c *PrimaryDBTx) Commit() error {
	return errors.WithStack(c.tx.Commit())
}

func (c *PrimaryDBTx) Rollback() error {
	err := c.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return errors.WithStack(err)
}

// AddPackage inserts packages with their files and dependency names.
// Installed packages have no package file, so the file columns are zero and
// the installed size stands in for the package size.
func (c *PrimaryDBTx) AddPackage(packages ...*Package) error {
	stmt, err := c.tx.Prepare(sqlInsertPackage)
	if err != nil {
		return errors.WithStack(err)
	}
	defer stmt.Close()

	stmtFiles, err := c.tx.Prepare(sqlInsertPackageFiles)
	if err != nil {
		return errors.WithStack(err)
	}
	defer stmtFiles.Close()

	for _, p := range packages {
		res, err := stmt.Exec(
			p.Name,
			p.Arch,
			p.EpochString(),
			p.Version,
			p.Release,
			p.Summary,
			p.Description,
			p.URL,
			0,
			p.Size,
			p.Size,
			0,
			p.Location(),
			p.ID(),
			"sha256",
			p.BuildTime.Unix(),
			p.License,
			p.Vendor,
			p.Group,
			p.BuildHost,
			p.SourceRPM,
			0,
			0,
			p.Packager)
		if err != nil {
			return errors.WrapIfWithDetails(err, "insert package", "package", p.NEVRA())
		}

		key, err := res.LastInsertId()
		if err != nil {
			return errors.WithStack(err)
		}

		for _, f := range p.Files {
			if _, err := stmtFiles.Exec(f, "file", key); err != nil {
				return errors.WrapIfWithDetails(err, "insert file", "package", p.NEVRA(), "file", f)
			}
		}

		for _, dep := range dependencyInserts {
			for _, name := range dep.names(p) {
				// table names come from dependencyInserts
				q := "INSERT INTO " + dep.table + "(name, pkgKey) VALUES (?, ?)"
				if _, err := c.tx.Exec(q, name, key); err != nil {
					return errors.WrapIfWithDetails(err, "insert dependency", "package", p.NEVRA(), "table", dep.table)
				}
			}
		}
	}
	return nil
}
