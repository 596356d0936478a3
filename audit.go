package main

import (
	"os"
	"path/filepath"
	"sort"

	"emperror.dev/errors"
	rpmdb "github.com/knqyf263/go-rpmdb/pkg"
	"github.com/urfave/cli/v2"

	"github.com/cavaliercoder/rpmq/librpm"
)

// rpmdbFiles are the package database files go-rpmdb can read, in the order
// they are looked for under the database path.
var rpmdbFiles = []string{
	"rpmdb.sqlite",
	"Packages.db",
	"Packages",
}

var auditCommand = &cli.Command{
	Name:  "audit",
	Usage: "compare the engine's package list with an independent read of the database files",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "packages",
			Usage: "database file to read (default: found under the database path)",
		},
	},
	Action: ActionAudit,
}

// findRpmdb returns the first database file under dbpath.
func findRpmdb(dbpath string) (string, error) {
	for _, name := range rpmdbFiles {
		path := filepath.Join(dbpath, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.NewWithDetails("no package database file found", "dbpath", dbpath)
}

// readRpmdb lists the packages of a database file with go-rpmdb, sorted like
// the engine's list.
func readRpmdb(path string) ([]*librpm.Package, error) {
	db, err := rpmdb.Open(path)
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "open package database", "path", path)
	}

	infos, err := db.ListPackages()
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "list packages", "path", path)
	}
	pkgs := make([]*librpm.Package, 0, len(infos))
	for _, info := range infos {
		pkgs = append(pkgs, packageFromInfo(info))
	}
	sortPackages(pkgs)
	return pkgs, nil
}

// packageFromInfo converts a go-rpmdb record. go-rpmdb reports a missing
// epoch as 0.
func packageFromInfo(info *rpmdb.PackageInfo) *librpm.Package {
	var epoch *int
	if info.Epoch != 0 {
		n := info.Epoch
		epoch = &n
	}
	return &librpm.Package{
		Name:    info.Name,
		Epoch:   epoch,
		Version: info.Version,
		Release: info.Release,
		Arch:    info.Arch,
	}
}

// auditKey is the NEVRA of p with an epoch of 0 left out, since the file
// reader cannot tell it from a missing epoch.
func auditKey(p *librpm.Package) string {
	if p.Epoch != nil && *p.Epoch == 0 {
		q := *p
		q.Epoch = nil
		return q.NEVRA()
	}
	return p.NEVRA()
}

// auditDiff returns the NEVRAs found by only one of the two lists, sorted.
func auditDiff(engine, file []*librpm.Package) (engineOnly, fileOnly []string) {
	count := make(map[string]int)
	for _, p := range engine {
		count[auditKey(p)]++
	}
	for _, p := range file {
		count[auditKey(p)]--
	}
	for nevra, n := range count {
		for ; n > 0; n-- {
			engineOnly = append(engineOnly, nevra)
		}
		for ; n < 0; n++ {
			fileOnly = append(fileOnly, nevra)
		}
	}
	sort.Strings(engineOnly)
	sort.Strings(fileOnly)
	return engineOnly, fileOnly
}

// ActionAudit processes the 'audit' command
func ActionAudit(c *cli.Context) error {
	db, err := openDB(c)
	if err != nil {
		return err
	}

	path := c.String("packages")
	if path == "" {
		dbpath, err := db.ExpandMacro(c.Context, "%{_dbpath}")
		if err != nil {
			return err
		}
		if path, err = findRpmdb(dbpath); err != nil {
			return err
		}
	}
	file, err := readRpmdb(path)
	if err != nil {
		return err
	}

	it, err := db.InstalledPackages(c.Context)
	if err != nil {
		return err
	}
	engine, err := librpm.Collect(it)
	if err != nil {
		return err
	}

	engineOnly, fileOnly := auditDiff(engine, file)
	for _, nevra := range engineOnly {
		Printf("- %s (engine only)\n", nevra)
	}
	for _, nevra := range fileOnly {
		Printf("+ %s (%s only)\n", nevra, filepath.Base(path))
	}
	if len(engineOnly)+len(fileOnly) > 0 {
		return errors.Errorf("audit found %d differences", len(engineOnly)+len(fileOnly))
	}
	Printf("%d packages match %s\n", len(engine), path)
	return nil
}
