package main

import (
	"emperror.dev/errors"
	"github.com/urfave/cli/v2"

	"github.com/cavaliercoder/rpmq/librpm"
	"github.com/cavaliercoder/rpmq/yum"
	"github.com/cavaliercoder/rpmq/yum/compress"
)

var exportCommand = &cli.Command{
	Name:      "export",
	Usage:     "write the installed packages as yum repodata",
	ArgsUsage: "DIR",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "compress",
			Usage: "database compression: bzip2, xz or gzip",
			Value: compress.Bzip2,
		},
		&cli.BoolFlag{
			Name:  "verify",
			Usage: "read the published repodata back and check it",
		},
	},
	Action: ActionExport,
}

// exportPackages reads every installed package with its dependency lists and
// applies filter.
func exportPackages(g *librpm.GlobalTS, filter Filter) []*yum.Package {
	it := g.NewMatchIterator(librpm.TagName, "")
	defer it.Close()

	var all []*yum.Package
	byPackage := make(map[*librpm.Package]*yum.Package)
	for it.Next() {
		p := yum.NewPackage(it.Header())
		all = append(all, p)
		byPackage[p.Package] = p
	}

	pkgs := make([]*librpm.Package, len(all))
	for i, p := range all {
		pkgs[i] = p.Package
	}
	kept := filter.Apply(pkgs)

	out := make([]*yum.Package, len(kept))
	for i, p := range kept {
		out[i] = byPackage[p]
	}
	return out
}

// ActionExport processes the 'export' command
func ActionExport(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" || c.NArg() > 1 {
		return errors.New("export takes exactly one DIR")
	}

	repo := yum.NewRepo(dir)
	repo.Compression = c.String("compress")
	if err := repo.Bootstrap(); err != nil {
		return err
	}

	db, err := openDB(c)
	if err != nil {
		return err
	}
	g, err := db.Lock(c.Context)
	if err != nil {
		return err
	}
	pkgs := exportPackages(g, rpmqfile(c).Filter)
	g.Release()

	if err := repo.AddPackages(pkgs...); err != nil {
		return err
	}
	md, err := repo.Publish()
	if err != nil {
		return err
	}
	for _, d := range md.Databases {
		Dprintf("%s: %s (%d bytes)", d.Type, d.Location.Href, d.Size)
	}
	Printf("Exported %d packages to %s\n", len(pkgs), dir)

	if c.Bool("verify") {
		v, err := repo.Verify()
		if err != nil {
			return errors.WrapIf(err, "verify repodata")
		}
		if len(v.Packages) != len(pkgs) {
			return errors.Errorf("verify repodata: primary_db lists %d of %d packages", len(v.Packages), len(pkgs))
		}
		Printf("Verified %d packages, %d files and %d dependencies\n", len(v.Packages), v.Files, v.Dependencies)
	}
	return nil
}
