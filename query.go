package main

import (
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/cavaliercoder/rpmq/librpm"
)

var longFlag = &cli.BoolFlag{
	Name:  "long",
	Usage: "print size and summary",
}

var listCommand = &cli.Command{
	Name:   "list",
	Usage:  "list installed packages, sorted by name",
	Flags:  []cli.Flag{longFlag},
	Action: ActionList,
}

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "find installed packages by name or an exact field value",
	ArgsUsage: "KEY",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "index",
			Usage: "field to search: name, version, license, summary or description",
			Value: "name",
		},
		longFlag,
	},
	Action: ActionFind,
}

var infoCommand = &cli.Command{
	Name:      "info",
	Usage:     "print details of installed packages",
	ArgsUsage: "NAME...",
	Action:    ActionInfo,
}

// query runs a search and applies the rpmqfile filter.
func query(c *cli.Context, index librpm.Index, key string) ([]*librpm.Package, error) {
	db, err := openDB(c)
	if err != nil {
		return nil, err
	}
	it, err := db.Find(c.Context, index, key)
	if err != nil {
		return nil, err
	}
	pkgs, err := librpm.Collect(it)
	if err != nil {
		return nil, err
	}
	return rpmqfile(c).Filter.Apply(pkgs), nil
}

func printPackages(pkgs []*librpm.Package, long bool) {
	for _, p := range pkgs {
		if long {
			Printf("%-48s %10s  %s\n", p.NEVRA(), humanize.Bytes(p.Size), p.Summary)
		} else {
			Printf("%s\n", p.NEVRA())
		}
	}
}

// ActionList processes the 'list' command
func ActionList(c *cli.Context) error {
	pkgs, err := query(c, librpm.IndexName, "")
	if err != nil {
		return err
	}
	printPackages(pkgs, c.Bool("long"))
	Dprintf("%d packages", len(pkgs))
	return nil
}

// ActionFind processes the 'find' command
func ActionFind(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("find takes exactly one KEY")
	}
	index, err := librpm.ParseIndex(c.String("index"))
	if err != nil {
		return err
	}
	pkgs, err := query(c, index, c.Args().First())
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		return errors.NewWithDetails("no matching packages", "index", index.String(), "key", c.Args().First())
	}
	printPackages(pkgs, c.Bool("long"))
	return nil
}

// ActionInfo processes the 'info' command
func ActionInfo(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("info needs at least one NAME")
	}
	db, err := openDB(c)
	if err != nil {
		return err
	}

	missing := 0
	for _, name := range c.Args().Slice() {
		it, err := db.Find(c.Context, librpm.IndexName, name)
		if err != nil {
			return err
		}
		pkgs, err := librpm.Collect(it)
		if err != nil {
			return err
		}
		if len(pkgs) == 0 {
			Errorf(nil, "package %s is not installed", name)
			missing++
			continue
		}
		for _, p := range pkgs {
			printInfo(p)
		}
	}
	if missing > 0 {
		return errors.Errorf("%d of %d packages are not installed", missing, c.NArg())
	}
	return nil
}

func printInfo(p *librpm.Package) {
	const colWidth = 12
	field := func(name, value string) {
		if value == "" {
			value = "(none)"
		}
		Printf("%-*s: %s\n", colWidth, name, value)
	}

	epoch := ""
	if p.Epoch != nil {
		epoch = strconv.Itoa(*p.Epoch)
	}
	field("Name", p.Name)
	field("Epoch", epoch)
	field("Version", p.Version)
	field("Release", p.Release)
	field("Architecture", p.Arch)
	field("Size", humanize.Bytes(p.Size))
	field("License", p.License)
	field("Build Date", p.BuildTime.Format(time.RFC1123)+" ("+humanize.Time(p.BuildTime)+")")
	field("URL", p.URL)
	field("Vendor", p.Vendor)
	field("Source RPM", p.SourceRPM)
	field("Summary", p.Summary)
	Printf("Description :\n%s\n\n", p.Description)
}
