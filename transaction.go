package main

import (
	"strings"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/cavaliercoder/rpmq/librpm"
)

func transactionFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "test",
			Usage: "check the transaction without changing anything",
		},
		&cli.BoolFlag{
			Name:  "justdb",
			Usage: "update the database only",
		},
		&cli.BoolFlag{
			Name:  "noscripts",
			Usage: "do not run package scriptlets",
		},
		&cli.StringFlag{
			Name:  "ignore",
			Usage: "problems to ignore, e.g. badarch,oldpackage,replacepkg",
		},
	}, extra...)
}

var gpgkeyFlag = &cli.StringFlag{
	Name:  "gpgkey",
	Usage: "check package signatures against this key file",
}

var installCommand = &cli.Command{
	Name:      "install",
	Usage:     "install package files",
	ArgsUsage: "FILE...",
	Flags: transactionFlags(
		&cli.BoolFlag{
			Name:    "upgrade",
			Aliases: []string{"U"},
			Usage:   "replace older installed versions",
		},
		gpgkeyFlag,
	),
	Action: ActionInstall,
}

var reinstallCommand = &cli.Command{
	Name:      "reinstall",
	Usage:     "reinstall package files over their installed copies",
	ArgsUsage: "FILE...",
	Flags:     transactionFlags(gpgkeyFlag),
	Action:    ActionReinstall,
}

var eraseCommand = &cli.Command{
	Name:      "erase",
	Usage:     "erase installed packages by name",
	ArgsUsage: "NAME...",
	Flags:     transactionFlags(),
	Action:    ActionErase,
}

// runFlags maps the command flags to transaction and problem filter flags.
func runFlags(c *cli.Context) (librpm.TransFlags, librpm.FilterFlags, error) {
	var names []string
	for _, name := range []string{"test", "justdb", "noscripts"} {
		if c.Bool(name) {
			names = append(names, name)
		}
	}
	flags, err := librpm.ParseTransFlags(strings.Join(names, ","))
	if err != nil {
		return 0, 0, err
	}
	ignore, err := librpm.ParseFilterFlags(c.String("ignore"))
	if err != nil {
		return 0, 0, errors.WrapIf(err, "--ignore")
	}
	return flags, ignore, nil
}

// verifyFiles checks the signatures of files if a gpgkey is configured.
func verifyFiles(c *cli.Context, files []string) error {
	path := c.String("gpgkey")
	if path == "" {
		path = rpmqfile(c).GPGKey
	}
	if path == "" {
		return nil
	}
	keyring, err := OpenKeyRing(path)
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, err := CheckSignature(f, keyring); err != nil {
			return err
		}
	}
	return nil
}

// runTransaction stages elements with stage, checks dependencies and runs
// the transaction.
func runTransaction(c *cli.Context, stage func(tx *librpm.Transaction) error) error {
	flags, ignore, err := runFlags(c)
	if err != nil {
		return err
	}
	db, err := openDB(c)
	if err != nil {
		return err
	}
	tx, err := db.Begin(c.Context)
	if err != nil {
		return err
	}
	defer tx.Close()

	if root := setting(c, "root", rpmqfile(c).Root); root != "" {
		if err := tx.UseRoot(root); err != nil {
			return err
		}
	}
	if err := tx.Notify(func(what librpm.CallbackType, amount, total uint64, key string) {
		log.WithFields(log.Fields{
			"event":  what.String(),
			"amount": amount,
			"total":  total,
			"key":    key,
		}).Debug("transaction progress")
	}); err != nil {
		return err
	}

	if err := stage(tx); err != nil {
		return err
	}

	problems, err := tx.Check()
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		for _, p := range problems {
			Errorf(nil, "%s", p)
		}
		return errors.Errorf("failed dependencies: %d problems", len(problems))
	}

	if err := tx.Run(flags, ignore); err != nil {
		var rerr *librpm.RunError
		if errors.As(err, &rerr) {
			for _, p := range rerr.Problems {
				Errorf(nil, "%s", p)
			}
		}
		return err
	}

	verb := map[librpm.ElementTypes]string{
		librpm.ElementAdded:   "Installed",
		librpm.ElementRemoved: "Erased",
	}
	if flags.Has(librpm.TransFlagTest) {
		verb[librpm.ElementAdded] = "Would install"
		verb[librpm.ElementRemoved] = "Would erase"
	}
	it := tx.Elements(librpm.ElementAdded | librpm.ElementRemoved)
	defer it.Close()
	for it.Next() {
		el := it.Element()
		Printf("%s: %s\n", verb[el.Type()], el.NEVRA())
	}
	return nil
}

// ActionInstall processes the 'install' command
func ActionInstall(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return errors.New("install needs at least one FILE")
	}
	if err := verifyFiles(c, files); err != nil {
		return err
	}
	return runTransaction(c, func(tx *librpm.Transaction) error {
		for _, f := range files {
			add := tx.Install
			if c.Bool("upgrade") {
				add = tx.Upgrade
			}
			if err := add(f); err != nil {
				return err
			}
		}
		return nil
	})
}

// ActionReinstall processes the 'reinstall' command
func ActionReinstall(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return errors.New("reinstall needs at least one FILE")
	}
	if err := verifyFiles(c, files); err != nil {
		return err
	}
	return runTransaction(c, func(tx *librpm.Transaction) error {
		for _, f := range files {
			if err := tx.Reinstall(f); err != nil {
				return err
			}
		}
		return nil
	})
}

// ActionErase processes the 'erase' command
func ActionErase(c *cli.Context) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		return errors.New("erase needs at least one NAME")
	}
	return runTransaction(c, func(tx *librpm.Transaction) error {
		for _, name := range names {
			if err := tx.RemoveName(name); err != nil {
				return err
			}
		}
		return nil
	})
}
