package main

import (
	"context"
	"os"
	"os/signal"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/cavaliercoder/rpmq/librpm"
	_ "github.com/cavaliercoder/rpmq/librpm/memengine"
	_ "github.com/cavaliercoder/rpmq/librpm/native"
)

const (
	appName    = "rpmq"
	appVersion = "0.4.0"

	defaultRpmqfile = "./rpmqfile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := newApp().RunContext(ctx, os.Args)
	if err != nil {
		Fatalf(err, "%s failed", appName)
	}
	CloseLogFile()
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appVersion
	app.Usage = "query and change an RPM package database"
	app.Authors = []*cli.Author{{Name: "Ryan Armstrong", Email: "ryan@cavaliercoder.com"}}
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "engine",
			Aliases: []string{"e"},
			Usage:   "package engine: native or pkgdir (default: native when built in)",
			EnvVars: []string{"RPMQ_ENGINE"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "rpm configuration file (default: engine defaults)",
			EnvVars: []string{"RPMQ_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "dbpath",
			Usage:   "package database directory",
			EnvVars: []string{"RPMQ_DBPATH"},
		},
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "install root for transactions",
			EnvVars: []string{"RPMQ_ROOT"},
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "path to rpmqfile",
			Value:   defaultRpmqfile,
		},
		&cli.StringFlag{
			Name:    "logfile",
			Aliases: []string{"l"},
			Usage:   "redirect output to a log file",
			EnvVars: []string{"RPMQ_LOGFILE"},
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "less verbose",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "print debug output",
			EnvVars: []string{"RPMQ_DEBUG"},
		},
	}

	app.Commands = []*cli.Command{
		listCommand,
		findCommand,
		infoCommand,
		installCommand,
		reinstallCommand,
		eraseCommand,
		exportCommand,
		auditCommand,
		healthCommand,
		{
			Name:  "version",
			Usage: "print the version of rpmq",
			Action: func(c *cli.Context) error {
				Printf("%s version %s\n", c.App.Name, c.App.Version)
				return nil
			},
		},
	}

	app.Before = func(c *cli.Context) error {
		output = c.App.Writer
		if err := InitLogging(c.Bool("debug"), c.Bool("quiet"), c.String("logfile")); err != nil {
			return err
		}
		conf, err := loadRpmqfile(c)
		if err != nil {
			return err
		}
		c.App.Metadata = map[string]interface{}{"rpmqfile": conf}
		return nil
	}
	app.After = func(c *cli.Context) error {
		CloseLogFile()
		return nil
	}
	return app
}

// loadRpmqfile reads the rpmqfile named by --file. The default file is
// optional.
func loadRpmqfile(c *cli.Context) (*Rpmqfile, error) {
	path := c.String("file")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !c.IsSet("file") {
			return &Rpmqfile{}, nil
		}
		return nil, errors.WithStack(err)
	}
	return LoadRpmqfile(path)
}

func rpmqfile(c *cli.Context) *Rpmqfile {
	if conf, ok := c.App.Metadata["rpmqfile"].(*Rpmqfile); ok {
		return conf
	}
	return &Rpmqfile{}
}

// setting returns a global flag, falling back to the rpmqfile value.
func setting(c *cli.Context, name, fileValue string) string {
	if c.IsSet(name) || fileValue == "" {
		return c.String(name)
	}
	return fileValue
}

// newEngine creates the engine named by --engine.
var newEngine = librpm.NewEngine

// openDB configures a package database from the global flags and the
// rpmqfile.
func openDB(c *cli.Context) (*librpm.DB, error) {
	conf := rpmqfile(c)
	name := setting(c, "engine", conf.Engine)

	var state *librpm.State
	if name == "" {
		state = librpm.Default()
	} else {
		e, err := newEngine(name)
		if err != nil {
			return nil, errors.WrapIfWithDetails(err, "create engine", "available", librpm.Engines())
		}
		state = librpm.NewState(e)
	}

	config := setting(c, "config", conf.Config)
	dbpath := setting(c, "dbpath", conf.DBPath)
	log.WithFields(log.Fields{
		"engine": name,
		"config": config,
		"dbpath": dbpath,
	}).Debug("opening package database")
	return state.OpenPath(c.Context, config, dbpath)
}
