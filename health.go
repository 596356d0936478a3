package main

import (
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/urfave/cli/v2"
)

var rpmVersionPattern = regexp.MustCompile(`^RPM version (.*)`)

var healthCommand = &cli.Command{
	Name:   "health",
	Usage:  "check the package engine and database",
	Action: ActionHealth,
}

// rpmVersion returns the version of the rpm binary, or an empty string if it
// is not installed.
func rpmVersion() string {
	out, err := exec.Command("rpm", "--version").CombinedOutput()
	if err != nil {
		return ""
	}
	if m := rpmVersionPattern.FindStringSubmatch(string(out)); m != nil {
		return m[1]
	}
	return strings.TrimSpace(string(out))
}

// ActionHealth processes the 'health' command
func ActionHealth(c *cli.Context) error {
	const colWidth = 10

	db, err := openDB(c)
	if err != nil {
		return err
	}

	name := setting(c, "engine", rpmqfile(c).Engine)
	if name == "" {
		name = "default"
	}
	Printf("%-*s%s (%s)\n", colWidth, "engine:", name, db.Engine().Version())

	if v := rpmVersion(); v != "" {
		Printf("%-*sinstalled (v%s)\n", colWidth, "rpm:", v)
	} else {
		Printf("%-*snot found\n", colWidth, "rpm:")
	}

	dbpath, err := db.ExpandMacro(c.Context, "%{_dbpath}")
	if err != nil {
		return err
	}
	status := "ok"
	if fi, err := os.Stat(dbpath); err != nil || !fi.IsDir() {
		status = "missing"
	}
	Printf("%-*s%s (%s)\n", colWidth, "dbpath:", dbpath, status)
	return nil
}
