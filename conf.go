package main

import (
	"bufio"
	"os"
	"regexp"
	"strings"
	"time"

	"emperror.dev/errors"
)

// Rpmqfile holds defaults read from an rpmqfile. Command line flags override
// them.
//
//	engine = native
//	dbpath = /var/lib/rpm
//	gpgkey = file:///etc/pki/rpm-gpg/RPM-GPG-KEY-CentOS-7
//
//	[filter]
//	arch = x86_64
//	newonly = yes
//	mindate = 2017-01-01
type Rpmqfile struct {
	Path string

	Engine string
	Config string
	DBPath string
	Root   string
	GPGKey string

	Filter Filter
}

var (
	sectionHeadPattern = regexp.MustCompile(`^\[(.*)\]`)
	keyValPattern      = regexp.MustCompile(`^(\w+)\s*=\s*(.*)`)
	commentPattern     = regexp.MustCompile(`(^$)|(^\s+$)|(^#)|(^;)`)
)

// dateLayouts are the accepted forms of mindate and maxdate.
var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func syntaxError(path string, n int, format string, a ...interface{}) error {
	return errors.Errorf("syntax error in %s on line %d: "+format, append([]interface{}{path, n}, a...)...)
}

// LoadRpmqfile loads an rpmqfile from disk.
func LoadRpmqfile(path string) (*Rpmqfile, error) {
	Dprintf("Loading rpmqfile: %s", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	conf := &Rpmqfile{Path: path}
	section := ""
	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
		s := strings.TrimRight(scanner.Text(), " \t")

		if matches := sectionHeadPattern.FindStringSubmatch(s); matches != nil {
			section = matches[1]
			if section != "filter" {
				return nil, syntaxError(path, n, "unknown section: %s", section)
			}
		} else if matches := keyValPattern.FindStringSubmatch(s); matches != nil {
			key, val := matches[1], matches[2]
			if err := conf.set(section, key, val); err != nil {
				return nil, syntaxError(path, n, "%s: %v", key, err)
			}
		} else if commentPattern.MatchString(s) {
			// ignore line
		} else {
			return nil, syntaxError(path, n, "%s", s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return conf, conf.Filter.Validate()
}

func (c *Rpmqfile) set(section, key, val string) error {
	if section == "" {
		switch key {
		case "engine":
			c.Engine = val
		case "config":
			c.Config = val
		case "dbpath":
			c.DBPath = val
		case "root":
			c.Root = val
		case "gpgkey":
			c.GPGKey = val
		default:
			return errors.New("unknown key")
		}
		return nil
	}

	switch key {
	case "arch":
		c.Filter.Arch = val
	case "newonly":
		b, err := strToBool(val)
		if err != nil {
			return err
		}
		c.Filter.NewOnly = b
	case "mindate":
		t, err := parseDate(val)
		if err != nil {
			return err
		}
		c.Filter.MinDate = t
	case "maxdate":
		t, err := parseDate(val)
		if err != nil {
			return err
		}
		c.Filter.MaxDate = t
	default:
		return errors.New("unknown key")
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("invalid date: %s", s)
}

func strToBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "enabled", "yes":
		return true, nil
	case "0", "false", "disabled", "no":
		return false, nil
	}
	return false, errors.Errorf("invalid boolean value: %s", s)
}
