package main

import (
	"sort"
	"time"

	"emperror.dev/errors"

	"github.com/cavaliercoder/rpmq/librpm"
)

// Filter narrows a package list. The zero Filter passes everything.
type Filter struct {
	Arch    string
	NewOnly bool
	MinDate time.Time
	MaxDate time.Time
}

func (c *Filter) Validate() error {
	if !c.MinDate.IsZero() && !c.MaxDate.IsZero() && c.MaxDate.Before(c.MinDate) {
		return errors.Errorf("maxdate %s is before mindate %s", c.MaxDate.Format(time.RFC3339), c.MinDate.Format(time.RFC3339))
	}
	return nil
}

// Include reports whether a single package passes the arch and date filters.
func (c *Filter) Include(p *librpm.Package) bool {
	if c.Arch != "" && p.Arch != c.Arch {
		return false
	}
	if !c.MinDate.IsZero() && p.BuildTime.Before(c.MinDate) {
		return false
	}
	if !c.MaxDate.IsZero() && p.BuildTime.After(c.MaxDate) {
		return false
	}
	return true
}

// Apply returns the packages that pass the filter, in their original order.
// With NewOnly, only the newest version of each name and arch is kept.
func (c *Filter) Apply(packages []*librpm.Package) []*librpm.Package {
	keep := make([]bool, len(packages))
	for i, p := range packages {
		keep[i] = c.Include(p)
	}

	if c.NewOnly {
		// index on name and architecture
		newest := make(map[string]int)
		for i, p := range packages {
			if !keep[i] {
				continue
			}
			id := p.Name + "." + p.Arch
			if n, ok := newest[id]; ok {
				if p.Compare(packages[n]) > 0 {
					keep[n] = false
					newest[id] = i
				} else {
					keep[i] = false
				}
			} else {
				newest[id] = i
			}
		}
	}

	filtered := make([]*librpm.Package, 0, len(packages))
	for i, p := range packages {
		if keep[i] {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// sortPackages orders packages by name, then arch, then version.
func sortPackages(packages []*librpm.Package) {
	sort.SliceStable(packages, func(i, j int) bool {
		a, b := packages[i], packages[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Arch != b.Arch {
			return a.Arch < b.Arch
		}
		return a.Compare(b) < 0
	})
}
