package yum

import (
	"strconv"
	"strings"

	"github.com/cavaliercoder/rpmq/librpm"
	"github.com/cavaliercoder/rpmq/yum/crypto"
)

// Package is one package row of a repository database: the identity of an
// installed package plus the lists read from its header.
type Package struct {
	*librpm.Package

	Group     string
	Packager  string
	BuildHost string

	Requires  []string
	Provides  []string
	Conflicts []string
	Obsoletes []string
	Files     []string
}

// NewPackage copies a package out of h.
func NewPackage(h *librpm.Header) *Package {
	p := &Package{
		Package:   h.ToPackage(),
		Group:     headerString(h, librpm.TagGroup),
		Packager:  headerString(h, librpm.TagPackager),
		BuildHost: headerString(h, librpm.TagBuildHost),
		Requires:  headerStrings(h, librpm.TagRequireName),
		Provides:  headerStrings(h, librpm.TagProvideName),
		Conflicts: headerStrings(h, librpm.TagConflictName),
		Obsoletes: headerStrings(h, librpm.TagObsoleteName),
		Files:     headerStrings(h, librpm.TagFilenames),
	}
	return p
}

func headerString(h *librpm.Header, tag librpm.Tag) string {
	s, _ := h.GetString(tag)
	return strings.Clone(s)
}

func headerStrings(h *librpm.Header, tag librpm.Tag) []string {
	d, ok := h.Get(tag)
	if !ok {
		return nil
	}
	v, ok := librpm.AsStrings(d)
	if !ok {
		return nil
	}
	out := make([]string, len(v))
	for i, s := range v {
		out[i] = strings.Clone(s)
	}
	return out
}

// Location is the href of the package file relative to the repository base.
func (p *Package) Location() string {
	return p.NEVRA() + ".rpm"
}

// ID identifies the package in the pkgId column. Installed packages have no
// file to digest, so it is the sha256 of the NEVRA and build time.
func (p *Package) ID() string {
	sum, _ := crypto.NewSha256().Checksum(strings.NewReader(p.NEVRA() + "\x00" + strconv.FormatInt(p.BuildTime.Unix(), 10)))
	return sum
}

// EpochString is the epoch column: "0" when the package has no epoch.
func (p *Package) EpochString() string {
	if p.Epoch == nil {
		return "0"
	}
	return strconv.Itoa(*p.Epoch)
}
