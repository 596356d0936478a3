package librpm

import (
	"strconv"
	"strings"
	"time"

	"github.com/cavaliercoder/go-rpm/version"
)

// Package is a detached copy of the identity and description of a package.
// It holds no reference to the engine.
type Package struct {
	Name    string
	Epoch   *int // nil if the header has no EPOCH
	Version string
	Release string
	Arch    string // empty if the header has no ARCH, as for gpg-pubkey

	License     string
	Summary     string
	Description string
	BuildTime   time.Time

	Size      uint64
	OS        string
	URL       string
	Vendor    string
	SourceRPM string
}

// EVR returns "[epoch:]version-release".
func (p *Package) EVR() string {
	var b strings.Builder
	if p.Epoch != nil {
		b.WriteString(strconv.Itoa(*p.Epoch))
		b.WriteByte(':')
	}
	b.WriteString(p.Version)
	b.WriteByte('-')
	b.WriteString(p.Release)
	return b.String()
}

// NEVR returns "name-[epoch:]version-release".
func (p *Package) NEVR() string {
	return p.Name + "-" + p.EVR()
}

// NEVRA returns "name-[epoch:]version-release.arch".
func (p *Package) NEVRA() string {
	if p.Arch == "" {
		return p.NEVR()
	}
	return p.NEVR() + "." + p.Arch
}

func (p *Package) String() string {
	return p.NEVRA()
}

// Compare compares the epoch, version and release of two packages using the
// rpmvercmp ordering. It returns -1, 0 or 1. A missing epoch counts as 0.
func (p *Package) Compare(o *Package) int {
	return version.Compare(evr{p}, evr{o})
}

// evr adapts a Package to version.Interface.
type evr struct {
	p *Package
}

func (v evr) Epoch() int {
	if v.p.Epoch == nil {
		return 0
	}
	return *v.p.Epoch
}

func (v evr) Name() string    { return v.p.Name }
func (v evr) Version() string { return v.p.Version }
func (v evr) Release() string { return v.p.Release }
