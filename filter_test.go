package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cavaliercoder/rpmq/librpm"
)

func pkg(name, version, arch string, built time.Time) *librpm.Package {
	return &librpm.Package{Name: name, Version: version, Release: "1", Arch: arch, BuildTime: built}
}

func nevras(pkgs []*librpm.Package) []string {
	v := make([]string, len(pkgs))
	for i, p := range pkgs {
		v[i] = p.NEVRA()
	}
	return v
}

func TestFilterApply(t *testing.T) {
	jan := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := jan.AddDate(0, 1, 0)
	mar := jan.AddDate(0, 2, 0)

	pkgs := []*librpm.Package{
		pkg("kernel", "3.10.0", "x86_64", jan),
		pkg("kernel", "3.10.10", "x86_64", mar),
		pkg("kernel", "3.10.9", "x86_64", feb),
		pkg("glibc", "2.17", "i686", jan),
		pkg("glibc", "2.17", "x86_64", feb),
	}

	tests := []struct {
		filter Filter
		want   []string
	}{
		{Filter{}, nevras(pkgs)},
		{Filter{Arch: "i686"}, []string{"glibc-2.17-1.i686"}},
		{Filter{NewOnly: true}, []string{"kernel-3.10.10-1.x86_64", "glibc-2.17-1.i686", "glibc-2.17-1.x86_64"}},
		{Filter{MinDate: feb}, []string{"kernel-3.10.10-1.x86_64", "kernel-3.10.9-1.x86_64", "glibc-2.17-1.x86_64"}},
		{Filter{MaxDate: feb}, []string{"kernel-3.10.0-1.x86_64", "kernel-3.10.9-1.x86_64", "glibc-2.17-1.i686", "glibc-2.17-1.x86_64"}},
		// newest of the packages that pass the date filter
		{Filter{NewOnly: true, MaxDate: feb, Arch: "x86_64"}, []string{"kernel-3.10.9-1.x86_64", "glibc-2.17-1.x86_64"}},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, nevras(test.filter.Apply(pkgs)), "%+v", test.filter)
	}
}

func TestFilterValidate(t *testing.T) {
	jan := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, (&Filter{}).Validate())
	assert.NoError(t, (&Filter{MinDate: jan, MaxDate: jan}).Validate())
	assert.NoError(t, (&Filter{MaxDate: jan}).Validate())
	assert.Error(t, (&Filter{MinDate: jan, MaxDate: jan.Add(-time.Second)}).Validate())
}

func TestSortPackages(t *testing.T) {
	pkgs := []*librpm.Package{
		pkg("zlib", "1.2.7", "x86_64", time.Time{}),
		pkg("kernel", "3.10.10", "x86_64", time.Time{}),
		pkg("kernel", "3.10.9", "x86_64", time.Time{}),
		pkg("glibc", "2.17", "x86_64", time.Time{}),
		pkg("glibc", "2.17", "i686", time.Time{}),
	}
	sortPackages(pkgs)
	assert.Equal(t, []string{
		"glibc-2.17-1.i686",
		"glibc-2.17-1.x86_64",
		"kernel-3.10.9-1.x86_64",
		"kernel-3.10.10-1.x86_64",
		"zlib-1.2.7-1.x86_64",
	}, nevras(pkgs))
}
