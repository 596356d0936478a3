package librpm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavaliercoder/rpmq/librpm"
)

func TestPackageNames(t *testing.T) {
	p := pkg("bash", "4.2.46", "34.el7", "x86_64")
	assert.Equal(t, "4.2.46-34.el7", p.EVR())
	assert.Equal(t, "bash-4.2.46-34.el7", p.NEVR())
	assert.Equal(t, "bash-4.2.46-34.el7.x86_64", p.NEVRA())
	assert.Equal(t, p.NEVRA(), p.String())

	p.Epoch = intp(2)
	assert.Equal(t, "bash-2:4.2.46-34.el7.x86_64", p.NEVRA())

	p.Arch = ""
	assert.Equal(t, "bash-2:4.2.46-34.el7", p.NEVRA())
}

func TestPackageCompare(t *testing.T) {
	tests := []struct {
		a, b  *librpm.Package
		want  int
		descr string
	}{
		{pkg("a", "1.0", "1", ""), pkg("a", "1.0", "1", ""), 0, "equal"},
		{pkg("a", "1.10", "1", ""), pkg("a", "1.9", "1", ""), 1, "numeric segments"},
		{pkg("a", "1.0", "2", ""), pkg("a", "1.0", "10", ""), -1, "release"},
		{&librpm.Package{Version: "1.0", Release: "1", Epoch: intp(1)}, pkg("a", "9.0", "1", ""), 1, "epoch wins"},
		{&librpm.Package{Version: "1.0", Release: "1", Epoch: intp(0)}, pkg("a", "1.0", "1", ""), 0, "missing epoch is zero"},
	}
	for _, tt := range tests {
		t.Run(tt.descr, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestFlags(t *testing.T) {
	f, err := librpm.ParseTransFlags("test,noscripts")
	require.NoError(t, err)
	assert.Equal(t, librpm.TransFlagTest|librpm.TransFlagNoScripts, f)
	assert.True(t, f.Has(librpm.TransFlagTest))
	assert.False(t, f.Has(librpm.TransFlagJustDB))
	assert.Equal(t, "test|noscripts", f.String())
	assert.Equal(t, "none", librpm.TransFlagNone.String())

	f, err = librpm.ParseTransFlags("")
	require.NoError(t, err)
	assert.Equal(t, librpm.TransFlagNone, f)
	_, err = librpm.ParseTransFlags("test,bogus")
	assert.EqualError(t, err, "unknown flag: bogus")

	ignore, err := librpm.ParseFilterFlags("replacepkg | oldpackage")
	require.NoError(t, err)
	assert.Equal(t, librpm.FilterReplacePkg|librpm.FilterOldPackage, ignore)
	assert.Equal(t, librpm.FilterOldPackage, librpm.ProblemOldPackage.Filter())
	assert.Equal(t, librpm.FilterNone, librpm.ProblemRequires.Filter())

	assert.Equal(t, "test|0x4000", (librpm.TransFlagTest | librpm.TransFlags(1<<14)).String())
}

func TestProblemStrings(t *testing.T) {
	tests := []struct {
		p    librpm.Problem
		want string
	}{
		{librpm.Problem{Type: librpm.ProblemPkgInstalled, Package: "bash-1-1.x86_64"}, "package bash-1-1.x86_64 is already installed"},
		{librpm.Problem{Type: librpm.ProblemBadArch, Package: "bash-1-1.s390x", Str: "s390x"}, "package bash-1-1.s390x is intended for a s390x architecture"},
		{librpm.Problem{Type: librpm.ProblemRequires, Package: "app-1-1", AltPackage: "libfoo"}, "libfoo is needed by app-1-1"},
		{librpm.Problem{Type: librpm.ProblemDiskSpace, Package: "big-1-1", Str: "/", Number: 42}, "installing package big-1-1 needs 42 bytes more space on the / filesystem"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.p.String())
	}
	assert.Equal(t, "OLDPACKAGE", librpm.ProblemOldPackage.String())
	assert.Equal(t, "ProblemType(99)", librpm.ProblemType(99).String())
}
