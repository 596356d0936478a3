package main

import (
	"os"
	"path/filepath"
	"testing"

	rpmdb "github.com/knqyf263/go-rpmdb/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavaliercoder/rpmq/librpm"
)

func TestAuditDiff(t *testing.T) {
	engine := []*librpm.Package{
		{Name: "bash", Version: "4.2.46", Release: "34.el7", Arch: "x86_64"},
		{Name: "zlib", Epoch: intPtr(1), Version: "1.2.7", Release: "18.el7", Arch: "x86_64"},
		{Name: "kernel", Version: "3.10.0", Release: "1160.el7", Arch: "x86_64"},
	}
	file := []*librpm.Package{
		{Name: "kernel", Version: "3.10.0", Release: "1160.el7", Arch: "x86_64"},
		{Name: "kernel", Version: "3.10.0", Release: "1062.el7", Arch: "x86_64"},
		{Name: "zlib", Version: "1.2.7", Release: "18.el7", Arch: "x86_64"},
		{Name: "bash", Version: "4.2.46", Release: "34.el7", Arch: "x86_64"},
	}

	engineOnly, fileOnly := auditDiff(engine, file)
	assert.Equal(t, []string{"zlib-1:1.2.7-18.el7.x86_64"}, engineOnly)
	assert.Equal(t, []string{"kernel-3.10.0-1062.el7.x86_64", "zlib-1.2.7-18.el7.x86_64"}, fileOnly)

	engineOnly, fileOnly = auditDiff(engine, engine)
	assert.Empty(t, engineOnly)
	assert.Empty(t, fileOnly)
}

func TestFindRpmdb(t *testing.T) {
	dir := t.TempDir()
	_, err := findRpmdb(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Packages"), nil, 0o644))
	path, err := findRpmdb(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Packages"), path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "rpmdb.sqlite"), nil, 0o644))
	path, err = findRpmdb(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rpmdb.sqlite"), path)
}

func TestPackageFromInfo(t *testing.T) {
	p := packageFromInfo(&rpmdb.PackageInfo{Name: "bash", Version: "4.2.46", Release: "34.el7", Arch: "x86_64"})
	assert.Nil(t, p.Epoch)
	assert.Equal(t, "bash-4.2.46-34.el7.x86_64", p.NEVRA())

	p = packageFromInfo(&rpmdb.PackageInfo{Name: "zlib", Epoch: 1, Version: "1.2.7", Release: "18.el7", Arch: "x86_64"})
	require.NotNil(t, p.Epoch)
	assert.Equal(t, 1, *p.Epoch)
	assert.Equal(t, "zlib-1:1.2.7-18.el7.x86_64", p.NEVRA())
}

func TestAuditDiffZeroEpoch(t *testing.T) {
	engine := []*librpm.Package{
		{Name: "setup", Epoch: intPtr(0), Version: "2.8.71", Release: "11.el7", Arch: "noarch"},
	}
	file := []*librpm.Package{
		packageFromInfo(&rpmdb.PackageInfo{Name: "setup", Version: "2.8.71", Release: "11.el7", Arch: "noarch"}),
	}
	engineOnly, fileOnly := auditDiff(engine, file)
	assert.Empty(t, engineOnly)
	assert.Empty(t, fileOnly)
}
