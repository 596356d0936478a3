package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavaliercoder/rpmq/librpm"
	"github.com/cavaliercoder/rpmq/librpm/memengine"
)

func intPtr(n int) *int { return &n }

var testPackages = []*librpm.Package{
	{
		Name:        "bash",
		Version:     "4.2.46",
		Release:     "34.el7",
		Arch:        "x86_64",
		License:     "GPLv3+",
		Summary:     "The GNU Bourne Again shell",
		Description: "The GNU Bourne Again shell (Bash) is a shell or command language\ninterpreter.",
		BuildTime:   time.Date(2019, 8, 7, 0, 0, 0, 0, time.UTC),
		Size:        3667773,
		OS:          "linux",
	},
	{
		Name:        "tzdata",
		Version:     "2020a",
		Release:     "1.el7",
		Arch:        "noarch",
		License:     "Public Domain",
		Summary:     "Timezone data",
		Description: "This package contains data files with rules for various timezones.",
		BuildTime:   time.Date(2020, 4, 23, 0, 0, 0, 0, time.UTC),
		Size:        2048,
		OS:          "linux",
	},
	{
		Name:        "zlib",
		Epoch:       intPtr(1),
		Version:     "1.2.7",
		Release:     "18.el7",
		Arch:        "x86_64",
		License:     "zlib and Boost",
		Summary:     "The compression and decompression library",
		Description: "Zlib is a general-purpose, patent-free, lossless data compression\nlibrary.",
		BuildTime:   time.Date(2019, 8, 6, 0, 0, 0, 0, time.UTC),
		Size:        185294,
		OS:          "linux",
	},
}

// withEngine makes every --engine value resolve to a pkgdir engine holding
// testPackages under the returned database path.
func withEngine(t *testing.T) string {
	t.Helper()
	dbpath := t.TempDir()

	e := memengine.New()
	require.Equal(t, 0, e.ReadConfigFiles(""))
	require.Equal(t, 0, e.DefineMacro("_dbpath "+dbpath, librpm.MacroLevelGlobal))
	for _, p := range testPackages {
		e.Insert(memengine.PackageEntry(p))
	}

	saved := newEngine
	newEngine = func(name string) (librpm.Engine, error) { return e, nil }
	t.Cleanup(func() { newEngine = saved })
	return dbpath
}

// run executes rpmq with args against the pkgdir engine at dbpath and returns
// its output.
func run(t *testing.T, dbpath string, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = &buf
	argv := append([]string{appName, "--engine", "pkgdir", "--dbpath", dbpath}, args...)
	err := app.Run(argv)
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Equal(t, "rpmq version "+appVersion+"\n", out)
}

func TestList(t *testing.T) {
	dbpath := withEngine(t)

	out, err := run(t, dbpath, "list")
	require.NoError(t, err)
	assert.Equal(t, "bash-4.2.46-34.el7.x86_64\ntzdata-2020a-1.el7.noarch\nzlib-1:1.2.7-18.el7.x86_64\n", out)

	out, err = run(t, dbpath, "list", "--long")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2.0 kB")
	assert.True(t, strings.HasSuffix(lines[1], "  Timezone data"))
}

func TestListRpmqfileFilter(t *testing.T) {
	dbpath := withEngine(t)
	conf := filepath.Join(t.TempDir(), "rpmqfile")
	require.NoError(t, os.WriteFile(conf, []byte("[filter]\narch = x86_64\nmindate = 2019-08-07\n"), 0o644))

	out, err := run(t, dbpath, "--file", conf, "list")
	require.NoError(t, err)
	assert.Equal(t, "bash-4.2.46-34.el7.x86_64\n", out)
}

func TestMissingRpmqfile(t *testing.T) {
	dbpath := withEngine(t)
	_, err := run(t, dbpath, "--file", filepath.Join(t.TempDir(), "nope"), "list")
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	dbpath := withEngine(t)

	out, err := run(t, dbpath, "find", "zlib")
	require.NoError(t, err)
	assert.Equal(t, "zlib-1:1.2.7-18.el7.x86_64\n", out)

	out, err = run(t, dbpath, "find", "--index", "license", "Public Domain")
	require.NoError(t, err)
	assert.Equal(t, "tzdata-2020a-1.el7.noarch\n", out)

	_, err = run(t, dbpath, "find", "vim")
	assert.EqualError(t, err, "no matching packages")

	_, err = run(t, dbpath, "find", "--index", "buildhost", "x")
	assert.Error(t, err)

	_, err = run(t, dbpath, "find")
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	dbpath := withEngine(t)

	out, err := run(t, dbpath, "info", "zlib")
	require.NoError(t, err)
	assert.Contains(t, out, "Name        : zlib\n")
	assert.Contains(t, out, "Epoch       : 1\n")
	assert.Contains(t, out, "License     : zlib and Boost\n")
	assert.Contains(t, out, "URL         : (none)\n")
	assert.Contains(t, out, "Description :\nZlib is a general-purpose")

	out, err = run(t, dbpath, "info", "bash", "vim")
	assert.EqualError(t, err, "1 of 2 packages are not installed")
	assert.Contains(t, out, "Epoch       : (none)\n")
}

func TestErase(t *testing.T) {
	dbpath := withEngine(t)

	out, err := run(t, dbpath, "erase", "--test", "tzdata")
	require.NoError(t, err)
	assert.Equal(t, "Would erase: tzdata-2020a-1.el7.noarch\n", out)

	out, err = run(t, dbpath, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "tzdata")

	out, err = run(t, dbpath, "erase", "tzdata")
	require.NoError(t, err)
	assert.Equal(t, "Erased: tzdata-2020a-1.el7.noarch\n", out)

	out, err = run(t, dbpath, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "tzdata")

	_, err = run(t, dbpath, "erase", "tzdata")
	assert.True(t, errors.Is(err, librpm.ErrNotInstalled))
}

func TestTransactionArgs(t *testing.T) {
	dbpath := withEngine(t)

	_, err := run(t, dbpath, "erase")
	assert.Error(t, err)

	_, err = run(t, dbpath, "install")
	assert.Error(t, err)

	_, err = run(t, dbpath, "erase", "--ignore", "nonsense", "bash")
	assert.Error(t, err)

	_, err = run(t, dbpath, "install", filepath.Join(t.TempDir(), "missing.rpm"))
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	dbpath := withEngine(t)
	dir := t.TempDir()

	out, err := run(t, dbpath, "export", "--compress", "gzip", dir)
	require.NoError(t, err)
	assert.Equal(t, "Exported 3 packages to "+dir+"\n", out)
	assert.FileExists(t, filepath.Join(dir, "repodata", "repomd.xml"))

	matches, err := filepath.Glob(filepath.Join(dir, "repodata", "*-primary.sqlite.gz"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.NoDirExists(t, filepath.Join(dir, "repodata", "gen"))

	dir = t.TempDir()
	out, err = run(t, dbpath, "export", "--verify", dir)
	require.NoError(t, err)
	assert.Equal(t, "Exported 3 packages to "+dir+"\nVerified 3 packages, 0 files and 0 dependencies\n", out)

	_, err = run(t, dbpath, "export", "--compress", "lzma", t.TempDir())
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	dbpath := withEngine(t)

	out, err := run(t, dbpath, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "engine:   pkgdir (memengine (")
	assert.Contains(t, out, "dbpath:   "+dbpath+" (ok)\n")
}

func TestAuditNoDatabaseFile(t *testing.T) {
	dbpath := withEngine(t)
	_, err := run(t, dbpath, "audit")
	assert.Error(t, err)
}
