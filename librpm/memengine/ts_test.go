package memengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavaliercoder/rpmq/librpm"
)

func (e *Engine) stage(t *testing.T, ts librpm.TSPtr, ent Entry, upgrade bool) {
	t.Helper()
	h := e.testHeader(t, ent)
	defer e.HeaderFree(h)
	name, _ := (*header)(h).getString(librpm.TagName)
	require.Equal(t, 0, e.TSAddInstallElement(ts, h, name+".rpm", upgrade))
}

func TestInstall(t *testing.T) {
	e := newEngine(t)
	ts := e.TSCreate()
	defer e.TSFree(ts)

	var events []librpm.CallbackType
	var keys []string
	require.Equal(t, 0, e.TSSetNotifyCallback(ts, func(what librpm.CallbackType, amount, total uint64, key string) {
		events = append(events, what)
		keys = append(keys, key)
	}))

	e.stage(t, ts, entry("bash", "5.1", "2", "x86_64"), false)
	assert.Equal(t, 1, e.TSNElements(ts))
	require.Equal(t, 0, e.TSRun(ts, librpm.FilterNone))

	assert.Equal(t, []string{"bash-5.1-2.x86_64"}, e.Installed())
	assert.Equal(t, []librpm.CallbackType{
		librpm.CallbackTransStart,
		librpm.CallbackInstStart,
		librpm.CallbackInstProgress,
		librpm.CallbackInstStop,
		librpm.CallbackTransStop,
	}, events)
	assert.Equal(t, "bash.rpm", keys[1])

	te := e.TSElement(ts, 0)
	require.NotZero(t, te)
	assert.Equal(t, librpm.ElementAdded, e.TEType(te))
	assert.Equal(t, "bash-5.1-2.x86_64", e.TEString(te, librpm.ElementNEVRA))
	assert.Equal(t, "5.1-2", e.TEString(te, librpm.ElementEVR))
	assert.Equal(t, "bash.rpm", e.TEKey(te))
	assert.NotZero(t, e.TEDBInstance(te))
	assert.Equal(t, uint32(2), e.TEColor(te))
	assert.True(t, e.TEIsSource(te))
	_, ok := e.TEEpoch(te)
	assert.False(t, ok)
	assert.Zero(t, e.TSElement(ts, 1))

	h := e.TEHeader(te)
	assert.True(t, e.HeaderIsEntry(h, librpm.TagName))
	e.HeaderFree(h)
}

func TestInstallProblems(t *testing.T) {
	e := newEngine(t)
	e.Insert(entry("bash", "5.1", "2", "x86_64"))

	tests := []struct {
		name    string
		entry   Entry
		ignore  librpm.FilterFlags
		problem librpm.ProblemType
		rc      int
	}{
		{"same version", entry("bash", "5.1", "2", "x86_64"), librpm.FilterNone, librpm.ProblemPkgInstalled, 1},
		{"same version ignored", entry("bash", "5.1", "2", "x86_64"), librpm.FilterReplacePkg, 0, 0},
		{"older version", entry("bash", "5.0", "1", "x86_64"), librpm.FilterNone, librpm.ProblemOldPackage, 1},
		{"older version ignored", entry("bash", "5.0", "1", "x86_64"), librpm.FilterOldPackage, 0, 0},
		{"other arch", entry("bash", "5.1", "2", "i686"), librpm.FilterNone, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := e.TSCreate()
			defer e.TSFree(ts)
			e.stage(t, ts, tt.entry, false)
			e.TSSetFlags(ts, librpm.TransFlagTest)

			assert.Equal(t, tt.rc, e.TSRun(ts, tt.ignore))
			probs := e.TSProblems(ts)
			if tt.rc == 0 {
				assert.Empty(t, probs)
				return
			}
			require.Len(t, probs, 1)
			assert.Equal(t, tt.problem, probs[0].Type)
			assert.Equal(t, "bash.rpm", probs[0].Key)
			assert.Equal(t, probs, e.TEProblems(e.TSElement(ts, 0)))
		})
	}
	assert.Equal(t, []string{"bash-5.1-2.x86_64"}, e.Installed(), "test transactions change nothing")
}

func TestOldPackageProblemString(t *testing.T) {
	e := newEngine(t)
	e.Insert(entry("bash", "5.1", "2", "x86_64"))
	ts := e.TSCreate()
	defer e.TSFree(ts)
	e.stage(t, ts, entry("bash", "5.0", "1", "x86_64"), false)

	require.Equal(t, 1, e.TSRun(ts, librpm.FilterNone))
	probs := e.TSProblems(ts)
	require.Len(t, probs, 1)
	assert.Equal(t, "package bash-5.1-2.x86_64 (which is newer than bash-5.0-1.x86_64) is already installed", probs[0].String())

	e.TSClean(ts)
	assert.Empty(t, e.TSProblems(ts))
}

func TestBadArch(t *testing.T) {
	e := newEngine(t)
	require.Equal(t, 0, e.DefineMacro("_arch x86_64", librpm.MacroLevelGlobal))
	ts := e.TSCreate()
	defer e.TSFree(ts)
	e.stage(t, ts, entry("bash", "5.1", "2", "aarch64"), false)
	e.stage(t, ts, entry("tzdata", "2023c", "1", "noarch"), false)

	require.Equal(t, 1, e.TSRun(ts, librpm.FilterNone))
	assert.Equal(t, librpm.ProblemBadArch, e.TSProblems(ts)[0].Type)
	assert.Equal(t, 0, e.TSRun(ts, librpm.FilterIgnoreArch))
	assert.Len(t, e.Installed(), 2)
}

func TestUpgrade(t *testing.T) {
	e := newEngine(t)
	e.Insert(entry("bash", "5.0", "1", "x86_64"), entry("bash", "5.0", "1", "i686"))
	ts := e.TSCreate()
	defer e.TSFree(ts)

	e.stage(t, ts, entry("bash", "5.1", "2", "x86_64"), true)
	require.Equal(t, 2, e.TSNElements(ts))

	removed := e.TSElement(ts, 1)
	assert.Equal(t, librpm.ElementRemoved, e.TEType(removed))
	assert.Equal(t, e.TSElement(ts, 0), e.TEParent(removed))
	assert.Equal(t, "bash-5.0-1.x86_64", e.TEString(removed, librpm.ElementNEVRA))

	tsi := e.TSIInit(ts)
	assert.Equal(t, removed, e.TSINext(tsi, librpm.ElementRemoved))
	assert.Zero(t, e.TSINext(tsi, librpm.ElementRemoved))
	e.TSIFree(tsi)

	require.Equal(t, 0, e.TSRun(ts, librpm.FilterNone))
	assert.Equal(t, []string{"bash-5.0-1.i686", "bash-5.1-2.x86_64"}, e.Installed())
}

func TestErase(t *testing.T) {
	e := newEngine(t)
	offsets := e.Insert(entry("bash", "5.1", "2", "x86_64"), entry("zlib", "1.2.11", "1", "x86_64"))
	ts := e.TSCreate()
	defer e.TSFree(ts)

	h := e.testHeader(t, entry("bash", "5.1", "2", "x86_64"))
	defer e.HeaderFree(h)
	assert.Equal(t, 1, e.TSAddEraseElement(ts, h, 999))
	require.Equal(t, 0, e.TSAddEraseElement(ts, h, offsets[0]))
	require.Equal(t, 0, e.TSAddEraseElement(ts, h, offsets[0]))
	assert.Equal(t, 1, e.TSNElements(ts))
	assert.Equal(t, offsets[0], e.TEDBInstance(e.TSElement(ts, 0)))

	require.Equal(t, 0, e.TSRun(ts, librpm.FilterNone))
	assert.Equal(t, []string{"zlib-1.2.11-1.x86_64"}, e.Installed())
}

func TestReinstall(t *testing.T) {
	e := newEngine(t)
	ts := e.TSCreate()
	defer e.TSFree(ts)

	h := e.testHeader(t, entry("bash", "5.1", "2", "x86_64"))
	defer e.HeaderFree(h)
	assert.Equal(t, 1, e.TSAddReinstallElement(ts, h, "bash.rpm"), "not installed")

	e.Insert(entry("bash", "5.1", "2", "x86_64"))
	require.Equal(t, 0, e.TSAddReinstallElement(ts, h, "bash.rpm"))
	require.Equal(t, 0, e.TSRun(ts, librpm.FilterNone))
	assert.Equal(t, []string{"bash-5.1-2.x86_64"}, e.Installed())
}

func TestCheckAndOrder(t *testing.T) {
	e := newEngine(t)
	e.Insert(entry("glibc", "2.17", "1", "x86_64"))
	ts := e.TSCreate()
	defer e.TSFree(ts)

	app := entry("app", "1.0", "1", "x86_64")
	app[librpm.TagRequireName] = librpm.StringArray{"libfoo.so.1", "glibc", "rpmlib(PayloadFilesHavePrefix)", "/bin/sh"}
	e.stage(t, ts, app, false)

	require.Equal(t, 0, e.TSCheck(ts))
	probs := e.TSProblems(ts)
	require.Len(t, probs, 1)
	assert.Equal(t, librpm.ProblemRequires, probs[0].Type)
	assert.Equal(t, "libfoo.so.1 is needed by app-1.0-1.x86_64", probs[0].String())

	lib := entry("foo", "1.0", "1", "x86_64")
	lib[librpm.TagProvideName] = librpm.StringArray{"libfoo.so.1"}
	e.stage(t, ts, lib, false)
	require.Equal(t, 0, e.TSCheck(ts))
	assert.Empty(t, e.TSProblems(ts))

	require.Equal(t, 0, e.TSOrder(ts))
	first, second := e.TSElement(ts, 0), e.TSElement(ts, 1)
	assert.Equal(t, "foo", e.TEString(first, librpm.ElementName))
	assert.Equal(t, "app", e.TEString(second, librpm.ElementName))
	assert.Equal(t, first, e.TEDependsOn(second))
	assert.Zero(t, e.TEDependsOn(first))
}

func TestTransactionSetReferences(t *testing.T) {
	e := newEngine(t)
	e.Insert(entry("bash", "5.0", "1", "x86_64"))
	base := e.RefTotal()

	ts := e.TSCreate()
	e.stage(t, ts, entry("bash", "5.1", "2", "x86_64"), true)
	assert.Equal(t, base+2, e.RefTotal())

	require.Equal(t, 0, e.TSRun(ts, librpm.FilterNone))
	e.TSEmpty(ts)
	assert.Equal(t, 0, e.TSNElements(ts))
	assert.Equal(t, base, e.RefTotal())

	e.TSFree(ts)
	assert.Panics(t, func() { e.TSFree(ts) })
}

func TestRootDir(t *testing.T) {
	e := newEngine(t)
	ts := e.TSCreate()
	defer e.TSFree(ts)

	assert.Equal(t, "/", e.TSRootDir(ts))
	assert.Equal(t, -1, e.TSSetRootDir(ts, "relative/dir"))
	assert.Equal(t, -1, e.TSSetRootDir(ts, filepath.Join(t.TempDir(), "missing")))

	dir := t.TempDir()
	require.Equal(t, 0, e.TSSetRootDir(ts, dir))
	assert.Equal(t, dir, e.TSRootDir(ts))
}

func TestReadPackageFile(t *testing.T) {
	e := newEngine(t)
	ts := e.TSCreate()
	defer e.TSFree(ts)

	_, rc := e.TSReadPackageFile(ts, filepath.Join(t.TempDir(), "missing.rpm"))
	assert.Equal(t, librpm.RCFail, rc)

	junk := filepath.Join(t.TempDir(), "junk.rpm")
	require.NoError(t, os.WriteFile(junk, []byte("not a package"), 0o644))
	h, rc := e.TSReadPackageFile(ts, junk)
	assert.Equal(t, librpm.RCNotFound, rc)
	assert.Zero(t, h)
}

func TestLoadDirSkipsJunk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.rpm"), []byte("not a package"), 0o644))

	e := New()
	require.Equal(t, 0, e.DefineMacro("_dbpath "+dir, librpm.MacroLevelGlobal))
	assert.Empty(t, e.Installed())
}

func TestCalls(t *testing.T) {
	e := newEngine(t)
	e.HeaderFree(e.HeaderNew())
	assert.Empty(t, e.Calls())

	e.RecordCalls()
	h := e.HeaderNew()
	e.HeaderFree(h)

	calls := e.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "HeaderNew", calls[0].Op)
	assert.Equal(t, "HeaderFree", calls[1].Op)
	assert.Equal(t, calls[0].Handle, calls[1].Handle)
}
