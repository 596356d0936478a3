package librpm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavaliercoder/rpmq/librpm"
	"github.com/cavaliercoder/rpmq/librpm/memengine"
)

func newHeader(t *testing.T, e librpm.Engine, p *librpm.Package) *librpm.Header {
	t.Helper()
	h := librpm.NewHeader(e)
	for tag, d := range memengine.PackageEntry(p) {
		require.NoError(t, h.Set(tag, d))
	}
	return h
}

func begin(t *testing.T, s *librpm.State) *librpm.Transaction {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func TestTransactionInstall(t *testing.T) {
	s, e := newState(t)
	tx := begin(t, s)

	h := newHeader(t, e, pkg("bash", "4.2.46", "34.el7", "x86_64"))
	require.NoError(t, tx.Add(h, "bash.rpm", false))
	h.Free()

	var events []librpm.CallbackType
	require.NoError(t, tx.Notify(func(what librpm.CallbackType, amount, total uint64, key string) {
		events = append(events, what)
	}))
	problems, err := tx.Check()
	require.NoError(t, err)
	assert.Empty(t, problems)
	require.NoError(t, tx.Run(librpm.TransFlagNone, librpm.FilterNone))

	it := tx.Elements(librpm.ElementAdded)
	require.True(t, it.Next())
	el := it.Element()
	assert.Equal(t, "bash-4.2.46-34.el7.x86_64", el.NEVRA())
	assert.Equal(t, "bash.rpm", el.Key())
	assert.Equal(t, librpm.ElementAdded, el.Type())
	assert.Nil(t, el.Parent())
	eh := el.Header()
	assert.Equal(t, "bash", eh.ToPackage().Name)
	eh.Free()
	assert.False(t, it.Next())
	it.Close()
	tx.Close()
	tx.Close()

	assert.Contains(t, events, librpm.CallbackTransStart)
	assert.Contains(t, events, librpm.CallbackInstStart)
	assert.Equal(t, librpm.CallbackTransStop, events[len(events)-1])
	assert.Equal(t, []string{"bash-4.2.46-34.el7.x86_64"}, nevras(installed(t, s)))
}

func TestTransactionTestFlag(t *testing.T) {
	s, e := newState(t)
	tx := begin(t, s)
	h := newHeader(t, e, pkg("bash", "4.2.46", "34.el7", "x86_64"))
	defer h.Free()
	require.NoError(t, tx.Add(h, "bash.rpm", false))
	require.NoError(t, tx.Run(librpm.TransFlagTest, librpm.FilterNone))
	assert.Equal(t, librpm.TransFlagTest, tx.TransactionSet().Flags())
	tx.Close()

	assert.Empty(t, installed(t, s))
}

func TestTransactionUpgrade(t *testing.T) {
	s, e := newState(t)
	e.Insert(memengine.PackageEntry(pkg("bash", "4.2.45", "1.el7", "x86_64")))

	tx := begin(t, s)
	h := newHeader(t, e, pkg("bash", "4.2.46", "34.el7", "x86_64"))
	defer h.Free()
	require.NoError(t, tx.Add(h, "bash.rpm", true))
	assert.Equal(t, 2, tx.TransactionSet().Len())

	removed := tx.TransactionSet().Element(1)
	assert.Equal(t, librpm.ElementRemoved, removed.Type())
	assert.Equal(t, "bash-4.2.46-34.el7.x86_64", removed.Parent().NEVRA())
	assert.Panics(t, func() { tx.TransactionSet().Element(2) })

	require.NoError(t, tx.Run(librpm.TransFlagNone, librpm.FilterNone))
	tx.Close()
	assert.Equal(t, []string{"bash-4.2.46-34.el7.x86_64"}, nevras(installed(t, s)))
}

func TestTransactionProblems(t *testing.T) {
	s, e := newState(t)
	e.Insert(memengine.PackageEntry(pkg("bash", "4.2.46", "34.el7", "x86_64")))

	tx := begin(t, s)
	defer tx.Close()
	h := newHeader(t, e, pkg("bash", "4.2.46", "34.el7", "x86_64"))
	defer h.Free()
	require.NoError(t, tx.Add(h, "bash.rpm", false))

	err := tx.Run(librpm.TransFlagNone, librpm.FilterNone)
	require.Error(t, err)
	assert.True(t, errors.Is(err, librpm.ErrRun))
	var rerr *librpm.RunError
	require.True(t, errors.As(err, &rerr))
	require.Len(t, rerr.Problems, 1)
	assert.Equal(t, librpm.ProblemPkgInstalled, rerr.Problems[0].Type)
	assert.Contains(t, err.Error(), "package bash-4.2.46-34.el7.x86_64 is already installed")

	require.NoError(t, tx.Run(librpm.TransFlagNone, librpm.ProblemPkgInstalled.Filter()))
}

func TestTransactionDependencies(t *testing.T) {
	s, e := newState(t)
	tx := begin(t, s)
	defer tx.Close()

	app := pkg("app", "1.0", "1", "x86_64")
	h := newHeader(t, e, app)
	defer h.Free()
	require.NoError(t, h.Set(librpm.TagRequireName, librpm.StringArray{"libfoo.so.1"}))
	require.NoError(t, tx.Add(h, "app.rpm", false))

	problems, err := tx.Check()
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "libfoo.so.1 is needed by app-1.0-1.x86_64", problems[0].String())
}

func TestTransactionRemove(t *testing.T) {
	s, e := newState(t)
	e.Insert(
		memengine.PackageEntry(pkg("bash", "4.2.46", "34.el7", "x86_64")),
		memengine.PackageEntry(pkg("bash", "4.2.46", "34.el7", "i686")),
		memengine.PackageEntry(pkg("zlib", "1.2.7", "18.el7", "x86_64")),
	)

	tx := begin(t, s)
	err := tx.Remove(pkg("bash", "4.2.45", "1.el7", "x86_64"))
	assert.True(t, errors.Is(err, librpm.ErrNotInstalled))
	assert.True(t, errors.Is(tx.RemoveName("nope"), librpm.ErrNotInstalled))

	require.NoError(t, tx.Remove(pkg("bash", "4.2.46", "34.el7", "i686")))
	assert.Equal(t, 1, tx.TransactionSet().Len())

	it := tx.Elements(librpm.ElementRemoved)
	require.True(t, it.Next())
	assert.NotZero(t, it.Element().DBInstance())
	it.Close()

	require.NoError(t, tx.Run(librpm.TransFlagNone, librpm.FilterNone))
	tx.Close()
	assert.Equal(t, []string{"bash-4.2.46-34.el7.x86_64", "zlib-1.2.7-18.el7.x86_64"}, nevras(installed(t, s)))

	tx = begin(t, s)
	require.NoError(t, tx.RemoveName("bash"))
	require.NoError(t, tx.Run(librpm.TransFlagNone, librpm.FilterNone))
	tx.Close()
	assert.Equal(t, []string{"zlib-1.2.7-18.el7.x86_64"}, nevras(installed(t, s)))
}

func TestTransactionRemoveUnderRoot(t *testing.T) {
	s, e := newState(t)
	e.Insert(memengine.PackageEntry(pkg("bash", "4.2.46", "34.el7", "x86_64")))
	root := t.TempDir()
	e.InsertUnder(root,
		memengine.PackageEntry(pkg("zlib", "1.2.7", "18.el7", "x86_64")),
		memengine.PackageEntry(pkg("bash", "5.1.8", "6.el9", "x86_64")),
	)

	tx := begin(t, s)
	assert.True(t, errors.Is(tx.RemoveName("zlib"), librpm.ErrNotInstalled))
	tx.Close()

	tx = begin(t, s)
	require.NoError(t, tx.UseRoot(root))
	require.NoError(t, tx.RemoveName("bash"))
	it := tx.Elements(librpm.ElementRemoved)
	require.True(t, it.Next())
	assert.Equal(t, "bash-5.1.8-6.el9.x86_64", it.Element().NEVRA())
	assert.False(t, it.Next())
	it.Close()
	require.NoError(t, tx.Run(librpm.TransFlagNone, librpm.FilterNone))
	tx.Close()

	assert.Equal(t, []string{"bash-4.2.46-34.el7.x86_64"}, nevras(installed(t, s)))
	assert.Equal(t, []string{"zlib-1.2.7-18.el7.x86_64"}, e.InstalledUnder(root))
}

func TestTransactionHoldsLock(t *testing.T) {
	s, _ := newState(t)
	tx := begin(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Lock(ctx)
	assert.Error(t, err, "the transaction holds the lock")

	it, err := tx.Lease().Find(librpm.IndexName, "")
	require.NoError(t, err)
	assert.False(t, it.Next())
	it.Close()

	tx.Close()
	g, err := s.Lock(context.Background())
	require.NoError(t, err)
	g.Release()
}

func TestTransactionFiles(t *testing.T) {
	s, _ := newState(t)
	tx := begin(t, s)
	defer tx.Close()

	err := tx.Install(filepath.Join(t.TempDir(), "missing.rpm"))
	assert.Error(t, err)

	junk := filepath.Join(t.TempDir(), "junk.rpm")
	require.NoError(t, os.WriteFile(junk, []byte("not a package"), 0o644))
	err = tx.Upgrade(junk)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not an RPM package")
	assert.Error(t, tx.Reinstall(junk))

	assert.Error(t, tx.UseRoot("relative"))
	assert.True(t, errors.Is(tx.UseRoot("relative"), librpm.ErrInvalidRootDir))
	dir := t.TempDir()
	require.NoError(t, tx.UseRoot(dir))
	assert.Equal(t, dir, tx.TransactionSet().RootDir())
}
