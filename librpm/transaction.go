package librpm

import (
	"context"
	"sync"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
)

// Transaction stages installs, reinstalls and removals and commits them with
// Run. It owns a transaction set of its own and holds the State's lock until
// Close, so queries issued through Lease share its lock.
type Transaction struct {
	lease *GlobalTS
	ts    *TransactionSet
	once  sync.Once
}

// Begin locks s and starts a transaction.
func (s *State) Begin(ctx context.Context) (*Transaction, error) {
	g, err := s.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer g.Release()
	return g.Begin(), nil
}

// Begin starts a transaction under a lease the caller holds. The transaction
// retains the lease until it is closed.
func (g *GlobalTS) Begin() *Transaction {
	return &Transaction{
		lease: g.Retain(),
		ts:    g.NewTransactionSet(),
	}
}

// Lease returns the lease the transaction holds.
func (t *Transaction) Lease() *GlobalTS { return t.lease }

// TransactionSet returns the set the transaction stages elements in.
func (t *Transaction) TransactionSet() *TransactionSet { return t.ts }

// UseRoot applies the transaction under dir instead of "/".
func (t *Transaction) UseRoot(dir string) error {
	return t.ts.SetRootDir(dir)
}

// Notify registers fn to receive progress events during Run.
func (t *Transaction) Notify(fn NotifyFunc) error {
	return t.ts.SetNotifyCallback(fn)
}

// Install stages the package file at path for installation.
func (t *Transaction) Install(path string) error {
	return t.addFile(path, false)
}

// Upgrade stages the package file at path, replacing older versions.
func (t *Transaction) Upgrade(path string) error {
	return t.addFile(path, true)
}

func (t *Transaction) addFile(path string, upgrade bool) error {
	h, rc, err := t.ts.ReadPackageFile(path)
	if err != nil {
		return err
	}
	defer h.Free()
	if rc != RCOK {
		log.WithFields(log.Fields{"path": path, "rc": rc.String()}).Debug("librpm: package signature not verified")
	}
	return t.ts.AddInstall(h, path, upgrade)
}

// Add stages h for installation under key.
func (t *Transaction) Add(h *Header, key string, upgrade bool) error {
	return t.ts.AddInstall(h, key, upgrade)
}

// Reinstall stages the package file at path to replace its installed copy.
func (t *Transaction) Reinstall(path string) error {
	h, _, err := t.ts.ReadPackageFile(path)
	if err != nil {
		return err
	}
	defer h.Free()
	return t.ts.AddReinstall(h, path)
}

// NewMatchIterator opens a cursor over the database under the transaction's
// root directory. See GlobalTS.NewMatchIterator.
func (t *Transaction) NewMatchIterator(tag Tag, key string) *MatchIterator {
	return newMatchIterator(t.lease, t.ts, tag, key)
}

// Remove stages the removal of every installed package with the same name
// and EVR as pkg, and the same arch if pkg has one.
func (t *Transaction) Remove(pkg *Package) error {
	it := t.NewMatchIterator(TagName, pkg.Name)
	defer it.Close()

	n := 0
	for it.Next() {
		h := it.Header()
		p := h.ToPackage()
		if p.Compare(pkg) != 0 || (pkg.Arch != "" && p.Arch != pkg.Arch) {
			continue
		}
		if err := t.ts.AddErase(h, it.Offset()); err != nil {
			return err
		}
		n++
	}
	if n == 0 {
		return errors.WithDetails(ErrNotInstalled, "package", pkg.NEVRA())
	}
	return nil
}

// RemoveName stages the removal of every installed package called name.
func (t *Transaction) RemoveName(name string) error {
	it := t.NewMatchIterator(TagName, name)
	defer it.Close()

	n := 0
	for it.Next() {
		if err := t.ts.AddErase(it.Header(), it.Offset()); err != nil {
			return err
		}
		n++
	}
	if n == 0 {
		return errors.WithDetails(ErrNotInstalled, "package", name)
	}
	return nil
}

// Check runs the dependency check and returns the unresolved problems.
func (t *Transaction) Check() ([]Problem, error) {
	if err := t.ts.Check(); err != nil {
		return nil, err
	}
	return t.ts.Problems(), nil
}

// Elements returns an iterator over the staged elements of the given types.
func (t *Transaction) Elements(types ElementTypes) *ElementIterator {
	return t.ts.Elements(types)
}

// Run orders and commits the staged elements with flags, ignoring the
// problems in ignore. A failure is returned as a *RunError.
func (t *Transaction) Run(flags TransFlags, ignore FilterFlags) error {
	t.ts.SetFlags(flags)
	if err := t.ts.Order(); err != nil {
		return err
	}
	return t.ts.Run(ignore)
}

// Close frees the transaction set and releases the lease. It is safe to call
// Close more than once.
func (t *Transaction) Close() {
	t.once.Do(func() {
		t.ts.Free()
		t.lease.Release()
	})
}
