package librpm

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
)

// TransactionSet owns one engine transaction set: the handle through which
// database queries and install or erase operations are issued.
//
// A TransactionSet is not safe for concurrent use and must only be used while
// the lease of its State is held.
type TransactionSet struct {
	engine Engine
	ptr    TSPtr
	once   sync.Once
}

func newTransactionSet(e Engine) *TransactionSet {
	ptr := e.TSCreate()
	if ptr == nil {
		panic("librpm: failed to allocate transaction set")
	}
	ts := &TransactionSet{engine: e, ptr: ptr}
	runtime.SetFinalizer(ts, (*TransactionSet).Free)
	return ts
}

// NewTransactionSet creates a transaction set owned by the caller. It shares
// the engine with the lease holder and must be freed before the lease is
// released.
func (g *GlobalTS) NewTransactionSet() *TransactionSet {
	return newTransactionSet(g.Engine())
}

// Free releases the engine handle. It is safe to call Free more than once.
func (ts *TransactionSet) Free() {
	ts.once.Do(func() {
		ts.engine.TSFree(ts.ptr)
		ts.ptr = nil
		runtime.SetFinalizer(ts, nil)
	})
}

func (ts *TransactionSet) handle() TSPtr {
	if ts.ptr == nil {
		panic("librpm: transaction set used after Free")
	}
	return ts.ptr
}

// Clean frees memory the set holds for dependency checks and open database
// iterators, returning it to a neutral state.
func (ts *TransactionSet) Clean() {
	ts.engine.TSClean(ts.handle())
}

// Empty removes every element and problem from the set.
func (ts *TransactionSet) Empty() {
	ts.engine.TSEmpty(ts.handle())
}

// SetRootDir sets the directory the transaction is applied under.
func (ts *TransactionSet) SetRootDir(dir string) error {
	if strings.IndexByte(dir, 0) >= 0 {
		return errors.WithDetails(ErrInvalidRootDir, "dir", dir)
	}
	if rc := ts.engine.TSSetRootDir(ts.handle(), dir); rc != 0 {
		return errors.WithDetails(ErrInvalidRootDir, "dir", dir, "code", rc)
	}
	return nil
}

// RootDir returns the root directory of the set.
func (ts *TransactionSet) RootDir() string {
	return ts.engine.TSRootDir(ts.handle())
}

// SetFlags replaces the transaction flags and returns the previous ones.
func (ts *TransactionSet) SetFlags(flags TransFlags) TransFlags {
	return ts.engine.TSSetFlags(ts.handle(), flags)
}

// Flags returns the transaction flags.
func (ts *TransactionSet) Flags() TransFlags {
	return ts.engine.TSFlags(ts.handle())
}

// SetNotifyCallback registers fn to receive progress events during Run. A nil
// fn removes the callback.
func (ts *TransactionSet) SetNotifyCallback(fn NotifyFunc) error {
	if rc := ts.engine.TSSetNotifyCallback(ts.handle(), fn); rc != 0 {
		return errors.Errorf("librpm: failed to set notify callback (code %d)", rc)
	}
	return nil
}

// AddInstall stages h for installation. Key is handed back to the notify
// callback, and is usually the path of the package file. With upgrade set,
// older versions of the package are erased.
func (ts *TransactionSet) AddInstall(h *Header, key string, upgrade bool) error {
	rc := ts.engine.TSAddInstallElement(ts.handle(), h.handle(), key, upgrade)
	runtime.KeepAlive(h)
	return ts.elementResult("install", h, rc)
}

// AddReinstall stages h to replace the installed copy of the same package.
func (ts *TransactionSet) AddReinstall(h *Header, key string) error {
	rc := ts.engine.TSAddReinstallElement(ts.handle(), h.handle(), key)
	runtime.KeepAlive(h)
	return ts.elementResult("reinstall", h, rc)
}

// AddErase stages the removal of an installed header found at dbOffset.
func (ts *TransactionSet) AddErase(h *Header, dbOffset uint) error {
	rc := ts.engine.TSAddEraseElement(ts.handle(), h.handle(), dbOffset)
	runtime.KeepAlive(h)
	return ts.elementResult("erase", h, rc)
}

func (ts *TransactionSet) elementResult(op string, h *Header, rc int) error {
	if rc == 0 {
		return nil
	}
	err := &ElementError{Op: op, Package: h.describe(), Code: rc}
	log.WithFields(log.Fields{"op": op, "package": err.Package, "code": rc}).Debug("librpm: element rejected")
	return err
}

// Check runs the dependency check. Unresolved dependencies are reported by
// Problems, not as an error.
func (ts *TransactionSet) Check() error {
	if rc := ts.engine.TSCheck(ts.handle()); rc != 0 {
		return errors.Errorf("librpm: dependency check failed (code %d)", rc)
	}
	return nil
}

// Order sorts the elements into installation order.
func (ts *TransactionSet) Order() error {
	if rc := ts.engine.TSOrder(ts.handle()); rc != 0 {
		return errors.Errorf("librpm: failed to order %d element(s) (code %d)", ts.Len(), rc)
	}
	return nil
}

// Run commits the staged elements. Problems of the kinds in ignore do not
// stop the transaction. On failure the error is a *RunError carrying the
// problems the engine raised.
func (ts *TransactionSet) Run(ignore FilterFlags) error {
	rc := ts.engine.TSRun(ts.handle(), ignore)
	log.WithFields(log.Fields{
		"elements": ts.Len(),
		"flags":    ts.Flags().String(),
		"ignore":   ignore.String(),
		"rc":       rc,
	}).Debug("librpm: transaction run")
	if rc == 0 {
		return nil
	}
	return &RunError{Code: rc, Problems: ts.Problems()}
}

// Problems returns a copy of the problems raised by the last Check or Run.
func (ts *TransactionSet) Problems() []Problem {
	return ts.engine.TSProblems(ts.handle())
}

// Len returns the number of elements in the set.
func (ts *TransactionSet) Len() int {
	return ts.engine.TSNElements(ts.handle())
}

// Element returns the element at index. It panics if index is out of range.
func (ts *TransactionSet) Element(index int) *Element {
	if n := ts.Len(); index < 0 || index >= n {
		panic(fmt.Sprintf("librpm: element index %d out of range [0:%d]", index, n))
	}
	return ts.element(ts.engine.TSElement(ts.handle(), index))
}

func (ts *TransactionSet) element(ptr ElementPtr) *Element {
	if ptr == nil {
		return nil
	}
	return &Element{ts: ts, ptr: ptr}
}

// ReadPackageFile reads the header of the package file at path. An unsigned
// or untrusted package is returned together with RCNoKey or RCNotTrusted.
func (ts *TransactionSet) ReadPackageFile(path string) (*Header, RC, error) {
	if strings.IndexByte(path, 0) >= 0 {
		return nil, RCFail, errors.Errorf("librpm: invalid path %q", path)
	}
	ptr, rc := ts.engine.TSReadPackageFile(ts.handle(), path)
	switch rc {
	case RCOK, RCNoKey, RCNotTrusted:
		if ptr == nil {
			return nil, RCFail, errors.Errorf("librpm: no header read from %s", path)
		}
		return adoptHeader(ts.engine, ptr), rc, nil
	case RCNotFound:
		return nil, rc, errors.Errorf("librpm: %s is not an RPM package", path)
	}
	return nil, rc, errors.Errorf("librpm: failed to read package %s (%v)", path, rc)
}

// describe names the header for error messages without panicking on a
// malformed header.
func (h *Header) describe() string {
	name, ok := h.GetString(TagName)
	if !ok {
		return "(unnamed package)"
	}
	s := name
	if v, ok := h.GetString(TagVersion); ok {
		s += "-" + v
	}
	if r, ok := h.GetString(TagRelease); ok {
		s += "-" + r
	}
	if a, ok := h.GetString(TagArch); ok {
		s += "." + a
	}
	return strings.Clone(s)
}
