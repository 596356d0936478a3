package memengine

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unsafe"

	"github.com/cavaliercoder/go-rpm/version"

	"github.com/cavaliercoder/rpmq/librpm"
)

type ts struct {
	root     string
	flags    librpm.TransFlags
	notify   librpm.NotifyFunc
	elements []*element
	problems []librpm.Problem
	freed    bool
}

type element struct {
	typ       librpm.ElementTypes
	h         *header
	key       string
	offset    uint
	reinstall bool
	parent    *element
	dependsOn *element
	problems  []librpm.Problem
}

type elementIterator struct {
	ts  *ts
	pos int
}

type event struct {
	what          librpm.CallbackType
	amount, total uint64
	key           string
}

func (e *Engine) tsLocked(p librpm.TSPtr) *ts {
	if p == nil {
		panic("memengine: nil transaction set")
	}
	t := (*ts)(p)
	if t.freed {
		panic("memengine: transaction set used after free")
	}
	return t
}

func te(p librpm.ElementPtr) *element {
	if p == nil {
		panic("memengine: nil transaction element")
	}
	return (*element)(p)
}

func (el *element) ptr() librpm.ElementPtr {
	if el == nil {
		return nil
	}
	return librpm.ElementPtr(unsafe.Pointer(el))
}

// evr adapts a header to go-rpm's version comparison.
type evr struct{ h *header }

func (v evr) Epoch() int {
	n, _ := v.h.getInt(librpm.TagEpoch)
	return int(n)
}

func (v evr) Name() string {
	s, _ := v.h.getString(librpm.TagName)
	return s
}

func (v evr) Version() string {
	s, _ := v.h.getString(librpm.TagVersion)
	return s
}

func (v evr) Release() string {
	s, _ := v.h.getString(librpm.TagRelease)
	return s
}

func (e *Engine) TSCreate() librpm.TSPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := &ts{root: "/"}
	e.record("TSCreate", uintptr(unsafe.Pointer(t)))
	return librpm.TSPtr(unsafe.Pointer(t))
}

// TSFree releases the set and its elements. It panics on a second call.
func (e *Engine) TSFree(p librpm.TSPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSFree", uintptr(p))
	t := e.tsLocked(p)
	e.emptyLocked(t)
	t.freed = true
}

func (e *Engine) TSClean(p librpm.TSPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSClean", uintptr(p))
	e.tsLocked(p).problems = nil
}

func (e *Engine) TSEmpty(p librpm.TSPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSEmpty", uintptr(p))
	e.emptyLocked(e.tsLocked(p))
}

func (e *Engine) emptyLocked(t *ts) {
	for _, el := range t.elements {
		e.freeLocked(el.h)
	}
	t.elements = nil
	t.problems = nil
}

// TSSetRootDir requires an absolute path to an existing directory.
func (e *Engine) TSSetRootDir(p librpm.TSPtr, dir string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSSetRootDir", uintptr(p))
	t := e.tsLocked(p)
	if !filepath.IsAbs(dir) || !dirExists(dir) {
		return -1
	}
	t.root = filepath.Clean(dir)
	return 0
}

func (e *Engine) TSRootDir(p librpm.TSPtr) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSRootDir", uintptr(p))
	return e.tsLocked(p).root
}

func (e *Engine) TSSetFlags(p librpm.TSPtr, flags librpm.TransFlags) librpm.TransFlags {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSSetFlags", uintptr(p))
	t := e.tsLocked(p)
	old := t.flags
	t.flags = flags
	return old
}

func (e *Engine) TSFlags(p librpm.TSPtr) librpm.TransFlags {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSFlags", uintptr(p))
	return e.tsLocked(p).flags
}

func (e *Engine) TSSetNotifyCallback(p librpm.TSPtr, fn librpm.NotifyFunc) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSSetNotifyCallback", uintptr(p))
	e.tsLocked(p).notify = fn
	return 0
}

// TSAddInstallElement stages h for installation. With upgrade set, every
// installed package with the same name and arch is staged for removal as a
// child of the new element.
func (e *Engine) TSAddInstallElement(p librpm.TSPtr, hp librpm.HeaderPtr, key string, upgrade bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSAddInstallElement", uintptr(p))
	t := e.tsLocked(p)
	h := e.hdr(hp)
	if _, ok := h.getString(librpm.TagName); !ok {
		return 1
	}

	el := &element{typ: librpm.ElementAdded, h: h, key: key}
	e.linkLocked(h)
	t.elements = append(t.elements, el)
	if upgrade {
		for _, off := range e.installedLike(t, h, false) {
			e.addEraseLocked(t, off, el)
		}
	}
	return 0
}

// TSAddReinstallElement stages h to replace the installed package with the
// same NEVRA. It fails if that package is not installed.
func (e *Engine) TSAddReinstallElement(p librpm.TSPtr, hp librpm.HeaderPtr, key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSAddReinstallElement", uintptr(p))
	t := e.tsLocked(p)
	h := e.hdr(hp)
	installed := e.installedLike(t, h, true)
	if len(installed) == 0 {
		return 1
	}

	el := &element{typ: librpm.ElementAdded, h: h, key: key, reinstall: true}
	e.linkLocked(h)
	t.elements = append(t.elements, el)
	for _, off := range installed {
		e.addEraseLocked(t, off, el)
	}
	return 0
}

func (e *Engine) TSAddEraseElement(p librpm.TSPtr, hp librpm.HeaderPtr, off uint) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSAddEraseElement", uintptr(p))
	t := e.tsLocked(p)
	e.hdr(hp)
	if _, ok := e.rootDBLocked(t).records[off]; !ok {
		return 1
	}
	for _, el := range t.elements {
		if el.typ == librpm.ElementRemoved && el.offset == off {
			return 0
		}
	}
	e.addEraseLocked(t, off, nil)
	return 0
}

func (e *Engine) addEraseLocked(t *ts, off uint, parent *element) {
	h := e.rootDBLocked(t).records[off]
	e.linkLocked(h)
	t.elements = append(t.elements, &element{
		typ:    librpm.ElementRemoved,
		h:      h,
		offset: off,
		parent: parent,
	})
}

// installedLike returns the offsets of packages installed under the root of t
// with the name and arch of h, and also the same EVR if sameEVR is set.
func (e *Engine) installedLike(t *ts, h *header, sameEVR bool) []uint {
	name, _ := h.getString(librpm.TagName)
	arch, _ := h.getString(librpm.TagArch)
	var offsets []uint
	for off, inst := range e.rootDBLocked(t).records {
		n, _ := inst.getString(librpm.TagName)
		a, _ := inst.getString(librpm.TagArch)
		if n != name || a != arch {
			continue
		}
		if sameEVR && version.Compare(evr{inst}, evr{h}) != 0 {
			continue
		}
		offsets = append(offsets, off)
	}
	return offsets
}

func ignoredDep(name string) bool {
	return strings.HasPrefix(name, "rpmlib(") || strings.HasPrefix(name, "/")
}

// TSCheck records a REQUIRES problem for every requirement of an added
// package that no remaining installed package or added package provides.
func (e *Engine) TSCheck(p librpm.TSPtr) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSCheck", uintptr(p))
	t := e.tsLocked(p)
	t.problems = nil

	removed := make(map[uint]bool)
	for _, el := range t.elements {
		if el.typ == librpm.ElementRemoved {
			removed[el.offset] = true
		}
	}
	provided := make(map[string]bool)
	provide := func(h *header) {
		name, _ := h.getString(librpm.TagName)
		provided[name] = true
		for _, p := range h.getStrings(librpm.TagProvideName) {
			provided[p] = true
		}
	}
	for off, h := range e.rootDBLocked(t).records {
		if !removed[off] {
			provide(h)
		}
	}
	for _, el := range t.elements {
		if el.typ == librpm.ElementAdded {
			provide(el.h)
		}
	}

	for _, el := range t.elements {
		if el.typ != librpm.ElementAdded {
			continue
		}
		for _, req := range el.h.getStrings(librpm.TagRequireName) {
			if ignoredDep(req) || provided[req] {
				continue
			}
			t.problems = append(t.problems, librpm.Problem{
				Type:       librpm.ProblemRequires,
				Package:    el.h.nevra(),
				AltPackage: req,
				Key:        el.key,
			})
		}
	}
	return 0
}

// TSOrder places each added package after the added packages it requires.
// Removals follow the installs. Dependency loops keep their staging order.
func (e *Engine) TSOrder(p librpm.TSPtr) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSOrder", uintptr(p))
	t := e.tsLocked(p)

	var added, removed []*element
	providers := make(map[string]*element)
	for _, el := range t.elements {
		if el.typ != librpm.ElementAdded {
			removed = append(removed, el)
			continue
		}
		added = append(added, el)
		name, _ := el.h.getString(librpm.TagName)
		providers[name] = el
		for _, p := range el.h.getStrings(librpm.TagProvideName) {
			if _, ok := providers[p]; !ok {
				providers[p] = el
			}
		}
	}

	deps := make(map[*element][]*element)
	for _, el := range added {
		for _, req := range el.h.getStrings(librpm.TagRequireName) {
			if dep, ok := providers[req]; ok && dep != el {
				deps[el] = append(deps[el], dep)
			}
		}
	}

	ordered := make([]*element, 0, len(t.elements))
	placed := make(map[*element]bool)
	for len(ordered) < len(added) {
		progress := false
		for _, el := range added {
			if placed[el] {
				continue
			}
			ready := true
			for _, dep := range deps[el] {
				ready = ready && placed[dep]
			}
			if !ready {
				continue
			}
			if n := len(deps[el]); n > 0 {
				el.dependsOn = deps[el][n-1]
			}
			ordered = append(ordered, el)
			placed[el] = true
			progress = true
		}
		if !progress {
			for _, el := range added {
				if !placed[el] {
					ordered = append(ordered, el)
					placed[el] = true
				}
			}
		}
	}
	t.elements = append(ordered, removed...)
	return 0
}

// TSRun checks the added packages against the database and, if no problem
// remains after ignore is applied, applies the elements. With
// TransFlagTest nothing is applied. It returns the number of problems.
func (e *Engine) TSRun(p librpm.TSPtr, ignore librpm.FilterFlags) int {
	e.mu.Lock()
	e.record("TSRun", uintptr(p))
	t := e.tsLocked(p)
	rc, events := e.runLocked(t, ignore)
	fn := t.notify
	e.mu.Unlock()

	if fn != nil {
		for _, ev := range events {
			fn(ev.what, ev.amount, ev.total, ev.key)
		}
	}
	return rc
}

func (e *Engine) runLocked(t *ts, ignore librpm.FilterFlags) (int, []event) {
	t.problems = nil
	for _, el := range t.elements {
		el.problems = nil
	}
	raise := func(el *element, prob librpm.Problem) {
		if f := prob.Type.Filter(); f != librpm.FilterNone && ignore&f != 0 {
			return
		}
		prob.Key = el.key
		el.problems = append(el.problems, prob)
		t.problems = append(t.problems, prob)
	}

	db := e.rootDBLocked(t)
	hostArch, _ := e.lookup("_arch")
	for _, el := range t.elements {
		if el.typ != librpm.ElementAdded {
			continue
		}
		nevra := el.h.nevra()
		arch, _ := el.h.getString(librpm.TagArch)
		if hostArch != "" && arch != "" && arch != "noarch" && arch != hostArch {
			raise(el, librpm.Problem{Type: librpm.ProblemBadArch, Package: nevra, Str: arch})
		}
		if el.reinstall {
			continue
		}
		for _, off := range e.installedLike(t, el.h, false) {
			inst := db.records[off]
			switch cmp := version.Compare(evr{inst}, evr{el.h}); {
			case cmp == 0:
				raise(el, librpm.Problem{Type: librpm.ProblemPkgInstalled, Package: nevra})
			case cmp > 0:
				raise(el, librpm.Problem{Type: librpm.ProblemOldPackage, Package: nevra, AltPackage: inst.nevra()})
			}
		}
	}
	if len(t.problems) > 0 {
		return len(t.problems), nil
	}

	n := uint64(len(t.elements))
	events := []event{{what: librpm.CallbackTransStart, total: n}}
	now := int32(time.Now().Unix())
	for _, el := range t.elements {
		switch el.typ {
		case librpm.ElementAdded:
			size, _ := el.h.getInt(librpm.TagLongSize)
			events = append(events,
				event{what: librpm.CallbackInstStart, total: uint64(size), key: el.key},
				event{what: librpm.CallbackInstProgress, amount: uint64(size), total: uint64(size), key: el.key},
				event{what: librpm.CallbackInstStop, amount: uint64(size), total: uint64(size), key: el.key},
			)
			if t.flags&librpm.TransFlagTest == 0 {
				inst := e.newHeaderLocked()
				for tag, c := range el.h.entries {
					inst.entries[tag] = c
				}
				inst.store(librpm.TagInstallTime, librpm.Int32s{now})
				el.offset = db.add(inst)
			}
		case librpm.ElementRemoved:
			events = append(events,
				event{what: librpm.CallbackUninstStart},
				event{what: librpm.CallbackUninstStop},
			)
			if h, ok := db.records[el.offset]; ok && t.flags&librpm.TransFlagTest == 0 {
				delete(db.records, el.offset)
				e.freeLocked(h)
			}
		}
	}
	events = append(events, event{what: librpm.CallbackTransStop, amount: n, total: n})
	return 0, events
}

func (e *Engine) TSProblems(p librpm.TSPtr) []librpm.Problem {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSProblems", uintptr(p))
	return append([]librpm.Problem(nil), e.tsLocked(p).problems...)
}

func (e *Engine) TSNElements(p librpm.TSPtr) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSNElements", uintptr(p))
	return len(e.tsLocked(p).elements)
}

func (e *Engine) TSElement(p librpm.TSPtr, index int) librpm.ElementPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSElement", uintptr(p))
	t := e.tsLocked(p)
	if index < 0 || index >= len(t.elements) {
		return nil
	}
	return t.elements[index].ptr()
}

// TSReadPackageFile reads a package header with go-rpm. Signatures are not
// checked.
func (e *Engine) TSReadPackageFile(p librpm.TSPtr, path string) (librpm.HeaderPtr, librpm.RC) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSReadPackageFile", uintptr(p))
	e.tsLocked(p)

	if _, err := os.Stat(path); err != nil {
		return nil, librpm.RCFail
	}
	ent, err := readPackageEntry(path)
	if err != nil {
		return nil, librpm.RCNotFound
	}
	h, err := e.headerFromEntry(ent)
	if err != nil {
		return nil, librpm.RCFail
	}
	return librpm.HeaderPtr(unsafe.Pointer(h)), librpm.RCOK
}

func (e *Engine) TSIInit(p librpm.TSPtr) librpm.ElementIteratorPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSIInit", uintptr(p))
	it := &elementIterator{ts: e.tsLocked(p)}
	return librpm.ElementIteratorPtr(unsafe.Pointer(it))
}

func (e *Engine) TSINext(p librpm.ElementIteratorPtr, types librpm.ElementTypes) librpm.ElementPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSINext", uintptr(p))
	it := (*elementIterator)(p)
	for it.pos < len(it.ts.elements) {
		el := it.ts.elements[it.pos]
		it.pos++
		if el.typ&types != 0 {
			return el.ptr()
		}
	}
	return nil
}

func (e *Engine) TSIFree(p librpm.ElementIteratorPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSIFree", uintptr(p))
	(*elementIterator)(p).ts = &ts{}
}

func (e *Engine) TEType(p librpm.ElementPtr) librpm.ElementTypes {
	return te(p).typ
}

func (e *Engine) TEString(p librpm.ElementPtr, field librpm.ElementField) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := te(p).h
	tag := map[librpm.ElementField]librpm.Tag{
		librpm.ElementName:    librpm.TagName,
		librpm.ElementVersion: librpm.TagVersion,
		librpm.ElementRelease: librpm.TagRelease,
		librpm.ElementArch:    librpm.TagArch,
		librpm.ElementOS:      librpm.TagOS,
		librpm.ElementEVR:     librpm.TagEVR,
		librpm.ElementNEVR:    librpm.TagNEVR,
		librpm.ElementNEVRA:   librpm.TagNEVRA,
	}[field]
	if s, ok := h.getString(tag); ok {
		return s
	}
	if d, ok := h.extension(tag); ok {
		s, _ := librpm.AsString(d)
		return s
	}
	return ""
}

func (e *Engine) TEEpoch(p librpm.ElementPtr) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := te(p).h.getInt(librpm.TagEpoch)
	return int(n), ok
}

func (e *Engine) TEIsSource(p librpm.ElementPtr) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := te(p).h.entries[librpm.TagSourceRPM]
	return !ok
}

// TEColor returns 2 for 64 bit packages, 1 for other binary packages and 0
// for noarch and source packages.
func (e *Engine) TEColor(p librpm.ElementPtr) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	arch, ok := te(p).h.getString(librpm.TagArch)
	switch {
	case !ok || arch == "noarch":
		return 0
	case strings.HasSuffix(arch, "64") || arch == "s390x":
		return 2
	}
	return 1
}

func (e *Engine) TEDBInstance(p librpm.ElementPtr) uint { return te(p).offset }

func (e *Engine) TEParent(p librpm.ElementPtr) librpm.ElementPtr { return te(p).parent.ptr() }

func (e *Engine) TEDependsOn(p librpm.ElementPtr) librpm.ElementPtr { return te(p).dependsOn.ptr() }

func (e *Engine) TEKey(p librpm.ElementPtr) string { return te(p).key }

// TEHeader returns the element's header with a new reference.
func (e *Engine) TEHeader(p librpm.ElementPtr) librpm.HeaderPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TEHeader", uintptr(p))
	h := te(p).h
	e.linkLocked(h)
	return librpm.HeaderPtr(unsafe.Pointer(h))
}

func (e *Engine) TEProblems(p librpm.ElementPtr) []librpm.Problem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]librpm.Problem(nil), te(p).problems...)
}

func (e *Engine) TECleanProblems(p librpm.ElementPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	te(p).problems = nil
}
