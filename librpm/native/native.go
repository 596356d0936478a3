//go:build librpm

package native

/*
#cgo LDFLAGS: -lrpm -lrpmio

#include <stdlib.h>
#include <string.h>
#include <stdint.h>
#include <rpm/rpmlib.h>
#include <rpm/rpmmacro.h>
#include <rpm/rpmts.h>
#include <rpm/rpmte.h>
#include <rpm/rpmtd.h>
#include <rpm/rpmps.h>
#include <rpm/rpmdb.h>
#include <rpm/header.h>
#include "callback.h"

static char *rpmq_expand(const char *s)
{
	return rpmExpand(s, NULL);
}

static void rpmq_td_set(rpmtd td, rpmTagVal tag, rpmTagType type,
			rpm_count_t count, void *data)
{
	td->tag = tag;
	td->type = type;
	td->count = count;
	td->data = data;
	td->flags = 0;
}

static void *rpmq_td_data(rpmtd td)
{
	return td->data;
}

static int rpmq_td_flags(rpmtd td)
{
	return (int)td->flags;
}

/* rpmq_notify opens the package files, so it stays registered with or
   without a Go function to forward events to. */
static int rpmq_set_notify(rpmts ts, uintptr_t h)
{
	return rpmtsSetNotifyCallback(ts, rpmq_notify, (rpmCallbackData)h);
}

static int rpmq_read_package(rpmts ts, const char *path, Header *hdr)
{
	rpmRC rc;
	FD_t fd = Fopen(path, "r.ufdio");
	if (fd == NULL || Ferror(fd)) {
		if (fd != NULL)
			Fclose(fd);
		return RPMRC_FAIL;
	}
	rc = rpmReadPackageFile(ts, fd, path, hdr);
	Fclose(fd);
	return rc;
}

static const char *rpmq_te_epoch(rpmte te)
{
	return rpmteE(te);
}
*/
import "C"

import (
	"runtime/cgo"
	"strconv"
	"sync"
	"unsafe"

	log "github.com/sirupsen/logrus"

	"github.com/cavaliercoder/rpmq/librpm"
)

func init() {
	librpm.Register("native", func() librpm.Engine { return New() })
}

// tsState is the Go side memory of one transaction set: element keys handed
// to librpm as C strings, and the handle of the notify function.
type tsState struct {
	keys   []*C.char
	notify cgo.Handle
}

// Engine calls the system librpm. A single mutex guards every call, so
// header references may be dropped from finalizers while the State is held
// elsewhere. Notify functions run while the mutex is held and must not call
// back into the engine.
type Engine struct {
	mu    sync.Mutex
	ts    map[C.rpmts]*tsState
	owned map[unsafe.Pointer]C.rpmtd
}

// New returns an engine bound to the process wide librpm state.
func New() *Engine {
	return &Engine{
		ts:    make(map[C.rpmts]*tsState),
		owned: make(map[unsafe.Pointer]C.rpmtd),
	}
}

func cHeader(h librpm.HeaderPtr) C.Header { return C.Header(unsafe.Pointer(h)) }
func cTS(ts librpm.TSPtr) C.rpmts         { return C.rpmts(unsafe.Pointer(ts)) }
func cTE(te librpm.ElementPtr) C.rpmte    { return C.rpmte(unsafe.Pointer(te)) }

func cMI(mi librpm.MatchIteratorPtr) C.rpmdbMatchIterator {
	return C.rpmdbMatchIterator(unsafe.Pointer(mi))
}

func goHeader(h C.Header) librpm.HeaderPtr { return librpm.HeaderPtr(unsafe.Pointer(h)) }
func goTE(te C.rpmte) librpm.ElementPtr    { return librpm.ElementPtr(unsafe.Pointer(te)) }

func goString(s *C.char) string {
	if s == nil {
		return ""
	}
	return C.GoString(s)
}

func (e *Engine) Version() string {
	return C.GoString(C.RPMVERSION)
}

func (e *Engine) ReadConfigFiles(file string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	var cfile *C.char
	if file != "" {
		cfile = C.CString(file)
		defer C.free(unsafe.Pointer(cfile))
	}
	return int(C.rpmReadConfigFiles(cfile, nil))
}

func (e *Engine) DefineMacro(macro string, level librpm.MacroLevel) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs := C.CString(macro)
	defer C.free(unsafe.Pointer(cs))
	return int(C.rpmDefineMacro(nil, cs, C.int(level)))
}

func (e *Engine) DeleteMacro(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	C.delMacro(nil, cs)
}

func (e *Engine) ExpandMacro(expr string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs := C.CString(expr)
	defer C.free(unsafe.Pointer(cs))
	out := C.rpmq_expand(cs)
	defer C.free(unsafe.Pointer(out))
	return goString(out)
}

func (e *Engine) HeaderNew() librpm.HeaderPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return goHeader(C.headerNew())
}

func (e *Engine) HeaderLink(h librpm.HeaderPtr) librpm.HeaderPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return goHeader(C.headerLink(cHeader(h)))
}

func (e *Engine) HeaderFree(h librpm.HeaderPtr) librpm.HeaderPtr {
	if h == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return goHeader(C.headerFree(cHeader(h)))
}

func (e *Engine) HeaderIsEntry(h librpm.HeaderPtr, tag librpm.Tag) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return C.headerIsEntry(cHeader(h), C.rpmTagVal(tag)) != 0
}

// HeaderGet fills td from the header. Containers that own their payload keep
// the underlying rpmtd until TagDataFree.
func (e *Engine) HeaderGet(h librpm.HeaderPtr, tag librpm.Tag, td *librpm.TagContainer, flags librpm.HeaderGetFlags) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	td.Reset()
	ctd := C.rpmtdNew()
	if C.headerGet(cHeader(h), C.rpmTagVal(tag), ctd, C.headerGetFlags(flags)) == 0 {
		C.rpmtdFree(ctd)
		return false
	}
	*td = librpm.TagContainer{
		Tag:   librpm.Tag(C.rpmtdTag(ctd)),
		Type:  librpm.TagType(C.rpmtdType(ctd)),
		Count: uint32(C.rpmtdCount(ctd)),
		Data:  C.rpmq_td_data(ctd),
		Flags: librpm.TagDataFlags(C.rpmq_td_flags(ctd)),
	}
	if td.Owned() {
		e.owned[td.Data] = ctd
		return true
	}
	C.rpmtdFree(ctd)
	return true
}

func (e *Engine) TagDataFree(td *librpm.TagContainer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ctd, ok := e.owned[td.Data]; ok {
		delete(e.owned, td.Data)
		C.rpmtdFreeData(ctd)
		C.rpmtdFree(ctd)
	}
	td.Reset()
}

// cPayload copies a container's Go memory payload into C memory. The
// returned function releases it.
func cPayload(td *librpm.TagContainer) (data unsafe.Pointer, count C.rpm_count_t, free func(), ok bool) {
	var d librpm.TagData
	func() {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		d = td.Decode()
		ok = true
	}()
	if !ok {
		return nil, 0, nil, false
	}

	raw := func(p unsafe.Pointer, n, size int) (unsafe.Pointer, C.rpm_count_t, func(), bool) {
		if n == 0 {
			return nil, 0, nil, false
		}
		buf := C.malloc(C.size_t(n * size))
		C.memcpy(buf, p, C.size_t(n*size))
		return buf, C.rpm_count_t(n), func() { C.free(buf) }, true
	}

	switch v := d.(type) {
	case librpm.Chars:
		return raw(unsafe.Pointer(unsafe.SliceData(v)), len(v), 1)
	case librpm.Int8s:
		return raw(unsafe.Pointer(unsafe.SliceData(v)), len(v), 1)
	case librpm.Binary:
		return raw(unsafe.Pointer(unsafe.SliceData(v)), len(v), 1)
	case librpm.Int16s:
		return raw(unsafe.Pointer(unsafe.SliceData(v)), len(v), 2)
	case librpm.Int32s:
		return raw(unsafe.Pointer(unsafe.SliceData(v)), len(v), 4)
	case librpm.Int64s:
		return raw(unsafe.Pointer(unsafe.SliceData(v)), len(v), 8)
	case librpm.String:
		cs := C.CString(string(v))
		return unsafe.Pointer(cs), 1, func() { C.free(unsafe.Pointer(cs)) }, true
	case librpm.I18NString:
		cs := C.CString(string(v))
		return unsafe.Pointer(cs), 1, func() { C.free(unsafe.Pointer(cs)) }, true
	case librpm.StringArray:
		if len(v) == 0 {
			return nil, 0, nil, false
		}
		arr := (**C.char)(C.malloc(C.size_t(len(v)) * C.size_t(unsafe.Sizeof(uintptr(0)))))
		ptrs := unsafe.Slice(arr, len(v))
		for i, s := range v {
			ptrs[i] = C.CString(s)
		}
		return unsafe.Pointer(arr), C.rpm_count_t(len(v)), func() {
			for _, p := range ptrs {
				C.free(unsafe.Pointer(p))
			}
			C.free(unsafe.Pointer(arr))
		}, true
	}
	return nil, 0, nil, false
}

// withCTagData runs fn with a C copy of td.
func withCTagData(td *librpm.TagContainer, fn func(C.rpmtd) C.int) bool {
	data, count, free, ok := cPayload(td)
	if !ok {
		return false
	}
	defer free()
	ctd := C.rpmtdNew()
	defer C.rpmtdFree(ctd)
	C.rpmq_td_set(ctd, C.rpmTagVal(td.Tag), C.rpmTagType(td.Type), count, data)
	r := fn(ctd)
	// the header copied the payload; detach it before the rpmtd is freed
	C.rpmq_td_set(ctd, 0, 0, 0, nil)
	return r != 0
}

func (e *Engine) HeaderPut(h librpm.HeaderPtr, td *librpm.TagContainer, flags librpm.HeaderPutFlags) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return withCTagData(td, func(ctd C.rpmtd) C.int {
		return C.headerPut(cHeader(h), ctd, C.headerPutFlags(flags))
	})
}

func (e *Engine) HeaderMod(h librpm.HeaderPtr, td *librpm.TagContainer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return withCTagData(td, func(ctd C.rpmtd) C.int {
		return C.headerMod(cHeader(h), ctd)
	})
}

func (e *Engine) TSCreate() librpm.TSPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	ts := C.rpmtsCreate()
	e.ts[ts] = &tsState{}
	C.rpmq_set_notify(ts, 0)
	return librpm.TSPtr(unsafe.Pointer(ts))
}

func (e *Engine) releaseKeysLocked(ts C.rpmts) {
	st := e.ts[ts]
	if st == nil {
		return
	}
	for _, k := range st.keys {
		C.free(unsafe.Pointer(k))
	}
	st.keys = nil
}

func (e *Engine) TSFree(ts librpm.TSPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cts := cTS(ts)
	C.rpmtsFree(cts)
	e.releaseKeysLocked(cts)
	if st := e.ts[cts]; st != nil && st.notify != 0 {
		st.notify.Delete()
	}
	delete(e.ts, cts)
}

func (e *Engine) TSClean(ts librpm.TSPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	C.rpmtsClean(cTS(ts))
}

func (e *Engine) TSEmpty(ts librpm.TSPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	C.rpmtsEmpty(cTS(ts))
	e.releaseKeysLocked(cTS(ts))
}

func (e *Engine) TSSetRootDir(ts librpm.TSPtr, dir string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs := C.CString(dir)
	defer C.free(unsafe.Pointer(cs))
	return int(C.rpmtsSetRootDir(cTS(ts), cs))
}

func (e *Engine) TSRootDir(ts librpm.TSPtr) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return goString(C.rpmtsRootDir(cTS(ts)))
}

func (e *Engine) TSSetFlags(ts librpm.TSPtr, flags librpm.TransFlags) librpm.TransFlags {
	e.mu.Lock()
	defer e.mu.Unlock()
	return librpm.TransFlags(C.rpmtsSetFlags(cTS(ts), C.rpmtransFlags(flags)))
}

func (e *Engine) TSFlags(ts librpm.TSPtr) librpm.TransFlags {
	e.mu.Lock()
	defer e.mu.Unlock()
	return librpm.TransFlags(C.rpmtsFlags(cTS(ts)))
}

func (e *Engine) TSSetNotifyCallback(ts librpm.TSPtr, fn librpm.NotifyFunc) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cts := cTS(ts)
	st := e.ts[cts]
	if st == nil {
		st = &tsState{}
		e.ts[cts] = st
	}
	if st.notify != 0 {
		st.notify.Delete()
		st.notify = 0
	}
	if fn != nil {
		st.notify = cgo.NewHandle(fn)
	}
	return int(C.rpmq_set_notify(cts, C.uintptr_t(st.notify)))
}

// keyLocked returns a C copy of key that lives as long as the elements of ts.
func (e *Engine) keyLocked(ts C.rpmts, key string) unsafe.Pointer {
	if key == "" {
		return nil
	}
	st := e.ts[ts]
	if st == nil {
		st = &tsState{}
		e.ts[ts] = st
	}
	k := C.CString(key)
	st.keys = append(st.keys, k)
	return unsafe.Pointer(k)
}

func (e *Engine) TSAddInstallElement(ts librpm.TSPtr, h librpm.HeaderPtr, key string, upgrade bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	var up C.int
	if upgrade {
		up = 1
	}
	cts := cTS(ts)
	return int(C.rpmtsAddInstallElement(cts, cHeader(h), C.fnpyKey(e.keyLocked(cts, key)), up, nil))
}

func (e *Engine) TSAddReinstallElement(ts librpm.TSPtr, h librpm.HeaderPtr, key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cts := cTS(ts)
	return int(C.rpmtsAddReinstallElement(cts, cHeader(h), C.fnpyKey(e.keyLocked(cts, key))))
}

func (e *Engine) TSAddEraseElement(ts librpm.TSPtr, h librpm.HeaderPtr, dbOffset uint) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(C.rpmtsAddEraseElement(cTS(ts), cHeader(h), C.int(dbOffset)))
}

func (e *Engine) TSCheck(ts librpm.TSPtr) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(C.rpmtsCheck(cTS(ts)))
}

func (e *Engine) TSOrder(ts librpm.TSPtr) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(C.rpmtsOrder(cTS(ts)))
}

func (e *Engine) TSRun(ts librpm.TSPtr, ignore librpm.FilterFlags) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	rc := int(C.rpmtsRun(cTS(ts), nil, C.rpmprobFilterFlags(ignore)))
	log.WithField("rc", rc).Debug("rpmtsRun finished")
	return rc
}

// problems copies and releases a problem set.
func problems(ps C.rpmps) []librpm.Problem {
	if ps == nil {
		return nil
	}
	defer C.rpmpsFree(ps)
	psi := C.rpmpsInitIterator(ps)
	defer C.rpmpsFreeIterator(psi)
	var out []librpm.Problem
	for p := C.rpmpsiNext(psi); p != nil; p = C.rpmpsiNext(psi) {
		out = append(out, librpm.Problem{
			Type:       librpm.ProblemType(C.rpmProblemGetType(p)),
			Package:    goString(C.rpmProblemGetPkgNEVR(p)),
			AltPackage: goString(C.rpmProblemGetAltNEVR(p)),
			Str:        goString(C.rpmProblemGetStr(p)),
			Number:     uint64(C.rpmProblemGetDiskNeed(p)),
			Key:        goString((*C.char)(C.rpmProblemGetKey(p))),
		})
	}
	return out
}

func (e *Engine) TSProblems(ts librpm.TSPtr) []librpm.Problem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return problems(C.rpmtsProblems(cTS(ts)))
}

func (e *Engine) TSNElements(ts librpm.TSPtr) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(C.rpmtsNElements(cTS(ts)))
}

func (e *Engine) TSElement(ts librpm.TSPtr, index int) librpm.ElementPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return goTE(C.rpmtsElement(cTS(ts), C.int(index)))
}

func (e *Engine) TSReadPackageFile(ts librpm.TSPtr, path string) (librpm.HeaderPtr, librpm.RC) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	var h C.Header
	rc := librpm.RC(C.rpmq_read_package(cTS(ts), cs, &h))
	return goHeader(h), rc
}

func (e *Engine) TSInitIterator(ts librpm.TSPtr, tag librpm.Tag, key []byte) librpm.MatchIteratorPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ckey unsafe.Pointer
	if len(key) > 0 {
		ckey = C.CBytes(key)
		defer C.free(ckey)
	}
	mi := C.rpmtsInitIterator(cTS(ts), C.rpmDbiTagVal(tag), ckey, C.size_t(len(key)))
	return librpm.MatchIteratorPtr(unsafe.Pointer(mi))
}

func (e *Engine) MISetPattern(mi librpm.MatchIteratorPtr, tag librpm.Tag, mode librpm.PatternMode, pattern string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs := C.CString(pattern)
	defer C.free(unsafe.Pointer(cs))
	return int(C.rpmdbSetIteratorRE(cMI(mi), C.rpmTagVal(tag), C.rpmMireMode(mode), cs))
}

func (e *Engine) MINext(mi librpm.MatchIteratorPtr) librpm.HeaderPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return goHeader(C.rpmdbNextIterator(cMI(mi)))
}

func (e *Engine) MIOffset(mi librpm.MatchIteratorPtr) uint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint(C.rpmdbGetIteratorOffset(cMI(mi)))
}

func (e *Engine) MICount(mi librpm.MatchIteratorPtr) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(C.rpmdbGetIteratorCount(cMI(mi)))
}

func (e *Engine) MIFree(mi librpm.MatchIteratorPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	C.rpmdbFreeIterator(cMI(mi))
}

func (e *Engine) TSIInit(ts librpm.TSPtr) librpm.ElementIteratorPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return librpm.ElementIteratorPtr(unsafe.Pointer(C.rpmtsiInit(cTS(ts))))
}

func (e *Engine) TSINext(tsi librpm.ElementIteratorPtr, types librpm.ElementTypes) librpm.ElementPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return goTE(C.rpmtsiNext(C.rpmtsi(unsafe.Pointer(tsi)), C.rpmElementTypes(types)))
}

func (e *Engine) TSIFree(tsi librpm.ElementIteratorPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	C.rpmtsiFree(C.rpmtsi(unsafe.Pointer(tsi)))
}

func (e *Engine) TEType(te librpm.ElementPtr) librpm.ElementTypes {
	e.mu.Lock()
	defer e.mu.Unlock()
	return librpm.ElementTypes(C.rpmteType(cTE(te)))
}

func (e *Engine) TEString(te librpm.ElementPtr, field librpm.ElementField) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := cTE(te)
	switch field {
	case librpm.ElementName:
		return goString(C.rpmteN(t))
	case librpm.ElementVersion:
		return goString(C.rpmteV(t))
	case librpm.ElementRelease:
		return goString(C.rpmteR(t))
	case librpm.ElementArch:
		return goString(C.rpmteA(t))
	case librpm.ElementOS:
		return goString(C.rpmteO(t))
	case librpm.ElementEVR:
		return goString(C.rpmteEVR(t))
	case librpm.ElementNEVR:
		return goString(C.rpmteNEVR(t))
	case librpm.ElementNEVRA:
		return goString(C.rpmteNEVRA(t))
	}
	return ""
}

func (e *Engine) TEEpoch(te librpm.ElementPtr) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := goString(C.rpmq_te_epoch(cTE(te)))
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (e *Engine) TEIsSource(te librpm.ElementPtr) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return C.rpmteIsSource(cTE(te)) != 0
}

func (e *Engine) TEColor(te librpm.ElementPtr) uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint32(C.rpmteColor(cTE(te)))
}

func (e *Engine) TEDBInstance(te librpm.ElementPtr) uint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint(C.rpmteDBInstance(cTE(te)))
}

func (e *Engine) TEParent(te librpm.ElementPtr) librpm.ElementPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return goTE(C.rpmteParent(cTE(te)))
}

func (e *Engine) TEDependsOn(te librpm.ElementPtr) librpm.ElementPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return goTE(C.rpmteDependsOn(cTE(te)))
}

func (e *Engine) TEKey(te librpm.ElementPtr) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return goString((*C.char)(C.rpmteKey(cTE(te))))
}

func (e *Engine) TEHeader(te librpm.ElementPtr) librpm.HeaderPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return goHeader(C.rpmteHeader(cTE(te)))
}

func (e *Engine) TEProblems(te librpm.ElementPtr) []librpm.Problem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return problems(C.rpmteProblems(cTE(te)))
}

func (e *Engine) TECleanProblems(te librpm.ElementPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	C.rpmteCleanProblems(cTE(te))
}
