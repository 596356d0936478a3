package memengine

import (
	"fmt"
	"sort"
	"strconv"
	"unsafe"

	"emperror.dev/errors"

	"github.com/cavaliercoder/rpmq/librpm"
)

type header struct {
	refs    int
	entries map[librpm.Tag]*librpm.TagContainer
}

func (e *Engine) newHeaderLocked() *header {
	h := &header{refs: 1, entries: make(map[librpm.Tag]*librpm.TagContainer)}
	e.live[h] = struct{}{}
	return h
}

func (e *Engine) hdr(p librpm.HeaderPtr) *header {
	h := (*header)(p)
	if _, ok := e.live[h]; !ok {
		panic(fmt.Sprintf("memengine: header %p is not live", p))
	}
	return h
}

func (e *Engine) linkLocked(h *header) {
	h.refs++
}

func (e *Engine) freeLocked(h *header) {
	h.refs--
	if h.refs < 0 {
		panic(fmt.Sprintf("memengine: header %p freed too many times", h))
	}
	if h.refs == 0 {
		delete(e.live, h)
	}
}

func (e *Engine) HeaderNew() librpm.HeaderPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.newHeaderLocked()
	e.record("HeaderNew", uintptr(unsafe.Pointer(h)))
	return librpm.HeaderPtr(h)
}

func (e *Engine) HeaderLink(p librpm.HeaderPtr) librpm.HeaderPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("HeaderLink", uintptr(p))
	e.linkLocked(e.hdr(p))
	return p
}

// HeaderFree drops one reference to the header. It panics if the header has
// already been released by every holder.
func (e *Engine) HeaderFree(p librpm.HeaderPtr) librpm.HeaderPtr {
	if p == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("HeaderFree", uintptr(p))
	e.freeLocked(e.hdr(p))
	return nil
}

func (e *Engine) HeaderIsEntry(p librpm.HeaderPtr, tag librpm.Tag) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("HeaderIsEntry", uintptr(p))
	_, ok := e.hdr(p).entries[tag]
	return ok
}

// HeaderGet fills td with the value of tag. With HeaderGetMinMem the payload
// points into the header; otherwise it is a copy that must be released with
// TagDataFree. Extension tags such as NEVRA are computed unless
// HeaderGetRaw is set.
func (e *Engine) HeaderGet(p librpm.HeaderPtr, tag librpm.Tag, td *librpm.TagContainer, flags librpm.HeaderGetFlags) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("HeaderGet", uintptr(p))
	h := e.hdr(p)
	td.Reset()

	ent, ok := h.entries[tag]
	if !ok {
		if flags&librpm.HeaderGetRaw != 0 {
			return false
		}
		d, ok := h.extension(tag)
		if !ok {
			return false
		}
		return e.handOut(tag, d, td)
	}
	if flags&librpm.HeaderGetMinMem != 0 {
		*td = *ent
		td.Flags = librpm.TagDataNone
		return true
	}
	return e.handOut(tag, ent.Decode().Clone(), td)
}

func (e *Engine) handOut(tag librpm.Tag, d librpm.TagData, td *librpm.TagContainer) bool {
	c, err := encode(tag, d)
	if err != nil {
		return false
	}
	*td = *c
	td.Flags = librpm.TagDataPtrAllocated
	e.allocs++
	return true
}

// HeaderPut copies the value in td into the header. The tag must not be
// present yet, unless flags has HeaderPutAppend and the tag holds an array.
func (e *Engine) HeaderPut(p librpm.HeaderPtr, td *librpm.TagContainer, flags librpm.HeaderPutFlags) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("HeaderPut", uintptr(p))
	h := e.hdr(p)

	d, ok := decode(td)
	if !ok || !typeFits(td.Tag, td.Type) {
		return false
	}
	if old, exists := h.entries[td.Tag]; exists {
		if flags&librpm.HeaderPutAppend == 0 || td.Tag.ReturnType() == librpm.ScalarReturnType {
			return false
		}
		if d, ok = concat(old.Decode(), d); !ok {
			return false
		}
	}
	return h.store(td.Tag, d.Clone()) == nil
}

// HeaderMod replaces the value of a tag the header already carries.
func (e *Engine) HeaderMod(p librpm.HeaderPtr, td *librpm.TagContainer) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("HeaderMod", uintptr(p))
	h := e.hdr(p)

	old, exists := h.entries[td.Tag]
	if !exists || old.Type != td.Type {
		return false
	}
	d, ok := decode(td)
	if !ok {
		return false
	}
	return h.store(td.Tag, d.Clone()) == nil
}

func (e *Engine) TagDataFree(td *librpm.TagContainer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TagDataFree", 0)
	if td.Owned() {
		e.allocs--
	}
	td.Reset()
}

func (h *header) store(tag librpm.Tag, d librpm.TagData) error {
	c, err := encode(tag, d)
	if err != nil {
		return err
	}
	h.entries[tag] = c
	return nil
}

func (h *header) getString(tag librpm.Tag) (string, bool) {
	ent, ok := h.entries[tag]
	if !ok {
		return "", false
	}
	return librpm.AsString(ent.Decode())
}

func (h *header) getInt(tag librpm.Tag) (int64, bool) {
	ent, ok := h.entries[tag]
	if !ok {
		return 0, false
	}
	return librpm.AsInt64(ent.Decode())
}

func (h *header) getStrings(tag librpm.Tag) []string {
	ent, ok := h.entries[tag]
	if !ok {
		return nil
	}
	v, _ := librpm.AsStrings(ent.Decode())
	return v
}

func (h *header) evr() string {
	v, _ := h.getString(librpm.TagVersion)
	r, _ := h.getString(librpm.TagRelease)
	if epoch, ok := h.getInt(librpm.TagEpoch); ok {
		return strconv.FormatInt(epoch, 10) + ":" + v + "-" + r
	}
	return v + "-" + r
}

func (h *header) nevra() string {
	name, _ := h.getString(librpm.TagName)
	s := name + "-" + h.evr()
	if arch, ok := h.getString(librpm.TagArch); ok {
		s += "." + arch
	}
	return s
}

// extension computes the value of a tag derived from other tags.
func (h *header) extension(tag librpm.Tag) (librpm.TagData, bool) {
	name, ok := h.getString(librpm.TagName)
	if !ok {
		return nil, false
	}
	v, vok := h.getString(librpm.TagVersion)
	r, rok := h.getString(librpm.TagRelease)
	if !vok || !rok {
		return nil, false
	}
	arch := ""
	if a, ok := h.getString(librpm.TagArch); ok {
		arch = "." + a
	}

	switch tag {
	case librpm.TagEpochNum:
		epoch, _ := h.getInt(librpm.TagEpoch)
		return librpm.Int32s{int32(epoch)}, true
	case librpm.TagEVR:
		return librpm.String(h.evr()), true
	case librpm.TagNVR:
		return librpm.String(name + "-" + v + "-" + r), true
	case librpm.TagNVRA:
		return librpm.String(name + "-" + v + "-" + r + arch), true
	case librpm.TagNEVR:
		return librpm.String(name + "-" + h.evr()), true
	case librpm.TagNEVRA:
		return librpm.String(h.nevra()), true
	}
	return nil, false
}

func encode(tag librpm.Tag, d librpm.TagData) (*librpm.TagContainer, error) {
	td := &librpm.TagContainer{Tag: tag, Type: d.Type()}
	if err := td.Put(d); err != nil {
		return nil, err
	}
	return td, nil
}

// decode reads a caller supplied container, reporting malformed payloads
// instead of panicking.
func decode(td *librpm.TagContainer) (d librpm.TagData, ok bool) {
	if td == nil || td.Count == 0 {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			d, ok = nil, false
		}
	}()
	return td.Decode(), true
}

func typeFits(tag librpm.Tag, t librpm.TagType) bool {
	want, ok := tag.Type()
	if !ok {
		return t != librpm.NullType
	}
	if want == t {
		return true
	}
	isString := func(t librpm.TagType) bool {
		return t == librpm.StringType || t == librpm.I18NStringType
	}
	return isString(want) && isString(t)
}

func concat(a, b librpm.TagData) (librpm.TagData, bool) {
	switch a := a.(type) {
	case librpm.Chars:
		b, ok := b.(librpm.Chars)
		return append(a.Clone().(librpm.Chars), b...), ok
	case librpm.Int8s:
		b, ok := b.(librpm.Int8s)
		return append(a.Clone().(librpm.Int8s), b...), ok
	case librpm.Int16s:
		b, ok := b.(librpm.Int16s)
		return append(a.Clone().(librpm.Int16s), b...), ok
	case librpm.Int32s:
		b, ok := b.(librpm.Int32s)
		return append(a.Clone().(librpm.Int32s), b...), ok
	case librpm.Int64s:
		b, ok := b.(librpm.Int64s)
		return append(a.Clone().(librpm.Int64s), b...), ok
	case librpm.StringArray:
		b, ok := b.(librpm.StringArray)
		return append(a.Clone().(librpm.StringArray), b...), ok
	case librpm.Binary:
		b, ok := b.(librpm.Binary)
		return append(a.Clone().(librpm.Binary), b...), ok
	}
	return nil, false
}

// Entry is the content of a header, used to seed the database.
type Entry map[librpm.Tag]librpm.TagData

// PackageEntry returns the header content that describes p.
func PackageEntry(p *librpm.Package) Entry {
	ent := Entry{
		librpm.TagName:        librpm.String(p.Name),
		librpm.TagVersion:     librpm.String(p.Version),
		librpm.TagRelease:     librpm.String(p.Release),
		librpm.TagLicense:     librpm.String(p.License),
		librpm.TagSummary:     librpm.I18NString(p.Summary),
		librpm.TagDescription: librpm.I18NString(p.Description),
		librpm.TagBuildTime:   librpm.Int32s{int32(p.BuildTime.Unix())},
	}
	if p.Epoch != nil {
		ent[librpm.TagEpoch] = librpm.Int32s{int32(*p.Epoch)}
	}
	if p.Size > 0 {
		ent[librpm.TagLongSize] = librpm.Int64s{int64(p.Size)}
	}
	optional := map[librpm.Tag]string{
		librpm.TagArch:      p.Arch,
		librpm.TagOS:        p.OS,
		librpm.TagURL:       p.URL,
		librpm.TagVendor:    p.Vendor,
		librpm.TagSourceRPM: p.SourceRPM,
	}
	for tag, v := range optional {
		if v != "" {
			ent[tag] = librpm.String(v)
		}
	}
	return ent
}

func (e *Engine) headerFromEntry(ent Entry) (*header, error) {
	tags := make([]librpm.Tag, 0, len(ent))
	for tag := range ent {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	h := e.newHeaderLocked()
	for _, tag := range tags {
		if err := h.store(tag, ent[tag].Clone()); err != nil {
			e.freeLocked(h)
			return nil, errors.WithDetails(err, "tag", tag.String())
		}
	}
	return h, nil
}
