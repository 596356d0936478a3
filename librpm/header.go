package librpm

import (
	"runtime"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
)

// Header is a reference counted view of one package header owned by the
// engine. Each Header holds one engine reference which is released by Free,
// or by the garbage collector if Free is never called.
//
// Values returned by Get borrow the header's memory and must not be used
// after Free.
type Header struct {
	engine Engine
	ptr    HeaderPtr
	once   sync.Once
}

// newHeader wraps ptr and takes a new engine reference.
func newHeader(e Engine, ptr HeaderPtr) *Header {
	if ptr == nil {
		panic("librpm: nil header")
	}
	return adoptHeader(e, e.HeaderLink(ptr))
}

// adoptHeader wraps ptr, taking over a reference the caller already holds.
func adoptHeader(e Engine, ptr HeaderPtr) *Header {
	if ptr == nil {
		panic("librpm: nil header")
	}
	h := &Header{engine: e, ptr: ptr}
	runtime.SetFinalizer(h, (*Header).Free)
	return h
}

// NewHeader returns a new empty header.
func NewHeader(e Engine) *Header {
	return adoptHeader(e, e.HeaderNew())
}

// Free releases the header's engine reference. It is safe to call Free more
// than once.
func (h *Header) Free() {
	h.once.Do(func() {
		h.engine.HeaderFree(h.ptr)
		h.ptr = nil
		runtime.SetFinalizer(h, nil)
	})
}

// Clone returns a second view of the same header with its own reference.
func (h *Header) Clone() *Header {
	return newHeader(h.engine, h.handle())
}

func (h *Header) handle() HeaderPtr {
	if h.ptr == nil {
		panic("librpm: header used after Free")
	}
	return h.ptr
}

// Has reports whether the header carries tag.
func (h *Header) Has(tag Tag) bool {
	ok := h.engine.HeaderIsEntry(h.handle(), tag)
	runtime.KeepAlive(h)
	return ok
}

// Get returns the value of tag, or false if the header does not carry it.
func (h *Header) Get(tag Tag) (TagData, bool) {
	var td TagContainer
	if !h.engine.HeaderGet(h.handle(), tag, &td, HeaderGetMinMem) {
		return nil, false
	}
	defer runtime.KeepAlive(h)
	if td.Owned() {
		d := td.Decode().Clone()
		h.engine.TagDataFree(&td)
		return d, true
	}
	return td.Decode(), true
}

// GetString returns the value of a STRING or I18NSTRING tag. The string
// borrows the header's memory.
func (h *Header) GetString(tag Tag) (string, bool) {
	d, ok := h.Get(tag)
	if !ok {
		return "", false
	}
	return AsString(d)
}

// GetInt returns the first value of an integer tag.
func (h *Header) GetInt(tag Tag) (int64, bool) {
	d, ok := h.Get(tag)
	if !ok {
		return 0, false
	}
	return AsInt64(d)
}

// Put adds a tag to the header. Array tags are appended to when flags has
// HeaderPutAppend.
func (h *Header) Put(td *TagContainer, flags HeaderPutFlags) error {
	ok := h.engine.HeaderPut(h.handle(), td, flags)
	runtime.KeepAlive(h)
	runtime.KeepAlive(td)
	if !ok {
		return errors.WithDetails(errors.New("librpm: header put failed"), "tag", td.Tag.String())
	}
	return nil
}

// Modify replaces the value of a tag the header already carries.
func (h *Header) Modify(td *TagContainer) error {
	ok := h.engine.HeaderMod(h.handle(), td)
	runtime.KeepAlive(h)
	runtime.KeepAlive(td)
	if !ok {
		return errors.WithDetails(errors.New("librpm: header modify failed"), "tag", td.Tag.String())
	}
	return nil
}

// Set writes d to tag, adding or replacing it.
func (h *Header) Set(tag Tag, d TagData) error {
	td, err := NewTagContainer(tag)
	if err != nil {
		return err
	}
	if err := td.Put(d); err != nil {
		return err
	}
	if h.Has(tag) {
		return h.Modify(td)
	}
	return h.Put(td, HeaderPutDefault)
}

// ToPackage copies the package identity and description out of the header.
// It panics if a field every installed package carries is missing.
func (h *Header) ToPackage() *Package {
	p := &Package{
		Name:        h.required(TagName),
		Version:     h.required(TagVersion),
		Release:     h.required(TagRelease),
		License:     h.required(TagLicense),
		Summary:     h.required(TagSummary),
		Description: h.required(TagDescription),
	}

	if d, ok := h.Get(TagEpoch); ok {
		v, ok := AsInt64(d)
		if !ok {
			panic(&DecodeError{Tag: TagEpoch, Type: d.Type(), Err: errors.New("epoch is not an integer")})
		}
		epoch := int(v)
		p.Epoch = &epoch
	}
	if s, ok := h.GetString(TagArch); ok {
		p.Arch = strings.Clone(s)
	}

	d, ok := h.Get(TagBuildTime)
	if !ok {
		panic("librpm: header has no BUILDTIME")
	}
	bt, ok := AsInt32(d)
	if !ok {
		panic(&DecodeError{Tag: TagBuildTime, Type: d.Type(), Err: errors.New("expected INT32 data")})
	}
	p.BuildTime = time.Unix(int64(bt), 0).UTC()

	if v, ok := h.GetInt(TagLongSize); ok {
		p.Size = uint64(v)
	} else if v, ok := h.GetInt(TagSize); ok {
		p.Size = uint64(uint32(v))
	}
	if s, ok := h.GetString(TagOS); ok {
		p.OS = strings.Clone(s)
	}
	if s, ok := h.GetString(TagURL); ok {
		p.URL = strings.Clone(s)
	}
	if s, ok := h.GetString(TagVendor); ok {
		p.Vendor = strings.Clone(s)
	}
	if s, ok := h.GetString(TagSourceRPM); ok {
		p.SourceRPM = strings.Clone(s)
	}
	return p
}

func (h *Header) required(tag Tag) string {
	d, ok := h.Get(tag)
	if !ok {
		panic("librpm: header has no " + tag.String())
	}
	s, ok := AsString(d)
	if !ok {
		panic(&DecodeError{Tag: tag, Type: d.Type(), Err: errors.New("expected string data")})
	}
	return strings.Clone(s)
}
