package librpm

import (
	"unsafe"

	"emperror.dev/errors"
)

// TagContainer carries one tag value across the engine boundary (rpmtd). The
// payload layout follows the engine: arrays of fixed width integers or bytes,
// a NUL terminated string for STRING and I18NSTRING, and an array of string
// pointers for STRING_ARRAY.
type TagContainer struct {
	Tag   Tag
	Type  TagType
	Count uint32
	Data  unsafe.Pointer
	Flags TagDataFlags

	// Go memory referenced by Data when the container was filled by a Put
	// method.
	keep interface{}
}

// NewTagContainer returns an empty container bound to tag.
func NewTagContainer(tag Tag) (*TagContainer, error) {
	td := &TagContainer{}
	if err := td.SetTag(tag); err != nil {
		return nil, err
	}
	return td, nil
}

// Reset clears the container without freeing its payload.
func (td *TagContainer) Reset() {
	*td = TagContainer{}
}

// Owned reports whether the payload was allocated for this container and must
// be released with Engine.TagDataFree.
func (td *TagContainer) Owned() bool {
	return td.Flags&(TagDataAllocated|TagDataPtrAllocated) != 0
}

// SetTag binds the container to tag and takes its declared type. A container
// that already carries data can only be rebound to a tag of the same type.
func (td *TagContainer) SetTag(tag Tag) error {
	typ, ok := tag.Type()
	if !ok {
		return errors.WithDetails(errors.New("librpm: unknown tag"), "tag", int32(tag))
	}
	if td.Count > 0 && td.Type != typ {
		return errors.WithDetails(ErrTagType, "tag", tag.String(), "type", typ.String(), "data", td.Type.String())
	}
	td.Tag = tag
	td.Type = typ
	return nil
}

func (td *TagContainer) checkPut(t TagType, n int) error {
	if td.Tag == 0 {
		return errors.New("librpm: tag container has no tag")
	}
	if td.Type != t {
		return errors.WithDetails(ErrTagType, "tag", td.Tag.String(), "type", td.Type.String(), "value", t.String())
	}
	if n == 0 {
		return errors.WithDetails(errors.New("librpm: empty value"), "tag", td.Tag.String())
	}
	if n > 1 && t != BinType && td.Tag.ReturnType() == ScalarReturnType {
		return errors.WithDetails(errors.New("librpm: tag holds a single value"), "tag", td.Tag.String(), "count", n)
	}
	return nil
}

func putSlice[T byte | int8 | int16 | int32 | int64](td *TagContainer, t TagType, v []T) error {
	if err := td.checkPut(t, len(v)); err != nil {
		return err
	}
	buf := append([]T(nil), v...)
	td.Count = uint32(len(buf))
	td.Data = unsafe.Pointer(&buf[0])
	td.Flags = TagDataNone
	td.keep = buf
	return nil
}

func (td *TagContainer) PutChars(v ...byte) error  { return putSlice(td, CharType, v) }
func (td *TagContainer) PutInt8(v ...int8) error   { return putSlice(td, Int8Type, v) }
func (td *TagContainer) PutInt16(v ...int16) error { return putSlice(td, Int16Type, v) }
func (td *TagContainer) PutInt32(v ...int32) error { return putSlice(td, Int32Type, v) }
func (td *TagContainer) PutInt64(v ...int64) error { return putSlice(td, Int64Type, v) }

// PutBinary stores a blob. Count is the length in bytes.
func (td *TagContainer) PutBinary(v []byte) error {
	if err := td.checkPut(BinType, len(v)); err != nil {
		return err
	}
	buf := append([]byte(nil), v...)
	td.Count = uint32(len(buf))
	td.Data = unsafe.Pointer(&buf[0])
	td.Flags = TagDataNone
	td.keep = buf
	return nil
}

// PutString stores a STRING or I18NSTRING value, depending on the tag.
func (td *TagContainer) PutString(s string) error {
	t := StringType
	if td.Type == I18NStringType {
		t = I18NStringType
	}
	if err := td.checkPut(t, 1); err != nil {
		return err
	}
	buf, err := nulTerminated(s)
	if err != nil {
		return err
	}
	td.Count = 1
	td.Data = unsafe.Pointer(&buf[0])
	td.Flags = TagDataNone
	td.keep = buf
	return nil
}

// PutStrings stores a STRING_ARRAY value.
func (td *TagContainer) PutStrings(v ...string) error {
	if err := td.checkPut(StringArrayType, len(v)); err != nil {
		return err
	}
	bufs := make([][]byte, len(v))
	ptrs := make([]unsafe.Pointer, len(v))
	for i, s := range v {
		buf, err := nulTerminated(s)
		if err != nil {
			return err
		}
		bufs[i] = buf
		ptrs[i] = unsafe.Pointer(&buf[0])
	}
	td.Count = uint32(len(v))
	td.Data = unsafe.Pointer(&ptrs[0])
	td.Flags = TagDataNone
	td.keep = []interface{}{bufs, ptrs}
	return nil
}

// Put stores any TagData value. The value's type must match the tag.
func (td *TagContainer) Put(d TagData) error {
	switch v := d.(type) {
	case Chars:
		return td.PutChars(v...)
	case Int8s:
		return td.PutInt8(v...)
	case Int16s:
		return td.PutInt16(v...)
	case Int32s:
		return td.PutInt32(v...)
	case Int64s:
		return td.PutInt64(v...)
	case String:
		if td.Type != StringType {
			return td.checkPut(StringType, 1)
		}
		return td.PutString(string(v))
	case I18NString:
		if td.Type != I18NStringType {
			return td.checkPut(I18NStringType, 1)
		}
		return td.PutString(string(v))
	case StringArray:
		return td.PutStrings(v...)
	case Binary:
		return td.PutBinary(v)
	}
	return errors.WithDetails(ErrTagType, "tag", td.Tag.String(), "value", d.Type().String())
}

func nulTerminated(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return nil, errors.WithDetails(errors.New("librpm: string contains a NUL byte"), "offset", i)
		}
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return buf, nil
}
