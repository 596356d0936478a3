package librpm

import (
	"unicode/utf8"
	"unsafe"

	"emperror.dev/errors"
)

// TagData is a decoded header value. The concrete type is one of Null, Chars,
// Int8s, Int16s, Int32s, Int64s, String, StringArray, I18NString or Binary.
//
// Values decoded by Header.Get borrow the header's memory: slices and strings
// are only valid while the Header is alive. Use Clone to detach them.
type TagData interface {
	Type() TagType
	Clone() TagData
	isTagData()
}

type (
	Null        struct{}
	Chars       []byte
	Int8s       []int8
	Int16s      []int16
	Int32s      []int32
	Int64s      []int64
	String      string
	StringArray []string
	I18NString  string
	Binary      []byte
)

func (Null) Type() TagType        { return NullType }
func (Chars) Type() TagType       { return CharType }
func (Int8s) Type() TagType       { return Int8Type }
func (Int16s) Type() TagType      { return Int16Type }
func (Int32s) Type() TagType      { return Int32Type }
func (Int64s) Type() TagType      { return Int64Type }
func (String) Type() TagType      { return StringType }
func (StringArray) Type() TagType { return StringArrayType }
func (I18NString) Type() TagType  { return I18NStringType }
func (Binary) Type() TagType      { return BinType }

func (Null) isTagData()        {}
func (Chars) isTagData()       {}
func (Int8s) isTagData()       {}
func (Int16s) isTagData()      {}
func (Int32s) isTagData()      {}
func (Int64s) isTagData()      {}
func (String) isTagData()      {}
func (StringArray) isTagData() {}
func (I18NString) isTagData()  {}
func (Binary) isTagData()      {}

func (d Null) Clone() TagData   { return d }
func (d Chars) Clone() TagData  { return append(Chars(nil), d...) }
func (d Int8s) Clone() TagData  { return append(Int8s(nil), d...) }
func (d Int16s) Clone() TagData { return append(Int16s(nil), d...) }
func (d Int32s) Clone() TagData { return append(Int32s(nil), d...) }
func (d Int64s) Clone() TagData { return append(Int64s(nil), d...) }
func (d String) Clone() TagData { return String(cloneString(string(d))) }
func (d I18NString) Clone() TagData {
	return I18NString(cloneString(string(d)))
}
func (d Binary) Clone() TagData { return append(Binary(nil), d...) }

func (d StringArray) Clone() TagData {
	v := make(StringArray, len(d))
	for i, s := range d {
		v[i] = cloneString(s)
	}
	return v
}

func cloneString(s string) string {
	if s == "" {
		return ""
	}
	return string(append([]byte(nil), s...))
}

// AsString returns the value of a String or I18NString.
func AsString(d TagData) (string, bool) {
	switch v := d.(type) {
	case String:
		return string(v), true
	case I18NString:
		return string(v), true
	}
	return "", false
}

// AsStrings returns the value of a StringArray. A single String is returned
// as an array of one.
func AsStrings(d TagData) ([]string, bool) {
	switch v := d.(type) {
	case StringArray:
		return v, true
	case String:
		return []string{string(v)}, true
	case I18NString:
		return []string{string(v)}, true
	}
	return nil, false
}

// AsInt64 returns the first element of an integer array of any width.
func AsInt64(d TagData) (int64, bool) {
	switch v := d.(type) {
	case Int8s:
		if len(v) > 0 {
			return int64(v[0]), true
		}
	case Int16s:
		if len(v) > 0 {
			return int64(v[0]), true
		}
	case Int32s:
		if len(v) > 0 {
			return int64(v[0]), true
		}
	case Int64s:
		if len(v) > 0 {
			return v[0], true
		}
	}
	return 0, false
}

// AsInt32 returns the first element of an Int32s.
func AsInt32(d TagData) (int32, bool) {
	if v, ok := d.(Int32s); ok && len(v) > 0 {
		return v[0], true
	}
	return 0, false
}

// AsBytes returns the value of a Binary.
func AsBytes(d TagData) ([]byte, bool) {
	v, ok := d.(Binary)
	return v, ok
}

// Decode interprets the container's payload according to its type code. The
// result borrows the container's memory.
//
// Decode panics if the type code is unknown, if a payload pointer is nil or if
// a string is not valid UTF-8. These indicate a corrupt header or a bug, not
// bad input.
func (td *TagContainer) Decode() TagData {
	switch td.Type {
	case NullType:
		return Null{}
	case CharType:
		return Chars(decodeSlice[byte](td, CharType))
	case Int8Type:
		return Int8s(decodeSlice[int8](td, Int8Type))
	case Int16Type:
		return Int16s(decodeSlice[int16](td, Int16Type))
	case Int32Type:
		return Int32s(decodeSlice[int32](td, Int32Type))
	case Int64Type:
		return Int64s(decodeSlice[int64](td, Int64Type))
	case StringType:
		return String(decodeString(td, StringType))
	case StringArrayType:
		return StringArray(decodeStringArray(td))
	case I18NStringType:
		return I18NString(decodeString(td, I18NStringType))
	case BinType:
		return Binary(decodeSlice[byte](td, BinType))
	}
	panic(&DecodeError{Tag: td.Tag, Type: td.Type, Err: errors.Errorf("unsupported tag type %d", uint32(td.Type))})
}

// DecodeAs is Decode with the expectation that the payload has type t. A
// mismatch panics.
func (td *TagContainer) DecodeAs(t TagType) TagData {
	assertType(td, t)
	return td.Decode()
}

func assertType(td *TagContainer, want TagType) {
	if td.Type != want {
		panic(&DecodeError{Tag: td.Tag, Type: td.Type, Err: errors.Errorf("expected %v data", want)})
	}
}

func assertData(td *TagContainer) {
	if td.Data == nil {
		panic(&DecodeError{Tag: td.Tag, Type: td.Type, Err: errors.New("data pointer is nil")})
	}
}

func decodeSlice[T byte | int8 | int16 | int32 | int64](td *TagContainer, want TagType) []T {
	assertType(td, want)
	if td.Count == 0 {
		return []T{}
	}
	assertData(td)
	return unsafe.Slice((*T)(td.Data), td.Count)
}

func decodeString(td *TagContainer, want TagType) string {
	assertType(td, want)
	assertData(td)
	return checkUTF8(td, cString(td.Data))
}

func decodeStringArray(td *TagContainer) []string {
	assertType(td, StringArrayType)
	if td.Count == 0 {
		return []string{}
	}
	assertData(td)
	ptrs := unsafe.Slice((*unsafe.Pointer)(td.Data), td.Count)
	v := make([]string, len(ptrs))
	for i, p := range ptrs {
		if p == nil {
			panic(&DecodeError{Tag: td.Tag, Type: td.Type, Err: errors.Errorf("element %d is nil", i)})
		}
		v[i] = checkUTF8(td, cString(p))
	}
	return v
}

func checkUTF8(td *TagContainer, s string) string {
	if !utf8.ValidString(s) {
		for i := 0; i < len(s); {
			r, n := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && n <= 1 {
				panic(&DecodeError{Tag: td.Tag, Type: td.Type, Err: errors.Errorf("invalid UTF-8 at byte %d", i)})
			}
			i += n
		}
	}
	return s
}

// cString returns a string view of the NUL terminated bytes at p.
func cString(p unsafe.Pointer) string {
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return unsafe.String((*byte)(p), n)
}
