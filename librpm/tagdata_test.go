package librpm_test

import (
	"testing"
	"unsafe"

	"emperror.dev/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cavaliercoder/rpmq/librpm"
)

func decodePanic(t *testing.T, fn func()) *librpm.DecodeError {
	t.Helper()
	var got interface{}
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	require.NotNil(t, got, "expected a panic")
	err, ok := got.(*librpm.DecodeError)
	require.True(t, ok, "panic value is %T", got)
	assert.True(t, errors.Is(err, librpm.ErrDecode))
	return err
}

func TestTagContainerRoundTrip(t *testing.T) {
	tests := []struct {
		tag  librpm.Tag
		typ  librpm.TagType
		data librpm.TagData
	}{
		{librpm.TagName, librpm.StringType, librpm.String("bash")},
		{librpm.TagSummary, librpm.I18NStringType, librpm.I18NString("The GNU Bourne Again shell")},
		{librpm.TagProvideName, librpm.StringArrayType, librpm.StringArray{"bash", "/bin/sh", "config(bash) = 4.2.46-34.el7"}},
		{librpm.TagEpoch, librpm.Int32Type, librpm.Int32s{3}},
		{librpm.TagLongSize, librpm.Int64Type, librpm.Int64s{1 << 40}},
		{librpm.TagFileModes, librpm.Int16Type, librpm.Int16s{0o755, -32348}},
		{librpm.TagFileStates, librpm.CharType, librpm.Chars{0, 1, 2}},
		{librpm.TagSigMD5, librpm.BinType, librpm.Binary{0xde, 0xad, 0xbe, 0xef}},
	}
	for _, tt := range tests {
		t.Run(tt.tag.String(), func(t *testing.T) {
			td, err := librpm.NewTagContainer(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, td.Type)
			require.NoError(t, td.Put(tt.data))

			assert.Equal(t, tt.data, td.Decode())
			assert.Equal(t, tt.data, td.DecodeAs(tt.typ))
			assert.Equal(t, tt.data, td.Decode().Clone())
			assert.Equal(t, tt.typ, td.Decode().Type())
			assert.False(t, td.Owned())
		})
	}
}

func TestTagContainerInt8(t *testing.T) {
	td := &librpm.TagContainer{Tag: librpm.TagFileStates, Type: librpm.Int8Type}
	require.NoError(t, td.PutInt8(-1, 0, 1))
	assert.Equal(t, librpm.Int8s{-1, 0, 1}, td.Decode())
	v, ok := librpm.AsInt64(td.Decode())
	assert.True(t, ok)
	assert.Equal(t, int64(-1), v)
}

func TestTagContainerPutErrors(t *testing.T) {
	_, err := librpm.NewTagContainer(librpm.Tag(999999))
	assert.Error(t, err)

	td, err := librpm.NewTagContainer(librpm.TagName)
	require.NoError(t, err)
	assert.True(t, errors.Is(td.PutInt32(1), librpm.ErrTagType))
	assert.True(t, errors.Is(td.Put(librpm.StringArray{"a"}), librpm.ErrTagType))
	assert.True(t, errors.Is(td.Put(librpm.I18NString("a")), librpm.ErrTagType))
	assert.Error(t, td.PutString("nul\x00byte"))
	assert.Error(t, td.Put(librpm.Null{}))

	epoch, err := librpm.NewTagContainer(librpm.TagEpoch)
	require.NoError(t, err)
	assert.Error(t, epoch.PutInt32(), "empty value")
	assert.Error(t, epoch.PutInt32(1, 2), "EPOCH holds a single value")

	var unbound librpm.TagContainer
	assert.Error(t, unbound.PutString("x"))

	require.NoError(t, td.PutString("bash"))
	assert.True(t, errors.Is(td.SetTag(librpm.TagEpoch), librpm.ErrTagType))
	assert.NoError(t, td.SetTag(librpm.TagVersion))
	assert.Equal(t, librpm.TagVersion, td.Tag)
	td.Reset()
	assert.NoError(t, td.SetTag(librpm.TagEpoch))
}

func TestDecodeTypeMismatchPanics(t *testing.T) {
	td, err := librpm.NewTagContainer(librpm.TagName)
	require.NoError(t, err)
	require.NoError(t, td.PutString("bash"))

	derr := decodePanic(t, func() { td.DecodeAs(librpm.Int32Type) })
	assert.Equal(t, librpm.TagName, derr.Tag)
	assert.Equal(t, librpm.StringType, derr.Type)

	bad := &librpm.TagContainer{Tag: librpm.TagName, Type: librpm.TagType(42), Count: 1}
	decodePanic(t, func() { bad.Decode() })

	nilData := &librpm.TagContainer{Tag: librpm.TagName, Type: librpm.StringType, Count: 1}
	decodePanic(t, func() { nilData.Decode() })

	nilArray := &librpm.TagContainer{Tag: librpm.TagProvideName, Type: librpm.StringArrayType, Count: 2}
	decodePanic(t, func() { nilArray.Decode() })
}

func TestDecodeInvalidUTF8Panics(t *testing.T) {
	buf := []byte{'o', 'k', 0xff, 0xfe, 0}
	td := &librpm.TagContainer{
		Tag:   librpm.TagSummary,
		Type:  librpm.I18NStringType,
		Count: 1,
		Data:  unsafe.Pointer(&buf[0]),
	}
	derr := decodePanic(t, func() { td.Decode() })
	assert.Contains(t, derr.Error(), "invalid UTF-8 at byte 2")

	ptrs := []unsafe.Pointer{unsafe.Pointer(&buf[2])}
	arr := &librpm.TagContainer{
		Tag:   librpm.TagProvideName,
		Type:  librpm.StringArrayType,
		Count: 1,
		Data:  unsafe.Pointer(&ptrs[0]),
	}
	decodePanic(t, func() { arr.Decode() })
}

func TestDecodeEmptyArrays(t *testing.T) {
	td := &librpm.TagContainer{Tag: librpm.TagProvideName, Type: librpm.StringArrayType}
	assert.Equal(t, librpm.StringArray{}, td.Decode())
	td = &librpm.TagContainer{Tag: librpm.TagFileModes, Type: librpm.Int16Type}
	assert.Equal(t, librpm.Int16s{}, td.Decode())
	assert.Equal(t, librpm.Null{}, (&librpm.TagContainer{}).Decode())
}

func TestTagDataAccessors(t *testing.T) {
	s, ok := librpm.AsString(librpm.I18NString("x"))
	assert.True(t, ok)
	assert.Equal(t, "x", s)
	_, ok = librpm.AsString(librpm.Int32s{1})
	assert.False(t, ok)

	v, ok := librpm.AsStrings(librpm.String("one"))
	assert.True(t, ok)
	assert.Equal(t, []string{"one"}, v)

	n, ok := librpm.AsInt32(librpm.Int32s{7, 8})
	assert.True(t, ok)
	assert.Equal(t, int32(7), n)
	_, ok = librpm.AsInt32(librpm.Int64s{7})
	assert.False(t, ok)
	_, ok = librpm.AsInt64(librpm.Int64s{})
	assert.False(t, ok)

	b, ok := librpm.AsBytes(librpm.Binary{1, 2})
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2}, b)
}

func TestTags(t *testing.T) {
	assert.Equal(t, "NAME", librpm.TagName.String())
	assert.Equal(t, "Tag(999999)", librpm.Tag(999999).String())

	tag, ok := librpm.ParseTag("rpmtag_nevra")
	assert.True(t, ok)
	assert.Equal(t, librpm.TagNEVRA, tag)
	_, ok = librpm.ParseTag("nope")
	assert.False(t, ok)

	typ, ok := librpm.TagBuildTime.Type()
	assert.True(t, ok)
	assert.Equal(t, librpm.Int32Type, typ)
	assert.Equal(t, "INT32", typ.String())
	assert.Equal(t, librpm.ArrayReturnType, librpm.TagRequireName.ReturnType())
	assert.Equal(t, librpm.ScalarReturnType, librpm.TagName.ReturnType())
}
