package librpm

import (
	"strconv"
	"strings"

	"emperror.dev/errors"
)

// TransFlags modify how a transaction runs (rpmtransFlags).
type TransFlags uint32

const (
	TransFlagNone            TransFlags = 0
	TransFlagTest            TransFlags = 1 << 0
	TransFlagBuildProbs      TransFlags = 1 << 1
	TransFlagNoScripts       TransFlags = 1 << 2
	TransFlagJustDB          TransFlags = 1 << 3
	TransFlagNoTriggers      TransFlags = 1 << 4
	TransFlagNoDocs          TransFlags = 1 << 5
	TransFlagAllFiles        TransFlags = 1 << 6
	TransFlagNoPlugins       TransFlags = 1 << 7
	TransFlagNoContexts      TransFlags = 1 << 8
	TransFlagNoCaps          TransFlags = 1 << 9
	TransFlagNoTriggerPreIn  TransFlags = 1 << 16
	TransFlagNoPre           TransFlags = 1 << 17
	TransFlagNoPost          TransFlags = 1 << 18
	TransFlagNoTriggerIn     TransFlags = 1 << 19
	TransFlagNoTriggerUn     TransFlags = 1 << 20
	TransFlagNoPreUn         TransFlags = 1 << 21
	TransFlagNoPostUn        TransFlags = 1 << 22
	TransFlagNoTriggerPostUn TransFlags = 1 << 23
	TransFlagNoPreTrans      TransFlags = 1 << 24
	TransFlagNoPostTrans     TransFlags = 1 << 25
	TransFlagNoFileDigest    TransFlags = 1 << 27
	TransFlagNoConfigs       TransFlags = 1 << 30
	TransFlagDepLoops        TransFlags = 1 << 31
)

var transFlagNames = []flagName{
	{uint64(TransFlagTest), "test"},
	{uint64(TransFlagBuildProbs), "buildprobs"},
	{uint64(TransFlagNoScripts), "noscripts"},
	{uint64(TransFlagJustDB), "justdb"},
	{uint64(TransFlagNoTriggers), "notriggers"},
	{uint64(TransFlagNoDocs), "nodocs"},
	{uint64(TransFlagAllFiles), "allfiles"},
	{uint64(TransFlagNoPlugins), "noplugins"},
	{uint64(TransFlagNoContexts), "nocontexts"},
	{uint64(TransFlagNoCaps), "nocaps"},
	{uint64(TransFlagNoTriggerPreIn), "notriggerprein"},
	{uint64(TransFlagNoPre), "nopre"},
	{uint64(TransFlagNoPost), "nopost"},
	{uint64(TransFlagNoTriggerIn), "notriggerin"},
	{uint64(TransFlagNoTriggerUn), "notriggerun"},
	{uint64(TransFlagNoPreUn), "nopreun"},
	{uint64(TransFlagNoPostUn), "nopostun"},
	{uint64(TransFlagNoTriggerPostUn), "notriggerpostun"},
	{uint64(TransFlagNoPreTrans), "nopretrans"},
	{uint64(TransFlagNoPostTrans), "noposttrans"},
	{uint64(TransFlagNoFileDigest), "nofiledigest"},
	{uint64(TransFlagNoConfigs), "noconfigs"},
	{uint64(TransFlagDepLoops), "deploops"},
}

func (c TransFlags) Has(flags TransFlags) bool { return c&flags == flags }

func (c TransFlags) String() string { return formatFlags(uint64(c), transFlagNames) }

// ParseTransFlags parses a comma separated list of flag names, such as
// "test,noscripts".
func ParseTransFlags(s string) (TransFlags, error) {
	v, err := parseFlags(s, transFlagNames)
	return TransFlags(v), err
}

// FilterFlags select classes of problems to ignore when a transaction runs
// (rpmprobFilterFlags).
type FilterFlags uint32

const (
	FilterNone            FilterFlags = 0
	FilterIgnoreOS        FilterFlags = 1 << 0
	FilterIgnoreArch      FilterFlags = 1 << 1
	FilterReplacePkg      FilterFlags = 1 << 2
	FilterForceRelocate   FilterFlags = 1 << 3
	FilterReplaceNewFiles FilterFlags = 1 << 4
	FilterReplaceOldFiles FilterFlags = 1 << 5
	FilterOldPackage      FilterFlags = 1 << 6
	FilterDiskSpace       FilterFlags = 1 << 7
	FilterDiskNodes       FilterFlags = 1 << 8
	FilterVerify          FilterFlags = 1 << 9
)

var filterFlagNames = []flagName{
	{uint64(FilterIgnoreOS), "bados"},
	{uint64(FilterIgnoreArch), "badarch"},
	{uint64(FilterReplacePkg), "replacepkg"},
	{uint64(FilterForceRelocate), "forcerelocate"},
	{uint64(FilterReplaceNewFiles), "replacenewfiles"},
	{uint64(FilterReplaceOldFiles), "replaceoldfiles"},
	{uint64(FilterOldPackage), "oldpackage"},
	{uint64(FilterDiskSpace), "diskspace"},
	{uint64(FilterDiskNodes), "disknodes"},
	{uint64(FilterVerify), "verify"},
}

func (c FilterFlags) Has(flags FilterFlags) bool { return c&flags == flags }

func (c FilterFlags) String() string { return formatFlags(uint64(c), filterFlagNames) }

// ParseFilterFlags parses a comma separated list of problem filters, such as
// "badarch,oldpackage".
func ParseFilterFlags(s string) (FilterFlags, error) {
	v, err := parseFlags(s, filterFlagNames)
	return FilterFlags(v), err
}

// ElementTypes is a set of transaction element types (rpmElementTypes).
type ElementTypes uint32

const (
	ElementAdded   ElementTypes = 1 << 0
	ElementRemoved ElementTypes = 1 << 1
	ElementRPMDB   ElementTypes = 1 << 2

	ElementAny = ElementAdded | ElementRemoved | ElementRPMDB
)

var elementTypeNames = []flagName{
	{uint64(ElementAdded), "added"},
	{uint64(ElementRemoved), "removed"},
	{uint64(ElementRPMDB), "rpmdb"},
}

func (c ElementTypes) Has(types ElementTypes) bool { return c&types == types }

func (c ElementTypes) String() string { return formatFlags(uint64(c), elementTypeNames) }

// HeaderGetFlags control how header data is returned (headerGetFlags).
type HeaderGetFlags uint32

const (
	HeaderGetDefault HeaderGetFlags = 0
	HeaderGetMinMem  HeaderGetFlags = 1 << 0
	HeaderGetExt     HeaderGetFlags = 1 << 1
	HeaderGetRaw     HeaderGetFlags = 1 << 2
	HeaderGetAllI18N HeaderGetFlags = 1 << 3
	HeaderGetArgv    HeaderGetFlags = 1 << 4
)

// HeaderPutFlags control how header data is written (headerPutFlags).
type HeaderPutFlags uint32

const (
	HeaderPutDefault HeaderPutFlags = 0
	HeaderPutAppend  HeaderPutFlags = 1 << 0
)

// TagDataFlags describe who owns the memory of a TagContainer (rpmtdFlags).
type TagDataFlags uint32

const (
	TagDataNone         TagDataFlags = 0
	TagDataAllocated    TagDataFlags = 1 << 0
	TagDataPtrAllocated TagDataFlags = 1 << 1
	TagDataImmutable    TagDataFlags = 1 << 2
	TagDataArgv         TagDataFlags = 1 << 3
)

// CallbackType is a set of transaction progress events (rpmCallbackType).
type CallbackType uint32

const (
	CallbackUnknown        CallbackType = 0
	CallbackInstProgress   CallbackType = 1 << 0
	CallbackInstStart      CallbackType = 1 << 1
	CallbackInstOpenFile   CallbackType = 1 << 2
	CallbackInstCloseFile  CallbackType = 1 << 3
	CallbackTransProgress  CallbackType = 1 << 4
	CallbackTransStart     CallbackType = 1 << 5
	CallbackTransStop      CallbackType = 1 << 6
	CallbackUninstProgress CallbackType = 1 << 7
	CallbackUninstStart    CallbackType = 1 << 8
	CallbackUninstStop     CallbackType = 1 << 9
	CallbackUnpackError    CallbackType = 1 << 13
	CallbackCpioError      CallbackType = 1 << 14
	CallbackScriptError    CallbackType = 1 << 15
	CallbackScriptStart    CallbackType = 1 << 16
	CallbackScriptStop     CallbackType = 1 << 17
	CallbackInstStop       CallbackType = 1 << 18
	CallbackElemProgress   CallbackType = 1 << 19
	CallbackVerifyProgress CallbackType = 1 << 20
	CallbackVerifyStart    CallbackType = 1 << 21
	CallbackVerifyStop     CallbackType = 1 << 22
)

var callbackTypeNames = []flagName{
	{uint64(CallbackInstProgress), "inst_progress"},
	{uint64(CallbackInstStart), "inst_start"},
	{uint64(CallbackInstOpenFile), "inst_open_file"},
	{uint64(CallbackInstCloseFile), "inst_close_file"},
	{uint64(CallbackTransProgress), "trans_progress"},
	{uint64(CallbackTransStart), "trans_start"},
	{uint64(CallbackTransStop), "trans_stop"},
	{uint64(CallbackUninstProgress), "uninst_progress"},
	{uint64(CallbackUninstStart), "uninst_start"},
	{uint64(CallbackUninstStop), "uninst_stop"},
	{uint64(CallbackUnpackError), "unpack_error"},
	{uint64(CallbackCpioError), "cpio_error"},
	{uint64(CallbackScriptError), "script_error"},
	{uint64(CallbackScriptStart), "script_start"},
	{uint64(CallbackScriptStop), "script_stop"},
	{uint64(CallbackInstStop), "inst_stop"},
	{uint64(CallbackElemProgress), "elem_progress"},
	{uint64(CallbackVerifyProgress), "verify_progress"},
	{uint64(CallbackVerifyStart), "verify_start"},
	{uint64(CallbackVerifyStop), "verify_stop"},
}

func (c CallbackType) String() string {
	if c == CallbackUnknown {
		return "unknown"
	}
	return formatFlags(uint64(c), callbackTypeNames)
}

// PatternMode selects how an iterator pattern is matched (rpmMireMode).
type PatternMode int

const (
	PatternDefault PatternMode = iota
	PatternStrcmp
	PatternRegex
	PatternGlob
)

type flagName struct {
	bit  uint64
	name string
}

func formatFlags(v uint64, names []flagName) string {
	if v == 0 {
		return "none"
	}
	var parts []string
	for _, n := range names {
		if v&n.bit != 0 {
			parts = append(parts, n.name)
			v &^= n.bit
		}
	}
	if v != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(v, 16))
	}
	return strings.Join(parts, "|")
}

func parseFlags(s string, names []flagName) (uint64, error) {
	var v uint64
	for _, field := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' || r == ' ' }) {
		found := false
		for _, n := range names {
			if strings.EqualFold(field, n.name) {
				v |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("unknown flag: %s", field)
		}
	}
	return v, nil
}
