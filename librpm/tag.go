package librpm

import (
	"fmt"
	"strings"
)

// Tag selects a field of a Header.
type Tag int32

// Header tags.
const (
	TagInvalid          Tag = -1
	TagHeaderImage      Tag = 61
	TagHeaderSignatures Tag = 62
	TagHeaderImmutable  Tag = 63
	TagHeaderRegions    Tag = 64
	TagHeaderI18NTable  Tag = 100
)

// Signature tags.
const (
	TagSigSize Tag = 257 + iota
	_
	TagSigPGP
	_
	TagSigMD5
	TagSigGPG
	_
	_
	_
	TagPubKeys
	TagDSAHeader
	TagRSAHeader
	TagSHA1Header
	TagLongSigSize
	TagLongArchiveSize
	_
	TagSHA256Header
)

// Package tags.
const (
	TagName Tag = 1000 + iota
	TagVersion
	TagRelease
	TagEpoch
	TagSummary
	TagDescription
	TagBuildTime
	TagBuildHost
	TagInstallTime
	TagSize
	TagDistribution
	TagVendor
	TagGIF
	TagXPM
	TagLicense
	TagPackager
	TagGroup
	TagChangelog
	TagSource
	TagPatch
	TagURL
	TagOS
	TagArch
	TagPreInstall
	TagPostInstall
	TagPreUninstall
	TagPostUninstall
	TagOldFilenames
	TagFileSizes
	TagFileStates
	TagFileModes
	TagFileUids
	TagFileGids
	TagFileRDevs
	TagFileMTimes
	TagFileDigests
	TagFileLinkTos
	TagFileFlags
	TagRoot
	TagFileUsername
	TagFileGroupname
	TagExclude
	TagExclusive
	TagIcon
	TagSourceRPM
	TagFileVerifyFlags
	TagArchiveSize
	TagProvideName
	TagRequireFlags
	TagRequireName
	TagRequireVersion
	TagNoSource
	TagNoPatch
	TagConflictFlags
	TagConflictName
	TagConflictVersion
	TagDefaultPrefix
	TagBuildRoot
	TagInstallPrefix
	TagExcludeArch
	TagExcludeOS
	TagExclusiveArch
	TagExclusiveOS
	TagAutoReqProv
	TagRPMVersion
	TagTriggerScripts
	TagTriggerName
	TagTriggerVersion
	TagTriggerFlags
	TagTriggerIndex
	_
	_
	_
	_
	_
	_
	_
	_
	_
	TagVerifyScript
	TagChangelogTime
	TagChangelogName
	TagChangelogText
	TagBrokenMD5
	TagPreReq
	TagPreInstallProg
	TagPostInstallProg
	TagPreUninstallProg
	TagPostUninstallProg
	TagBuildArchs
	TagObsoleteName
	TagVerifyScriptProg
	TagTriggerScriptProg
	TagDocDir
	TagCookie
	TagFileDevices
	TagFileInodes
	TagFileLangs
	TagPrefixes
	TagInstallPrefixes
	TagTriggerInstall
	TagTriggerUninstall
	TagTriggerPostUninstall
	TagAutoReq
	TagAutoProv
	TagCapability
	TagSourcePackage
	TagOldOriginalFilenames
	TagBuildPreReq
	TagBuildRequires
	TagBuildConflicts
	TagBuildMacros
	TagProvideFlags
	TagProvideVersion
	TagObsoleteFlags
	TagObsoleteVersion
	TagDirIndexes
	TagBasenames
	TagDirnames
	TagOrigDirindexes
	TagOrigBasenames
	TagOrigDirnames
	TagOptFlags
	TagDistURL
	TagPayloadFormat
	TagPayloadCompressor
	TagPayloadFlags
	TagInstallColor
	TagInstallTID
	TagRemoveTID
	TagSHA1RHN
	TagRHNPlatform
	TagPlatform
	TagPatchesName
	TagPatchesFlags
	TagPatchesVersion
	TagCacheCtime
	TagCachePkgPath
	TagCachePkgSize
	TagCachePkgMtime
	TagFileColors
	TagFileClass
	TagClassDict
	TagFileDependsX
	TagFileDependsN
	TagDependsDict
	TagSourcePkgID
	TagFileContexts
	TagFSContexts
	TagREContexts
	TagPolicies
	TagPreTrans
	TagPostTrans
	TagPreTransProg
	TagPostTransProg
	TagDistTag
	TagOldSuggestsName
	TagOldSuggestsVersion
	TagOldSuggestsFlags
	TagOldEnhancesName
	TagOldEnhancesVersion
	TagOldEnhancesFlags
	TagPriority
	TagCVSID
	TagBLinkPkgID
	TagBLinkHdrID
	TagBLinkNEVRA
	TagFLinkPkgID
	TagFLinkHdrID
	TagFLinkNEVRA
	TagPackageOrigin
	TagTriggerPreInstall
	TagBuildSuggests
	TagBuildEnhances
	TagScriptStates
	TagScriptMetrics
	TagBuildCPUClock
	TagFileDigestAlgos
	TagVariants
	TagXMajor
	TagXMinor
	TagRepoTag
	TagKeywords
	TagBuildPlatforms
	TagPackageColor
	TagPackagePrefColor
	TagXAttrsDict
	TagFileXAttrsx
	TagDepAttrsDict
	TagConflictAttrsX
	TagObsoleteAttrsX
	TagProvideAttrsX
	TagRequireAttrsX
	TagBuildProvides
	TagBuildObsoletes
	TagDbInstance
	TagNVRA
)

// Tags 1197 - 4999 are reserved.

// Extension and late tags.
const (
	TagFilenames Tag = 5000 + iota
	TagFileProvide
	TagFileRequire
	TagFsNames
	TagFsSizes
	TagTriggerConds
	TagTriggerType
	TagOrigFileNames
	TagLongFileSizes
	TagLongSize
	TagFileCaps
	TagFileDigestAlgo
	TagBugURL
	TagEVR
	TagNVR
	TagNEVR
	TagNEVRA
	TagHeaderColor
	TagVerbose
	TagEpochNum
	TagPreInstallFlags
	TagPostInstallFlags
	TagPreUninstallFlags
	TagPostUninstallFlags
	TagPreTransFlags
	TagPostTransFlags
	TagVerifyScriptFlags
	TagTriggerScriptFlags
	_
	TagCollections
	TagPolicyNames
	TagPolicyTypes
	TagPolicyTypesIndexes
	TagPolicyFlags
	TagVCS
	TagOrderName
	TagOrderVersion
	TagOrderFlags
	TagMSSFManifest
	TagMSSFDomain
	TagInstFilenames
	TagRequireNEVRS
	TagProvideNEVRS
	TagObsoleteNEVRS
	TagConflictNEVRS
	TagFileNLinks
	TagRecommendName
	TagRecommendVersion
	TagRecommendFlags
	TagSuggestName
	TagSuggestVersion
	TagSuggestFlags
	TagSupplementName
	TagSupplementVersion
	TagSupplementFlags
	TagEnhanceName
	TagEnhanceVersion
	TagEnhanceFlags
)

// Ends of contiguous ranges; a miscounted block fails to compile.
func _() {
	var x [1]struct{}
	_ = x[TagSHA256Header-273]
	_ = x[TagTriggerIndex-1069]
	_ = x[TagNVRA-1196]
	_ = x[TagTriggerScriptFlags-5027]
}

// TagType is the wire type of a tag's value (rpmTagType).
type TagType uint32

const (
	NullType TagType = iota
	CharType
	Int8Type
	Int16Type
	Int32Type
	Int64Type
	StringType
	BinType
	StringArrayType
	I18NStringType
)

var typeNames = [...]string{
	NullType:        "NULL",
	CharType:        "CHAR",
	Int8Type:        "INT8",
	Int16Type:       "INT16",
	Int32Type:       "INT32",
	Int64Type:       "INT64",
	StringType:      "STRING",
	BinType:         "BIN",
	StringArrayType: "STRING_ARRAY",
	I18NStringType:  "I18NSTRING",
}

func (c TagType) String() string {
	if int(c) < len(typeNames) {
		return typeNames[c]
	}
	return fmt.Sprintf("TagType(%d)", uint32(c))
}

// ReturnType says whether a tag holds one value or an array (rpmTagReturnType).
type ReturnType uint32

const (
	AnyReturnType     ReturnType = 0
	ScalarReturnType  ReturnType = 0x00010000
	ArrayReturnType   ReturnType = 0x00020000
	MappingReturnType ReturnType = 0x00040000
)

type tagInfo struct {
	name string
	typ  TagType
	ret  ReturnType
}

// tagTable describes the tags this package reads and writes by name.
var tagTable = map[Tag]tagInfo{
	TagHeaderImage:       {"HEADERIMAGE", BinType, ScalarReturnType},
	TagHeaderSignatures:  {"HEADERSIGNATURES", BinType, ScalarReturnType},
	TagHeaderImmutable:   {"HEADERIMMUTABLE", BinType, ScalarReturnType},
	TagHeaderI18NTable:   {"HEADERI18NTABLE", StringArrayType, ArrayReturnType},
	TagSigSize:           {"SIGSIZE", Int32Type, ScalarReturnType},
	TagSigMD5:            {"SIGMD5", BinType, ScalarReturnType},
	TagSHA1Header:        {"SHA1HEADER", StringType, ScalarReturnType},
	TagSHA256Header:      {"SHA256HEADER", StringType, ScalarReturnType},
	TagRSAHeader:         {"RSAHEADER", BinType, ScalarReturnType},
	TagName:              {"NAME", StringType, ScalarReturnType},
	TagVersion:           {"VERSION", StringType, ScalarReturnType},
	TagRelease:           {"RELEASE", StringType, ScalarReturnType},
	TagEpoch:             {"EPOCH", Int32Type, ScalarReturnType},
	TagSummary:           {"SUMMARY", I18NStringType, ScalarReturnType},
	TagDescription:       {"DESCRIPTION", I18NStringType, ScalarReturnType},
	TagBuildTime:         {"BUILDTIME", Int32Type, ScalarReturnType},
	TagBuildHost:         {"BUILDHOST", StringType, ScalarReturnType},
	TagInstallTime:       {"INSTALLTIME", Int32Type, ScalarReturnType},
	TagSize:              {"SIZE", Int32Type, ScalarReturnType},
	TagDistribution:      {"DISTRIBUTION", StringType, ScalarReturnType},
	TagVendor:            {"VENDOR", StringType, ScalarReturnType},
	TagLicense:           {"LICENSE", StringType, ScalarReturnType},
	TagPackager:          {"PACKAGER", StringType, ScalarReturnType},
	TagGroup:             {"GROUP", I18NStringType, ScalarReturnType},
	TagURL:               {"URL", StringType, ScalarReturnType},
	TagOS:                {"OS", StringType, ScalarReturnType},
	TagArch:              {"ARCH", StringType, ScalarReturnType},
	TagFileSizes:         {"FILESIZES", Int32Type, ArrayReturnType},
	TagFileStates:        {"FILESTATES", CharType, ArrayReturnType},
	TagFileModes:         {"FILEMODES", Int16Type, ArrayReturnType},
	TagFileMTimes:        {"FILEMTIMES", Int32Type, ArrayReturnType},
	TagFileDigests:       {"FILEDIGESTS", StringArrayType, ArrayReturnType},
	TagFileFlags:         {"FILEFLAGS", Int32Type, ArrayReturnType},
	TagFileUsername:      {"FILEUSERNAME", StringArrayType, ArrayReturnType},
	TagFileGroupname:     {"FILEGROUPNAME", StringArrayType, ArrayReturnType},
	TagSourceRPM:         {"SOURCERPM", StringType, ScalarReturnType},
	TagArchiveSize:       {"ARCHIVESIZE", Int32Type, ScalarReturnType},
	TagProvideName:       {"PROVIDENAME", StringArrayType, ArrayReturnType},
	TagProvideFlags:      {"PROVIDEFLAGS", Int32Type, ArrayReturnType},
	TagProvideVersion:    {"PROVIDEVERSION", StringArrayType, ArrayReturnType},
	TagRequireName:       {"REQUIRENAME", StringArrayType, ArrayReturnType},
	TagRequireFlags:      {"REQUIREFLAGS", Int32Type, ArrayReturnType},
	TagRequireVersion:    {"REQUIREVERSION", StringArrayType, ArrayReturnType},
	TagConflictName:      {"CONFLICTNAME", StringArrayType, ArrayReturnType},
	TagObsoleteName:      {"OBSOLETENAME", StringArrayType, ArrayReturnType},
	TagRPMVersion:        {"RPMVERSION", StringType, ScalarReturnType},
	TagChangelogTime:     {"CHANGELOGTIME", Int32Type, ArrayReturnType},
	TagChangelogName:     {"CHANGELOGNAME", StringArrayType, ArrayReturnType},
	TagChangelogText:     {"CHANGELOGTEXT", StringArrayType, ArrayReturnType},
	TagCookie:            {"COOKIE", StringType, ScalarReturnType},
	TagFileInodes:        {"FILEINODES", Int32Type, ArrayReturnType},
	TagDirIndexes:        {"DIRINDEXES", Int32Type, ArrayReturnType},
	TagBasenames:         {"BASENAMES", StringArrayType, ArrayReturnType},
	TagDirnames:          {"DIRNAMES", StringArrayType, ArrayReturnType},
	TagOptFlags:          {"OPTFLAGS", StringType, ScalarReturnType},
	TagPayloadFormat:     {"PAYLOADFORMAT", StringType, ScalarReturnType},
	TagPayloadCompressor: {"PAYLOADCOMPRESSOR", StringType, ScalarReturnType},
	TagPayloadFlags:      {"PAYLOADFLAGS", StringType, ScalarReturnType},
	TagInstallColor:      {"INSTALLCOLOR", Int32Type, ScalarReturnType},
	TagInstallTID:        {"INSTALLTID", Int32Type, ScalarReturnType},
	TagRemoveTID:         {"REMOVETID", Int32Type, ScalarReturnType},
	TagPlatform:          {"PLATFORM", StringType, ScalarReturnType},
	TagFileColors:        {"FILECOLORS", Int32Type, ArrayReturnType},
	TagSourcePkgID:       {"SOURCEPKGID", BinType, ScalarReturnType},
	TagDbInstance:        {"DBINSTANCE", Int32Type, ScalarReturnType},
	TagNVRA:              {"NVRA", StringType, ScalarReturnType},
	TagFilenames:         {"FILENAMES", StringArrayType, ArrayReturnType},
	TagLongFileSizes:     {"LONGFILESIZES", Int64Type, ArrayReturnType},
	TagLongSize:          {"LONGSIZE", Int64Type, ScalarReturnType},
	TagBugURL:            {"BUGURL", StringType, ScalarReturnType},
	TagEVR:               {"EVR", StringType, ScalarReturnType},
	TagNVR:               {"NVR", StringType, ScalarReturnType},
	TagNEVR:              {"NEVR", StringType, ScalarReturnType},
	TagNEVRA:             {"NEVRA", StringType, ScalarReturnType},
	TagHeaderColor:       {"HEADERCOLOR", Int32Type, ScalarReturnType},
	TagEpochNum:          {"EPOCHNUM", Int32Type, ScalarReturnType},
	TagVCS:               {"VCS", StringType, ScalarReturnType},
	TagRecommendName:     {"RECOMMENDNAME", StringArrayType, ArrayReturnType},
	TagSuggestName:       {"SUGGESTNAME", StringArrayType, ArrayReturnType},
}

var tagsByName map[string]Tag

func init() {
	tagsByName = make(map[string]Tag, len(tagTable))
	for tag, info := range tagTable {
		tagsByName[info.name] = tag
	}
}

// String returns the upper case name of the tag, as used by rpm --querytags.
func (c Tag) String() string {
	if info, ok := tagTable[c]; ok {
		return info.name
	}
	return fmt.Sprintf("Tag(%d)", int32(c))
}

// Type returns the wire type the engine declares for the tag.
func (c Tag) Type() (TagType, bool) {
	info, ok := tagTable[c]
	return info.typ, ok
}

// ReturnType returns whether the tag holds a scalar or an array.
func (c Tag) ReturnType() ReturnType {
	return tagTable[c].ret
}

// ParseTag returns the tag with the given name. The name is case insensitive
// and may carry the RPMTAG_ prefix.
func ParseTag(name string) (Tag, bool) {
	name = strings.TrimPrefix(strings.ToUpper(name), "RPMTAG_")
	tag, ok := tagsByName[name]
	return tag, ok
}
