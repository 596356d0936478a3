package librpm

import "fmt"

// ProblemType classifies a problem raised by a transaction (rpmProblemType).
type ProblemType int

const (
	ProblemBadArch ProblemType = iota
	ProblemBadOS
	ProblemPkgInstalled
	ProblemBadRelocate
	ProblemRequires
	ProblemConflict
	ProblemNewFileConflict
	ProblemFileConflict
	ProblemOldPackage
	ProblemDiskSpace
	ProblemDiskNodes
	ProblemObsoletes
	ProblemVerify
)

var problemTypeNames = [...]string{
	ProblemBadArch:         "BADARCH",
	ProblemBadOS:           "BADOS",
	ProblemPkgInstalled:    "PKG_INSTALLED",
	ProblemBadRelocate:     "BADRELOCATE",
	ProblemRequires:        "REQUIRES",
	ProblemConflict:        "CONFLICT",
	ProblemNewFileConflict: "NEW_FILE_CONFLICT",
	ProblemFileConflict:    "FILE_CONFLICT",
	ProblemOldPackage:      "OLDPACKAGE",
	ProblemDiskSpace:       "DISKSPACE",
	ProblemDiskNodes:       "DISKNODES",
	ProblemObsoletes:       "OBSOLETES",
	ProblemVerify:          "VERIFY",
}

func (c ProblemType) String() string {
	if c >= 0 && int(c) < len(problemTypeNames) {
		return problemTypeNames[c]
	}
	return fmt.Sprintf("ProblemType(%d)", int(c))
}

// Filter returns the problem filter that suppresses this kind of problem, or
// FilterNone if it cannot be ignored.
func (c ProblemType) Filter() FilterFlags {
	switch c {
	case ProblemBadArch:
		return FilterIgnoreArch
	case ProblemBadOS:
		return FilterIgnoreOS
	case ProblemPkgInstalled:
		return FilterReplacePkg
	case ProblemBadRelocate:
		return FilterForceRelocate
	case ProblemNewFileConflict:
		return FilterReplaceNewFiles
	case ProblemFileConflict:
		return FilterReplaceOldFiles
	case ProblemOldPackage:
		return FilterOldPackage
	case ProblemDiskSpace:
		return FilterDiskSpace
	case ProblemDiskNodes:
		return FilterDiskNodes
	case ProblemVerify:
		return FilterVerify
	}
	return FilterNone
}

// Problem is a copy of one entry of an engine problem set. Package and
// AltPackage hold NEVR strings.
type Problem struct {
	Type       ProblemType
	Package    string
	AltPackage string
	Str        string
	Number     uint64
	Key        string
}

func (p Problem) String() string {
	switch p.Type {
	case ProblemBadArch:
		return fmt.Sprintf("package %s is intended for a %s architecture", p.Package, p.Str)
	case ProblemBadOS:
		return fmt.Sprintf("package %s is intended for a %s operating system", p.Package, p.Str)
	case ProblemPkgInstalled:
		return fmt.Sprintf("package %s is already installed", p.Package)
	case ProblemBadRelocate:
		return fmt.Sprintf("path %s in package %s is not relocatable", p.Str, p.Package)
	case ProblemNewFileConflict:
		return fmt.Sprintf("file %s conflicts between attempted installs of %s and %s", p.Str, p.Package, p.AltPackage)
	case ProblemFileConflict:
		return fmt.Sprintf("file %s from install of %s conflicts with file from package %s", p.Str, p.Package, p.AltPackage)
	case ProblemOldPackage:
		return fmt.Sprintf("package %s (which is newer than %s) is already installed", p.AltPackage, p.Package)
	case ProblemDiskSpace:
		return fmt.Sprintf("installing package %s needs %d bytes more space on the %s filesystem", p.Package, p.Number, p.Str)
	case ProblemDiskNodes:
		return fmt.Sprintf("installing package %s needs %d more inodes on the %s filesystem", p.Package, p.Number, p.Str)
	case ProblemRequires:
		return fmt.Sprintf("%s is needed by %s", p.AltPackage, p.Package)
	case ProblemConflict:
		return fmt.Sprintf("%s conflicts with %s", p.AltPackage, p.Package)
	case ProblemObsoletes:
		return fmt.Sprintf("%s is obsoleted by %s", p.AltPackage, p.Package)
	case ProblemVerify:
		return fmt.Sprintf("package %s does not verify: %s", p.Package, p.Str)
	}
	return fmt.Sprintf("unknown error %d encountered while manipulating package %s", int(p.Type), p.Package)
}
