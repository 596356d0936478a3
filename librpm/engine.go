package librpm

import (
	"sort"
	"sync"
	"unsafe"

	"emperror.dev/errors"
)

// Opaque engine handles. A nil handle means "none".
type (
	HeaderPtr          unsafe.Pointer
	TSPtr              unsafe.Pointer
	MatchIteratorPtr   unsafe.Pointer
	ElementPtr         unsafe.Pointer
	ElementIteratorPtr unsafe.Pointer
)

// RC is a return code of the engine (rpmRC).
type RC int

const (
	RCOK RC = iota
	RCNotFound
	RCFail
	RCNotTrusted
	RCNoKey
)

var rcNames = map[RC]string{
	RCOK:         "OK",
	RCNotFound:   "NOTFOUND",
	RCFail:       "FAIL",
	RCNotTrusted: "NOTTRUSTED",
	RCNoKey:      "NOKEY",
}

func (c RC) String() string {
	if s, ok := rcNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// MacroLevel is the level at which a macro is defined (RMIL_*).
type MacroLevel int

const (
	MacroLevelDefault    MacroLevel = -15
	MacroLevelMacroFiles MacroLevel = -13
	MacroLevelRPMRC      MacroLevel = -11
	MacroLevelCmdline    MacroLevel = -7
	MacroLevelTarball    MacroLevel = -5
	MacroLevelSpec       MacroLevel = -3
	MacroLevelOldSpec    MacroLevel = -1
	MacroLevelGlobal     MacroLevel = 0
)

// NotifyFunc receives progress events while a transaction runs. Key is the
// key given when the element was added.
type NotifyFunc func(what CallbackType, amount, total uint64, key string)

// Engine is the C ABI of the native package engine. Implementations are not
// required to be safe for concurrent use: callers serialize access through a
// State. Header reference counting (HeaderLink, HeaderFree) must be safe to
// call from any goroutine.
//
// Functions returning int follow the engine convention: zero is success.
type Engine interface {
	Version() string

	// macro context
	ReadConfigFiles(file string) int
	DefineMacro(macro string, level MacroLevel) int
	DeleteMacro(name string)
	ExpandMacro(expr string) string

	// headers
	HeaderNew() HeaderPtr
	HeaderLink(h HeaderPtr) HeaderPtr
	HeaderFree(h HeaderPtr) HeaderPtr
	HeaderIsEntry(h HeaderPtr, tag Tag) bool
	HeaderGet(h HeaderPtr, tag Tag, td *TagContainer, flags HeaderGetFlags) bool
	HeaderPut(h HeaderPtr, td *TagContainer, flags HeaderPutFlags) bool
	HeaderMod(h HeaderPtr, td *TagContainer) bool
	TagDataFree(td *TagContainer)

	// transaction sets
	TSCreate() TSPtr
	TSFree(ts TSPtr)
	TSClean(ts TSPtr)
	TSEmpty(ts TSPtr)
	TSSetRootDir(ts TSPtr, dir string) int
	TSRootDir(ts TSPtr) string
	TSSetFlags(ts TSPtr, flags TransFlags) TransFlags
	TSFlags(ts TSPtr) TransFlags
	TSSetNotifyCallback(ts TSPtr, fn NotifyFunc) int
	TSAddInstallElement(ts TSPtr, h HeaderPtr, key string, upgrade bool) int
	TSAddReinstallElement(ts TSPtr, h HeaderPtr, key string) int
	TSAddEraseElement(ts TSPtr, h HeaderPtr, dbOffset uint) int
	TSCheck(ts TSPtr) int
	TSOrder(ts TSPtr) int
	TSRun(ts TSPtr, ignore FilterFlags) int
	TSProblems(ts TSPtr) []Problem
	TSNElements(ts TSPtr) int
	TSElement(ts TSPtr, index int) ElementPtr
	TSReadPackageFile(ts TSPtr, path string) (HeaderPtr, RC)

	// match iterators; MINext returns a header the caller does not own
	TSInitIterator(ts TSPtr, tag Tag, key []byte) MatchIteratorPtr
	MISetPattern(mi MatchIteratorPtr, tag Tag, mode PatternMode, pattern string) int
	MINext(mi MatchIteratorPtr) HeaderPtr
	MIOffset(mi MatchIteratorPtr) uint
	MICount(mi MatchIteratorPtr) int
	MIFree(mi MatchIteratorPtr)

	// transaction elements
	TSIInit(ts TSPtr) ElementIteratorPtr
	TSINext(tsi ElementIteratorPtr, types ElementTypes) ElementPtr
	TSIFree(tsi ElementIteratorPtr)
	TEType(te ElementPtr) ElementTypes
	TEString(te ElementPtr, field ElementField) string
	TEEpoch(te ElementPtr) (int, bool)
	TEIsSource(te ElementPtr) bool
	TEColor(te ElementPtr) uint32
	TEDBInstance(te ElementPtr) uint
	TEParent(te ElementPtr) ElementPtr
	TEDependsOn(te ElementPtr) ElementPtr
	TEKey(te ElementPtr) string
	TEHeader(te ElementPtr) HeaderPtr
	TEProblems(te ElementPtr) []Problem
	TECleanProblems(te ElementPtr)
}

// ElementField selects an identity string of a transaction element.
type ElementField int

const (
	ElementName ElementField = iota
	ElementVersion
	ElementRelease
	ElementArch
	ElementOS
	ElementEVR
	ElementNEVR
	ElementNEVRA
)

// EngineFactory creates a new Engine.
type EngineFactory func() Engine

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]EngineFactory)
)

// Register makes an engine available by the provided name. If Register is
// called twice with the same name or if factory is nil, it panics.
func Register(name string, factory EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if factory == nil {
		panic("librpm: Register engine is nil")
	}
	if _, dup := engines[name]; dup {
		panic("librpm: Register called twice for engine " + name)
	}
	engines[name] = factory
}

// Engines returns a sorted list of the names of the registered engines.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	list := make([]string, 0, len(engines))
	for name := range engines {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// NewEngine creates an engine registered under name.
func NewEngine(name string) (Engine, error) {
	enginesMu.RLock()
	factory, ok := engines[name]
	enginesMu.RUnlock()
	if !ok {
		return nil, errors.WithDetails(ErrNoEngine, "engine", name)
	}
	return factory(), nil
}
