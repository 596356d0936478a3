// Package memengine is an in-memory librpm.Engine.
//
// Its database is a set of headers held in memory. Defining the _dbpath macro
// points it at a directory of .rpm files, which are read with go-rpm the
// first time the database is used. Installs and erases are applied to the
// in-memory set only. A transaction set with a root directory other than "/"
// uses the database at %{_dbpath} below that root.
//
// The engine counts header references and panics on a double free, and it
// can record its calls so tests can check ordering and reference discipline.
//
// It registers itself with librpm as "pkgdir".
package memengine

import (
	"runtime"
	"sync"

	"github.com/cavaliercoder/rpmq/librpm"
)

func init() {
	librpm.Register("pkgdir", func() librpm.Engine { return New() })
}

// DefaultDBPath is the value of %{_dbpath} after the default configuration is
// read.
const DefaultDBPath = "/var/lib/rpm"

// Call is one recorded engine call. Handle identifies the object the call
// was made on, or is zero.
type Call struct {
	Op     string
	Handle uintptr
}

// Engine is an in-memory implementation of librpm.Engine. All methods are
// safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	macros map[string][]string
	live   map[*header]struct{}
	dbs    map[string]*database // by %{_dbpath}

	recording bool
	calls     []Call
	allocs    int
}

var _ librpm.Engine = (*Engine)(nil)

// New returns an unconfigured engine.
func New() *Engine {
	return &Engine{
		macros: make(map[string][]string),
		live:   make(map[*header]struct{}),
		dbs:    make(map[string]*database),
	}
}

func (e *Engine) record(op string, handle uintptr) {
	if e.recording {
		e.calls = append(e.calls, Call{Op: op, Handle: handle})
	}
}

// Calls returns a copy of the calls recorded so far.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// RecordCalls discards the calls recorded so far and starts recording. Calls
// are not recorded until it is called.
func (e *Engine) RecordCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
	e.recording = true
}

// RefTotal returns the sum of the reference counts of every live header,
// including the references the database holds.
func (e *Engine) RefTotal() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for h := range e.live {
		n += h.refs
	}
	return n
}

// Allocations returns the number of tag payloads handed out by HeaderGet
// without HeaderGetMinMem that have not been freed with TagDataFree.
func (e *Engine) Allocations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allocs
}

func (e *Engine) Version() string {
	return "memengine (" + runtime.Version() + ")"
}
