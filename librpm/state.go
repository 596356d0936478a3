package librpm

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// State guards the process wide state of one engine: whether the one-time
// configuration has run, and the transaction set shared by queries. All
// access goes through a lease obtained from Lock.
//
// A process should use one State per engine. Default returns it for the
// registered engine; NewState exists so the state can be passed explicitly.
type State struct {
	engine Engine
	sem    chan struct{}

	// guarded by sem
	configured bool
	ts         *TransactionSet
}

// NewState returns a State for e. The engine must not be shared with another
// State.
func NewState(e Engine) *State {
	return &State{
		engine: e,
		sem:    make(chan struct{}, 1),
	}
}

var (
	defaultOnce  sync.Once
	defaultState *State
)

// Default returns the State of the preferred registered engine: "native" when
// it is compiled in, otherwise the first registered name. It panics if no
// engine is registered.
func Default() *State {
	defaultOnce.Do(func() {
		names := Engines()
		if len(names) == 0 {
			panic("librpm: no engine registered (forgotten import?)")
		}
		name := names[0]
		for _, n := range names {
			if n == "native" {
				name = n
			}
		}
		e, err := NewEngine(name)
		if err != nil {
			panic(err)
		}
		log.WithField("engine", name).Debug("librpm: using default engine")
		defaultState = NewState(e)
	})
	return defaultState
}

// Engine returns the engine guarded by the state.
func (s *State) Engine() Engine {
	return s.engine
}

// Lock blocks until the state is free or ctx is done, and returns a lease on
// it. The shared transaction set is created on first use. The lock is not
// reentrant: a goroutine that holds a lease, an open Iter or MatchIterator
// must pass the lease on rather than call Lock again.
func (s *State) Lock(ctx context.Context) (*GlobalTS, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.ts == nil {
		s.ts = newTransactionSet(s.engine)
	}
	return &GlobalTS{state: s, depth: 1}, nil
}

// GlobalTS is a lease on a State. While it is held no other caller can use
// the engine. Code that already holds a lease passes it on (or Retains it)
// instead of calling Lock again, which would deadlock.
type GlobalTS struct {
	state *State

	mu    sync.Mutex
	depth int
}

// Retain adds a holder to the lease. Every Retain needs a matching Release.
func (g *GlobalTS) Retain() *GlobalTS {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.depth == 0 {
		panic("librpm: retain of released lease")
	}
	g.depth++
	return g
}

// Release drops a holder. When the last holder releases, the shared
// transaction set is cleaned and the state unlocked.
func (g *GlobalTS) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.depth == 0 {
		panic("librpm: lease released twice")
	}
	g.depth--
	if g.depth > 0 {
		return
	}
	g.state.ts.Clean()
	<-g.state.sem
}

func (g *GlobalTS) held() *State {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.depth == 0 {
		panic("librpm: use of released lease")
	}
	return g.state
}

// Engine returns the engine the lease guards.
func (g *GlobalTS) Engine() Engine {
	return g.held().engine
}

// TransactionSet returns the shared transaction set. It must not be used
// after the lease is released.
func (g *GlobalTS) TransactionSet() *TransactionSet {
	return g.held().ts
}

// Configured reports whether the one-time configuration has run.
func (g *GlobalTS) Configured() bool {
	return g.held().configured
}

// Configure runs fn as the one-time configuration of the engine. It returns
// ErrAlreadyConfigured if a previous call succeeded. If fn fails the state
// stays unconfigured and Configure may be called again.
func (g *GlobalTS) Configure(fn func(Engine) error) error {
	s := g.held()
	if s.configured {
		return ErrAlreadyConfigured
	}
	if err := fn(s.engine); err != nil {
		return err
	}
	s.configured = true
	return nil
}
