package librpm

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"emperror.dev/errors"
)

// MatchIterator is a forward only cursor over the database records whose tag
// matches a key. It holds the lease of its State until Close, so no other
// engine call can interleave with it.
//
// Each call to Next frees the previous Header. Clone a Header to keep it
// across calls.
type MatchIterator struct {
	lease  *GlobalTS
	engine Engine
	ptr    MatchIteratorPtr

	cur      *Header
	started  bool
	finished bool
	once     sync.Once
}

// NewMatchIterator opens a cursor over the records whose tag equals key. An
// empty key matches every record. The iterator retains the lease until it is
// closed.
func (g *GlobalTS) NewMatchIterator(tag Tag, key string) *MatchIterator {
	return newMatchIterator(g, g.TransactionSet(), tag, key)
}

// newMatchIterator opens the cursor on ts, which must be usable under g.
func newMatchIterator(g *GlobalTS, ts *TransactionSet, tag Tag, key string) *MatchIterator {
	g.Retain()
	var k []byte
	if key != "" {
		k = []byte(key)
	}
	ptr := g.Engine().TSInitIterator(ts.handle(), tag, k)
	it := &MatchIterator{
		lease:    g,
		engine:   g.Engine(),
		ptr:      ptr,
		finished: ptr == nil,
	}
	runtime.SetFinalizer(it, (*MatchIterator).Close)
	return it
}

// Match locks s and opens a MatchIterator. The lock is held until the
// iterator is closed.
func (s *State) Match(ctx context.Context, tag Tag, key string) (*MatchIterator, error) {
	g, err := s.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer g.Release()
	return g.NewMatchIterator(tag, key), nil
}

// Pattern narrows the iterator to records whose tag matches pattern. It must
// be called before the first Next.
func (it *MatchIterator) Pattern(tag Tag, mode PatternMode, pattern string) error {
	if it.started {
		return errors.New("librpm: pattern set on a started iterator")
	}
	if strings.IndexByte(pattern, 0) >= 0 {
		return errors.Errorf("librpm: invalid pattern %q", pattern)
	}
	if it.ptr == nil {
		return nil
	}
	if rc := it.engine.MISetPattern(it.ptr, tag, mode, pattern); rc != 0 {
		return errors.WithDetails(errors.New("librpm: invalid iterator pattern"), "tag", tag.String(), "pattern", pattern)
	}
	return nil
}

// Next advances to the next record and reports whether there is one. Once it
// returns false it keeps returning false.
func (it *MatchIterator) Next() bool {
	if it.finished {
		return false
	}
	it.started = true
	if it.cur != nil {
		it.cur.Free()
		it.cur = nil
	}
	ptr := it.engine.MINext(it.ptr)
	if ptr == nil {
		it.finished = true
		return false
	}
	it.cur = newHeader(it.engine, ptr)
	return true
}

// Header returns the current record, or nil before the first Next and after
// the last.
func (it *MatchIterator) Header() *Header {
	return it.cur
}

// Finished reports whether the iterator is exhausted.
func (it *MatchIterator) Finished() bool {
	return it.finished
}

// Offset returns the database offset of the current record.
func (it *MatchIterator) Offset() uint {
	if it.cur == nil {
		return 0
	}
	return it.engine.MIOffset(it.ptr)
}

// Count returns the number of records the iterator may visit.
func (it *MatchIterator) Count() int {
	if it.ptr == nil {
		return 0
	}
	return it.engine.MICount(it.ptr)
}

// Close frees the current record and the cursor, then releases the lease. It
// is safe to call Close more than once.
func (it *MatchIterator) Close() {
	it.once.Do(func() {
		if it.cur != nil {
			it.cur.Free()
			it.cur = nil
		}
		if it.ptr != nil {
			it.engine.MIFree(it.ptr)
			it.ptr = nil
		}
		it.finished = true
		it.lease.Release()
		runtime.SetFinalizer(it, nil)
	})
}
