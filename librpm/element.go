package librpm

// Element is one staged action of a TransactionSet. It is a view into the
// set and is only valid until the set is emptied, cleaned or freed.
type Element struct {
	ts  *TransactionSet
	ptr ElementPtr
}

func (e *Element) engine() Engine { return e.ts.engine }

// Type returns whether the element adds, removes or describes an installed
// package.
func (e *Element) Type() ElementTypes { return e.engine().TEType(e.ptr) }

func (e *Element) Name() string    { return e.engine().TEString(e.ptr, ElementName) }
func (e *Element) Version() string { return e.engine().TEString(e.ptr, ElementVersion) }
func (e *Element) Release() string { return e.engine().TEString(e.ptr, ElementRelease) }
func (e *Element) Arch() string    { return e.engine().TEString(e.ptr, ElementArch) }
func (e *Element) OS() string      { return e.engine().TEString(e.ptr, ElementOS) }
func (e *Element) EVR() string     { return e.engine().TEString(e.ptr, ElementEVR) }
func (e *Element) NEVR() string    { return e.engine().TEString(e.ptr, ElementNEVR) }
func (e *Element) NEVRA() string   { return e.engine().TEString(e.ptr, ElementNEVRA) }

// Epoch returns the epoch of the package, if it has one.
func (e *Element) Epoch() (int, bool) { return e.engine().TEEpoch(e.ptr) }

func (e *Element) IsSource() bool { return e.engine().TEIsSource(e.ptr) }

func (e *Element) Color() uint32 { return e.engine().TEColor(e.ptr) }

// DBInstance returns the database offset of an installed package, or zero.
func (e *Element) DBInstance() uint { return e.engine().TEDBInstance(e.ptr) }

// Key returns the key the element was added with.
func (e *Element) Key() string { return e.engine().TEKey(e.ptr) }

// Parent returns the element that pulled this one in, or nil.
func (e *Element) Parent() *Element { return e.ts.element(e.engine().TEParent(e.ptr)) }

// DependsOn returns the element this one is ordered after, or nil.
func (e *Element) DependsOn() *Element { return e.ts.element(e.engine().TEDependsOn(e.ptr)) }

// Header returns the element's header, or nil if it has none.
func (e *Element) Header() *Header {
	ptr := e.engine().TEHeader(e.ptr)
	if ptr == nil {
		return nil
	}
	return adoptHeader(e.engine(), ptr)
}

// Problems returns a copy of the problems raised for this element.
func (e *Element) Problems() []Problem { return e.engine().TEProblems(e.ptr) }

// CleanProblems discards the element's problems.
func (e *Element) CleanProblems() { e.engine().TECleanProblems(e.ptr) }

func (e *Element) String() string { return e.NEVRA() }

// ElementIterator walks the elements of a TransactionSet that match a set of
// types. It is forward only.
type ElementIterator struct {
	ts    *TransactionSet
	ptr   ElementIteratorPtr
	types ElementTypes
	cur   *Element
}

// Elements returns an iterator over the elements whose type is in types. The
// iterator must be closed.
func (ts *TransactionSet) Elements(types ElementTypes) *ElementIterator {
	return &ElementIterator{
		ts:    ts,
		ptr:   ts.engine.TSIInit(ts.handle()),
		types: types,
	}
}

// Next advances to the next matching element and reports whether there is
// one.
func (it *ElementIterator) Next() bool {
	if it.ptr == nil {
		return false
	}
	te := it.ts.engine.TSINext(it.ptr, it.types)
	if te == nil {
		it.Close()
		return false
	}
	it.cur = it.ts.element(te)
	return true
}

// Element returns the current element.
func (it *ElementIterator) Element() *Element { return it.cur }

// Close frees the iterator. It is called by Next at the end of the sequence
// and is safe to call again.
func (it *ElementIterator) Close() {
	if it.ptr != nil {
		it.ts.engine.TSIFree(it.ptr)
		it.ptr = nil
	}
	it.cur = nil
}
