package librpm

import (
	"context"
	"strings"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
)

// Index is a package field that can be searched.
type Index int

const (
	IndexName Index = iota
	IndexVersion
	IndexLicense
	IndexSummary
	IndexDescription
)

var indexes = [...]struct {
	name string
	tag  Tag
}{
	IndexName:        {"name", TagName},
	IndexVersion:     {"version", TagVersion},
	IndexLicense:     {"license", TagLicense},
	IndexSummary:     {"summary", TagSummary},
	IndexDescription: {"description", TagDescription},
}

// Tag returns the header tag the index searches.
func (i Index) Tag() Tag { return indexes[i].tag }

func (i Index) String() string { return indexes[i].name }

// ParseIndex returns the index with the given name.
func ParseIndex(s string) (Index, error) {
	for i, idx := range indexes {
		if strings.EqualFold(s, idx.name) {
			return Index(i), nil
		}
	}
	return 0, errors.Errorf("unknown index: %s", s)
}

// Find opens an iterator over the records whose index field equals key. NAME
// is looked up in the database index; other fields are matched during a full
// scan. An empty key matches every record.
func (g *GlobalTS) Find(index Index, key string) (*MatchIterator, error) {
	if index == IndexName || key == "" {
		return g.NewMatchIterator(index.Tag(), key), nil
	}
	it := g.NewMatchIterator(TagName, "")
	if err := it.Pattern(index.Tag(), PatternStrcmp, key); err != nil {
		it.Close()
		return nil, err
	}
	return it, nil
}

// Find returns the packages whose index field equals key. The returned Iter
// holds the State's lock, so the same goroutine must not call Find, Lock or
// any other locking State method until the Iter is closed: the call blocks
// until ctx is done, or forever with context.Background. Nested queries go
// through a *GlobalTS instead (GlobalTS.Find).
func (s *State) Find(ctx context.Context, index Index, key string) (*Iter, error) {
	g, err := s.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer g.Release()
	log.WithFields(log.Fields{"index": index.String(), "key": key}).Debug("librpm: find")
	it, err := g.Find(index, key)
	if err != nil {
		return nil, err
	}
	return &Iter{ctx: ctx, mi: it}, nil
}

// InstalledPackages returns every installed package, ordered by name.
func (s *State) InstalledPackages(ctx context.Context) (*Iter, error) {
	return s.Find(ctx, IndexName, "")
}

// Iter yields the packages of a query. It holds the State's lock until it is
// exhausted or closed, so a State method called while it is open blocks (see
// State.Find):
//
//	it, err := state.InstalledPackages(ctx)
//	if err != nil {
//		return err
//	}
//	defer it.Close()
//	for it.Next() {
//		fmt.Println(it.Package())
//	}
//	return it.Err()
type Iter struct {
	ctx context.Context
	mi  *MatchIterator
	pkg *Package
	err error
}

// Next advances to the next package. It closes the iterator and returns false
// at the end of the results or when the context is done.
func (it *Iter) Next() bool {
	if it.mi == nil {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		it.Close()
		return false
	}
	if !it.mi.Next() {
		it.Close()
		return false
	}
	it.pkg = it.mi.Header().ToPackage()
	return true
}

// Package returns the current package.
func (it *Iter) Package() *Package { return it.pkg }

// Err returns the error, if any, that stopped the iteration.
func (it *Iter) Err() error { return it.err }

// Close releases the iterator and the State's lock. It is safe to call Close
// more than once.
func (it *Iter) Close() error {
	if it.mi != nil {
		it.mi.Close()
		it.mi = nil
	}
	return it.err
}

// Collect drains it into a slice and closes it.
func Collect(it *Iter) ([]*Package, error) {
	defer it.Close()
	var pkgs []*Package
	for it.Next() {
		pkgs = append(pkgs, it.Package())
	}
	return pkgs, it.Err()
}

// DB is a configured State.
type DB struct {
	*State
}

// Open reads the engine configuration from configFile (or the default
// locations if empty) and returns the State as a DB. It fails with
// ErrAlreadyConfigured if the State is already configured.
func (s *State) Open(ctx context.Context, configFile string) (*DB, error) {
	if err := s.ReadConfig(ctx, configFile); err != nil {
		return nil, err
	}
	return &DB{State: s}, nil
}

// OpenPath is Open followed by SetDBPath.
func (s *State) OpenPath(ctx context.Context, configFile, dbPath string) (*DB, error) {
	db, err := s.Open(ctx, configFile)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		if err := s.SetDBPath(ctx, dbPath); err != nil {
			return nil, err
		}
	}
	return db, nil
}
