package memengine

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unsafe"

	"github.com/cavaliercoder/go-rpm"
	log "github.com/sirupsen/logrus"

	"github.com/cavaliercoder/rpmq/librpm"
)

// database is the set of installed headers. It holds one reference to each
// record.
type database struct {
	records    map[uint]*header
	nextOffset uint
}

func newDatabase() *database {
	return &database{records: make(map[uint]*header), nextOffset: 1}
}

func (db *database) add(h *header) uint {
	off := db.nextOffset
	db.nextOffset++
	db.records[off] = h
	return off
}

// dbLocked returns the database selected by %{_dbpath} under "/".
func (e *Engine) dbLocked() *database {
	return e.dbUnderLocked("/")
}

// rootDBLocked returns the database under the root directory of t.
func (e *Engine) rootDBLocked(t *ts) *database {
	return e.dbUnderLocked(t.root)
}

// dbUnderLocked returns the database selected by %{_dbpath} below root,
// reading it from disk the first time the path is used.
func (e *Engine) dbUnderLocked(root string) *database {
	dir := e.dbPathLocked()
	if dir != "" && root != "" && root != "/" {
		dir = filepath.Join(root, dir)
	}
	if db, ok := e.dbs[dir]; ok {
		return db
	}
	db := newDatabase()
	e.dbs[dir] = db
	if dir != "" {
		e.loadDir(db, dir)
	}
	return db
}

// loadDir adds the header of every .rpm file in dir to db. A missing
// directory leaves the database empty.
func (e *Engine) loadDir(db *database, dir string) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.rpm"))
	if err != nil {
		return
	}
	sort.Strings(paths)
	for _, p := range paths {
		ent, err := readPackageEntry(p)
		if err != nil {
			log.WithError(err).WithField("path", p).Warn("memengine: skipping unreadable package")
			continue
		}
		h, err := e.headerFromEntry(ent)
		if err != nil {
			log.WithError(err).WithField("path", p).Warn("memengine: skipping malformed package")
			continue
		}
		db.add(h)
	}
	log.WithFields(log.Fields{"dbpath": dir, "packages": len(db.records)}).Debug("memengine: database loaded")
}

// readPackageEntry reads the header of a package file with go-rpm.
func readPackageEntry(name string) (Entry, error) {
	p, err := rpm.OpenPackageFile(name)
	if err != nil {
		return nil, err
	}
	ent := Entry{
		librpm.TagName:        librpm.String(p.Name()),
		librpm.TagVersion:     librpm.String(p.Version()),
		librpm.TagRelease:     librpm.String(p.Release()),
		librpm.TagLicense:     librpm.String(p.License()),
		librpm.TagSummary:     librpm.I18NString(p.Summary()),
		librpm.TagDescription: librpm.I18NString(p.Description()),
		librpm.TagBuildTime:   librpm.Int32s{int32(p.BuildTime().Unix())},
		librpm.TagLongSize:    librpm.Int64s{int64(p.Size())},
	}
	if epoch := p.Epoch(); epoch > 0 {
		ent[librpm.TagEpoch] = librpm.Int32s{int32(epoch)}
	}
	strs := map[librpm.Tag]string{
		librpm.TagArch:      p.Architecture(),
		librpm.TagOS:        p.OperatingSystem(),
		librpm.TagURL:       p.URL(),
		librpm.TagVendor:    p.Vendor(),
		librpm.TagPackager:  p.Packager(),
		librpm.TagBuildHost: p.BuildHost(),
		librpm.TagSourceRPM: p.SourceRPM(),
	}
	for tag, v := range strs {
		if v != "" {
			ent[tag] = librpm.String(v)
		}
	}
	if groups := p.Groups(); len(groups) > 0 {
		ent[librpm.TagGroup] = librpm.I18NString(strings.Join(groups, "\n"))
	}

	var requires, provides []string
	for _, d := range p.Requires() {
		requires = append(requires, d.Name())
	}
	for _, d := range p.Provides() {
		provides = append(provides, d.Name())
	}
	if len(requires) > 0 {
		ent[librpm.TagRequireName] = librpm.StringArray(requires)
	}
	if len(provides) > 0 {
		ent[librpm.TagProvideName] = librpm.StringArray(provides)
	}
	return ent, nil
}

// Insert adds records to the database selected by the current %{_dbpath} and
// returns their offsets. It panics if an entry cannot be stored.
func (e *Engine) Insert(entries ...Entry) []uint {
	return e.InsertUnder("/", entries...)
}

// InsertUnder is Insert for the database of a transaction set whose root
// directory is root.
func (e *Engine) InsertUnder(root string, entries ...Entry) []uint {
	e.mu.Lock()
	defer e.mu.Unlock()
	db := e.dbUnderLocked(root)
	offsets := make([]uint, len(entries))
	for i, ent := range entries {
		h, err := e.headerFromEntry(ent)
		if err != nil {
			panic(err)
		}
		offsets[i] = db.add(h)
	}
	return offsets
}

// Installed returns the NEVRA of every record of the current database,
// sorted.
func (e *Engine) Installed() []string {
	return e.InstalledUnder("/")
}

// InstalledUnder is Installed for the database below root.
func (e *Engine) InstalledUnder(root string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var v []string
	for _, h := range e.dbUnderLocked(root).records {
		v = append(v, h.nevra())
	}
	sort.Strings(v)
	return v
}

type pattern struct {
	tag   librpm.Tag
	match func(string) bool
}

type matchIterator struct {
	offsets  []uint
	records  map[uint]*header
	patterns []pattern
	pos      int
	cur      uint
}

func (e *Engine) mi(p librpm.MatchIteratorPtr) *matchIterator {
	if p == nil {
		panic("memengine: nil match iterator")
	}
	return (*matchIterator)(p)
}

// TSInitIterator opens an iterator over the records whose tag equals key.
// NAME and PROVIDENAME are indexed. A nil key visits every record, ordered by
// name. It returns nil if nothing matches.
func (e *Engine) TSInitIterator(ts librpm.TSPtr, tag librpm.Tag, key []byte) librpm.MatchIteratorPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("TSInitIterator", uintptr(ts))
	db := e.rootDBLocked(e.tsLocked(ts))

	var offsets []uint
	for off, h := range db.records {
		if len(key) == 0 || indexed(h, tag, string(key)) {
			offsets = append(offsets, off)
		}
	}
	if len(offsets) == 0 {
		return nil
	}
	sort.Slice(offsets, func(i, j int) bool {
		a, _ := db.records[offsets[i]].getString(librpm.TagName)
		b, _ := db.records[offsets[j]].getString(librpm.TagName)
		if a != b {
			return a < b
		}
		return offsets[i] < offsets[j]
	})
	mi := &matchIterator{offsets: offsets, records: db.records}
	return librpm.MatchIteratorPtr(unsafe.Pointer(mi))
}

func indexed(h *header, tag librpm.Tag, key string) bool {
	switch tag {
	case librpm.TagName:
		name, _ := h.getString(librpm.TagName)
		return name == key
	case librpm.TagProvideName:
		name, _ := h.getString(librpm.TagName)
		if name == key {
			return true
		}
		for _, p := range h.getStrings(librpm.TagProvideName) {
			if p == key {
				return true
			}
		}
	}
	return false
}

// MISetPattern adds a filter on tag. Records that lack the tag never match.
func (e *Engine) MISetPattern(p librpm.MatchIteratorPtr, tag librpm.Tag, mode librpm.PatternMode, pat string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("MISetPattern", uintptr(p))
	mi := e.mi(p)

	var match func(string) bool
	switch mode {
	case librpm.PatternStrcmp:
		match = func(s string) bool { return s == pat }
	case librpm.PatternDefault, librpm.PatternRegex:
		expr := pat
		if mode == librpm.PatternDefault {
			expr = "^" + pat + "$"
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return -1
		}
		match = re.MatchString
	case librpm.PatternGlob:
		if _, err := path.Match(pat, ""); err != nil {
			return -1
		}
		match = func(s string) bool {
			ok, _ := path.Match(pat, s)
			return ok
		}
	default:
		return -1
	}
	mi.patterns = append(mi.patterns, pattern{tag: tag, match: match})
	return 0
}

func (mi *matchIterator) matches(h *header) bool {
	for _, p := range mi.patterns {
		ent, ok := h.entries[p.tag]
		if !ok {
			return false
		}
		hit := false
		switch d := ent.Decode().(type) {
		case librpm.StringArray:
			for _, s := range d {
				hit = hit || p.match(s)
			}
		default:
			if s, ok := librpm.AsString(d); ok {
				hit = p.match(s)
			} else if n, ok := librpm.AsInt64(d); ok {
				hit = p.match(strconv.FormatInt(n, 10))
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// MINext returns the next matching record. The caller must link the header
// to keep it.
func (e *Engine) MINext(p librpm.MatchIteratorPtr) librpm.HeaderPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("MINext", uintptr(p))
	mi := e.mi(p)
	for mi.pos < len(mi.offsets) {
		off := mi.offsets[mi.pos]
		mi.pos++
		h, ok := mi.records[off]
		if !ok || !mi.matches(h) {
			continue
		}
		mi.cur = off
		return librpm.HeaderPtr(unsafe.Pointer(h))
	}
	mi.cur = 0
	return nil
}

func (e *Engine) MIOffset(p librpm.MatchIteratorPtr) uint {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("MIOffset", uintptr(p))
	return e.mi(p).cur
}

// MICount returns the number of records the key selected, before patterns
// are applied.
func (e *Engine) MICount(p librpm.MatchIteratorPtr) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("MICount", uintptr(p))
	return len(e.mi(p).offsets)
}

func (e *Engine) MIFree(p librpm.MatchIteratorPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("MIFree", uintptr(p))
	mi := e.mi(p)
	mi.offsets = nil
	mi.records = nil
}

// DBPath returns the directory the current database is read from.
func (e *Engine) DBPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dbPathLocked()
}

func dirExists(dir string) bool {
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}
