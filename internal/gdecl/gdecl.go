// Package gdecl maintains the whole-program declarations: the global
// struct and variable tables that every file's declarations unify
// into.
//
// Struct unification backtracks.  While a file's structs are indexed,
// a reference to a struct that is still being built gets a conjectured
// global key: a committed struct with the same field names, or a fresh
// reserved key when none qualifies.  If finishing the struct disproves
// the conjecture, the pair is marked incompatible, the global struct
// table rolls back to its checkpoint, and the whole file is indexed
// again.  Each retry removes at least one candidate, so the loop
// terminates.
package gdecl

import (
	"fmt"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cxlink/cxlink/internal/cdecl"
	"github.com/cxlink/cxlink/internal/cdict"
)

// OpaqueStructKey is the key of the pre-indexed fieldless struct.
// File structs declared without a body unify with it structurally.
const OpaqueStructKey = 1

// OpaqueStructName is the name registered for the pre-indexed struct.
const OpaqueStructName = "opaque-struct"

// ConjectureConflict reports that committing a struct produced a
// different global key than was conjectured for it.
type ConjectureConflict struct {
	CKey  int
	GCKey int
}

func (e *ConjectureConflict) Error() string {
	return fmt.Sprintf("compinfo %d is not compatible with global compinfo %d", e.CKey, e.GCKey)
}

// Declarations is the whole-program declarations store.
type Declarations struct {
	decls *cdecl.Declarations
	dict  *cdict.Dictionary

	compinfoNames  map[int]map[string]bool
	storageClasses map[int]map[string]bool

	// fieldStrings maps a field signature to the global keys carrying
	// it, the candidate pool for conjectures.
	fieldStrings map[string][]int

	ckey2gckey map[int]map[int]int
	vid2gvid   map[int]map[int]int

	// Per-file indexing round.
	cur           *cdecl.File
	pending       map[int]bool
	conjectured   map[int]int
	reserved      map[int]int
	incompatibles map[int]map[int]bool

	defaultPrototypes []deferredPrototype

	registerer         prometheus.Registerer
	conjectureFailures prometheus.Counter
	linkRetries        prometheus.Counter
}

type deferredPrototype struct {
	file *cdecl.File
	vi   cdecl.VarInfo
}

// Option adjusts construction of the store.
type Option func(*Declarations)

// PrometheusRegisterer registers the unification metrics with r.
func PrometheusRegisterer(r prometheus.Registerer) Option {
	return func(d *Declarations) {
		d.registerer = r
	}
}

// New creates an empty whole-program store with the opaque struct
// pre-indexed at key 1.
func New(options ...Option) *Declarations {
	d := &Declarations{
		decls:          cdecl.NewDeclarations(),
		compinfoNames:  make(map[int]map[string]bool),
		storageClasses: make(map[int]map[string]bool),
		fieldStrings:   make(map[string][]int),
		ckey2gckey:     make(map[int]map[int]int),
		vid2gvid:       make(map[int]map[int]int),
		incompatibles:  make(map[int]map[int]bool),
	}
	for _, option := range options {
		option(d)
	}
	d.resetConjectures()
	d.dict = cdict.NewGlobalDictionary(resolver{d})
	d.conjectureFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cxlink_conjecture_failures_total",
		Help: "struct key conjectures disproved during unification",
	})
	d.linkRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cxlink_link_retries_total",
		Help: "per-file unification rounds restarted after a rollback",
	})
	if d.registerer != nil {
		d.registerer.MustRegister(d.conjectureFailures, d.linkRetries)
	}
	d.indexOpaqueStruct()
	return d
}

// Dictionary returns the whole-program node dictionary.
func (d *Declarations) Dictionary() *cdict.Dictionary { return d.dict }

// Records returns the whole-program record store.
func (d *Declarations) Records() *cdecl.Declarations { return d.decls }

func (d *Declarations) indexOpaqueStruct() {
	gckey := d.decls.AddCompInfo(cdecl.CompInfo{
		Name:     cdecl.AnonymousName,
		CKey:     -1,
		IsStruct: true,
		Attrs:    -1,
	})
	d.addCompInfoName(gckey, OpaqueStructName)
	d.registerFieldString("", gckey)
}

// resolver plugs the store into its own global dictionary: tcomp keys
// and variable ids indexed through the dictionary resolve against the
// unification state.
type resolver struct {
	d *Declarations
}

func (r resolver) CompKey(srcFid, ckey int) (int, error) {
	return r.d.compInfoKey(srcFid, ckey)
}

func (r resolver) VarID(srcFid, vid int) (int, error) {
	if gvid, ok := r.d.vid2gvid[srcFid][vid]; ok {
		return gvid, nil
	}
	return 0, errors.Errorf("file %d vid %d has no global vid", srcFid, vid)
}

func (d *Declarations) addCompInfoName(gckey int, name string) {
	if d.compinfoNames[gckey] == nil {
		d.compinfoNames[gckey] = make(map[string]bool)
	}
	d.compinfoNames[gckey][name] = true
}

func (d *Declarations) registerFieldString(sig string, gckey int) {
	for _, k := range d.fieldStrings[sig] {
		if k == gckey {
			return
		}
	}
	d.fieldStrings[sig] = append(d.fieldStrings[sig], gckey)
}

// GlobalCompKey returns the committed global key of a file struct.
func (d *Declarations) GlobalCompKey(fid, ckey int) (int, bool) {
	gckey, ok := d.ckey2gckey[fid][ckey]
	return gckey, ok
}

// GlobalVid returns the committed global vid of a file variable.
func (d *Declarations) GlobalVid(fid, vid int) (int, bool) {
	gvid, ok := d.vid2gvid[fid][vid]
	return gvid, ok
}

// CompInfoNames returns the names registered for a global struct key.
func (d *Declarations) CompInfoNames(gckey int) []string {
	return sortedKeys(d.compinfoNames[gckey])
}

func copyIntMap(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CompKeyMap snapshots a file's struct key translations.
func (d *Declarations) CompKeyMap(fid int) map[int]int {
	return copyIntMap(d.ckey2gckey[fid])
}

// VidMap snapshots a file's variable id translations.
func (d *Declarations) VidMap(fid int) map[int]int {
	return copyIntMap(d.vid2gvid[fid])
}

// compInfoKey maps a file struct key to its global key, conjecturing
// one if the struct is still being built.
func (d *Declarations) compInfoKey(fid, ckey int) (int, error) {
	if gckey, ok := d.ckey2gckey[fid][ckey]; ok {
		return gckey, nil
	}
	if d.cur == nil || fid != d.cur.ID {
		return 0, errors.Errorf("file %d ckey %d has no global key", fid, ckey)
	}
	if gckey, ok := d.conjectured[ckey]; ok {
		return gckey, nil
	}
	if gckey, ok := d.reserved[ckey]; ok {
		return gckey, nil
	}
	if d.pending[ckey] {
		c, err := d.cur.Decls.CompInfoByKey(ckey)
		if err != nil {
			return 0, err
		}
		return d.conjectureKey(c)
	}
	// A struct not visited yet; build it now.
	c, err := d.cur.Decls.CompInfoByKey(ckey)
	if err != nil {
		return 0, err
	}
	return d.makeGlobalCompInfo(c)
}

// conjectureKey picks a global key for a struct that references
// itself, directly or through a cycle, before it is finished: the
// first committed struct with the same field names that has not been
// disproved, or a freshly reserved key.
func (d *Declarations) conjectureKey(c cdecl.CompInfo) (int, error) {
	sig, err := d.cur.Decls.FieldSignature(c)
	if err != nil {
		return 0, err
	}
	for _, gckey := range d.fieldStrings[sig] {
		if d.incompatibles[c.CKey][gckey] {
			continue
		}
		d.conjectured[c.CKey] = gckey
		delete(d.pending, c.CKey)
		glog.V(1).Infof("file %d compinfo %d: conjectured global key %d", d.cur.ID, c.CKey, gckey)
		return gckey, nil
	}
	gckey := d.decls.CompInfoTable().Reserve()
	d.reserved[c.CKey] = gckey
	delete(d.pending, c.CKey)
	glog.V(1).Infof("file %d compinfo %d: reserved global key %d", d.cur.ID, c.CKey, gckey)
	return gckey, nil
}

func (d *Declarations) makeGlobalFieldInfo(f cdecl.FieldInfo) (int, error) {
	gftype, err := d.dict.ImportTyp(d.cur.Dict, f.Typ)
	if err != nil {
		return 0, err
	}
	return d.decls.AddFieldInfo(cdecl.FieldInfo{
		Name:     f.Name,
		CKey:     -1,
		Typ:      gftype,
		Bitfield: f.Bitfield,
		Attrs:    -1,
		Loc:      -1,
	}), nil
}

// makeGlobalCompInfo unifies one file struct into the global table
// and returns its global key.
func (d *Declarations) makeGlobalCompInfo(c cdecl.CompInfo) (int, error) {
	fid := d.cur.ID
	if gckey, ok := d.ckey2gckey[fid][c.CKey]; ok {
		return gckey, nil
	}

	d.pending[c.CKey] = true
	fields := make([]int, len(c.Fields))
	for i, fix := range c.Fields {
		f, err := d.cur.Decls.FieldInfo(fix)
		if err != nil {
			return 0, err
		}
		gfix, err := d.makeGlobalFieldInfo(f)
		if err != nil {
			return 0, err
		}
		fields[i] = gfix
	}
	sig, err := d.cur.Decls.FieldSignature(c)
	if err != nil {
		return 0, err
	}
	rec := cdecl.CompInfo{
		Name:     cdecl.AnonymousName,
		CKey:     -1,
		IsStruct: c.IsStruct,
		Attrs:    -1,
		Fields:   fields,
	}

	if gckey, ok := d.reserved[c.CKey]; ok {
		tags, args := cdecl.EncodeCompInfo(rec)
		if err := d.decls.CompInfoTable().CommitReserved(gckey, tags, args); err != nil {
			return 0, err
		}
		delete(d.reserved, c.CKey)
		d.commitCompInfo(fid, c, gckey, sig)
		return gckey, nil
	}

	gckey := d.decls.AddCompInfo(rec)
	if conjectured, ok := d.conjectured[c.CKey]; ok {
		if gckey != conjectured {
			glog.V(1).Infof("file %d compinfo %d: conjecture %d disproved by %d",
				fid, c.CKey, conjectured, gckey)
			return 0, &ConjectureConflict{CKey: c.CKey, GCKey: conjectured}
		}
		delete(d.conjectured, c.CKey)
	} else {
		delete(d.pending, c.CKey)
	}
	d.commitCompInfo(fid, c, gckey, sig)
	return gckey, nil
}

func (d *Declarations) commitCompInfo(fid int, c cdecl.CompInfo, gckey int, sig string) {
	if d.ckey2gckey[fid] == nil {
		d.ckey2gckey[fid] = make(map[int]int)
	}
	d.ckey2gckey[fid][c.CKey] = gckey
	d.registerFieldString(sig, gckey)
	d.addCompInfoName(gckey, c.Name)
}

// IndexFileCompInfos unifies all of one file's structs, retrying from
// a checkpoint until every conjecture holds.
func (d *Declarations) IndexFileCompInfos(f *cdecl.File) error {
	compinfos, err := f.CompInfos()
	if err != nil {
		return err
	}
	if len(compinfos) == 0 {
		return nil
	}
	d.cur = f
	defer func() { d.cur = nil }()

	table := d.decls.CompInfoTable()
	for {
		if _, err := table.SetCheckpoint(); err != nil {
			return err
		}
		d.ckey2gckey[f.ID] = make(map[int]int)
		d.resetConjectures()

		err := d.indexRound(compinfos)
		if err == nil {
			table.RemoveCheckpoint()
			d.incompatibles = make(map[int]map[int]bool)
			return nil
		}
		var conflict *ConjectureConflict
		if !errors.As(err, &conflict) {
			table.RemoveCheckpoint()
			return errors.Wrapf(err, "file %d", f.ID)
		}
		checkpoint, err := table.ResetToCheckpoint()
		if err != nil {
			return err
		}
		d.cleanup(checkpoint, conflict)
		d.conjectureFailures.Inc()
		d.linkRetries.Inc()
		glog.V(1).Infof("file %d: retry after conjecture failure (%d vs %d)",
			f.ID, conflict.CKey, conflict.GCKey)
	}
}

func (d *Declarations) indexRound(compinfos []cdecl.CompInfo) error {
	for _, c := range compinfos {
		if _, err := d.makeGlobalCompInfo(c); err != nil {
			return err
		}
	}
	return nil
}

func (d *Declarations) resetConjectures() {
	d.pending = make(map[int]bool)
	d.conjectured = make(map[int]int)
	d.reserved = make(map[int]int)
}

// cleanup rolls the derived registries back past the checkpoint and
// records the disproved conjecture.
func (d *Declarations) cleanup(checkpoint int, conflict *ConjectureConflict) {
	if d.incompatibles[conflict.CKey] == nil {
		d.incompatibles[conflict.CKey] = make(map[int]bool)
	}
	d.incompatibles[conflict.CKey][conflict.GCKey] = true
	d.resetConjectures()
	for gckey := range d.compinfoNames {
		if gckey >= checkpoint {
			delete(d.compinfoNames, gckey)
		}
	}
	for sig, gckeys := range d.fieldStrings {
		kept := gckeys[:0]
		for _, gckey := range gckeys {
			if gckey < checkpoint {
				kept = append(kept, gckey)
			}
		}
		d.fieldStrings[sig] = kept
	}
}
