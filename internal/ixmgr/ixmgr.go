// Package ixmgr tracks the correspondence between file-local and
// whole-program numbering: variable ids (vid/gvid) and struct keys
// (ckey/gckey), per file id (fid).  The manager also records, per
// global variable, which file defines it.
package ixmgr

import (
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// vidFloor keeps vids invented during linking above any vid the
// parser could have assigned.
const vidFloor = 1000000

// ErrUnmapped indicates a lookup of a local index that was never
// registered with the manager.
var ErrUnmapped = errors.New("index not mapped")

// Manager holds the cross-file index maps.
type Manager struct {
	// singleFile short-circuits all conversions to the identity: a
	// one-file program needs no translation.
	singleFile bool

	vid2gvid   map[int]map[int]int
	gvid2vid   map[int]map[int]int
	ckey2gckey map[int]map[int]int
	gckey2ckey map[int]map[int]int

	fidVidMax map[int]int
	gvidDefs  map[int]int
}

// New creates an empty manager.  singleFile marks a one-file target,
// where every conversion is the identity.
func New(singleFile bool) *Manager {
	return &Manager{
		singleFile: singleFile,
		vid2gvid:   make(map[int]map[int]int),
		gvid2vid:   make(map[int]map[int]int),
		ckey2gckey: make(map[int]map[int]int),
		gckey2ckey: make(map[int]map[int]int),
		fidVidMax:  make(map[int]int),
		gvidDefs:   make(map[int]int),
	}
}

// AddFile registers a file's maps, empty until cross-references are
// added.  Registering the same fid again is a no-op.
func (m *Manager) AddFile(fid int) {
	if _, ok := m.vid2gvid[fid]; ok {
		return
	}
	m.vid2gvid[fid] = make(map[int]int)
	m.ckey2gckey[fid] = make(map[int]int)
	m.fidVidMax[fid] = vidFloor
}

// NoteVid raises the file's vid ceiling past a parser-assigned vid.
func (m *Manager) NoteVid(fid, vid int) {
	if vid >= m.fidVidMax[fid] {
		m.fidVidMax[fid] = vid + 1
	}
}

// NewVid hands out a fresh vid for fid, above both the parser's
// numbering and the floor.
func (m *Manager) NewVid(fid int) int {
	vid := m.fidVidMax[fid]
	if vid < vidFloor {
		vid = vidFloor
	}
	m.fidVidMax[fid] = vid + 1
	return vid
}

// AddVidToGvid records the correspondence of a file-local vid with
// its global vid.  A conflicting re-registration is logged and the
// first mapping kept.
func (m *Manager) AddVidToGvid(fid, vid, gvid int) {
	m.AddFile(fid)
	if prev, ok := m.vid2gvid[fid][vid]; ok && prev != gvid {
		glog.Warningf("file %d: vid %d already mapped to gvid %d, ignoring %d", fid, vid, prev, gvid)
		return
	}
	m.vid2gvid[fid][vid] = gvid
	if m.gvid2vid[gvid] == nil {
		m.gvid2vid[gvid] = make(map[int]int)
	}
	m.gvid2vid[gvid][fid] = vid
	m.NoteVid(fid, vid)
}

// AddCKeyToGCKey records the correspondence of a file-local struct
// key with its global key.
func (m *Manager) AddCKeyToGCKey(fid, ckey, gckey int) {
	m.AddFile(fid)
	if prev, ok := m.ckey2gckey[fid][ckey]; ok && prev != gckey {
		glog.Warningf("file %d: ckey %d already mapped to gckey %d, ignoring %d", fid, ckey, prev, gckey)
		return
	}
	m.ckey2gckey[fid][ckey] = gckey
	if m.gckey2ckey[gckey] == nil {
		m.gckey2ckey[gckey] = make(map[int]int)
	}
	m.gckey2ckey[gckey][fid] = ckey
}

// GlobalVid returns the gvid of a file-local vid.
func (m *Manager) GlobalVid(fid, vid int) (int, error) {
	if gvid, ok := m.vid2gvid[fid][vid]; ok {
		return gvid, nil
	}
	return 0, errors.Wrapf(ErrUnmapped, "file %d vid %d", fid, vid)
}

// GlobalCKey returns the gckey of a file-local struct key.
func (m *Manager) GlobalCKey(fid, ckey int) (int, error) {
	if gckey, ok := m.ckey2gckey[fid][ckey]; ok {
		return gckey, nil
	}
	return 0, errors.Wrapf(ErrUnmapped, "file %d ckey %d", fid, ckey)
}

// LocalVid returns the vid of a gvid in the given file.
func (m *Manager) LocalVid(gvid, fid int) (int, error) {
	if vid, ok := m.gvid2vid[gvid][fid]; ok {
		return vid, nil
	}
	return 0, errors.Wrapf(ErrUnmapped, "gvid %d in file %d", gvid, fid)
}

// LocalCKey returns the struct key of a gckey in the given file.
func (m *Manager) LocalCKey(gckey, fid int) (int, error) {
	if ckey, ok := m.gckey2ckey[gckey][fid]; ok {
		return ckey, nil
	}
	return 0, errors.Wrapf(ErrUnmapped, "gckey %d in file %d", gckey, fid)
}

// ConvertVid translates a vid between two files through its gvid.
func (m *Manager) ConvertVid(fidSrc, vid, fidTgt int) (int, error) {
	if m.singleFile || fidSrc == fidTgt {
		return vid, nil
	}
	gvid, err := m.GlobalVid(fidSrc, vid)
	if err != nil {
		return 0, err
	}
	return m.LocalVid(gvid, fidTgt)
}

// ConvertCKey translates a struct key between two files through its
// gckey.
func (m *Manager) ConvertCKey(fidSrc, ckey, fidTgt int) (int, error) {
	if m.singleFile || fidSrc == fidTgt {
		return ckey, nil
	}
	gckey, err := m.GlobalCKey(fidSrc, ckey)
	if err != nil {
		return 0, err
	}
	return m.LocalCKey(gckey, fidTgt)
}

// RegisterDefinition records that fid defines the variable gvid.  The
// first registration wins; later ones are logged and dropped.
func (m *Manager) RegisterDefinition(gvid, fid int) {
	if prev, ok := m.gvidDefs[gvid]; ok {
		if prev != fid {
			glog.V(1).Infof("gvid %d defined in file %d, additional definition in file %d ignored", gvid, prev, fid)
		}
		return
	}
	m.gvidDefs[gvid] = fid
}

// ResolveVid maps a reference to the defining occurrence of its
// variable: the (fid, vid) pair in the file that defines it.  The
// reference itself is returned when no definition was registered or
// the defining file has no local vid for it.
func (m *Manager) ResolveVid(fid, vid int) (int, int) {
	if m.singleFile {
		return fid, vid
	}
	gvid, err := m.GlobalVid(fid, vid)
	if err != nil {
		return fid, vid
	}
	defFid, ok := m.gvidDefs[gvid]
	if !ok {
		return fid, vid
	}
	defVid, err := m.LocalVid(gvid, defFid)
	if err != nil {
		glog.Warningf("gvid %d: defining file %d has no local vid", gvid, defFid)
		return fid, vid
	}
	return defFid, defVid
}

// Reference is one file-local occurrence of a global variable.
type Reference struct {
	Fid int
	Vid int
}

// GVidReferences returns every file-local occurrence of gvid, sorted
// by file id.
func (m *Manager) GVidReferences(gvid int) []Reference {
	out := make([]Reference, 0, len(m.gvid2vid[gvid]))
	for fid, vid := range m.gvid2vid[gvid] {
		out = append(out, Reference{Fid: fid, Vid: vid})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fid < out[j].Fid })
	return out
}

// Resolver adapts the manager to a dictionary's key translation:
// struct keys and variable ids imported into the target file convert
// from their source file's numbering.
type Resolver struct {
	m   *Manager
	tgt int
}

// Resolver returns the key translation view for imports into
// targetFid.
func (m *Manager) Resolver(targetFid int) Resolver {
	return Resolver{m: m, tgt: targetFid}
}

// CompKey converts a struct key from srcFid to the target file.
func (r Resolver) CompKey(srcFid, ckey int) (int, error) {
	return r.m.ConvertCKey(srcFid, ckey, r.tgt)
}

// VarID converts a variable id from srcFid to the target file.
func (r Resolver) VarID(srcFid, vid int) (int, error) {
	return r.m.ConvertVid(srcFid, vid, r.tgt)
}

// XRef is one local-to-global index pair.
type XRef struct {
	Local  int
	Global int
}

func snapshot(m map[int]int) []XRef {
	out := make([]XRef, 0, len(m))
	for local, global := range m {
		out = append(out, XRef{Local: local, Global: global})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Local < out[j].Local })
	return out
}

// CompInfoXRefs returns the file's ckey mappings sorted by key.
func (m *Manager) CompInfoXRefs(fid int) []XRef {
	return snapshot(m.ckey2gckey[fid])
}

// VarInfoXRefs returns the file's vid mappings sorted by vid.
func (m *Manager) VarInfoXRefs(fid int) []XRef {
	return snapshot(m.vid2gvid[fid])
}

// Definitions returns the gvid-to-defining-fid map sorted by gvid.
func (m *Manager) Definitions() []XRef {
	return snapshot(m.gvidDefs)
}
