// Package cdecl defines the declaration records of a translation
// unit: struct definitions, their fields, global variables and their
// initializers.  Records intern into itables just like AST nodes;
// this package gives them typed views and owns the per-file
// declarations store.
package cdecl

import (
	"github.com/pkg/errors"

	"github.com/cxlink/cxlink/internal/itable"
)

// AnonymousName marks a compinfo record whose name is tracked
// externally, in the whole-program name registry.
const AnonymousName = "?"

// CompInfo is a struct or union definition.  CKey is the struct's own
// key.  In the whole-program table the key equals the record index and
// is stored as -1, so that structurally equal definitions hash equal;
// decoding restores it from the index.
type CompInfo struct {
	Index    int
	Name     string
	CKey     int
	IsStruct bool
	Attrs    int
	Fields   []int
}

// EncodeCompInfo renders the record shape.  The key is written
// verbatim; whole-program callers pass -1.
func EncodeCompInfo(c CompInfo) ([]string, []int) {
	isStruct := 0
	if c.IsStruct {
		isStruct = 1
	}
	args := append([]int{c.CKey, isStruct, c.Attrs}, c.Fields...)
	return []string{c.Name}, args
}

// DecodeCompInfo projects a compinfo record; the self key -1 becomes
// the record's own index.
func DecodeCompInfo(v itable.Value) (CompInfo, error) {
	if len(v.Tags) < 1 || len(v.Args) < 3 {
		return CompInfo{}, errors.Errorf("malformed compinfo record %d: tags %v args %v", v.Index, v.Tags, v.Args)
	}
	ckey := v.Args[0]
	if ckey == -1 {
		ckey = v.Index
	}
	return CompInfo{
		Index:    v.Index,
		Name:     v.Tags[0],
		CKey:     ckey,
		IsStruct: v.Args[1] == 1,
		Attrs:    v.Args[2],
		Fields:   append([]int(nil), v.Args[3:]...),
	}, nil
}

// FieldInfo is one field of a struct definition.
type FieldInfo struct {
	Index    int
	Name     string
	CKey     int
	Typ      int
	Bitfield int
	Attrs    int
	Loc      int
}

// EncodeFieldInfo renders the record shape.
func EncodeFieldInfo(f FieldInfo) ([]string, []int) {
	return []string{f.Name}, []int{f.CKey, f.Typ, f.Bitfield, f.Attrs, f.Loc}
}

// DecodeFieldInfo projects a fieldinfo record.
func DecodeFieldInfo(v itable.Value) (FieldInfo, error) {
	if len(v.Tags) < 1 || len(v.Args) < 5 {
		return FieldInfo{}, errors.Errorf("malformed fieldinfo record %d: tags %v args %v", v.Index, v.Tags, v.Args)
	}
	return FieldInfo{
		Index:    v.Index,
		Name:     v.Tags[0],
		CKey:     v.Args[0],
		Typ:      v.Args[1],
		Bitfield: v.Args[2],
		Attrs:    v.Args[3],
		Loc:      v.Args[4],
	}, nil
}

// Storage class letters carried in the varinfo record's second tag.
const (
	StorageNone     = "n"
	StorageStatic   = "s"
	StorageExtern   = "x"
	StorageRegister = "r"
)

// VarInfo is a variable or function declaration.  Init is an initinfo
// index, or -1 when the declaration carries no initializer.
type VarInfo struct {
	Index   int
	Name    string
	Storage string
	Vid     int
	Typ     int
	Attrs   int
	Glob    bool
	Inline  bool
	Decl    int
	AddrOf  bool
	Param   int
	Init    int
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}

// EncodeVarInfo renders the record shape.  The vid is written
// verbatim; in the whole-program table it is -1 and the record index
// serves as the gvid.  Whole-program records also omit the storage
// tag: storage classes are tracked per equivalence class, outside the
// record, so that declarations differing only in storage unify.
func EncodeVarInfo(vi VarInfo) ([]string, []int) {
	tags := []string{vi.Name}
	if vi.Storage != "" {
		tags = append(tags, vi.Storage)
	}
	args := []int{
		vi.Vid,
		vi.Typ,
		vi.Attrs,
		boolArg(vi.Glob),
		boolArg(vi.Inline),
		vi.Decl,
		boolArg(vi.AddrOf),
		vi.Param,
	}
	if vi.Init >= 0 {
		args = append(args, vi.Init)
	}
	return tags, args
}

// DecodeVarInfo projects a varinfo record.
func DecodeVarInfo(v itable.Value) (VarInfo, error) {
	if len(v.Tags) < 1 || len(v.Args) < 8 {
		return VarInfo{}, errors.Errorf("malformed varinfo record %d: tags %v args %v", v.Index, v.Tags, v.Args)
	}
	vid := v.Args[0]
	if vid == -1 {
		vid = v.Index
	}
	storage := ""
	if len(v.Tags) > 1 {
		storage = v.Tags[1]
	}
	vi := VarInfo{
		Index:   v.Index,
		Name:    v.Tags[0],
		Storage: storage,
		Vid:     vid,
		Typ:     v.Args[1],
		Attrs:   v.Args[2],
		Glob:    v.Args[3] == 1,
		Inline:  v.Args[4] == 1,
		Decl:    v.Args[5],
		AddrOf:  v.Args[6] == 1,
		Param:   v.Args[7],
		Init:    -1,
	}
	if len(v.Args) > 8 {
		vi.Init = v.Args[8]
	}
	return vi, nil
}

// IsDefinition reports whether the declaration defines its variable
// in its file, rather than referencing a definition elsewhere.
func (vi VarInfo) IsDefinition() bool {
	return vi.Storage != StorageExtern
}

// Initializer record tags.
const (
	TagSingleInit   = "single"
	TagCompoundInit = "compound"
)

// InitInfo is an initializer: a single expression, or a compound of
// per-offset initializers for an aggregate type.
type InitInfo struct {
	Index int
	Tag   string
	Exp   int
	Typ   int
	Inits []int
}

// EncodeInitInfo renders the record shape.
func EncodeInitInfo(ii InitInfo) ([]string, []int) {
	if ii.Tag == TagSingleInit {
		return []string{TagSingleInit}, []int{ii.Exp}
	}
	return []string{TagCompoundInit}, append([]int{ii.Typ}, ii.Inits...)
}

// DecodeInitInfo projects an initinfo record.
func DecodeInitInfo(v itable.Value) (InitInfo, error) {
	if len(v.Tags) < 1 {
		return InitInfo{}, errors.Errorf("malformed initinfo record %d", v.Index)
	}
	switch v.Tags[0] {
	case TagSingleInit:
		if len(v.Args) < 1 {
			return InitInfo{}, errors.Errorf("malformed single initinfo record %d", v.Index)
		}
		return InitInfo{Index: v.Index, Tag: TagSingleInit, Exp: v.Args[0], Typ: -1}, nil
	case TagCompoundInit:
		if len(v.Args) < 1 {
			return InitInfo{}, errors.Errorf("malformed compound initinfo record %d", v.Index)
		}
		return InitInfo{
			Index: v.Index,
			Tag:   TagCompoundInit,
			Exp:   -1,
			Typ:   v.Args[0],
			Inits: append([]int(nil), v.Args[1:]...),
		}, nil
	}
	return InitInfo{}, errors.Errorf("initinfo record %d: unknown tag %q", v.Index, v.Tags[0])
}

// OffsetInit pairs an offset with the initializer applied at it,
// inside a compound initializer.
type OffsetInit struct {
	Index  int
	Offset int
	Init   int
}

// EncodeOffsetInit renders the record shape.
func EncodeOffsetInit(oi OffsetInit) ([]string, []int) {
	return nil, []int{oi.Offset, oi.Init}
}

// DecodeOffsetInit projects an offset-init record.
func DecodeOffsetInit(v itable.Value) (OffsetInit, error) {
	if len(v.Args) < 2 {
		return OffsetInit{}, errors.Errorf("malformed offset-init record %d", v.Index)
	}
	return OffsetInit{Index: v.Index, Offset: v.Args[0], Init: v.Args[1]}, nil
}
