package cdecl

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/cxlink/cxlink/internal/testutil"
)

func TestCompInfoSelfKey(t *testing.T) {
	ds := NewDeclarations()
	ix := ds.AddCompInfo(CompInfo{Name: AnonymousName, CKey: -1, IsStruct: true, Attrs: -1})

	c, err := ds.CompInfo(ix)
	testutil.FatalIfErr(t, err)
	if c.CKey != ix {
		t.Errorf("self key decoded as %d, want record index %d", c.CKey, ix)
	}

	// A record with an explicit key keeps it.
	explicit := ds.AddCompInfo(CompInfo{Name: "buffer", CKey: 17, IsStruct: true, Attrs: -1})
	c, err = ds.CompInfo(explicit)
	testutil.FatalIfErr(t, err)
	if c.CKey != 17 {
		t.Errorf("explicit key decoded as %d, want 17", c.CKey)
	}
}

func TestVarInfoInitPresence(t *testing.T) {
	ds := NewDeclarations()

	bare := ds.AddVarInfo(VarInfo{
		Name: "maxlen", Storage: StorageNone, Vid: 12, Typ: 3,
		Attrs: -1, Glob: true, Decl: -1, Param: -1, Init: -1,
	})
	vi, err := ds.VarInfo(bare)
	testutil.FatalIfErr(t, err)
	if vi.Init != -1 {
		t.Errorf("bare varinfo decoded with init %d", vi.Init)
	}

	init := ds.AddInitInfo(InitInfo{Tag: TagSingleInit, Exp: 5})
	withInit := ds.AddVarInfo(VarInfo{
		Name: "maxlen", Storage: StorageNone, Vid: 12, Typ: 3,
		Attrs: -1, Glob: true, Decl: -1, Param: -1, Init: init,
	})
	if withInit == bare {
		t.Error("initialized and bare declarations share a record")
	}
	vi, err = ds.VarInfo(withInit)
	testutil.FatalIfErr(t, err)
	if vi.Init != init {
		t.Errorf("decoded init = %d, want %d", vi.Init, init)
	}
}

func TestInitInfoRoundTrip(t *testing.T) {
	ds := NewDeclarations()

	oi := ds.AddOffsetInit(OffsetInit{Offset: 2, Init: 1})
	cix := ds.AddInitInfo(InitInfo{Tag: TagCompoundInit, Exp: -1, Typ: 8, Inits: []int{oi}})

	ii, err := ds.InitInfo(cix)
	testutil.FatalIfErr(t, err)
	if ii.Tag != TagCompoundInit || ii.Typ != 8 || len(ii.Inits) != 1 {
		t.Errorf("compound initinfo decoded as %+v", ii)
	}
	got, err := ds.OffsetInit(ii.Inits[0])
	testutil.FatalIfErr(t, err)
	if got.Offset != 2 || got.Init != 1 {
		t.Errorf("offset-init decoded as %+v", got)
	}
}

func TestFieldSignature(t *testing.T) {
	ds := NewDeclarations()
	next := ds.AddFieldInfo(FieldInfo{Name: "next", CKey: 1, Typ: 2, Attrs: -1, Loc: -1})
	val := ds.AddFieldInfo(FieldInfo{Name: "value", CKey: 1, Typ: 3, Attrs: -1, Loc: -1})

	sig, err := ds.FieldSignature(CompInfo{Name: "node", CKey: 1, IsStruct: true, Fields: []int{next, val}})
	testutil.FatalIfErr(t, err)
	if sig != "next:value" {
		t.Errorf("FieldSignature = %q, want %q", sig, "next:value")
	}

	empty, err := ds.FieldSignature(CompInfo{Name: "opaque", CKey: 2, IsStruct: true})
	testutil.FatalIfErr(t, err)
	if empty != "" {
		t.Errorf("signature of fieldless struct = %q", empty)
	}
}

func TestGlobalVarDefinitions(t *testing.T) {
	f := NewFile(1, "io")
	f.Decls.AddVarInfo(VarInfo{
		Name: "errno", Storage: StorageExtern, Vid: 3, Typ: 1,
		Attrs: -1, Glob: true, Decl: -1, Param: -1, Init: -1,
	})
	f.Decls.AddVarInfo(VarInfo{
		Name: "nfiles", Storage: StorageNone, Vid: 5, Typ: 1,
		Attrs: -1, Glob: true, Decl: -1, Param: -1, Init: -1,
	})
	f.Decls.AddVarInfo(VarInfo{
		Name: "local", Storage: StorageNone, Vid: 7, Typ: 1,
		Attrs: -1, Glob: false, Decl: -1, Param: -1, Init: -1,
	})

	defs, err := f.GlobalVarDefinitions()
	testutil.FatalIfErr(t, err)
	if len(defs) != 1 || defs[0].Name != "nfiles" {
		t.Errorf("GlobalVarDefinitions = %+v, want only nfiles", defs)
	}

	all, err := f.GlobalVarInfos()
	testutil.FatalIfErr(t, err)
	if len(all) != 2 {
		t.Errorf("GlobalVarInfos returned %d declarations, want 2", len(all))
	}
}

func TestVarInfosByName(t *testing.T) {
	ds := NewDeclarations()
	ds.AddVarInfo(VarInfo{
		Name: "open", Storage: StorageNone, Vid: 1, Typ: 1,
		Attrs: -1, Glob: true, Decl: -1, Param: -1, Init: -1,
	})
	ds.AddVarInfo(VarInfo{
		Name: "openfile", Storage: StorageNone, Vid: 2, Typ: 1,
		Attrs: -1, Glob: true, Decl: -1, Param: -1, Init: -1,
	})

	got, err := ds.VarInfosByName(func(n string) bool { return strings.HasPrefix(n, "open") })
	testutil.FatalIfErr(t, err)
	if len(got) != 2 {
		t.Fatalf("prefix match returned %d declarations, want 2", len(got))
	}

	got, err = ds.VarInfosByName(func(n string) bool { return n == "openfile" })
	testutil.FatalIfErr(t, err)
	if len(got) != 1 || got[0].Name != "openfile" {
		t.Errorf("exact match = %+v, want openfile", got)
	}
}

func TestDeclarationsXMLRoundTrip(t *testing.T) {
	ds := NewDeclarations()
	fix := ds.AddFieldInfo(FieldInfo{Name: "count", CKey: 1, Typ: 2, Attrs: -1, Loc: -1})
	ds.AddCompInfo(CompInfo{Name: "stats", CKey: 1, IsStruct: true, Attrs: -1, Fields: []int{fix}})
	ds.AddVarInfo(VarInfo{
		Name: "gstats", Storage: StorageNone, Vid: 4, Typ: 5,
		Attrs: -1, Glob: true, Decl: -1, Param: -1, Init: -1,
	})

	b, err := xml.Marshal(ds.ToXML("c-declarations"))
	testutil.FatalIfErr(t, err)

	var x XDeclarations
	testutil.FatalIfErr(t, xml.Unmarshal(b, &x))
	loaded := NewDeclarations()
	testutil.FatalIfErr(t, loaded.FromXML(x))

	c, err := loaded.CompInfoByKey(1)
	testutil.FatalIfErr(t, err)
	if c.Name != "stats" || len(c.Fields) != 1 {
		t.Errorf("loaded compinfo = %+v", c)
	}
	vi, err := loaded.VarInfoByVid(4)
	testutil.FatalIfErr(t, err)
	if vi.Name != "gstats" {
		t.Errorf("loaded varinfo = %+v", vi)
	}
}
