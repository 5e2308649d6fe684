package linker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cxlink/cxlink/internal/cast"
	"github.com/cxlink/cxlink/internal/cdecl"
	"github.com/cxlink/cxlink/internal/cdict"
	"github.com/cxlink/cxlink/internal/testutil"
)

// twoFileTarget builds two translation units sharing struct node and
// variable nfiles: file 1 defines, file 2 references.
func twoFileTarget() []*cdecl.File {
	mk := func(id, ckey, vid int, storage string) *cdecl.File {
		f := cdecl.NewFile(id, "f")
		comp := f.Dict.PutTyp(cast.TypComp{CKey: ckey, Attrs: -1})
		ptr := f.Dict.PutTyp(cast.TypPtr{Target: comp, Attrs: -1})
		intIx := f.Dict.PutTyp(cast.TypInt{Kind: "iint", Attrs: -1})
		next := f.Decls.AddFieldInfo(cdecl.FieldInfo{Name: "next", CKey: ckey, Typ: ptr, Attrs: -1, Loc: -1})
		value := f.Decls.AddFieldInfo(cdecl.FieldInfo{Name: "value", CKey: ckey, Typ: intIx, Attrs: -1, Loc: -1})
		f.Decls.AddCompInfo(cdecl.CompInfo{
			Name: "node", CKey: ckey, IsStruct: true, Attrs: -1,
			Fields: []int{next, value},
		})
		f.Decls.AddVarInfo(cdecl.VarInfo{
			Name: "nfiles", Storage: storage, Vid: vid, Typ: intIx,
			Attrs: -1, Glob: true, Decl: -1, Param: -1, Init: -1,
		})
		return f
	}
	return []*cdecl.File{
		mk(2, 9, 12, cdecl.StorageExtern),
		mk(1, 3, 7, cdecl.StorageNone),
	}
}

func TestLinkPopulatesIndexManager(t *testing.T) {
	l := New(twoFileTarget())
	testutil.FatalIfErr(t, l.Link())

	ixm := l.IndexManager()

	ckey, err := ixm.ConvertCKey(1, 3, 2)
	testutil.FatalIfErr(t, err)
	if ckey != 9 {
		t.Errorf("ConvertCKey(1, 3, 2) = %d, want 9", ckey)
	}

	vid, err := ixm.ConvertVid(2, 12, 1)
	testutil.FatalIfErr(t, err)
	if vid != 7 {
		t.Errorf("ConvertVid(2, 12, 1) = %d, want 7", vid)
	}

	// The reference in file 2 resolves to the definition in file 1.
	fid, vid := ixm.ResolveVid(2, 12)
	if fid != 1 || vid != 7 {
		t.Errorf("ResolveVid(2, 12) = (%d, %d), want (1, 7)", fid, vid)
	}

	defs := ixm.Definitions()
	if len(defs) != 1 || defs[0].Global != 1 {
		t.Errorf("Definitions = %v, want one definition in file 1", defs)
	}
}

func TestLinkMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := New(twoFileTarget(), PrometheusRegisterer(reg))
	testutil.FatalIfErr(t, l.Link())

	metrics, err := reg.Gather()
	testutil.FatalIfErr(t, err)
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "cxlink_files_linked_total" {
			found = true
			if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 2 {
				t.Errorf("files linked = %v, want 2", got)
			}
		}
	}
	if !found {
		t.Error("cxlink_files_linked_total not registered")
	}
}

func TestSingleFileTargetShortCircuits(t *testing.T) {
	files := twoFileTarget()[:1]
	l := New(files)
	testutil.FatalIfErr(t, l.Link())

	// A one-file target translates identically even for unmapped ids.
	vid, err := l.IndexManager().ConvertVid(2, 999, 1)
	testutil.FatalIfErr(t, err)
	if vid != 999 {
		t.Errorf("single-file ConvertVid = %d, want 999", vid)
	}
}

func TestCrossFileImportThroughResolver(t *testing.T) {
	files := twoFileTarget()
	l := New(files)
	testutil.FatalIfErr(t, l.Link())

	// Import file 2's pointer-to-node into file 1's numbering.
	var src, dst *cdecl.File
	for _, f := range files {
		if f.ID == 2 {
			src = f
		} else {
			dst = f
		}
	}
	comp := src.Dict.PutTyp(cast.TypComp{CKey: 9, Attrs: -1})
	ptr := src.Dict.PutTyp(cast.TypPtr{Target: comp, Attrs: -1})

	into := cdict.NewFileDictionary(dst.ID, l.IndexManager().Resolver(dst.ID))
	got, err := into.ImportTyp(src.Dict, ptr)
	testutil.FatalIfErr(t, err)
	pt, err := into.Typ(got)
	testutil.FatalIfErr(t, err)
	ct, err := into.Typ(pt.(cast.TypPtr).Target)
	testutil.FatalIfErr(t, err)
	if ct.(cast.TypComp).CKey != 3 {
		t.Errorf("imported struct key = %d, want 3", ct.(cast.TypComp).CKey)
	}
}

func TestLinkedGlobalsCoherent(t *testing.T) {
	l := New(twoFileTarget())
	testutil.FatalIfErr(t, l.Link())

	decls := l.Globals()
	gckey1, _ := decls.GlobalCompKey(1, 3)
	gckey2, _ := decls.GlobalCompKey(2, 9)
	if gckey1 != gckey2 {
		t.Errorf("node unified to %d and %d", gckey1, gckey2)
	}
	gvid1, _ := decls.GlobalVid(1, 7)
	gvid2, _ := decls.GlobalVid(2, 12)
	if gvid1 != gvid2 {
		t.Errorf("nfiles unified to %d and %d", gvid1, gvid2)
	}
	if got := decls.StorageClass(gvid1); got != "nx" {
		t.Errorf("StorageClass = %q, want nx", got)
	}
}
