package project

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cxlink/cxlink/internal/cast"
	"github.com/cxlink/cxlink/internal/cdecl"
	"github.com/cxlink/cxlink/internal/gdecl"
	"github.com/cxlink/cxlink/internal/ixmgr"
	"github.com/cxlink/cxlink/internal/testutil"
)

func TestManifestValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		m       Manifest
		wantErr bool
	}{
		{"valid", Manifest{Name: "app", Files: []ManifestFile{{"io", 1}, {"main", 2}}}, false},
		{"empty", Manifest{Name: "app"}, true},
		{"duplicate id", Manifest{Files: []ManifestFile{{"io", 1}, {"main", 1}}}, true},
		{"duplicate name", Manifest{Files: []ManifestFile{{"io", 1}, {"io", 2}}}, true},
		{"unnamed", Manifest{Files: []ManifestFile{{"", 1}}}, true},
	} {
		err := tc.m.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestLoadManifest(t *testing.T) {
	dir := testutil.TestTempDir(t)
	path := filepath.Join(dir, "target.toml")
	testutil.FatalIfErr(t, os.WriteFile(path, []byte(`
name = "app"

[[files]]
name = "io"
id = 1

[[files]]
name = "main"
id = 2
`), 0o644))

	m, err := LoadManifest(path)
	testutil.FatalIfErr(t, err)
	if m.Name != "app" || len(m.Files) != 2 || m.Files[1].ID != 2 {
		t.Errorf("LoadManifest = %+v", m)
	}

	if _, err := LoadManifest(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("load of missing manifest succeeded")
	}
}

func sampleFile(id int, name string) *cdecl.File {
	f := cdecl.NewFile(id, name)
	intIx := f.Dict.PutTyp(cast.TypInt{Kind: "iint", Attrs: -1})
	f.Dict.PutString("usage: %s\n")
	f.Decls.AddVarInfo(cdecl.VarInfo{
		Name: "nfiles", Storage: cdecl.StorageNone, Vid: 3, Typ: intIx,
		Attrs: -1, Glob: true, Decl: -1, Param: -1, Init: -1,
	})
	return f
}

func TestFileSaveLoadRoundTrip(t *testing.T) {
	timeNow = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	defer func() { timeNow = time.Now }()

	dir := testutil.TestTempDir(t)
	f := sampleFile(1, "io")
	testutil.FatalIfErr(t, SaveFile(dir, f))

	loaded, err := LoadFile(dir, ManifestFile{Name: "io", ID: 1})
	testutil.FatalIfErr(t, err)

	vi, err := loaded.Decls.VarInfoByVid(3)
	testutil.FatalIfErr(t, err)
	if vi.Name != "nfiles" {
		t.Errorf("loaded varinfo = %+v", vi)
	}
	s, err := loaded.Dict.String(1)
	testutil.FatalIfErr(t, err)
	if s != "usage: %s\n" {
		t.Errorf("loaded string = %q", s)
	}
}

func TestLoadTargetOrdersByID(t *testing.T) {
	dir := testutil.TestTempDir(t)
	testutil.FatalIfErr(t, SaveFile(dir, sampleFile(2, "main")))
	testutil.FatalIfErr(t, SaveFile(dir, sampleFile(1, "io")))

	m := Manifest{Name: "app", Files: []ManifestFile{{"main", 2}, {"io", 1}}}
	files, err := LoadTarget(dir, m)
	testutil.FatalIfErr(t, err)
	if len(files) != 2 || files[0].ID != 1 || files[1].ID != 2 {
		t.Errorf("LoadTarget order: %d files, ids %d %d", len(files), files[0].ID, files[1].ID)
	}

	m.Files = append(m.Files, ManifestFile{Name: "missing", ID: 3})
	if _, err := LoadTarget(dir, m); err == nil {
		t.Error("load with missing artifacts succeeded")
	}
}

func TestXRefsRoundTrip(t *testing.T) {
	dir := testutil.TestTempDir(t)
	f := sampleFile(1, "io")

	m := ixmgr.New(false)
	m.AddCKeyToGCKey(1, 3, 12)
	m.AddVidToGvid(1, 7, 100)
	testutil.FatalIfErr(t, SaveXRefs(dir, f, m))

	reloaded := ixmgr.New(false)
	testutil.FatalIfErr(t, LoadXRefs(dir, "io", 1, reloaded))
	gckey, err := reloaded.GlobalCKey(1, 3)
	testutil.FatalIfErr(t, err)
	if gckey != 12 {
		t.Errorf("reloaded gckey = %d, want 12", gckey)
	}
	gvid, err := reloaded.GlobalVid(1, 7)
	testutil.FatalIfErr(t, err)
	if gvid != 100 {
		t.Errorf("reloaded gvid = %d, want 100", gvid)
	}
}

func TestLoadTargetXRefsReusesPersistedMaps(t *testing.T) {
	dir := testutil.TestTempDir(t)

	// First run: link and persist.
	m := ixmgr.New(false)
	m.AddCKeyToGCKey(1, 3, 12)
	m.AddCKeyToGCKey(2, 9, 12)
	m.AddVidToGvid(1, 7, 100)
	m.AddVidToGvid(2, 4, 100)
	testutil.FatalIfErr(t, SaveXRefs(dir, sampleFile(1, "io"), m))
	testutil.FatalIfErr(t, SaveXRefs(dir, sampleFile(2, "main"), m))

	// Second run: the persisted maps convert without relinking.
	manifest := Manifest{Name: "app", Files: []ManifestFile{{"io", 1}, {"main", 2}}}
	reloaded := ixmgr.New(false)
	testutil.FatalIfErr(t, LoadTargetXRefs(dir, manifest, reloaded))

	ckey, err := reloaded.ConvertCKey(1, 3, 2)
	testutil.FatalIfErr(t, err)
	if ckey != 9 {
		t.Errorf("ConvertCKey after reload = %d, want 9", ckey)
	}
	vid, err := reloaded.ConvertVid(2, 4, 1)
	testutil.FatalIfErr(t, err)
	if vid != 7 {
		t.Errorf("ConvertVid after reload = %d, want 7", vid)
	}

	// A unit without persisted cross-references forces a relink.
	manifest.Files = append(manifest.Files, ManifestFile{Name: "util", ID: 3})
	if err := LoadTargetXRefs(dir, manifest, ixmgr.New(false)); err == nil {
		t.Error("reload with missing cross-references succeeded")
	}
}

func TestGlobalDefinitionsRoundTrip(t *testing.T) {
	dir := testutil.TestTempDir(t)

	d := gdecl.New()
	testutil.FatalIfErr(t, SaveGlobalDefinitions(dir, d))

	loaded := gdecl.New()
	testutil.FatalIfErr(t, LoadGlobalDefinitions(dir, loaded))
	testutil.ExpectNoDiff(t,
		d.CompInfoNames(gdecl.OpaqueStructKey),
		loaded.CompInfoNames(gdecl.OpaqueStructKey))
}
