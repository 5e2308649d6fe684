package gdecl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/cxlink/cxlink/internal/cast"
	"github.com/cxlink/cxlink/internal/cdecl"
)

// StaticName renders the file-specific name that keeps a static
// variable out of other files' equivalence classes.
func StaticName(name string, fid int) string {
	return fmt.Sprintf("%s__file__%d__", name, fid)
}

// IndexFileVarInfos unifies all of one file's global variable
// declarations.  Structs of the file must have been unified first.
func (d *Declarations) IndexFileVarInfos(f *cdecl.File) error {
	varinfos, err := f.GlobalVarInfos()
	if err != nil {
		return err
	}
	if len(varinfos) == 0 {
		return nil
	}
	d.cur = f
	defer func() { d.cur = nil }()

	if d.vid2gvid[f.ID] == nil {
		d.vid2gvid[f.ID] = make(map[int]int)
	}
	for _, vi := range varinfos {
		if err := d.makeGlobalVarInfo(f, vi); err != nil {
			return errors.Wrapf(err, "file %d varinfo %s", f.ID, vi.Name)
		}
	}
	return nil
}

func (d *Declarations) makeGlobalVarInfo(f *cdecl.File, vi cdecl.VarInfo) error {
	t, err := f.Dict.Typ(vi.Typ)
	if err != nil {
		return err
	}
	tf, isFun := t.(cast.TypFun)
	if isFun {
		deflt, err := f.Dict.IsDefaultPrototype(tf)
		if err != nil {
			return err
		}
		if deflt {
			// A declaration without a real argument list; resolved
			// against a prototyped declaration after all files.
			d.defaultPrototypes = append(d.defaultPrototypes, deferredPrototype{file: f, vi: vi})
			return nil
		}
	}

	name := vi.Name
	if vi.Storage == cdecl.StorageStatic {
		name = StaticName(vi.Name, f.ID)
	}
	gtyp, err := d.dict.ImportTyp(f.Dict, vi.Typ)
	if err != nil {
		return err
	}
	init := -1
	if vi.Init >= 0 {
		init, err = d.importInit(f, vi.Init)
		if err != nil {
			return err
		}
	}

	gvid := d.decls.AddVarInfo(cdecl.VarInfo{
		Name:    name,
		Storage: "",
		Vid:     -1,
		Typ:     gtyp,
		Attrs:   -1,
		Glob:    vi.Glob,
		Inline:  vi.Inline,
		Decl:    -1,
		AddrOf:  isFun || vi.AddrOf,
		Param:   vi.Param,
		Init:    init,
	})
	d.addStorageClass(gvid, vi.Storage)
	d.vid2gvid[f.ID][vi.Vid] = gvid
	glog.V(2).Infof("file %d vid %d -> gvid %d (%s: %s)", f.ID, vi.Vid, gvid, name, cast.TypString(t))
	return nil
}

func (d *Declarations) addStorageClass(gvid int, storage string) {
	if d.storageClasses[gvid] == nil {
		d.storageClasses[gvid] = make(map[string]bool)
	}
	if storage != "" {
		d.storageClasses[gvid][storage] = true
	}
}

// importInit re-interns a file initializer into the global tables.
func (d *Declarations) importInit(f *cdecl.File, ix int) (int, error) {
	ii, err := f.Decls.InitInfo(ix)
	if err != nil {
		return 0, err
	}
	switch ii.Tag {
	case cdecl.TagSingleInit:
		gexp, err := d.dict.ImportExp(f.Dict, ii.Exp, nil)
		if err != nil {
			return 0, err
		}
		return d.decls.AddInitInfo(cdecl.InitInfo{Tag: cdecl.TagSingleInit, Exp: gexp, Typ: -1}), nil
	case cdecl.TagCompoundInit:
		gtyp, err := d.dict.ImportTyp(f.Dict, ii.Typ)
		if err != nil {
			return 0, err
		}
		inits := make([]int, len(ii.Inits))
		for i, oix := range ii.Inits {
			goix, err := d.importOffsetInit(f, oix)
			if err != nil {
				return 0, err
			}
			inits[i] = goix
		}
		return d.decls.AddInitInfo(cdecl.InitInfo{
			Tag:   cdecl.TagCompoundInit,
			Exp:   -1,
			Typ:   gtyp,
			Inits: inits,
		}), nil
	}
	return 0, errors.Errorf("initinfo %d: unknown tag %q", ix, ii.Tag)
}

func (d *Declarations) importOffsetInit(f *cdecl.File, ix int) (int, error) {
	oi, err := f.Decls.OffsetInit(ix)
	if err != nil {
		return 0, err
	}
	goffset, err := d.dict.ImportOffset(f.Dict, oi.Offset, nil)
	if err != nil {
		return 0, err
	}
	ginit, err := d.importInit(f, oi.Init)
	if err != nil {
		return 0, err
	}
	return d.decls.AddOffsetInit(cdecl.OffsetInit{Offset: goffset, Init: ginit}), nil
}

// ResolveDefaultFunctionPrototypes maps deferred prototype-less
// function declarations onto the global declaration of the same
// function from another file.  A unique name match wins outright;
// among several candidates the exact name is taken with a warning;
// with no acceptable candidate the declaration stays unmapped.
func (d *Declarations) ResolveDefaultFunctionPrototypes() error {
	glog.V(1).Infof("resolving %d function prototypes", len(d.defaultPrototypes))
	for _, p := range d.defaultPrototypes {
		name := p.vi.Name
		candidates, err := d.decls.VarInfosByName(func(n string) bool {
			return strings.HasPrefix(n, name)
		})
		if err != nil {
			return err
		}
		fid := p.file.ID
		if d.vid2gvid[fid] == nil {
			d.vid2gvid[fid] = make(map[int]int)
		}
		if len(candidates) == 1 {
			d.vid2gvid[fid][p.vi.Vid] = candidates[0].Vid
			glog.V(1).Infof("resolved prototype for %s", name)
			continue
		}
		resolved := false
		for _, c := range candidates {
			if c.Name == name {
				d.vid2gvid[fid][p.vi.Vid] = c.Vid
				glog.Warningf("selected prototype %s for %s from %d candidates", c.Name, name, len(candidates))
				resolved = true
				break
			}
		}
		if !resolved {
			glog.Warningf("unable to resolve prototype for %s (%d candidates)", name, len(candidates))
		}
	}
	return nil
}

// StorageClass renders the distinct storage class letters recorded
// for a global variable, sorted and concatenated.
func (d *Declarations) StorageClass(gvid int) string {
	return strings.Join(sortedKeys(d.storageClasses[gvid]), "")
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
