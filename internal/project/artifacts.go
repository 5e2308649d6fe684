package project

import (
	"encoding/xml"
	"sort"
	"strconv"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cxlink/cxlink/internal/cdecl"
	"github.com/cxlink/cxlink/internal/cdict"
	"github.com/cxlink/cxlink/internal/gdecl"
	"github.com/cxlink/cxlink/internal/ixmgr"
)

// SaveFile persists one unit's dictionary and declarations.
func SaveFile(dir string, f *cdecl.File) error {
	if err := writeAnalysisXML(DictionaryPath(dir, f.Name), "cdict", f.Name,
		f.Dict.ToXML("c-dictionary")); err != nil {
		return err
	}
	return writeAnalysisXML(DeclarationsPath(dir, f.Name), "cfile", f.Name,
		f.Decls.ToXML("c-declarations"))
}

// LoadFile reads one unit's dictionary and declarations.
func LoadFile(dir string, mf ManifestFile) (*cdecl.File, error) {
	f := cdecl.NewFile(mf.ID, mf.Name)

	var xd cdict.XDictionary
	if err := readAnalysisXML(DictionaryPath(dir, mf.Name), "c-dictionary", &xd); err != nil {
		return nil, err
	}
	if err := f.Dict.FromXML(xd); err != nil {
		return nil, errors.Wrapf(err, "file %s", mf.Name)
	}

	var xds cdecl.XDeclarations
	if err := readAnalysisXML(DeclarationsPath(dir, mf.Name), "c-declarations", &xds); err != nil {
		return nil, err
	}
	if err := f.Decls.FromXML(xds); err != nil {
		return nil, errors.Wrapf(err, "file %s", mf.Name)
	}
	return f, nil
}

// LoadTarget reads every unit of the manifest concurrently and
// returns them ordered by file id.
func LoadTarget(dir string, m Manifest) ([]*cdecl.File, error) {
	files := make([]*cdecl.File, len(m.Files))
	var g errgroup.Group
	for i, mf := range m.Files {
		i, mf := i, mf
		g.Go(func() error {
			f, err := LoadFile(dir, mf)
			if err != nil {
				return err
			}
			glog.V(1).Infof("loaded file %d (%s)", mf.ID, mf.Name)
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

// XCXRef is one struct key translation: <cxref ckey="3" gckey="12"/>.
type XCXRef struct {
	XMLName xml.Name `xml:"cxref"`
	CKey    string   `xml:"ckey,attr"`
	GCKey   string   `xml:"gckey,attr"`
}

// XVXRef is one variable id translation: <vxref vid="7" gvid="100"/>.
type XVXRef struct {
	XMLName xml.Name `xml:"vxref"`
	Vid     string   `xml:"vid,attr"`
	GVid    string   `xml:"gvid,attr"`
}

type xCompInfoXRefs struct {
	XMLName xml.Name `xml:"compinfo-xrefs"`
	Nodes   []XCXRef `xml:"cxref"`
}

type xVarInfoXRefs struct {
	XMLName xml.Name `xml:"varinfo-xrefs"`
	Nodes   []XVXRef `xml:"vxref"`
}

// XFileXRefs is the persisted form of one unit's translations.
type XFileXRefs struct {
	XMLName       xml.Name `xml:"global-xrefs"`
	CompInfoXRefs xCompInfoXRefs
	VarInfoXRefs  xVarInfoXRefs
}

// SaveXRefs persists one unit's local-to-global translations.
func SaveXRefs(dir string, f *cdecl.File, m *ixmgr.Manager) error {
	var x XFileXRefs
	for _, r := range m.CompInfoXRefs(f.ID) {
		x.CompInfoXRefs.Nodes = append(x.CompInfoXRefs.Nodes, XCXRef{
			CKey:  strconv.Itoa(r.Local),
			GCKey: strconv.Itoa(r.Global),
		})
	}
	for _, r := range m.VarInfoXRefs(f.ID) {
		x.VarInfoXRefs.Nodes = append(x.VarInfoXRefs.Nodes, XVXRef{
			Vid:  strconv.Itoa(r.Local),
			GVid: strconv.Itoa(r.Global),
		})
	}
	return writeAnalysisXML(XRefsPath(dir, f.Name), "gxrefs", f.Name, x)
}

// LoadXRefs reads one unit's translations into the index manager.
func LoadXRefs(dir, name string, fid int, m *ixmgr.Manager) error {
	var x XFileXRefs
	if err := readAnalysisXML(XRefsPath(dir, name), "global-xrefs", &x); err != nil {
		return err
	}
	m.AddFile(fid)
	for _, n := range x.CompInfoXRefs.Nodes {
		ckey, err := strconv.Atoi(n.CKey)
		if err != nil {
			return errors.Wrapf(err, "xrefs of %s: malformed ckey", name)
		}
		gckey, err := strconv.Atoi(n.GCKey)
		if err != nil {
			return errors.Wrapf(err, "xrefs of %s: malformed gckey", name)
		}
		m.AddCKeyToGCKey(fid, ckey, gckey)
	}
	for _, n := range x.VarInfoXRefs.Nodes {
		vid, err := strconv.Atoi(n.Vid)
		if err != nil {
			return errors.Wrapf(err, "xrefs of %s: malformed vid", name)
		}
		gvid, err := strconv.Atoi(n.GVid)
		if err != nil {
			return errors.Wrapf(err, "xrefs of %s: malformed gvid", name)
		}
		m.AddVidToGvid(fid, vid, gvid)
	}
	return nil
}

// LoadTargetXRefs reads every unit's persisted translations into the
// index manager.  An error means the target has no complete set of
// cross-references and must be relinked.
func LoadTargetXRefs(dir string, m Manifest, ixm *ixmgr.Manager) error {
	for _, mf := range m.Files {
		if err := LoadXRefs(dir, mf.Name, mf.ID, ixm); err != nil {
			return err
		}
		glog.V(1).Infof("reloaded cross-references of file %d (%s)", mf.ID, mf.Name)
	}
	return nil
}

// SaveGlobalDefinitions persists the whole-program declarations.
func SaveGlobalDefinitions(dir string, d *gdecl.Declarations) error {
	return writeAnalysisXML(GlobalDefinitionsPath(dir), "globaldefinitions", "globals", d.ToXML())
}

// LoadGlobalDefinitions reads the whole-program declarations into d.
func LoadGlobalDefinitions(dir string, d *gdecl.Declarations) error {
	var x gdecl.XGlobals
	if err := readAnalysisXML(GlobalDefinitionsPath(dir), "globals", &x); err != nil {
		return err
	}
	return d.FromXML(x)
}
