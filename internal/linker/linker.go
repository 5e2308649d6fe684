// Package linker drives whole-program linking: it feeds every file's
// structs and global variables through the unification store, then
// publishes the resulting translations to the index manager.
package linker

import (
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cxlink/cxlink/internal/cdecl"
	"github.com/cxlink/cxlink/internal/gdecl"
	"github.com/cxlink/cxlink/internal/ixmgr"
)

// Linker links one target's translation units.
type Linker struct {
	files []*cdecl.File
	decls *gdecl.Declarations
	ixm   *ixmgr.Manager

	registerer  prometheus.Registerer
	filesLinked prometheus.Counter
}

// Option adjusts construction of the linker.
type Option func(*Linker)

// PrometheusRegisterer registers the linking metrics, including the
// unification store's, with r.
func PrometheusRegisterer(r prometheus.Registerer) Option {
	return func(l *Linker) {
		l.registerer = r
	}
}

// New creates a linker over the given files, ordered by file id.
func New(files []*cdecl.File, options ...Option) *Linker {
	l := &Linker{
		files: append([]*cdecl.File(nil), files...),
		ixm:   ixmgr.New(len(files) == 1),
	}
	sort.Slice(l.files, func(i, j int) bool { return l.files[i].ID < l.files[j].ID })
	for _, option := range options {
		option(l)
	}
	var declOpts []gdecl.Option
	if l.registerer != nil {
		declOpts = append(declOpts, gdecl.PrometheusRegisterer(l.registerer))
	}
	l.decls = gdecl.New(declOpts...)
	l.filesLinked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cxlink_files_linked_total",
		Help: "translation units linked into the whole-program tables",
	})
	if l.registerer != nil {
		l.registerer.MustRegister(l.filesLinked)
	}
	return l
}

// Globals returns the whole-program declarations store.
func (l *Linker) Globals() *gdecl.Declarations { return l.decls }

// IndexManager returns the populated index manager.
func (l *Linker) IndexManager() *ixmgr.Manager { return l.ixm }

// LinkCompInfos unifies every file's struct definitions.
func (l *Linker) LinkCompInfos() error {
	for _, f := range l.files {
		glog.V(1).Infof("linking compinfos of file %d (%s)", f.ID, f.Name)
		if err := l.decls.IndexFileCompInfos(f); err != nil {
			return errors.Wrapf(err, "link compinfos of %s", f.Name)
		}
	}
	return nil
}

// LinkVarInfos unifies every file's global variables and resolves
// deferred function prototypes.
func (l *Linker) LinkVarInfos() error {
	for _, f := range l.files {
		glog.V(1).Infof("linking varinfos of file %d (%s)", f.ID, f.Name)
		if err := l.decls.IndexFileVarInfos(f); err != nil {
			return errors.Wrapf(err, "link varinfos of %s", f.Name)
		}
	}
	return l.decls.ResolveDefaultFunctionPrototypes()
}

// publish feeds the committed translations to the index manager and
// records, per global variable, the defining file.
func (l *Linker) publish() error {
	for _, f := range l.files {
		l.ixm.AddFile(f.ID)
		for ckey, gckey := range l.decls.CompKeyMap(f.ID) {
			l.ixm.AddCKeyToGCKey(f.ID, ckey, gckey)
		}
		for vid, gvid := range l.decls.VidMap(f.ID) {
			l.ixm.AddVidToGvid(f.ID, vid, gvid)
		}
		defs, err := f.GlobalVarDefinitions()
		if err != nil {
			return err
		}
		for _, vi := range defs {
			gvid, ok := l.decls.GlobalVid(f.ID, vi.Vid)
			if !ok {
				glog.Warningf("file %d: definition of %s has no gvid", f.ID, vi.Name)
				continue
			}
			l.ixm.RegisterDefinition(gvid, f.ID)
		}
		l.filesLinked.Inc()
	}
	return nil
}

// Link runs the full sequence: structs, variables, prototypes, and
// index publication.
func (l *Linker) Link() error {
	if err := l.LinkCompInfos(); err != nil {
		return err
	}
	if err := l.LinkVarInfos(); err != nil {
		return err
	}
	return l.publish()
}
