// cxlink links the parsed translation units of a C analysis target:
// it unifies struct definitions and global variables across files and
// writes the whole-program definitions and per-file cross-references
// back into the target directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/cxlink/cxlink/internal/gdecl"
	"github.com/cxlink/cxlink/internal/ixmgr"
	"github.com/cxlink/cxlink/internal/linker"
	"github.com/cxlink/cxlink/internal/project"
)

var (
	targetDir = flag.String("target_dir", ".", "Directory holding the target's parsed artifact files.")
	manifest  = flag.String("manifest", "target.toml", "Target manifest, relative to -target_dir unless absolute.")

	relink = flag.Bool("relink", false, "Relink even when the target carries a complete set of persisted cross-references.")

	version = flag.Bool("version", false, "Print cxlink version information.")

	// Debugging flags.
	dumpMetrics = flag.Bool("dump_metrics", false, "Print linking metrics in Prometheus text format to stderr on exit.")
)

// Branch, Version and Revision identify where in the git history the
// build came from, as supplied by the linker when compiled with
// `make'.
var (
	Branch   = "invalid:-use-make-to-build"
	Version  = "invalid:-use-make-to-build"
	Revision = "invalid:-use-make-to-build"
)

func buildInfo() string {
	return fmt.Sprintf("cxlink version %s git revision %s go version %s branch %s",
		Version, Revision, "go1.21", Branch)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", buildInfo())
		fmt.Fprintf(os.Stderr, "\nUsage:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *version {
		fmt.Println(buildInfo())
		os.Exit(0)
	}
	glog.Info(buildInfo())

	if err := run(); err != nil {
		glog.Exitf("cxlink: %s", err)
	}
	glog.Flush()
}

// reusePersisted checks whether a previous run left a complete set of
// linking artifacts: every unit's cross-references plus the global
// definitions.  Any missing or malformed artifact means relink.
func reusePersisted(dir string, m project.Manifest) error {
	ixm := ixmgr.New(len(m.Files) == 1)
	if err := project.LoadTargetXRefs(dir, m, ixm); err != nil {
		return err
	}
	return project.LoadGlobalDefinitions(dir, gdecl.New())
}

func run() error {
	manifestPath := *manifest
	if !filepath.IsAbs(manifestPath) {
		manifestPath = filepath.Join(*targetDir, manifestPath)
	}
	m, err := project.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	glog.Infof("linking target %s: %d files", m.Name, len(m.Files))

	if !*relink {
		err := reusePersisted(*targetDir, m)
		if err == nil {
			glog.Infof("target %s already linked, reusing persisted cross-references", m.Name)
			return nil
		}
		glog.V(1).Infof("relinking target %s: %s", m.Name, err)
	}

	files, err := project.LoadTarget(*targetDir, m)
	if err != nil {
		return err
	}
	if glog.V(2) {
		for _, f := range files {
			glog.Infof("file %s dictionary:\n%s", f.Name, f.Dict.Stats())
		}
	}

	registry := prometheus.NewRegistry()
	l := linker.New(files, linker.PrometheusRegisterer(registry))
	if err := l.Link(); err != nil {
		return err
	}

	for _, f := range files {
		if err := project.SaveXRefs(*targetDir, f, l.IndexManager()); err != nil {
			return err
		}
	}
	if err := project.SaveGlobalDefinitions(*targetDir, l.Globals()); err != nil {
		return err
	}
	glog.Infof("target %s linked", m.Name)

	if *dumpMetrics {
		mfs, err := registry.Gather()
		if err != nil {
			return err
		}
		enc := expfmt.NewEncoder(os.Stderr, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range mfs {
			if err := enc.Encode(mf); err != nil {
				return err
			}
		}
	}
	return nil
}
