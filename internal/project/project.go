// Package project handles the on-disk layout of an analysis target:
// the TOML manifest naming the translation units, and the XML
// artifact files each unit and the whole program persist to.
package project

import (
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Artifact file suffixes within the target directory.
const (
	dictSuffix  = "_cdict.xml"
	fileSuffix  = "_cfile.xml"
	xrefsSuffix = "_gxrefs.xml"

	globalDefinitionsName = "globaldefinitions.xml"
)

// ManifestFile names one translation unit and its file id.
type ManifestFile struct {
	Name string `toml:"name"`
	ID   int    `toml:"id"`
}

// Manifest describes an analysis target.
type Manifest struct {
	Name  string         `toml:"name"`
	Files []ManifestFile `toml:"files"`
}

// LoadManifest reads and validates a target manifest.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return Manifest{}, errors.Wrapf(err, "manifest %s", path)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, errors.Wrapf(err, "manifest %s", path)
	}
	return m, nil
}

// Validate checks that the manifest names at least one file and that
// ids and names are unique.
func (m Manifest) Validate() error {
	if len(m.Files) == 0 {
		return errors.New("no files listed")
	}
	ids := make(map[int]string, len(m.Files))
	names := make(map[string]bool, len(m.Files))
	for _, f := range m.Files {
		if f.Name == "" {
			return errors.Errorf("file with id %d has no name", f.ID)
		}
		if prev, ok := ids[f.ID]; ok {
			return errors.Errorf("files %s and %s share id %d", prev, f.Name, f.ID)
		}
		if names[f.Name] {
			return errors.Errorf("duplicate file name %s", f.Name)
		}
		ids[f.ID] = f.Name
		names[f.Name] = true
	}
	return nil
}

// DictionaryPath returns the node dictionary file of one unit.
func DictionaryPath(dir, name string) string {
	return filepath.Join(dir, name+dictSuffix)
}

// DeclarationsPath returns the declarations file of one unit.
func DeclarationsPath(dir, name string) string {
	return filepath.Join(dir, name+fileSuffix)
}

// XRefsPath returns the cross-reference file of one unit.
func XRefsPath(dir, name string) string {
	return filepath.Join(dir, name+xrefsSuffix)
}

// GlobalDefinitionsPath returns the whole-program definitions file.
func GlobalDefinitionsPath(dir string) string {
	return filepath.Join(dir, globalDefinitionsName)
}
