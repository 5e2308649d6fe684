package cdecl

import (
	"sort"

	"github.com/cxlink/cxlink/internal/cdict"
)

// File bundles one translation unit: its id and name from the target
// manifest, its node dictionary and its declarations.
type File struct {
	ID    int
	Name  string
	Dict  *cdict.Dictionary
	Decls *Declarations
}

// NewFile creates an empty translation unit with its own dictionary
// and declarations store.
func NewFile(id int, name string) *File {
	return &File{
		ID:    id,
		Name:  name,
		Dict:  cdict.NewFileDictionary(id, nil),
		Decls: NewDeclarations(),
	}
}

// CompInfos returns the file's struct definitions sorted by key, the
// order unification visits them in.
func (f *File) CompInfos() ([]CompInfo, error) {
	all, err := f.Decls.CompInfos()
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CKey < all[j].CKey })
	return all, nil
}

// GlobalVarInfos returns the file-visible variable declarations
// sorted by vid.
func (f *File) GlobalVarInfos() ([]VarInfo, error) {
	return f.Decls.GlobalVarInfos()
}

// GlobalVarDefinitions returns the file-visible declarations that
// define their variable in this file.
func (f *File) GlobalVarDefinitions() ([]VarInfo, error) {
	all, err := f.Decls.GlobalVarInfos()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, vi := range all {
		if vi.IsDefinition() {
			out = append(out, vi)
		}
	}
	return out, nil
}
