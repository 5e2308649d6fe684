package cdecl

import (
	"encoding/xml"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/cxlink/cxlink/internal/itable"
)

// Declarations is one file's (or the whole program's) store of
// declaration records.  The location table is carried verbatim:
// linking never inspects source locations, but persisted files keep
// them.
type Declarations struct {
	compinfoTable   *itable.Table
	fieldinfoTable  *itable.Table
	initinfoTable   *itable.Table
	offsetInitTable *itable.Table
	varinfoTable    *itable.Table
	locationTable   *itable.Table
}

// NewDeclarations creates an empty store.
func NewDeclarations() *Declarations {
	return &Declarations{
		compinfoTable:   itable.New("compinfo-table"),
		fieldinfoTable:  itable.New("fieldinfo-table"),
		initinfoTable:   itable.New("initinfo-table"),
		offsetInitTable: itable.New("offset-init-table"),
		varinfoTable:    itable.New("varinfo-table"),
		locationTable:   itable.New("location-table"),
	}
}

func (ds *Declarations) tables() []*itable.Table {
	return []*itable.Table{
		ds.compinfoTable,
		ds.fieldinfoTable,
		ds.initinfoTable,
		ds.offsetInitTable,
		ds.varinfoTable,
		ds.locationTable,
	}
}

// CompInfoTable exposes the struct table for checkpointing and
// reservation during unification.
func (ds *Declarations) CompInfoTable() *itable.Table { return ds.compinfoTable }

// AddCompInfo interns a struct definition record.
func (ds *Declarations) AddCompInfo(c CompInfo) int {
	tags, args := EncodeCompInfo(c)
	return ds.compinfoTable.Add(tags, args)
}

// CompInfo returns the struct definition at ix.
func (ds *Declarations) CompInfo(ix int) (CompInfo, error) {
	v, err := ds.compinfoTable.Retrieve(ix)
	if err != nil {
		return CompInfo{}, err
	}
	return DecodeCompInfo(v)
}

// CompInfos returns all struct definitions in index order.
func (ds *Declarations) CompInfos() ([]CompInfo, error) {
	values := ds.compinfoTable.Values()
	out := make([]CompInfo, 0, len(values))
	for _, v := range values {
		c, err := DecodeCompInfo(v)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CompInfoByKey returns the struct definition with the given key.
func (ds *Declarations) CompInfoByKey(ckey int) (CompInfo, error) {
	all, err := ds.CompInfos()
	if err != nil {
		return CompInfo{}, err
	}
	for _, c := range all {
		if c.CKey == ckey {
			return c, nil
		}
	}
	return CompInfo{}, errors.Errorf("no compinfo with key %d", ckey)
}

// AddFieldInfo interns a field record.
func (ds *Declarations) AddFieldInfo(f FieldInfo) int {
	tags, args := EncodeFieldInfo(f)
	return ds.fieldinfoTable.Add(tags, args)
}

// FieldInfo returns the field record at ix.
func (ds *Declarations) FieldInfo(ix int) (FieldInfo, error) {
	v, err := ds.fieldinfoTable.Retrieve(ix)
	if err != nil {
		return FieldInfo{}, err
	}
	return DecodeFieldInfo(v)
}

// AddVarInfo interns a variable declaration record.
func (ds *Declarations) AddVarInfo(vi VarInfo) int {
	tags, args := EncodeVarInfo(vi)
	return ds.varinfoTable.Add(tags, args)
}

// VarInfo returns the variable declaration at ix.
func (ds *Declarations) VarInfo(ix int) (VarInfo, error) {
	v, err := ds.varinfoTable.Retrieve(ix)
	if err != nil {
		return VarInfo{}, err
	}
	return DecodeVarInfo(v)
}

// VarInfos returns all variable declarations in index order.
func (ds *Declarations) VarInfos() ([]VarInfo, error) {
	values := ds.varinfoTable.Values()
	out := make([]VarInfo, 0, len(values))
	for _, v := range values {
		vi, err := DecodeVarInfo(v)
		if err != nil {
			return nil, err
		}
		out = append(out, vi)
	}
	return out, nil
}

// VarInfoByVid returns the variable declaration with the given vid.
func (ds *Declarations) VarInfoByVid(vid int) (VarInfo, error) {
	all, err := ds.VarInfos()
	if err != nil {
		return VarInfo{}, err
	}
	for _, vi := range all {
		if vi.Vid == vid {
			return vi, nil
		}
	}
	return VarInfo{}, errors.Errorf("no varinfo with vid %d", vid)
}

// VarInfosByName returns the variable declarations matching a name
// predicate, in index order.  Unification uses it to enumerate
// prototype candidates.
func (ds *Declarations) VarInfosByName(match func(string) bool) ([]VarInfo, error) {
	values := ds.varinfoTable.RetrieveByKey(func(k itable.Key) bool {
		name, _, _ := strings.Cut(k.Tags, ",")
		return match(name)
	})
	out := make([]VarInfo, 0, len(values))
	for _, v := range values {
		vi, err := DecodeVarInfo(v)
		if err != nil {
			return nil, err
		}
		out = append(out, vi)
	}
	return out, nil
}

// AddInitInfo interns an initializer record.
func (ds *Declarations) AddInitInfo(ii InitInfo) int {
	tags, args := EncodeInitInfo(ii)
	return ds.initinfoTable.Add(tags, args)
}

// InitInfo returns the initializer at ix.
func (ds *Declarations) InitInfo(ix int) (InitInfo, error) {
	v, err := ds.initinfoTable.Retrieve(ix)
	if err != nil {
		return InitInfo{}, err
	}
	return DecodeInitInfo(v)
}

// AddOffsetInit interns an offset-initializer pair.
func (ds *Declarations) AddOffsetInit(oi OffsetInit) int {
	tags, args := EncodeOffsetInit(oi)
	return ds.offsetInitTable.Add(tags, args)
}

// OffsetInit returns the offset-initializer pair at ix.
func (ds *Declarations) OffsetInit(ix int) (OffsetInit, error) {
	v, err := ds.offsetInitTable.Retrieve(ix)
	if err != nil {
		return OffsetInit{}, err
	}
	return DecodeOffsetInit(v)
}

// FieldSignature renders the colon-joined field names of a struct.
// Structs with different signatures can never unify, so the signature
// serves as a cheap pre-filter before structural comparison.
func (ds *Declarations) FieldSignature(c CompInfo) (string, error) {
	names := make([]string, len(c.Fields))
	for i, fix := range c.Fields {
		f, err := ds.FieldInfo(fix)
		if err != nil {
			return "", errors.Wrapf(err, "signature of compinfo %d", c.Index)
		}
		names[i] = f.Name
	}
	return strings.Join(names, ":"), nil
}

// XDeclarations is the persisted form of a declarations store.
type XDeclarations struct {
	XMLName xml.Name
	Tables  []itable.XTable
}

// UnmarshalXML reads child tables by element name.
func (x *XDeclarations) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	x.XMLName = start.Name
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var tab itable.XTable
			if err := dec.DecodeElement(&tab, &t); err != nil {
				return err
			}
			x.Tables = append(x.Tables, tab)
		case xml.EndElement:
			return nil
		}
	}
}

// ToXML snapshots every table under the given element name.
func (ds *Declarations) ToXML(elem string) XDeclarations {
	x := XDeclarations{XMLName: xml.Name{Local: elem}}
	for _, t := range ds.tables() {
		x.Tables = append(x.Tables, t.ToXML())
	}
	return x
}

// FromXML loads a persisted store; every table must be present.
func (ds *Declarations) FromXML(x XDeclarations) error {
	byName := make(map[string]itable.XTable, len(x.Tables))
	for _, tab := range x.Tables {
		byName[tab.XMLName.Local] = tab
	}
	for _, t := range ds.tables() {
		raw, ok := byName[t.Name]
		if !ok {
			return errors.Errorf("declarations: missing %s", t.Name)
		}
		if err := t.FromXML(raw); err != nil {
			return errors.Wrap(err, "declarations")
		}
	}
	return nil
}

// GlobalVarInfos returns the file-visible variable declarations,
// sorted by vid.
func (ds *Declarations) GlobalVarInfos() ([]VarInfo, error) {
	all, err := ds.VarInfos()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, vi := range all {
		if vi.Glob {
			out = append(out, vi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Vid < out[j].Vid })
	return out, nil
}
