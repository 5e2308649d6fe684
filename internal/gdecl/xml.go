package gdecl

import (
	"encoding/xml"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/cxlink/cxlink/internal/cdecl"
	"github.com/cxlink/cxlink/internal/cdict"
	"github.com/cxlink/cxlink/internal/itable"
)

// XCompInfoName is one struct equivalence class:
// <n ckey="4" names="node,list_node"/>.
type XCompInfoName struct {
	XMLName xml.Name `xml:"n"`
	CKey    string   `xml:"ckey,attr"`
	Names   string   `xml:"names,attr"`
}

// XStorageClass is one variable equivalence class:
// <n vid="12" s="s"/>.
type XStorageClass struct {
	XMLName xml.Name `xml:"n"`
	Vid     string   `xml:"vid,attr"`
	S       string   `xml:"s,attr"`
}

type xCompInfoNames struct {
	XMLName xml.Name        `xml:"compinfo-names"`
	Nodes   []XCompInfoName `xml:"n"`
}

type xStorageClasses struct {
	XMLName xml.Name        `xml:"varinfo-storage-classes"`
	Nodes   []XStorageClass `xml:"n"`
}

// XGlobals is the persisted form of the whole-program declarations.
type XGlobals struct {
	XMLName        xml.Name `xml:"globals"`
	Dictionary     cdict.XDictionary
	Tables         []itable.XTable
	CompInfoNames  xCompInfoNames
	StorageClasses xStorageClasses
}

// UnmarshalXML dispatches child elements by name.
func (x *XGlobals) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
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
			switch t.Name.Local {
			case "dictionary":
				if err := dec.DecodeElement(&x.Dictionary, &t); err != nil {
					return err
				}
			case "compinfo-names":
				if err := dec.DecodeElement(&x.CompInfoNames, &t); err != nil {
					return err
				}
			case "varinfo-storage-classes":
				if err := dec.DecodeElement(&x.StorageClasses, &t); err != nil {
					return err
				}
			default:
				var tab itable.XTable
				if err := dec.DecodeElement(&tab, &t); err != nil {
					return err
				}
				x.Tables = append(x.Tables, tab)
			}
		case xml.EndElement:
			return nil
		}
	}
}

// ToXML snapshots the store for the global definitions file.
func (d *Declarations) ToXML() XGlobals {
	x := XGlobals{
		Dictionary: d.dict.ToXML("dictionary"),
		Tables:     d.decls.ToXML("").Tables,
	}

	gckeys := make([]int, 0, len(d.compinfoNames))
	for gckey := range d.compinfoNames {
		gckeys = append(gckeys, gckey)
	}
	sort.Ints(gckeys)
	for _, gckey := range gckeys {
		x.CompInfoNames.Nodes = append(x.CompInfoNames.Nodes, XCompInfoName{
			CKey:  strconv.Itoa(gckey),
			Names: strings.Join(sortedKeys(d.compinfoNames[gckey]), ","),
		})
	}

	gvids := make([]int, 0, len(d.storageClasses))
	for gvid := range d.storageClasses {
		gvids = append(gvids, gvid)
	}
	sort.Ints(gvids)
	for _, gvid := range gvids {
		x.StorageClasses.Nodes = append(x.StorageClasses.Nodes, XStorageClass{
			Vid: strconv.Itoa(gvid),
			S:   d.StorageClass(gvid),
		})
	}
	return x
}

// FromXML reloads a persisted store and rebuilds the derived
// registries.  Per-file key maps come from the cross-reference files,
// not from here.
func (d *Declarations) FromXML(x XGlobals) error {
	if err := d.dict.FromXML(x.Dictionary); err != nil {
		return err
	}
	if err := d.decls.FromXML(cdecl.XDeclarations{Tables: x.Tables}); err != nil {
		return err
	}

	for _, n := range x.CompInfoNames.Nodes {
		gckey, err := strconv.Atoi(n.CKey)
		if err != nil {
			return errors.Wrap(err, "compinfo-names: malformed ckey")
		}
		for _, name := range strings.Split(n.Names, ",") {
			d.addCompInfoName(gckey, name)
		}
	}
	for _, n := range x.StorageClasses.Nodes {
		gvid, err := strconv.Atoi(n.Vid)
		if err != nil {
			return errors.Wrap(err, "varinfo-storage-classes: malformed vid")
		}
		for _, letter := range strings.Split(n.S, "") {
			d.addStorageClass(gvid, letter)
		}
	}

	// Field signatures are derivable from the records.
	compinfos, err := d.decls.CompInfos()
	if err != nil {
		return err
	}
	for _, c := range compinfos {
		sig, err := d.decls.FieldSignature(c)
		if err != nil {
			return err
		}
		d.registerFieldString(sig, c.CKey)
	}
	return nil
}
