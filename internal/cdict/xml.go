package cdict

import (
	"encoding/xml"
	"io"

	"github.com/pkg/errors"

	"github.com/cxlink/cxlink/internal/itable"
)

const stringTableName = "string-table"

// XDictionary is the persisted form of a dictionary: one child element
// per node table, named after the table, plus the string table.
type XDictionary struct {
	XMLName xml.Name
	Tables  []itable.XTable
	Strings itable.XStringTable
}

// UnmarshalXML dispatches child elements by name: the string table to
// its own decoder, everything else as a generic node table.
func (x *XDictionary) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
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
			if t.Name.Local == stringTableName {
				if err := dec.DecodeElement(&x.Strings, &t); err != nil {
					return err
				}
			} else {
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

// ToXML snapshots every table, empty ones included, under the given
// element name.
func (d *Dictionary) ToXML(elem string) XDictionary {
	x := XDictionary{XMLName: xml.Name{Local: elem}}
	for _, t := range d.tables() {
		x.Tables = append(x.Tables, t.ToXML())
	}
	x.Strings = d.stringTable.ToXML()
	return x
}

// FromXML loads a persisted dictionary.  Every node table must be
// present; unrecognized tables are ignored.
func (d *Dictionary) FromXML(x XDictionary) error {
	byName := make(map[string]itable.XTable, len(x.Tables))
	for _, tab := range x.Tables {
		byName[tab.XMLName.Local] = tab
	}
	for _, t := range d.tables() {
		raw, ok := byName[t.Name]
		if !ok {
			return errors.Errorf("dictionary file %d: missing %s", d.fid, t.Name)
		}
		if err := t.FromXML(raw); err != nil {
			return errors.Wrapf(err, "dictionary file %d", d.fid)
		}
	}
	if err := d.stringTable.FromXML(x.Strings); err != nil {
		return errors.Wrapf(err, "dictionary file %d", d.fid)
	}
	return nil
}
