package itable

import (
	"encoding/hex"
	"encoding/xml"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// StringTable interns byte strings the same way Table interns
// structural records.  Strings containing bytes outside the printable
// ASCII range are hex-escaped when persisted.
type StringTable struct {
	Name string

	stringtable map[string]int
	indextable  map[int]string
	next        int
}

// NewStringTable creates an empty string table.
func NewStringTable(name string) *StringTable {
	t := &StringTable{Name: name}
	t.Reset()
	return t
}

// Reset discards all contents.
func (t *StringTable) Reset() {
	t.stringtable = make(map[string]int)
	t.indextable = make(map[int]string)
	t.next = 1
}

// Size returns the number of distinct strings interned.
func (t *StringTable) Size() int {
	return t.next - 1
}

// Add returns the index of s, inserting it if new.
func (t *StringTable) Add(s string) int {
	if ix, ok := t.stringtable[s]; ok {
		return ix
	}
	ix := t.next
	t.next++
	t.stringtable[s] = ix
	t.indextable[ix] = s
	return ix
}

// Retrieve returns the string at ix.
func (t *StringTable) Retrieve(ix int) (string, error) {
	s, ok := t.indextable[ix]
	if !ok {
		return "", errors.Wrapf(ErrNotFound, "%s: item %d (size %d)", t.Name, ix, t.Size())
	}
	return s, nil
}

func needsEscape(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 32 || s[i] > 126 {
			return true
		}
	}
	return false
}

// XString is the persisted form of one string:
// <n ix="2" v="hello"/> or <n ix="3" hex="yes" v="0a0a"/>.
type XString struct {
	XMLName xml.Name `xml:"n"`
	Index   string   `xml:"ix,attr"`
	Hex     string   `xml:"hex,attr,omitempty"`
	Value   string   `xml:"v,attr"`
}

// XStringTable is the persisted form of a string table.
type XStringTable struct {
	XMLName xml.Name
	Nodes   []XString `xml:"n"`
}

// ToXML snapshots the table for serialization.
func (t *StringTable) ToXML() XStringTable {
	x := XStringTable{XMLName: xml.Name{Local: t.Name}}
	indices := make([]int, 0, len(t.indextable))
	for ix := range t.indextable {
		indices = append(indices, ix)
	}
	sort.Ints(indices)
	for _, ix := range indices {
		s := t.indextable[ix]
		n := XString{Index: strconv.Itoa(ix), Value: s}
		if needsEscape(s) {
			n.Hex = "yes"
			n.Value = hex.EncodeToString([]byte(s))
		}
		x.Nodes = append(x.Nodes, n)
	}
	return x
}

// FromXML loads persisted strings, preserving their indices.
func (t *StringTable) FromXML(x XStringTable) error {
	for _, n := range x.Nodes {
		if n.Index == "" {
			return errors.Errorf("%s: node missing ix attribute", t.Name)
		}
		ix, err := strconv.Atoi(n.Index)
		if err != nil {
			return errors.Wrapf(err, "%s: malformed ix attribute", t.Name)
		}
		s := n.Value
		if n.Hex == "yes" {
			b, err := hex.DecodeString(n.Value)
			if err != nil {
				return errors.Wrapf(err, "%s: node %d: malformed hex string", t.Name, ix)
			}
			s = string(b)
		}
		t.stringtable[s] = ix
		t.indextable[ix] = s
		if ix >= t.next {
			t.next = ix + 1
		}
	}
	return nil
}
