package itable

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// XNode is the persisted form of one interned record:
// <n ix="3" tags="tint,ichar" args="1,2"/>.  Empty tag or arg lists
// omit the attribute.
type XNode struct {
	XMLName xml.Name `xml:"n"`
	Index   string   `xml:"ix,attr"`
	Tags    string   `xml:"tags,attr,omitempty"`
	Args    string   `xml:"args,attr,omitempty"`
}

// XTable is a sequence of persisted records; the element name is the
// table name and is set by the caller.
type XTable struct {
	XMLName xml.Name
	Nodes   []XNode `xml:"n"`
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func splitArgs(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	args := make([]int, len(parts))
	for i, p := range parts {
		a, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed args list %q", s)
		}
		args[i] = a
	}
	return args, nil
}

// ToXML snapshots the committed records for serialization.
func (t *Table) ToXML() XTable {
	x := XTable{XMLName: xml.Name{Local: t.Name}}
	for _, v := range t.Values() {
		key := v.Key()
		x.Nodes = append(x.Nodes, XNode{
			Index: strconv.Itoa(v.Index),
			Tags:  key.Tags,
			Args:  key.Args,
		})
	}
	return x
}

// FromXML loads persisted records, preserving their indices.  The
// next index is bumped past the largest one read.
func (t *Table) FromXML(x XTable) error {
	for _, n := range x.Nodes {
		if n.Index == "" {
			return errors.Errorf("%s: node missing ix attribute", t.Name)
		}
		ix, err := strconv.Atoi(n.Index)
		if err != nil {
			return errors.Wrapf(err, "%s: malformed ix attribute", t.Name)
		}
		args, err := splitArgs(n.Args)
		if err != nil {
			return errors.Wrapf(err, "%s: node %d", t.Name, ix)
		}
		tags := splitTags(n.Tags)
		t.keytable[Key{n.Tags, n.Args}] = ix
		t.indextable[ix] = Value{Index: ix, Tags: tags, Args: args}
		if ix >= t.next {
			t.next = ix + 1
		}
	}
	return nil
}
