// Package itable implements the structurally keyed, append-only tables
// that back every dictionary in the linker.  A record is a list of
// string tags and a list of integer args; two records with the same
// tags and args always share one index (hash-consing).
//
// Tables support two-phase insertion (Reserve then CommitReserved) for
// self-referential records, and a single checkpoint that can roll back
// every insertion made after it.  Both are used exclusively by the
// struct unification engine.
package itable

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when an index was never committed to a
// table, or was rolled back.
var ErrNotFound = errors.New("index not found")

// Key is the structural identity of a record: the comma-joined tags
// and args.  The comma is the join character, so tags must not
// contain commas.
type Key struct {
	Tags string
	Args string
}

// MakeKey joins tags and args into a Key.
func MakeKey(tags []string, args []int) Key {
	sargs := make([]string, len(args))
	for i, a := range args {
		sargs[i] = strconv.Itoa(a)
	}
	return Key{strings.Join(tags, ","), strings.Join(sargs, ",")}
}

// Value is one interned record.
type Value struct {
	Index int
	Tags  []string
	Args  []int
}

// Key returns the structural key of the record.
func (v Value) Key() Key {
	return MakeKey(v.Tags, v.Args)
}

// Table assigns stable indices to records keyed by their structure.
// Indices start at 1 and are never reused for a different shape.
type Table struct {
	Name string

	keytable   map[Key]int
	indextable map[int]Value
	next       int
	reserved   map[int]bool
	checkpoint int // 0 when no checkpoint is set
}

// New creates an empty table.
func New(name string) *Table {
	t := &Table{Name: name}
	t.Reset()
	return t
}

// Reset discards all contents.
func (t *Table) Reset() {
	t.keytable = make(map[Key]int)
	t.indextable = make(map[int]Value)
	t.next = 1
	t.reserved = make(map[int]bool)
	t.checkpoint = 0
}

// Size returns the number of indices assigned so far, including
// uncommitted reservations.
func (t *Table) Size() int {
	return t.next - 1
}

// Add returns the index of the record with the given tags and args,
// inserting it if it was not seen before.
func (t *Table) Add(tags []string, args []int) int {
	key := MakeKey(tags, args)
	if ix, ok := t.keytable[key]; ok {
		return ix
	}
	ix := t.next
	t.next++
	t.keytable[key] = ix
	t.indextable[ix] = Value{Index: ix, Tags: tags, Args: args}
	return ix
}

// Reserve allocates an index whose content is not yet known.  The
// index is not retrievable until CommitReserved fills it.
func (t *Table) Reserve() int {
	ix := t.next
	t.next++
	t.reserved[ix] = true
	return ix
}

// CommitReserved fills a previously reserved slot.  The index is
// unchanged, so references handed out by Reserve remain valid.
func (t *Table) CommitReserved(ix int, tags []string, args []int) error {
	if !t.reserved[ix] {
		return errors.Errorf("%s: commit of nonexisting reservation %d", t.Name, ix)
	}
	t.keytable[MakeKey(tags, args)] = ix
	t.indextable[ix] = Value{Index: ix, Tags: tags, Args: args}
	delete(t.reserved, ix)
	return nil
}

// SetCheckpoint marks the current state for a later rollback.  Only
// one checkpoint may be outstanding at a time.
func (t *Table) SetCheckpoint() (int, error) {
	if t.checkpoint != 0 {
		return 0, errors.Errorf("%s: checkpoint already set at %d", t.Name, t.checkpoint)
	}
	t.checkpoint = t.next
	return t.next, nil
}

// ResetToCheckpoint removes every record added since the checkpoint
// was set and returns the first invalidated index.  Reservations made
// after the checkpoint are discarded; reservations made before it
// survive.
func (t *Table) ResetToCheckpoint() (int, error) {
	if t.checkpoint == 0 {
		return 0, errors.Errorf("%s: cannot reset non-existent checkpoint", t.Name)
	}
	cp := t.checkpoint
	for i := cp; i < t.next; i++ {
		delete(t.indextable, i)
		delete(t.reserved, i)
	}
	for k, ix := range t.keytable {
		if ix >= cp {
			delete(t.keytable, k)
		}
	}
	t.checkpoint = 0
	t.next = cp
	return cp, nil
}

// RemoveCheckpoint accepts the speculative region.
func (t *Table) RemoveCheckpoint() {
	t.checkpoint = 0
}

// Retrieve returns the record at ix.  Uncommitted reservations and
// rolled-back indices yield ErrNotFound.
func (t *Table) Retrieve(ix int) (Value, error) {
	v, ok := t.indextable[ix]
	if !ok {
		return Value{}, errors.Wrapf(ErrNotFound, "%s: item %d (size %d)", t.Name, ix, t.Size())
	}
	return v, nil
}

// RetrieveByKey returns all committed records whose key satisfies
// pred, in index order.
func (t *Table) RetrieveByKey(pred func(Key) bool) []Value {
	var result []Value
	for k, ix := range t.keytable {
		if pred(k) {
			result = append(result, t.indextable[ix])
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result
}

// Values returns all committed records in index order.
func (t *Table) Values() []Value {
	result := make([]Value, 0, len(t.indextable))
	for _, v := range t.indextable {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result
}
