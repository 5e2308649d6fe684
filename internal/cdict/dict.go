// Package cdict implements the node dictionary: the per-file and
// whole-program stores of interned AST nodes.  A dictionary owns one
// itable per node family plus a string table, exposes typed accessors
// that project records into cast views, and re-interns nodes imported
// from another dictionary, translating struct keys and variable ids
// through a KeyResolver as they cross file boundaries.
package cdict

import (
	"fmt"
	"strings"

	"github.com/golang/groupcache/lru"

	"github.com/cxlink/cxlink/internal/cast"
	"github.com/cxlink/cxlink/internal/itable"
)

// GlobalFileID marks the whole-program dictionary in log messages and
// resolver calls.
const GlobalFileID = -1

// typMemoSize bounds the decoded-type memo.  Types are the hottest
// accessor during unification; everything else decodes on demand.
const typMemoSize = 512

// KeyResolver translates struct keys and variable ids that cross a
// file boundary during indexing.  The per-file resolver consults the
// index manager; the whole-program resolver delegates to the global
// declarations, which may conjecture a key for a struct it has not
// finished.
type KeyResolver interface {
	CompKey(srcFid, ckey int) (int, error)
	VarID(srcFid, vid int) (int, error)
}

// identityResolver serves a dictionary whose references never leave
// their own numbering (single-file programs, freshly parsed files).
type identityResolver struct{}

func (identityResolver) CompKey(_, ckey int) (int, error) { return ckey, nil }
func (identityResolver) VarID(_, vid int) (int, error)    { return vid, nil }

// Dictionary is one interned node store.
type Dictionary struct {
	fid      int
	resolver KeyResolver

	// The whole-program dictionary strips attributes and normalizes
	// formal argument names so that prototypes hash structurally.
	stripAttrs    bool
	renameFunArgs bool

	attrParamTable  *itable.Table
	attributeTable  *itable.Table
	attributesTable *itable.Table
	constantTable   *itable.Table
	expTable        *itable.Table
	funargTable     *itable.Table
	funargsTable    *itable.Table
	lhostTable      *itable.Table
	lvalTable       *itable.Table
	offsetTable     *itable.Table
	typTable        *itable.Table
	typsigTable     *itable.Table
	typsiglistTable *itable.Table
	stringTable     *itable.StringTable

	typMemo *lru.Cache
}

func newDictionary() *Dictionary {
	return &Dictionary{
		resolver:        identityResolver{},
		attrParamTable:  itable.New("attrparam-table"),
		attributeTable:  itable.New("attribute-table"),
		attributesTable: itable.New("attributes-table"),
		constantTable:   itable.New("constant-table"),
		expTable:        itable.New("exp-table"),
		funargTable:     itable.New("funarg-table"),
		funargsTable:    itable.New("funargs-table"),
		lhostTable:      itable.New("lhost-table"),
		lvalTable:       itable.New("lval-table"),
		offsetTable:     itable.New("offset-table"),
		typTable:        itable.New("typ-table"),
		typsigTable:     itable.New("typsig-table"),
		typsiglistTable: itable.New("typsiglist-table"),
		stringTable:     itable.NewStringTable("string-table"),
		typMemo:         lru.New(typMemoSize),
	}
}

// NewFileDictionary creates the dictionary of one translation unit.
// The resolver may be nil when the file's references never need
// cross-file translation.
func NewFileDictionary(fid int, resolver KeyResolver) *Dictionary {
	d := newDictionary()
	d.fid = fid
	if resolver != nil {
		d.resolver = resolver
	}
	return d
}

// NewGlobalDictionary creates the whole-program dictionary.  All
// struct keys and variable ids indexed through it are translated by
// the given resolver, and attributes are dropped on import.
func NewGlobalDictionary(resolver KeyResolver) *Dictionary {
	d := newDictionary()
	d.fid = GlobalFileID
	d.resolver = resolver
	d.stripAttrs = true
	d.renameFunArgs = true
	return d
}

// FileID returns the owning file's id, or GlobalFileID.
func (d *Dictionary) FileID() int { return d.fid }

func (d *Dictionary) tables() []*itable.Table {
	return []*itable.Table{
		d.attrParamTable,
		d.attributeTable,
		d.attributesTable,
		d.constantTable,
		d.expTable,
		d.funargTable,
		d.funargsTable,
		d.lhostTable,
		d.lvalTable,
		d.offsetTable,
		d.typTable,
		d.typsigTable,
		d.typsiglistTable,
	}
}

// ---- typed accessors --------------------------------------------------

// Typ returns the type view at ix.
func (d *Dictionary) Typ(ix int) (cast.Typ, error) {
	if t, ok := d.typMemo.Get(ix); ok {
		return t.(cast.Typ), nil
	}
	v, err := d.typTable.Retrieve(ix)
	if err != nil {
		return nil, err
	}
	t, err := cast.DecodeTyp(v)
	if err != nil {
		return nil, err
	}
	d.typMemo.Add(ix, t)
	return t, nil
}

// Exp returns the expression view at ix.
func (d *Dictionary) Exp(ix int) (cast.Exp, error) {
	v, err := d.expTable.Retrieve(ix)
	if err != nil {
		return nil, err
	}
	return cast.DecodeExp(v)
}

// Constant returns the constant view at ix.
func (d *Dictionary) Constant(ix int) (cast.Const, error) {
	v, err := d.constantTable.Retrieve(ix)
	if err != nil {
		return nil, err
	}
	return cast.DecodeConst(v)
}

// LHost returns the lvalue-host view at ix.
func (d *Dictionary) LHost(ix int) (cast.LHost, error) {
	v, err := d.lhostTable.Retrieve(ix)
	if err != nil {
		return nil, err
	}
	return cast.DecodeLHost(v)
}

// Lval returns the lvalue view at ix.
func (d *Dictionary) Lval(ix int) (cast.Lval, error) {
	v, err := d.lvalTable.Retrieve(ix)
	if err != nil {
		return cast.Lval{}, err
	}
	return cast.DecodeLval(v)
}

// Offset returns the offset view at ix.
func (d *Dictionary) Offset(ix int) (cast.Offset, error) {
	v, err := d.offsetTable.Retrieve(ix)
	if err != nil {
		return nil, err
	}
	return cast.DecodeOffset(v)
}

// AttrParam returns the attribute-parameter view at ix.
func (d *Dictionary) AttrParam(ix int) (cast.AttrParam, error) {
	v, err := d.attrParamTable.Retrieve(ix)
	if err != nil {
		return nil, err
	}
	return cast.DecodeAttrParam(v)
}

// Attribute returns the attribute view at ix.
func (d *Dictionary) Attribute(ix int) (cast.Attribute, error) {
	v, err := d.attributeTable.Retrieve(ix)
	if err != nil {
		return cast.Attribute{}, err
	}
	return cast.DecodeAttribute(v)
}

// Attributes returns the attribute-list view at ix.
func (d *Dictionary) Attributes(ix int) (cast.Attributes, error) {
	v, err := d.attributesTable.Retrieve(ix)
	if err != nil {
		return cast.Attributes{}, err
	}
	return cast.DecodeAttributes(v)
}

// FunArg returns the formal-argument view at ix.
func (d *Dictionary) FunArg(ix int) (cast.FunArg, error) {
	v, err := d.funargTable.Retrieve(ix)
	if err != nil {
		return cast.FunArg{}, err
	}
	return cast.DecodeFunArg(v)
}

// FunArgs returns the formal-argument-list view at ix.
func (d *Dictionary) FunArgs(ix int) (cast.FunArgs, error) {
	v, err := d.funargsTable.Retrieve(ix)
	if err != nil {
		return cast.FunArgs{}, err
	}
	return cast.DecodeFunArgs(v)
}

// String returns the interned string at ix.
func (d *Dictionary) String(ix int) (string, error) {
	return d.stringTable.Retrieve(ix)
}

// ---- typed interning --------------------------------------------------

// PutTyp interns a type view whose children are already indexed in
// this dictionary.
func (d *Dictionary) PutTyp(t cast.Typ) int {
	tags, args := cast.EncodeTyp(t)
	return d.typTable.Add(tags, args)
}

// PutExp interns an expression view.
func (d *Dictionary) PutExp(e cast.Exp) int {
	tags, args := cast.EncodeExp(e)
	return d.expTable.Add(tags, args)
}

// PutConstant interns a constant view.
func (d *Dictionary) PutConstant(c cast.Const) int {
	tags, args := cast.EncodeConst(c)
	return d.constantTable.Add(tags, args)
}

// PutLHost interns an lvalue-host view.
func (d *Dictionary) PutLHost(h cast.LHost) int {
	tags, args := cast.EncodeLHost(h)
	return d.lhostTable.Add(tags, args)
}

// PutLval interns an lvalue view.
func (d *Dictionary) PutLval(l cast.Lval) int {
	tags, args := cast.EncodeLval(l)
	return d.lvalTable.Add(tags, args)
}

// PutOffset interns an offset view.
func (d *Dictionary) PutOffset(o cast.Offset) int {
	tags, args := cast.EncodeOffset(o)
	return d.offsetTable.Add(tags, args)
}

// PutAttrParam interns an attribute-parameter view.
func (d *Dictionary) PutAttrParam(p cast.AttrParam) int {
	tags, args := cast.EncodeAttrParam(p)
	return d.attrParamTable.Add(tags, args)
}

// PutAttribute interns an attribute view.
func (d *Dictionary) PutAttribute(a cast.Attribute) int {
	tags, args := cast.EncodeAttribute(a)
	return d.attributeTable.Add(tags, args)
}

// PutAttributes interns an attribute-list view.
func (d *Dictionary) PutAttributes(a cast.Attributes) int {
	tags, args := cast.EncodeAttributes(a)
	return d.attributesTable.Add(tags, args)
}

// PutFunArg interns a formal-argument view.
func (d *Dictionary) PutFunArg(a cast.FunArg) int {
	if d.renameFunArgs {
		a.Name = "arg"
	}
	tags, args := cast.EncodeFunArg(a)
	return d.funargTable.Add(tags, args)
}

// PutFunArgs interns a formal-argument-list view.
func (d *Dictionary) PutFunArgs(a cast.FunArgs) int {
	tags, args := cast.EncodeFunArgs(a)
	return d.funargsTable.Add(tags, args)
}

// PutString interns a string.
func (d *Dictionary) PutString(s string) int {
	return d.stringTable.Add(s)
}

// VarToExp interns the expression reading the named variable, the
// shape substituted for parameter references.
func (d *Dictionary) VarToExp(name string, vid int) int {
	lhost := d.PutLHost(cast.LHostVar{Name: name, Vid: vid})
	offset := d.PutOffset(cast.OffsetNone{})
	lval := d.PutLval(cast.Lval{LHost: lhost, Offset: offset})
	return d.PutExp(cast.ExpLval{Lval: lval})
}

// IsDefaultPrototype reports whether t is a function declaration
// without a real argument list: either no list at all, or one whose
// names were all invented by the parser.
func (d *Dictionary) IsDefaultPrototype(t cast.TypFun) (bool, error) {
	if t.Args < 0 {
		return true, nil
	}
	fa, err := d.FunArgs(t.Args)
	if err != nil {
		return false, err
	}
	if len(fa.Args) == 0 {
		return false, nil
	}
	for _, aix := range fa.Args {
		arg, err := d.FunArg(aix)
		if err != nil {
			return false, err
		}
		if !strings.HasPrefix(arg.Name, cast.DefaultPrototypeParamPrefix) {
			return false, nil
		}
	}
	return true, nil
}

// Stats renders per-table sizes for debug logging.
func (d *Dictionary) Stats() string {
	var b strings.Builder
	for _, t := range d.tables() {
		if t.Size() > 0 {
			fmt.Fprintf(&b, "%s: %d\n", t.Name, t.Size())
		}
	}
	return b.String()
}
