// Package cast defines typed views over the interned C AST records:
// types, expressions, constants, lvalues, offsets and attributes.
//
// A view is an ephemeral projection of one itable record; children are
// referenced by index into the owning dictionary, never by pointer.
// Each family is a closed sum type, decoded from a record's leading
// tag and encoded back to the identical (tags, args) shape.
package cast

import "github.com/pkg/errors"

// ErrUnknownTag indicates a record whose tag has no registered view:
// a schema mismatch between producer and consumer, fatal to linking.
var ErrUnknownTag = errors.New("unknown node tag")

// Typ is a C type node.
type Typ interface{ typ() }

// TypVoid is the void type.
type TypVoid struct {
	Attrs int
}

// TypInt is an integer type of some kind (ichar, iint, iulong, ...).
type TypInt struct {
	Kind  string
	Attrs int
}

// TypFloat is a floating point type of some kind (float, fdouble, ...).
type TypFloat struct {
	Kind  string
	Attrs int
}

// TypPtr is a pointer; Target is a type index.
type TypPtr struct {
	Target int
	Attrs  int
}

// TypArray is an array; Base is a type index, Size an expression
// index or -1 when the array is unsized.
type TypArray struct {
	Base  int
	Size  int
	Attrs int
}

// TypFun is a function type; Ret is a type index, Args a funargs
// index or -1 when the declaration carries no argument list.
type TypFun struct {
	Ret    int
	Args   int
	VarArg bool
	Attrs  int
}

// TypNamed is a typedef reference.
type TypNamed struct {
	Name  string
	Attrs int
}

// TypComp is a struct/union reference by compinfo key.  The key is
// file-local in a file dictionary and global in the whole-program
// dictionary.
type TypComp struct {
	CKey  int
	Attrs int
}

// TypEnum is an enum reference by name.
type TypEnum struct {
	Name  string
	Attrs int
}

// TypVarArgs is the builtin va_list type.
type TypVarArgs struct {
	Attrs int
}

func (TypVoid) typ()    {}
func (TypInt) typ()     {}
func (TypFloat) typ()   {}
func (TypPtr) typ()     {}
func (TypArray) typ()   {}
func (TypFun) typ()     {}
func (TypNamed) typ()   {}
func (TypComp) typ()    {}
func (TypEnum) typ()    {}
func (TypVarArgs) typ() {}

// Exp is a C expression node.
type Exp interface{ exp() }

// ExpConst wraps a constant index.
type ExpConst struct{ Const int }

// ExpLval reads an lvalue.
type ExpLval struct{ Lval int }

// ExpSizeOf is sizeof(type).
type ExpSizeOf struct{ Typ int }

// ExpSizeOfE is sizeof(expression).
type ExpSizeOfE struct{ Exp int }

// ExpSizeOfStr is sizeof of a string literal, by string index.
type ExpSizeOfStr struct{ Str int }

// ExpUnOp is a unary operation.
type ExpUnOp struct {
	Op  string
	Exp int
	Typ int
}

// ExpBinOp is a binary operation.
type ExpBinOp struct {
	Op   string
	Exp1 int
	Exp2 int
	Typ  int
}

// ExpCastE is a cast.
type ExpCastE struct {
	Typ int
	Exp int
}

// ExpAddrOf is &lval.
type ExpAddrOf struct{ Lval int }

// ExpStartOf is the decay of an array lvalue to its first element.
type ExpStartOf struct{ Lval int }

func (ExpConst) exp()     {}
func (ExpLval) exp()      {}
func (ExpSizeOf) exp()    {}
func (ExpSizeOfE) exp()   {}
func (ExpSizeOfStr) exp() {}
func (ExpUnOp) exp()      {}
func (ExpBinOp) exp()     {}
func (ExpCastE) exp()     {}
func (ExpAddrOf) exp()    {}
func (ExpStartOf) exp()   {}

// Const is a literal constant node.
type Const interface{ konst() }

// ConstInt is an integer literal; Rep is its decimal representation.
type ConstInt struct {
	Rep  string
	Kind string
}

// ConstStr is a string literal by string-table index.
type ConstStr struct{ Str int }

// ConstChr is a character literal by code point.
type ConstChr struct{ Code int }

// ConstReal is a floating literal; Rep is its source representation.
type ConstReal struct {
	Rep  string
	Kind string
}

func (ConstInt) konst()  {}
func (ConstStr) konst()  {}
func (ConstChr) konst()  {}
func (ConstReal) konst() {}

// LHost is the host of an lvalue: a variable or a dereference.
type LHost interface{ lhost() }

// LHostVar names a variable; Vid is file-local in a file dictionary
// and global in the whole-program dictionary.
type LHostVar struct {
	Name string
	Vid  int
}

// LHostMem dereferences an expression.
type LHostMem struct{ Exp int }

func (LHostVar) lhost() {}
func (LHostMem) lhost() {}

// Lval pairs a host with an offset.
type Lval struct {
	LHost  int
	Offset int
}

// Offset is a field or index path applied to an lvalue host.
type Offset interface{ offset() }

// OffsetNone terminates an offset path.
type OffsetNone struct{}

// OffsetField selects a struct field; CKey identifies the struct the
// field belongs to.
type OffsetField struct {
	Name string
	CKey int
	Next int
}

// OffsetIndex selects an array element.
type OffsetIndex struct {
	Exp  int
	Next int
}

func (OffsetNone) offset()  {}
func (OffsetField) offset() {}
func (OffsetIndex) offset() {}

// AttrParam is an argument of a type attribute.
type AttrParam interface{ attrParam() }

// AttrInt is an integer attribute parameter.
type AttrInt struct{ Value int }

// AttrStr is a string attribute parameter by string index.
type AttrStr struct{ Str int }

// AttrCons is a constructed attribute parameter with nested params.
type AttrCons struct {
	Name   string
	Params []int
}

func (AttrInt) attrParam()  {}
func (AttrStr) attrParam()  {}
func (AttrCons) attrParam() {}

// Attribute is one named attribute with attrparam indices.
type Attribute struct {
	Name   string
	Params []int
}

// Attributes is an attribute list, by attribute indices.
type Attributes struct {
	Attrs []int
}

// FunArg is one formal function argument.
type FunArg struct {
	Name string
	Typ  int
}

// FunArgs is a formal argument list, by funarg indices.
type FunArgs struct {
	Args []int
}

// DefaultPrototypeParamPrefix marks parser-invented argument names on
// function declarations without a prototype.
const DefaultPrototypeParamPrefix = "$par$"
