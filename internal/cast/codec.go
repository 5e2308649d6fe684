package cast

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/cxlink/cxlink/internal/itable"
)

// Node tags, as persisted.  The attribute-list argument is appended to
// a node's args only when the node carries attributes; decoding infers
// its presence from the argument count.
const (
	TagVoid    = "tvoid"
	TagInt     = "tint"
	TagFloat   = "tfloat"
	TagPtr     = "tptr"
	TagArray   = "tarray"
	TagFun     = "tfun"
	TagNamed   = "tnamed"
	TagComp    = "tcomp"
	TagEnum    = "tenum"
	TagVarArgs = "tbuiltinvaargs"
)

func withAttrs(args []int, attrs int) []int {
	if attrs < 0 {
		return args
	}
	return append(args, attrs)
}

func attrsAt(args []int, n int) int {
	if len(args) > n {
		return args[n]
	}
	return -1
}

// checkShape guards decoding of a persisted record against truncated
// tag or argument lists.
func checkShape(v itable.Value, family string, tags, args int) error {
	if len(v.Tags) < tags || len(v.Args) < args {
		return errors.Errorf("malformed %s record %d: tags %v args %v", family, v.Index, v.Tags, v.Args)
	}
	return nil
}

// EncodeTyp renders a type view to its record shape.
func EncodeTyp(t Typ) (tags []string, args []int) {
	switch t := t.(type) {
	case TypVoid:
		return []string{TagVoid}, withAttrs(nil, t.Attrs)
	case TypInt:
		return []string{TagInt, t.Kind}, withAttrs(nil, t.Attrs)
	case TypFloat:
		return []string{TagFloat, t.Kind}, withAttrs(nil, t.Attrs)
	case TypPtr:
		return []string{TagPtr}, withAttrs([]int{t.Target}, t.Attrs)
	case TypArray:
		return []string{TagArray}, withAttrs([]int{t.Base, t.Size}, t.Attrs)
	case TypFun:
		vararg := 0
		if t.VarArg {
			vararg = 1
		}
		return []string{TagFun}, withAttrs([]int{t.Ret, t.Args, vararg}, t.Attrs)
	case TypNamed:
		return []string{TagNamed, t.Name}, withAttrs(nil, t.Attrs)
	case TypComp:
		return []string{TagComp}, withAttrs([]int{t.CKey}, t.Attrs)
	case TypEnum:
		return []string{TagEnum, t.Name}, withAttrs(nil, t.Attrs)
	case TypVarArgs:
		return []string{TagVarArgs}, withAttrs(nil, t.Attrs)
	}
	panic("unexpected typ variant")
}

// DecodeTyp reconstructs a type view from its record.
func DecodeTyp(v itable.Value) (Typ, error) {
	if len(v.Tags) == 0 {
		return nil, errors.Wrapf(ErrUnknownTag, "typ %d has no tags", v.Index)
	}
	if err := checkTagShape(v, "typ", typShapes); err != nil {
		return nil, err
	}
	switch v.Tags[0] {
	case TagVoid:
		return TypVoid{Attrs: attrsAt(v.Args, 0)}, nil
	case TagInt:
		return TypInt{Kind: v.Tags[1], Attrs: attrsAt(v.Args, 0)}, nil
	case TagFloat:
		return TypFloat{Kind: v.Tags[1], Attrs: attrsAt(v.Args, 0)}, nil
	case TagPtr:
		return TypPtr{Target: v.Args[0], Attrs: attrsAt(v.Args, 1)}, nil
	case TagArray:
		return TypArray{Base: v.Args[0], Size: v.Args[1], Attrs: attrsAt(v.Args, 2)}, nil
	case TagFun:
		return TypFun{
			Ret:    v.Args[0],
			Args:   v.Args[1],
			VarArg: v.Args[2] == 1,
			Attrs:  attrsAt(v.Args, 3),
		}, nil
	case TagNamed:
		return TypNamed{Name: v.Tags[1], Attrs: attrsAt(v.Args, 0)}, nil
	case TagComp:
		return TypComp{CKey: v.Args[0], Attrs: attrsAt(v.Args, 1)}, nil
	case TagEnum:
		return TypEnum{Name: v.Tags[1], Attrs: attrsAt(v.Args, 0)}, nil
	}
	return TypVarArgs{Attrs: attrsAt(v.Args, 0)}, nil
}

// shape is the minimum tag and arg count a record needs per leading
// tag; the optional attribute-list argument comes on top.
type shape struct {
	tags int
	args int
}

var typShapes = map[string]shape{
	TagVoid:    {1, 0},
	TagInt:     {2, 0},
	TagFloat:   {2, 0},
	TagPtr:     {1, 1},
	TagArray:   {1, 2},
	TagFun:     {1, 3},
	TagNamed:   {2, 0},
	TagComp:    {1, 1},
	TagEnum:    {2, 0},
	TagVarArgs: {1, 0},
}

var expShapes = map[string]shape{
	"const":     {1, 1},
	"lval":      {1, 1},
	"sizeof":    {1, 1},
	"sizeofe":   {1, 1},
	"sizeofstr": {1, 1},
	"unop":      {2, 2},
	"binop":     {2, 3},
	"caste":     {1, 2},
	"addrof":    {1, 1},
	"startof":   {1, 1},
}

var constShapes = map[string]shape{
	"int":  {3, 0},
	"str":  {1, 1},
	"chr":  {1, 1},
	"real": {3, 0},
}

var lhostShapes = map[string]shape{
	"var": {2, 1},
	"mem": {1, 1},
}

var offsetShapes = map[string]shape{
	"n": {1, 0},
	"f": {2, 2},
	"i": {1, 2},
}

var attrParamShapes = map[string]shape{
	"aint":  {1, 1},
	"astr":  {1, 1},
	"acons": {2, 0},
}

// checkTagShape rejects unknown leading tags and truncated records.
func checkTagShape(v itable.Value, family string, shapes map[string]shape) error {
	want, ok := shapes[v.Tags[0]]
	if !ok {
		return errors.Wrapf(ErrUnknownTag, "%s %d: %q", family, v.Index, v.Tags[0])
	}
	return checkShape(v, family, want.tags, want.args)
}

// StripAttrs returns t without its attribute reference.
func StripAttrs(t Typ) Typ {
	switch t := t.(type) {
	case TypVoid:
		t.Attrs = -1
		return t
	case TypInt:
		t.Attrs = -1
		return t
	case TypFloat:
		t.Attrs = -1
		return t
	case TypPtr:
		t.Attrs = -1
		return t
	case TypArray:
		t.Attrs = -1
		return t
	case TypFun:
		t.Attrs = -1
		return t
	case TypNamed:
		t.Attrs = -1
		return t
	case TypComp:
		t.Attrs = -1
		return t
	case TypEnum:
		t.Attrs = -1
		return t
	case TypVarArgs:
		t.Attrs = -1
		return t
	}
	panic("unexpected typ variant")
}

// EncodeExp renders an expression view to its record shape.
func EncodeExp(e Exp) (tags []string, args []int) {
	switch e := e.(type) {
	case ExpConst:
		return []string{"const"}, []int{e.Const}
	case ExpLval:
		return []string{"lval"}, []int{e.Lval}
	case ExpSizeOf:
		return []string{"sizeof"}, []int{e.Typ}
	case ExpSizeOfE:
		return []string{"sizeofe"}, []int{e.Exp}
	case ExpSizeOfStr:
		return []string{"sizeofstr"}, []int{e.Str}
	case ExpUnOp:
		return []string{"unop", e.Op}, []int{e.Exp, e.Typ}
	case ExpBinOp:
		return []string{"binop", e.Op}, []int{e.Exp1, e.Exp2, e.Typ}
	case ExpCastE:
		return []string{"caste"}, []int{e.Typ, e.Exp}
	case ExpAddrOf:
		return []string{"addrof"}, []int{e.Lval}
	case ExpStartOf:
		return []string{"startof"}, []int{e.Lval}
	}
	panic("unexpected exp variant")
}

// DecodeExp reconstructs an expression view from its record.
func DecodeExp(v itable.Value) (Exp, error) {
	if len(v.Tags) == 0 {
		return nil, errors.Wrapf(ErrUnknownTag, "exp %d has no tags", v.Index)
	}
	if err := checkTagShape(v, "exp", expShapes); err != nil {
		return nil, err
	}
	switch v.Tags[0] {
	case "const":
		return ExpConst{Const: v.Args[0]}, nil
	case "lval":
		return ExpLval{Lval: v.Args[0]}, nil
	case "sizeof":
		return ExpSizeOf{Typ: v.Args[0]}, nil
	case "sizeofe":
		return ExpSizeOfE{Exp: v.Args[0]}, nil
	case "sizeofstr":
		return ExpSizeOfStr{Str: v.Args[0]}, nil
	case "unop":
		return ExpUnOp{Op: v.Tags[1], Exp: v.Args[0], Typ: v.Args[1]}, nil
	case "binop":
		return ExpBinOp{Op: v.Tags[1], Exp1: v.Args[0], Exp2: v.Args[1], Typ: v.Args[2]}, nil
	case "caste":
		return ExpCastE{Typ: v.Args[0], Exp: v.Args[1]}, nil
	case "addrof":
		return ExpAddrOf{Lval: v.Args[0]}, nil
	case "startof":
		return ExpStartOf{Lval: v.Args[0]}, nil
	}
	return nil, errors.Wrapf(ErrUnknownTag, "exp %d: %q", v.Index, v.Tags[0])
}

// EncodeConst renders a constant view to its record shape.
func EncodeConst(c Const) (tags []string, args []int) {
	switch c := c.(type) {
	case ConstInt:
		return []string{"int", c.Rep, c.Kind}, nil
	case ConstStr:
		return []string{"str"}, []int{c.Str}
	case ConstChr:
		return []string{"chr"}, []int{c.Code}
	case ConstReal:
		return []string{"real", c.Rep, c.Kind}, nil
	}
	panic("unexpected const variant")
}

// DecodeConst reconstructs a constant view from its record.
func DecodeConst(v itable.Value) (Const, error) {
	if len(v.Tags) == 0 {
		return nil, errors.Wrapf(ErrUnknownTag, "constant %d has no tags", v.Index)
	}
	if err := checkTagShape(v, "constant", constShapes); err != nil {
		return nil, err
	}
	switch v.Tags[0] {
	case "int":
		return ConstInt{Rep: v.Tags[1], Kind: v.Tags[2]}, nil
	case "str":
		return ConstStr{Str: v.Args[0]}, nil
	case "chr":
		return ConstChr{Code: v.Args[0]}, nil
	case "real":
		return ConstReal{Rep: v.Tags[1], Kind: v.Tags[2]}, nil
	}
	return nil, errors.Wrapf(ErrUnknownTag, "constant %d: %q", v.Index, v.Tags[0])
}

// EncodeLHost renders an lvalue host view to its record shape.
func EncodeLHost(h LHost) (tags []string, args []int) {
	switch h := h.(type) {
	case LHostVar:
		return []string{"var", h.Name}, []int{h.Vid}
	case LHostMem:
		return []string{"mem"}, []int{h.Exp}
	}
	panic("unexpected lhost variant")
}

// DecodeLHost reconstructs an lvalue host view from its record.
func DecodeLHost(v itable.Value) (LHost, error) {
	if len(v.Tags) == 0 {
		return nil, errors.Wrapf(ErrUnknownTag, "lhost %d has no tags", v.Index)
	}
	if err := checkTagShape(v, "lhost", lhostShapes); err != nil {
		return nil, err
	}
	switch v.Tags[0] {
	case "var":
		return LHostVar{Name: v.Tags[1], Vid: v.Args[0]}, nil
	case "mem":
		return LHostMem{Exp: v.Args[0]}, nil
	}
	return nil, errors.Wrapf(ErrUnknownTag, "lhost %d: %q", v.Index, v.Tags[0])
}

// EncodeLval renders an lvalue view to its record shape.
func EncodeLval(l Lval) (tags []string, args []int) {
	return nil, []int{l.LHost, l.Offset}
}

// DecodeLval reconstructs an lvalue view from its record.
func DecodeLval(v itable.Value) (Lval, error) {
	if len(v.Args) < 2 {
		return Lval{}, errors.Errorf("lval %d: expected 2 args, got %d", v.Index, len(v.Args))
	}
	return Lval{LHost: v.Args[0], Offset: v.Args[1]}, nil
}

// EncodeOffset renders an offset view to its record shape.
func EncodeOffset(o Offset) (tags []string, args []int) {
	switch o := o.(type) {
	case OffsetNone:
		return []string{"n"}, nil
	case OffsetField:
		return []string{"f", o.Name}, []int{o.CKey, o.Next}
	case OffsetIndex:
		return []string{"i"}, []int{o.Exp, o.Next}
	}
	panic("unexpected offset variant")
}

// DecodeOffset reconstructs an offset view from its record.
func DecodeOffset(v itable.Value) (Offset, error) {
	if len(v.Tags) == 0 {
		return nil, errors.Wrapf(ErrUnknownTag, "offset %d has no tags", v.Index)
	}
	if err := checkTagShape(v, "offset", offsetShapes); err != nil {
		return nil, err
	}
	switch v.Tags[0] {
	case "n":
		return OffsetNone{}, nil
	case "f":
		return OffsetField{Name: v.Tags[1], CKey: v.Args[0], Next: v.Args[1]}, nil
	case "i":
		return OffsetIndex{Exp: v.Args[0], Next: v.Args[1]}, nil
	}
	return nil, errors.Wrapf(ErrUnknownTag, "offset %d: %q", v.Index, v.Tags[0])
}

// EncodeAttrParam renders an attribute parameter to its record shape.
func EncodeAttrParam(p AttrParam) (tags []string, args []int) {
	switch p := p.(type) {
	case AttrInt:
		return []string{"aint"}, []int{p.Value}
	case AttrStr:
		return []string{"astr"}, []int{p.Str}
	case AttrCons:
		return []string{"acons", p.Name}, p.Params
	}
	panic("unexpected attrparam variant")
}

// DecodeAttrParam reconstructs an attribute parameter from its record.
func DecodeAttrParam(v itable.Value) (AttrParam, error) {
	if len(v.Tags) == 0 {
		return nil, errors.Wrapf(ErrUnknownTag, "attrparam %d has no tags", v.Index)
	}
	if err := checkTagShape(v, "attrparam", attrParamShapes); err != nil {
		return nil, err
	}
	switch v.Tags[0] {
	case "aint":
		return AttrInt{Value: v.Args[0]}, nil
	case "astr":
		return AttrStr{Str: v.Args[0]}, nil
	case "acons":
		return AttrCons{Name: v.Tags[1], Params: v.Args}, nil
	}
	return nil, errors.Wrapf(ErrUnknownTag, "attrparam %d: %q", v.Index, v.Tags[0])
}

// EncodeAttribute renders an attribute to its record shape.
func EncodeAttribute(a Attribute) (tags []string, args []int) {
	return []string{a.Name}, a.Params
}

// DecodeAttribute reconstructs an attribute from its record.
func DecodeAttribute(v itable.Value) (Attribute, error) {
	if len(v.Tags) == 0 {
		return Attribute{}, errors.Wrapf(ErrUnknownTag, "attribute %d has no tags", v.Index)
	}
	return Attribute{Name: v.Tags[0], Params: v.Args}, nil
}

// EncodeAttributes renders an attribute list to its record shape.
func EncodeAttributes(a Attributes) (tags []string, args []int) {
	return nil, a.Attrs
}

// DecodeAttributes reconstructs an attribute list from its record.
func DecodeAttributes(v itable.Value) (Attributes, error) {
	return Attributes{Attrs: v.Args}, nil
}

// EncodeFunArg renders a formal argument to its record shape.
func EncodeFunArg(a FunArg) (tags []string, args []int) {
	return []string{a.Name}, []int{a.Typ}
}

// DecodeFunArg reconstructs a formal argument from its record.
func DecodeFunArg(v itable.Value) (FunArg, error) {
	if len(v.Tags) == 0 || len(v.Args) == 0 {
		return FunArg{}, errors.Errorf("funarg %d: malformed record", v.Index)
	}
	return FunArg{Name: v.Tags[0], Typ: v.Args[0]}, nil
}

// EncodeFunArgs renders a formal argument list to its record shape.
func EncodeFunArgs(a FunArgs) (tags []string, args []int) {
	return nil, a.Args
}

// DecodeFunArgs reconstructs a formal argument list from its record.
func DecodeFunArgs(v itable.Value) (FunArgs, error) {
	return FunArgs{Args: v.Args}, nil
}

// TypString gives a compact rendering of a type for log messages.
func TypString(t Typ) string {
	switch t := t.(type) {
	case TypVoid:
		return "void"
	case TypInt:
		return t.Kind
	case TypFloat:
		return t.Kind
	case TypPtr:
		return "ptr(" + strconv.Itoa(t.Target) + ")"
	case TypArray:
		return "array(" + strconv.Itoa(t.Base) + ")"
	case TypFun:
		return "fun(" + strconv.Itoa(t.Ret) + ")"
	case TypNamed:
		return t.Name
	case TypComp:
		return "comp(" + strconv.Itoa(t.CKey) + ")"
	case TypEnum:
		return "enum " + t.Name
	case TypVarArgs:
		return "va_list"
	}
	return "?"
}
