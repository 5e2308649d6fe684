package cdict

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/cxlink/cxlink/internal/cast"
)

// Import methods re-intern a node rooted in another dictionary into
// this one, post-order.  Struct keys and variable ids are translated
// through the destination's resolver; everything else is structural.
// Substitution maps, where accepted, map a source vid to a source
// expression index that replaces reads of that variable.

func (d *Dictionary) importAttrsRef(src *Dictionary, attrs int) (int, error) {
	if attrs < 0 || d.stripAttrs {
		return -1, nil
	}
	return d.ImportAttributes(src, attrs)
}

// ImportTyp re-interns the type at ix in src.
func (d *Dictionary) ImportTyp(src *Dictionary, ix int) (int, error) {
	t, err := src.Typ(ix)
	if err != nil {
		return 0, errors.Wrapf(err, "import typ %d from file %d", ix, src.fid)
	}
	switch t := t.(type) {
	case cast.TypVoid:
		a, err := d.importAttrsRef(src, t.Attrs)
		if err != nil {
			return 0, err
		}
		return d.PutTyp(cast.TypVoid{Attrs: a}), nil
	case cast.TypInt:
		a, err := d.importAttrsRef(src, t.Attrs)
		if err != nil {
			return 0, err
		}
		return d.PutTyp(cast.TypInt{Kind: t.Kind, Attrs: a}), nil
	case cast.TypFloat:
		a, err := d.importAttrsRef(src, t.Attrs)
		if err != nil {
			return 0, err
		}
		return d.PutTyp(cast.TypFloat{Kind: t.Kind, Attrs: a}), nil
	case cast.TypPtr:
		target, err := d.ImportTyp(src, t.Target)
		if err != nil {
			return 0, err
		}
		a, err := d.importAttrsRef(src, t.Attrs)
		if err != nil {
			return 0, err
		}
		return d.PutTyp(cast.TypPtr{Target: target, Attrs: a}), nil
	case cast.TypArray:
		base, err := d.ImportTyp(src, t.Base)
		if err != nil {
			return 0, err
		}
		size := -1
		if t.Size >= 0 {
			size, err = d.ImportExp(src, t.Size, nil)
			if err != nil {
				return 0, err
			}
		}
		a, err := d.importAttrsRef(src, t.Attrs)
		if err != nil {
			return 0, err
		}
		return d.PutTyp(cast.TypArray{Base: base, Size: size, Attrs: a}), nil
	case cast.TypFun:
		ret, err := d.ImportTyp(src, t.Ret)
		if err != nil {
			return 0, err
		}
		args := -1
		if t.Args >= 0 {
			args, err = d.ImportFunArgs(src, t.Args)
			if err != nil {
				return 0, err
			}
		}
		a, err := d.importAttrsRef(src, t.Attrs)
		if err != nil {
			return 0, err
		}
		return d.PutTyp(cast.TypFun{Ret: ret, Args: args, VarArg: t.VarArg, Attrs: a}), nil
	case cast.TypNamed:
		a, err := d.importAttrsRef(src, t.Attrs)
		if err != nil {
			return 0, err
		}
		return d.PutTyp(cast.TypNamed{Name: t.Name, Attrs: a}), nil
	case cast.TypComp:
		ckey, err := d.resolver.CompKey(src.fid, t.CKey)
		if err != nil {
			return 0, err
		}
		a, err := d.importAttrsRef(src, t.Attrs)
		if err != nil {
			return 0, err
		}
		if glog.V(2) {
			glog.Infof("import tcomp: file %d key %d -> file %d key %d", src.fid, t.CKey, d.fid, ckey)
		}
		return d.PutTyp(cast.TypComp{CKey: ckey, Attrs: a}), nil
	case cast.TypEnum:
		a, err := d.importAttrsRef(src, t.Attrs)
		if err != nil {
			return 0, err
		}
		return d.PutTyp(cast.TypEnum{Name: t.Name, Attrs: a}), nil
	case cast.TypVarArgs:
		a, err := d.importAttrsRef(src, t.Attrs)
		if err != nil {
			return 0, err
		}
		return d.PutTyp(cast.TypVarArgs{Attrs: a}), nil
	}
	return 0, errors.Wrapf(cast.ErrUnknownTag, "import typ %d from file %d", ix, src.fid)
}

// ImportExp re-interns the expression at ix in src.  When subst maps
// the vid of a plain variable read, the mapped source expression is
// imported in its place.
func (d *Dictionary) ImportExp(src *Dictionary, ix int, subst map[int]int) (int, error) {
	e, err := src.Exp(ix)
	if err != nil {
		return 0, errors.Wrapf(err, "import exp %d from file %d", ix, src.fid)
	}
	switch e := e.(type) {
	case cast.ExpConst:
		c, err := d.ImportConstant(src, e.Const)
		if err != nil {
			return 0, err
		}
		return d.PutExp(cast.ExpConst{Const: c}), nil
	case cast.ExpLval:
		if rix, ok, err := d.substituted(src, e.Lval, subst); err != nil {
			return 0, err
		} else if ok {
			return rix, nil
		}
		l, err := d.ImportLval(src, e.Lval, subst)
		if err != nil {
			return 0, err
		}
		return d.PutExp(cast.ExpLval{Lval: l}), nil
	case cast.ExpSizeOf:
		t, err := d.ImportTyp(src, e.Typ)
		if err != nil {
			return 0, err
		}
		return d.PutExp(cast.ExpSizeOf{Typ: t}), nil
	case cast.ExpSizeOfE:
		sub, err := d.ImportExp(src, e.Exp, subst)
		if err != nil {
			return 0, err
		}
		return d.PutExp(cast.ExpSizeOfE{Exp: sub}), nil
	case cast.ExpSizeOfStr:
		s, err := src.String(e.Str)
		if err != nil {
			return 0, err
		}
		return d.PutExp(cast.ExpSizeOfStr{Str: d.PutString(s)}), nil
	case cast.ExpUnOp:
		sub, err := d.ImportExp(src, e.Exp, subst)
		if err != nil {
			return 0, err
		}
		t, err := d.ImportTyp(src, e.Typ)
		if err != nil {
			return 0, err
		}
		return d.PutExp(cast.ExpUnOp{Op: e.Op, Exp: sub, Typ: t}), nil
	case cast.ExpBinOp:
		e1, err := d.ImportExp(src, e.Exp1, subst)
		if err != nil {
			return 0, err
		}
		e2, err := d.ImportExp(src, e.Exp2, subst)
		if err != nil {
			return 0, err
		}
		t, err := d.ImportTyp(src, e.Typ)
		if err != nil {
			return 0, err
		}
		return d.PutExp(cast.ExpBinOp{Op: e.Op, Exp1: e1, Exp2: e2, Typ: t}), nil
	case cast.ExpCastE:
		t, err := d.ImportTyp(src, e.Typ)
		if err != nil {
			return 0, err
		}
		sub, err := d.ImportExp(src, e.Exp, subst)
		if err != nil {
			return 0, err
		}
		return d.PutExp(cast.ExpCastE{Typ: t, Exp: sub}), nil
	case cast.ExpAddrOf:
		l, err := d.ImportLval(src, e.Lval, subst)
		if err != nil {
			return 0, err
		}
		return d.PutExp(cast.ExpAddrOf{Lval: l}), nil
	case cast.ExpStartOf:
		l, err := d.ImportLval(src, e.Lval, subst)
		if err != nil {
			return 0, err
		}
		return d.PutExp(cast.ExpStartOf{Lval: l}), nil
	}
	return 0, errors.Wrapf(cast.ErrUnknownTag, "import exp %d from file %d", ix, src.fid)
}

// substituted recognizes a plain read of a substituted variable: a
// var host with an empty offset whose vid is mapped.  The replacement
// is imported with the mapping for that vid removed, so a replacement
// mentioning the variable itself cannot recurse.
func (d *Dictionary) substituted(src *Dictionary, lvalIx int, subst map[int]int) (int, bool, error) {
	if len(subst) == 0 {
		return 0, false, nil
	}
	lv, err := src.Lval(lvalIx)
	if err != nil {
		return 0, false, err
	}
	h, err := src.LHost(lv.LHost)
	if err != nil {
		return 0, false, err
	}
	v, ok := h.(cast.LHostVar)
	if !ok {
		return 0, false, nil
	}
	rix, ok := subst[v.Vid]
	if !ok {
		return 0, false, nil
	}
	o, err := src.Offset(lv.Offset)
	if err != nil {
		return 0, false, err
	}
	if _, none := o.(cast.OffsetNone); !none {
		return 0, false, nil
	}
	rest := make(map[int]int, len(subst)-1)
	for vid, eix := range subst {
		if vid != v.Vid {
			rest[vid] = eix
		}
	}
	got, err := d.ImportExp(src, rix, rest)
	if err != nil {
		return 0, false, err
	}
	return got, true, nil
}

// ImportConstant re-interns the constant at ix in src.
func (d *Dictionary) ImportConstant(src *Dictionary, ix int) (int, error) {
	c, err := src.Constant(ix)
	if err != nil {
		return 0, errors.Wrapf(err, "import constant %d from file %d", ix, src.fid)
	}
	switch c := c.(type) {
	case cast.ConstStr:
		s, err := src.String(c.Str)
		if err != nil {
			return 0, err
		}
		return d.PutConstant(cast.ConstStr{Str: d.PutString(s)}), nil
	default:
		return d.PutConstant(c), nil
	}
}

// ImportLval re-interns the lvalue at ix in src.
func (d *Dictionary) ImportLval(src *Dictionary, ix int, subst map[int]int) (int, error) {
	lv, err := src.Lval(ix)
	if err != nil {
		return cdictErr(err, "lval", ix, src)
	}
	h, err := d.ImportLHost(src, lv.LHost, subst)
	if err != nil {
		return 0, err
	}
	o, err := d.ImportOffset(src, lv.Offset, subst)
	if err != nil {
		return 0, err
	}
	return d.PutLval(cast.Lval{LHost: h, Offset: o}), nil
}

// ImportLHost re-interns the lvalue host at ix in src, translating
// variable ids through the resolver.
func (d *Dictionary) ImportLHost(src *Dictionary, ix int, subst map[int]int) (int, error) {
	h, err := src.LHost(ix)
	if err != nil {
		return cdictErr(err, "lhost", ix, src)
	}
	switch h := h.(type) {
	case cast.LHostVar:
		vid, err := d.resolver.VarID(src.fid, h.Vid)
		if err != nil {
			return 0, err
		}
		return d.PutLHost(cast.LHostVar{Name: h.Name, Vid: vid}), nil
	case cast.LHostMem:
		e, err := d.ImportExp(src, h.Exp, subst)
		if err != nil {
			return 0, err
		}
		return d.PutLHost(cast.LHostMem{Exp: e}), nil
	}
	return 0, errors.Wrapf(cast.ErrUnknownTag, "import lhost %d from file %d", ix, src.fid)
}

// ImportOffset re-interns the offset at ix in src, translating field
// struct keys through the resolver.
func (d *Dictionary) ImportOffset(src *Dictionary, ix int, subst map[int]int) (int, error) {
	o, err := src.Offset(ix)
	if err != nil {
		return cdictErr(err, "offset", ix, src)
	}
	switch o := o.(type) {
	case cast.OffsetNone:
		return d.PutOffset(cast.OffsetNone{}), nil
	case cast.OffsetField:
		ckey, err := d.resolver.CompKey(src.fid, o.CKey)
		if err != nil {
			return 0, err
		}
		next, err := d.ImportOffset(src, o.Next, subst)
		if err != nil {
			return 0, err
		}
		return d.PutOffset(cast.OffsetField{Name: o.Name, CKey: ckey, Next: next}), nil
	case cast.OffsetIndex:
		e, err := d.ImportExp(src, o.Exp, subst)
		if err != nil {
			return 0, err
		}
		next, err := d.ImportOffset(src, o.Next, subst)
		if err != nil {
			return 0, err
		}
		return d.PutOffset(cast.OffsetIndex{Exp: e, Next: next}), nil
	}
	return 0, errors.Wrapf(cast.ErrUnknownTag, "import offset %d from file %d", ix, src.fid)
}

// ImportAttrParam re-interns the attribute parameter at ix in src.
func (d *Dictionary) ImportAttrParam(src *Dictionary, ix int) (int, error) {
	p, err := src.AttrParam(ix)
	if err != nil {
		return cdictErr(err, "attrparam", ix, src)
	}
	switch p := p.(type) {
	case cast.AttrInt:
		return d.PutAttrParam(p), nil
	case cast.AttrStr:
		s, err := src.String(p.Str)
		if err != nil {
			return 0, err
		}
		return d.PutAttrParam(cast.AttrStr{Str: d.PutString(s)}), nil
	case cast.AttrCons:
		params, err := d.importAttrParams(src, p.Params)
		if err != nil {
			return 0, err
		}
		return d.PutAttrParam(cast.AttrCons{Name: p.Name, Params: params}), nil
	}
	return 0, errors.Wrapf(cast.ErrUnknownTag, "import attrparam %d from file %d", ix, src.fid)
}

func (d *Dictionary) importAttrParams(src *Dictionary, ixs []int) ([]int, error) {
	out := make([]int, len(ixs))
	for i, pix := range ixs {
		np, err := d.ImportAttrParam(src, pix)
		if err != nil {
			return nil, err
		}
		out[i] = np
	}
	return out, nil
}

// ImportAttribute re-interns the attribute at ix in src.
func (d *Dictionary) ImportAttribute(src *Dictionary, ix int) (int, error) {
	a, err := src.Attribute(ix)
	if err != nil {
		return cdictErr(err, "attribute", ix, src)
	}
	params, err := d.importAttrParams(src, a.Params)
	if err != nil {
		return 0, err
	}
	return d.PutAttribute(cast.Attribute{Name: a.Name, Params: params}), nil
}

// ImportAttributes re-interns the attribute list at ix in src.
func (d *Dictionary) ImportAttributes(src *Dictionary, ix int) (int, error) {
	a, err := src.Attributes(ix)
	if err != nil {
		return cdictErr(err, "attributes", ix, src)
	}
	attrs := make([]int, len(a.Attrs))
	for i, aix := range a.Attrs {
		na, err := d.ImportAttribute(src, aix)
		if err != nil {
			return 0, err
		}
		attrs[i] = na
	}
	return d.PutAttributes(cast.Attributes{Attrs: attrs}), nil
}

// ImportFunArg re-interns the formal argument at ix in src.
func (d *Dictionary) ImportFunArg(src *Dictionary, ix int) (int, error) {
	a, err := src.FunArg(ix)
	if err != nil {
		return cdictErr(err, "funarg", ix, src)
	}
	t, err := d.ImportTyp(src, a.Typ)
	if err != nil {
		return 0, err
	}
	return d.PutFunArg(cast.FunArg{Name: a.Name, Typ: t}), nil
}

// ImportFunArgs re-interns the formal argument list at ix in src.
func (d *Dictionary) ImportFunArgs(src *Dictionary, ix int) (int, error) {
	a, err := src.FunArgs(ix)
	if err != nil {
		return cdictErr(err, "funargs", ix, src)
	}
	args := make([]int, len(a.Args))
	for i, aix := range a.Args {
		na, err := d.ImportFunArg(src, aix)
		if err != nil {
			return 0, err
		}
		args[i] = na
	}
	return d.PutFunArgs(cast.FunArgs{Args: args}), nil
}

// ImportString re-interns a string from src.
func (d *Dictionary) ImportString(src *Dictionary, ix int) (int, error) {
	s, err := src.String(ix)
	if err != nil {
		return 0, errors.Wrapf(err, "import string %d from file %d", ix, src.fid)
	}
	return d.PutString(s), nil
}

func cdictErr(err error, family string, ix int, src *Dictionary) (int, error) {
	return 0, errors.Wrapf(err, "import %s %d from file %d", family, ix, src.fid)
}
