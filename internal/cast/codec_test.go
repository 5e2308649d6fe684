package cast

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/cxlink/cxlink/internal/itable"
)

func TestTypAttrsPresenceInferred(t *testing.T) {
	// A pointer with attributes carries a trailing attrs arg; one
	// without omits it.  Decoding must tell them apart.
	tags, args := EncodeTyp(TypPtr{Target: 3, Attrs: -1})
	if len(args) != 1 {
		t.Errorf("attr-free pointer encoded with args %v", args)
	}
	got, err := DecodeTyp(itable.Value{Index: 1, Tags: tags, Args: args})
	if err != nil {
		t.Fatal(err)
	}
	if got.(TypPtr).Attrs != -1 {
		t.Errorf("decoded phantom attrs: %+v", got)
	}

	tags, args = EncodeTyp(TypPtr{Target: 3, Attrs: 9})
	got, err = DecodeTyp(itable.Value{Index: 2, Tags: tags, Args: args})
	if err != nil {
		t.Fatal(err)
	}
	if got.(TypPtr).Attrs != 9 {
		t.Errorf("lost attrs: %+v", got)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := DecodeTyp(itable.Value{Index: 7, Tags: []string{"tquux"}})
	if !errors.Is(err, ErrUnknownTag) {
		t.Errorf("DecodeTyp = %v, want ErrUnknownTag", err)
	}
	_, err = DecodeExp(itable.Value{Index: 7, Tags: []string{"await"}})
	if !errors.Is(err, ErrUnknownTag) {
		t.Errorf("DecodeExp = %v, want ErrUnknownTag", err)
	}
}

func TestDecodeTruncatedRecords(t *testing.T) {
	// Truncated persisted records must decode to an error, never
	// index out of range.
	if _, err := DecodeTyp(itable.Value{Index: 1, Tags: []string{"tint"}}); err == nil {
		t.Error("tint without kind tag decoded")
	}
	if _, err := DecodeTyp(itable.Value{Index: 2, Tags: []string{"tptr"}}); err == nil {
		t.Error("tptr without target decoded")
	}
	if _, err := DecodeTyp(itable.Value{Index: 3, Tags: []string{"tfun"}, Args: []int{1}}); err == nil {
		t.Error("tfun with one arg decoded")
	}
	if _, err := DecodeExp(itable.Value{Index: 4, Tags: []string{"binop", "plusa"}, Args: []int{1, 2}}); err == nil {
		t.Error("binop with two args decoded")
	}
	if _, err := DecodeExp(itable.Value{Index: 5, Tags: []string{"unop"}, Args: []int{1, 2}}); err == nil {
		t.Error("unop without operator tag decoded")
	}
	if _, err := DecodeConst(itable.Value{Index: 6, Tags: []string{"int"}}); err == nil {
		t.Error("int constant without representation decoded")
	}
	if _, err := DecodeLHost(itable.Value{Index: 7, Tags: []string{"var", "x"}}); err == nil {
		t.Error("var host without vid decoded")
	}
	if _, err := DecodeOffset(itable.Value{Index: 8, Tags: []string{"f", "next"}, Args: []int{1}}); err == nil {
		t.Error("field offset with one arg decoded")
	}
	if _, err := DecodeAttrParam(itable.Value{Index: 9, Tags: []string{"acons"}}); err == nil {
		t.Error("acons without name tag decoded")
	}
}

func TestStripAttrs(t *testing.T) {
	for _, typ := range []Typ{
		TypVoid{Attrs: 4},
		TypInt{Kind: "iint", Attrs: 4},
		TypFun{Ret: 1, Args: -1, Attrs: 4},
		TypComp{CKey: 12, Attrs: 4},
	} {
		stripped := StripAttrs(typ)
		_, args := EncodeTyp(stripped)
		if n := len(args); n > 0 && args[n-1] == 4 {
			t.Errorf("StripAttrs(%+v) kept attrs: %v", typ, args)
		}
	}
}
