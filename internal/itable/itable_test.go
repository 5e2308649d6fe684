package itable

import (
	"encoding/xml"
	"testing"

	"github.com/pkg/errors"

	"github.com/cxlink/cxlink/internal/testutil"
)

func TestAddIsIdempotent(t *testing.T) {
	tbl := New("typ-table")

	ix1 := tbl.Add([]string{"tint", "ichar"}, nil)
	ix2 := tbl.Add([]string{"tptr"}, []int{ix1})

	if ix1 == ix2 {
		t.Errorf("distinct shapes share index %d", ix1)
	}

	size := tbl.Size()
	if ix := tbl.Add([]string{"tint", "ichar"}, nil); ix != ix1 {
		t.Errorf("re-add returned %d, want %d", ix, ix1)
	}
	if tbl.Size() != size {
		t.Errorf("re-add grew table from %d to %d", size, tbl.Size())
	}
}

func TestRetrieveUnknown(t *testing.T) {
	tbl := New("exp-table")
	_, err := tbl.Retrieve(42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Retrieve(42) = %v, want ErrNotFound", err)
	}
}

func TestReserveCommit(t *testing.T) {
	tbl := New("compinfo-table")

	other := tbl.Add([]string{"?"}, []int{-1, 1, -1})
	ix := tbl.Reserve()

	// The reservation occupies its index but is not yet retrievable.
	if _, err := tbl.Retrieve(ix); !errors.Is(err, ErrNotFound) {
		t.Errorf("Retrieve of uncommitted reservation = %v, want ErrNotFound", err)
	}
	if tbl.Size() != 2 {
		t.Errorf("Size = %d, want 2", tbl.Size())
	}

	testutil.FatalIfErr(t, tbl.CommitReserved(ix, []string{"?"}, []int{-1, 0, -1, 7}))

	v, err := tbl.Retrieve(ix)
	testutil.FatalIfErr(t, err)
	if v.Index != ix {
		t.Errorf("committed index changed: %d -> %d", ix, v.Index)
	}
	if v.Args[3] != 7 {
		t.Errorf("committed args lost: %v", v.Args)
	}
	if _, err := tbl.Retrieve(other); err != nil {
		t.Errorf("unrelated record lost: %v", err)
	}

	if err := tbl.CommitReserved(99, nil, nil); err == nil {
		t.Error("commit of unknown reservation succeeded")
	}
}

func TestCheckpointRollback(t *testing.T) {
	tbl := New("compinfo-table")
	kept := tbl.Add([]string{"?"}, []int{-1, 1, -1})

	mark, err := tbl.SetCheckpoint()
	testutil.FatalIfErr(t, err)

	if _, err := tbl.SetCheckpoint(); err == nil {
		t.Error("second SetCheckpoint succeeded")
	}

	var added []int
	for i := 0; i < 5; i++ {
		added = append(added, tbl.Add([]string{"?"}, []int{-1, 1, -1, i}))
	}

	got, err := tbl.ResetToCheckpoint()
	testutil.FatalIfErr(t, err)
	if got != mark {
		t.Errorf("ResetToCheckpoint = %d, want %d", got, mark)
	}
	if tbl.Size() != mark-1 {
		t.Errorf("Size after rollback = %d, want %d", tbl.Size(), mark-1)
	}
	for _, ix := range added {
		if _, err := tbl.Retrieve(ix); !errors.Is(err, ErrNotFound) {
			t.Errorf("rolled-back index %d still retrievable", ix)
		}
	}
	if _, err := tbl.Retrieve(kept); err != nil {
		t.Errorf("record below checkpoint lost: %v", err)
	}

	// Rolled-back shapes must re-intern at fresh indices without
	// colliding with stale keys.
	ix := tbl.Add([]string{"?"}, []int{-1, 1, -1, 0})
	if ix != mark {
		t.Errorf("first index after rollback = %d, want %d", ix, mark)
	}
}

func TestReservationBelowCheckpointSurvivesRollback(t *testing.T) {
	tbl := New("compinfo-table")
	res := tbl.Reserve()

	_, err := tbl.SetCheckpoint()
	testutil.FatalIfErr(t, err)
	tbl.Add([]string{"?"}, []int{-1, 1, -1})
	_, err = tbl.ResetToCheckpoint()
	testutil.FatalIfErr(t, err)

	testutil.FatalIfErr(t, tbl.CommitReserved(res, []string{"?"}, []int{-1, 1, -1, 3}))
	v, err := tbl.Retrieve(res)
	testutil.FatalIfErr(t, err)
	if v.Index != res {
		t.Errorf("reservation index changed across rollback: %d -> %d", res, v.Index)
	}
}

func TestRetrieveByKey(t *testing.T) {
	tbl := New("varinfo-table")
	tbl.Add([]string{"open"}, []int{-1, 3})
	want := tbl.Add([]string{"openfile"}, []int{-1, 4})

	got := tbl.RetrieveByKey(func(k Key) bool { return k.Tags == "openfile" })
	if len(got) != 1 || got[0].Index != want {
		t.Errorf("RetrieveByKey = %v, want single index %d", got, want)
	}
}

func TestTableXMLRoundTrip(t *testing.T) {
	tbl := New("offset-table")
	tbl.Add([]string{"n"}, nil)
	tbl.Add([]string{"f", "next"}, []int{1, 1})
	tbl.Add([]string{"i"}, []int{4, 1})

	b, err := xml.Marshal(tbl.ToXML())
	testutil.FatalIfErr(t, err)

	var x XTable
	testutil.FatalIfErr(t, xml.Unmarshal(b, &x))
	loaded := New("offset-table")
	testutil.FatalIfErr(t, loaded.FromXML(x))

	testutil.ExpectNoDiff(t, tbl.Values(), loaded.Values())
	if loaded.Add([]string{"n"}, nil) != 1 {
		t.Error("loaded table lost hash-consing of existing shapes")
	}
	if ix := loaded.Add([]string{"f", "v"}, []int{1, 1}); ix != 4 {
		t.Errorf("next index after load = %d, want 4", ix)
	}
}

func TestStringTableHexEscaping(t *testing.T) {
	tbl := NewStringTable("string-table")
	plain := tbl.Add("MAXPATHLEN")
	escaped := tbl.Add("MAXPATHLEN=%d\n")

	x := tbl.ToXML()
	if x.Nodes[plain-1].Hex != "" {
		t.Errorf("plain string escaped: %+v", x.Nodes[plain-1])
	}
	if x.Nodes[escaped-1].Hex != "yes" {
		t.Errorf("control string not escaped: %+v", x.Nodes[escaped-1])
	}

	b, err := xml.Marshal(x)
	testutil.FatalIfErr(t, err)
	var read XStringTable
	testutil.FatalIfErr(t, xml.Unmarshal(b, &read))
	loaded := NewStringTable("string-table")
	testutil.FatalIfErr(t, loaded.FromXML(read))

	s, err := loaded.Retrieve(escaped)
	testutil.FatalIfErr(t, err)
	if s != "MAXPATHLEN=%d\n" {
		t.Errorf("round-trip lost escaping: %q", s)
	}
	if loaded.Add("MAXPATHLEN") != plain {
		t.Error("loaded string table lost interning")
	}
}
