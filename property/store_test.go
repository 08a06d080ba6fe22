package property

import (
	"sort"
	"testing"

	"github.com/gogpu/hlms/idstring"
)

func TestStoreSetGetUnset(t *testing.T) {
	var s Store
	a, b, c := idstring.New("a"), idstring.New("b"), idstring.New("c")

	s.Set(c, 3)
	s.Set(a, 1)
	s.Set(b, 2)
	s.Set(a, 10) // overwrite

	tests := []struct {
		key  idstring.IdString
		want int32
	}{
		{a, 10},
		{b, 2},
		{c, 3},
		{idstring.New("missing"), -7},
	}
	for _, tt := range tests {
		if got := s.Get(tt.key, -7); got != tt.want {
			t.Errorf("Get(%v) = %d, want %d", tt.key, got, tt.want)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}

	s.Unset(b)
	s.Unset(idstring.New("missing")) // no-op
	if s.Has(b) {
		t.Error("b still present after Unset")
	}
	if s.Len() != 2 {
		t.Errorf("Len after Unset = %d, want 2", s.Len())
	}
}

func TestStoreStaysSorted(t *testing.T) {
	s := NewStore(0)
	for i := range 200 {
		s.Set(idstring.FromInt(uint32(i*7919)), int32(i))
	}
	props := s.All()
	if !sort.SliceIsSorted(props, func(i, j int) bool { return props[i].Key < props[j].Key }) {
		t.Fatal("store is not sorted by key")
	}
}

func TestStoreEqualAndClone(t *testing.T) {
	s := NewStore(4)
	s.Set(idstring.New("x"), 1)
	s.SetBool(idstring.New("y"), true)

	c := s.Clone()
	if !s.Equal(c) {
		t.Fatal("clone not equal")
	}
	c.Set(idstring.New("x"), 2)
	if s.Equal(c) {
		t.Fatal("mutating clone affected equality")
	}
	if s.Get(idstring.New("x"), 0) != 1 {
		t.Fatal("mutating clone changed original")
	}

	var nilStore *Store
	if !nilStore.Equal(NewStore(0)) {
		t.Error("nil store should equal empty store")
	}
}

func TestPiecesEqual(t *testing.T) {
	var empty Pieces
	if !empty.Equal(Pieces{}) {
		t.Error("nil and empty pieces differ")
	}
	p := Pieces{idstring.New("p"): "body"}
	q := p.Clone()
	if !p.Equal(q) {
		t.Error("clone differs")
	}
	q[idstring.New("p")] = "other"
	if p.Equal(q) {
		t.Error("different bodies compare equal")
	}
}
