package idstring

import (
	"testing"
)

func TestNewIsStable(t *testing.T) {
	a := New("hlms_skeleton")
	b := New("hlms_skeleton")
	if a != b {
		t.Fatalf("New not deterministic: %v != %v", a, b)
	}
	if a == New("hlms_pose") {
		t.Fatal("distinct strings collided")
	}
}

// Keys end up in saved caches, so the values must never change.
func TestGoldenHashes(t *testing.T) {
	tests := []struct {
		name string
		got  IdString
		want uint32
	}{
		{"skeleton", New("hlms_skeleton"), 0x875516cf},
		{"pose", New("hlms_pose"), 0x01cc1123},
		{"empty", New(""), 0xac83736b},
		{"int", FromInt(5), 0x98cbe66a},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.U32() != tt.want {
				t.Errorf("hash = %#08x, want %#08x", tt.got.U32(), tt.want)
			}
		})
	}
}

func TestGoldenSum128(t *testing.T) {
	tests := []struct {
		in   string
		want Hash128
	}{
		{"void main() {}", Hash128{0xc6fea287ed41e2fe, 0xa1d3d6bdf0e6a8f3}},
		{"The quick brown fox jumps over the lazy dog", Hash128{0xea2fc9e2ee3baa56, 0x529aa841634c5f64}},
	}
	for _, tt := range tests {
		if got := Sum128([]byte(tt.in)); got != tt.want {
			t.Errorf("Sum128(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRegisterFriendly(t *testing.T) {
	id := Register("test_friendly_key")
	if got := id.String(); got != "test_friendly_key" {
		t.Errorf("String() = %q", got)
	}
	anon := New("never registered anywhere")
	if _, ok := Friendly(anon); ok {
		t.Error("unregistered id has friendly text")
	}
	if got := anon.String(); len(got) != len("[Value 0x00000000]") {
		t.Errorf("String() of anonymous id = %q", got)
	}
}

func TestFromIntDiffersFromText(t *testing.T) {
	if FromInt(5) == New("5") {
		t.Error("FromInt should hash binary bytes, not decimal text")
	}
	if FromInt(5) != FromInt(5) {
		t.Error("FromInt not deterministic")
	}
}

func TestHash128RoundTrip(t *testing.T) {
	h := Sum128([]byte("void main() {}"))
	if got := Hash128FromBytes(h.Bytes()); got != h {
		t.Errorf("round trip = %v, want %v", got, h)
	}
	if h == Sum128([]byte("void main() { }")) {
		t.Error("distinct sources collided")
	}
	if len(h.String()) != 32 {
		t.Errorf("String() length = %d", len(h.String()))
	}
}

func BenchmarkNew(b *testing.B) {
	for b.Loop() {
		_ = New("hlms_lights_directional_non_caster")
	}
}
