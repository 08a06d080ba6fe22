package main

import (
	"errors"
	"testing"

	"github.com/gogpu/hlms"
)

func TestParseProp(t *testing.T) {
	tests := []struct {
		in      string
		name    string
		value   int32
		wantErr bool
	}{
		{"hlms_normal", "hlms_normal", 1, false},
		{"hlms_uv_count=2", "hlms_uv_count", 2, false},
		{" lights = -3 ", "lights", -3, false},
		{"=4", "", 0, true},
		{"x=abc", "", 0, true},
		{"x=99999999999", "", 0, true},
	}
	for _, tt := range tests {
		name, v, err := parseProp(tt.in)
		if tt.wantErr {
			if !errors.Is(err, errUsage) {
				t.Errorf("parseProp(%q) err = %v, want usage error", tt.in, err)
			}
			continue
		}
		if err != nil || name != tt.name || v != tt.value {
			t.Errorf("parseProp(%q) = %q, %d, %v; want %q, %d", tt.in, name, v, err, tt.name, tt.value)
		}
	}
}

func TestTestMesh(t *testing.T) {
	m := testMesh(true, true, 2)
	elems := m.Vaos[0].Buffers[0]
	want := []hlms.VertexSemantic{
		hlms.SemanticPosition, hlms.SemanticNormal, hlms.SemanticTangent,
		hlms.SemanticTexCoord, hlms.SemanticTexCoord,
	}
	if len(elems) != len(want) {
		t.Fatalf("got %d elements, want %d", len(elems), len(want))
	}
	for i, e := range elems {
		if e.Semantic != want[i] {
			t.Errorf("element %d = %v, want %v", i, e.Semantic, want[i])
		}
	}
}
