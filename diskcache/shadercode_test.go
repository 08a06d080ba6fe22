package diskcache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/backend/null"
	"github.com/gogpu/hlms/program"
)

func testData() fstest.MapFS {
	return fstest.MapFS{
		"VertexShader_vs.glsl": {Data: []byte("@property(hlms_normal)normals@end vs\n")},
		"PixelShader_ps.glsl":  {Data: []byte("ps @insertpiece(custom_ps)\n")},
	}
}

func newEngine(t *testing.T, data fstest.MapFS) (*hlms.Hlms, *program.Manager) {
	t.Helper()
	rs := null.New()
	pm := program.NewManager(rs.Name())
	h, err := hlms.New(hlms.TypePbs, "pbs", data, hlms.WithProgramManager(pm), hlms.WithRenderSystem(rs))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h, pm
}

func mesh(name string, normals bool) *hlms.SubMesh {
	elems := []hlms.VertexElement{{Semantic: hlms.SemanticPosition, Format: gputypes.VertexFormatFloat32x3}}
	if normals {
		elems = append(elems, hlms.VertexElement{Semantic: hlms.SemanticNormal, Format: gputypes.VertexFormatFloat32x3})
	}
	return &hlms.SubMesh{
		Name: name,
		Vaos: []hlms.VertexArray{{
			InputLayoutID: 1,
			Buffers:       [][]hlms.VertexElement{elems},
			Operation:     hlms.OperationTriangleList,
		}},
	}
}

// generate renders two meshes that need different shaders.
func generate(t *testing.T, h *hlms.Hlms) {
	t.Helper()
	pass, err := h.PreparePassHash(&hlms.PassInfo{Name: "main"})
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range []*hlms.SubMesh{mesh("lit", true), mesh("flat", false)} {
		if err := h.Assign(m, nil); err != nil {
			t.Fatal(err)
		}
		if _, err := h.GetMaterial(nil, pass, hlms.QueuedRenderable{Renderable: m, Object: m.Name}, false, nil); err != nil {
			t.Fatal(err)
		}
	}
}

func sourcesByCounter(h *hlms.Hlms) map[uint32][hlms.NumShaderTypes]string {
	out := map[uint32][hlms.NumShaderTypes]string{}
	for _, e := range h.ShaderCodeCache() {
		out[e.Counter] = e.Sources
	}
	return out
}

func TestShaderCodeRoundTrip(t *testing.T) {
	src, _ := newEngine(t, testData())
	generate(t, src)
	if n := len(src.ShaderCodeCache()); n != 2 {
		t.Fatalf("generated %d shader code entries, want 2", n)
	}

	var buf bytes.Buffer
	if err := SaveShaderCode(&buf, src); err != nil {
		t.Fatal(err)
	}
	if src.ShaderCodeCacheDirty() {
		t.Error("engine still dirty after save")
	}

	dst, pm := newEngine(t, testData())
	if err := LoadShaderCode(context.Background(), &buf, dst, 2); err != nil {
		t.Fatal(err)
	}
	want, got := sourcesByCounter(src), sourcesByCounter(dst)
	if len(got) != len(want) {
		t.Fatalf("loaded %d entries, want %d", len(got), len(want))
	}
	for c, s := range want {
		if got[c] != s {
			t.Errorf("entry %d sources = %q, want %q", c, got[c], s)
		}
	}
	// Both pixel shaders are identical and compile once.
	if s := pm.Stats(); s.Compiled != 3 {
		t.Errorf("programs compiled = %d, want 3", s.Compiled)
	}
	if dst.ShadersGenerated() != 2 {
		t.Errorf("ShadersGenerated = %d, want 2", dst.ShadersGenerated())
	}
	if dst.ShaderCodeCacheDirty() {
		t.Error("engine dirty after load")
	}
}

func TestLoadShaderCodeRejects(t *testing.T) {
	src, _ := newEngine(t, testData())
	generate(t, src)
	var buf bytes.Buffer
	if err := SaveShaderCode(&buf, src); err != nil {
		t.Fatal(err)
	}
	saved := buf.Bytes()

	changed := testData()
	changed["PixelShader_ps.glsl"] = &fstest.MapFile{Data: []byte("ps v2\n")}

	tests := []struct {
		name string
		data []byte
		fsys fstest.MapFS
		want error
	}{
		{"garbage", []byte{0xc1, 0x00}, testData(), ErrCorrupt},
		{"templates changed", saved, changed, ErrStale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newEngine(t, tt.fsys)
			err := LoadShaderCode(context.Background(), bytes.NewReader(tt.data), h, 1)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if n := len(h.ShaderCodeCache()); n != 0 {
				t.Errorf("%d entries loaded from a rejected cache", n)
			}
		})
	}
}
