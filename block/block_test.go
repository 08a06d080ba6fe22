package block

import (
	"errors"
	"testing"
)

func TestManagerInternsByValue(t *testing.T) {
	mgr := NewManager()
	a, err := mgr.AcquireMacroblock(DefaultMacroblock())
	if err != nil {
		t.Fatal(err)
	}
	b, err := mgr.AcquireMacroblock(DefaultMacroblock())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("equal macroblocks returned different pointers")
	}
	if a.Refs() != 2 {
		t.Errorf("Refs = %d, want 2", a.Refs())
	}

	wire := DefaultMacroblock()
	wire.PolygonMode = PolygonWireframe
	c, err := mgr.AcquireMacroblock(wire)
	if err != nil {
		t.Fatal(err)
	}
	if c == a || c.LifetimeID() == a.LifetimeID() {
		t.Error("distinct state shares a block")
	}
	if m, _ := mgr.Stats(); m != 2 {
		t.Errorf("active macroblocks = %d, want 2", m)
	}
}

func TestManagerRelease(t *testing.T) {
	mgr := NewManager()
	b, err := mgr.AcquireBlendblock(DefaultBlendblock())
	if err != nil {
		t.Fatal(err)
	}
	lifetime := b.LifetimeID()
	if err := mgr.ReleaseBlendblock(b); err != nil {
		t.Fatal(err)
	}
	if err := mgr.ReleaseBlendblock(b); !errors.Is(err, ErrUnknownBlock) {
		t.Errorf("double release err = %v, want ErrUnknownBlock", err)
	}

	stranger := DefaultBlendblock()
	if err := mgr.ReleaseBlendblock(&stranger); !errors.Is(err, ErrUnknownBlock) {
		t.Errorf("foreign release err = %v, want ErrUnknownBlock", err)
	}

	again, err := mgr.AcquireBlendblock(DefaultBlendblock())
	if err != nil {
		t.Fatal(err)
	}
	if again != b || again.LifetimeID() != lifetime {
		t.Error("reacquired block lost its identity")
	}
}

func TestAutoTransparent(t *testing.T) {
	mgr := NewManager()
	bl := DefaultBlendblock()
	bl.SetBlendType(BlendTransparentAlpha)
	b, err := mgr.AcquireBlendblock(bl)
	if err != nil {
		t.Fatal(err)
	}
	if !b.IsAutoTransparent() {
		t.Error("alpha blending should be auto transparent")
	}
	opaque, _ := mgr.AcquireBlendblock(DefaultBlendblock())
	if opaque.IsAutoTransparent() {
		t.Error("replace blending should be opaque")
	}
}

func TestApplyMacroblock(t *testing.T) {
	def := DefaultMacroblock()
	tests := []struct {
		name  string
		bits  MacroBits
		check func(Macroblock) bool
	}{
		{"zero is identity", 0, func(m Macroblock) bool { return m == def }},
		{"depth check off", DepthCheckDisabled, func(m Macroblock) bool { return !m.DepthCheck && m.DepthWrite }},
		{"invert depth write", InvertDepthWrite, func(m Macroblock) bool { return !m.DepthWrite }},
		{"scissor on", ScissorTestEnabled, func(m Macroblock) bool { return m.ScissorTest }},
		{"depth clamp on", DepthClampEnabled, func(m Macroblock) bool { return m.DepthClamp }},
		{"depth func greater", MacroBits(0).WithDepthFunc(CompareGreater), func(m Macroblock) bool { return m.DepthFunc == CompareGreater }},
		{"depth func always fail", MacroBits(0).WithDepthFunc(CompareAlwaysFail), func(m Macroblock) bool { return m.DepthFunc == CompareAlwaysFail }},
		{"invert cull", InvertCullingMode, func(m Macroblock) bool { return m.CullMode == CullAnticlockwise }},
		{"cull none", MacroBits(0).WithCullMode(CullNone), func(m Macroblock) bool { return m.CullMode == CullNone }},
		{"wireframe", MacroBits(0).WithPolygonMode(PolygonWireframe), func(m Macroblock) bool { return m.PolygonMode == PolygonWireframe }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApplyMacroblock(tt.bits, def); !tt.check(got) {
				t.Errorf("ApplyMacroblock(%#x) = %+v", uint32(tt.bits), got)
			}
		})
	}
}

func TestInvertCullFromNone(t *testing.T) {
	m := DefaultMacroblock()
	m.CullMode = CullNone
	if got := ApplyMacroblock(InvertCullingMode, m); got.CullMode != CullClockwise {
		t.Errorf("inverting CullNone = %v, want CullClockwise", got.CullMode)
	}
}

func TestMacroBitsLayout(t *testing.T) {
	tests := []struct {
		bits MacroBits
		want uint32
	}{
		{MacroBits(0).WithDepthFunc(CompareAlwaysFail), 1 << 8},
		{MacroBits(0).WithDepthFunc(CompareGreater), 8 << 8},
		{MacroBits(0).WithCullMode(CullAnticlockwise), 3 << 12},
		{InvertCullingMode, 4 << 12},
		{MacroBits(0).WithPolygonMode(PolygonSolid), 3 << 16},
		{InvertDepthCheck, 3 << 4},
	}
	for _, tt := range tests {
		if uint32(tt.bits) != tt.want {
			t.Errorf("bits = %#x, want %#x", uint32(tt.bits), tt.want)
		}
	}
	b := MacroBits(0).WithDepthFunc(CompareEqual).With(MacroDepthWrite, ToggleDisable)
	if b.Field(MacroDepthFunc) != uint32(CompareEqual)+1 || b.Field(MacroDepthWrite) != ToggleDisable {
		t.Errorf("fields do not round trip: %#x", uint32(b))
	}
}

func TestApplyBlendblock(t *testing.T) {
	bits := BlendBits(0).
		WithFactor(BlendSourceFactor, BlendSourceAlpha).
		WithFactor(BlendDestFactor, BlendOneMinusSourceAlpha).
		WithOperation(BlendOperationAlphaField, BlendOpMax)
	if uint32(bits)&0xF != uint32(BlendSourceAlpha)+1 {
		t.Fatalf("src factor not at bit 0: %#x", uint32(bits))
	}
	if (uint32(bits)>>20)&0xF != uint32(BlendOpMax)+1 {
		t.Fatalf("alpha op not at bit 20: %#x", uint32(bits))
	}

	got := ApplyBlendblock(bits, DefaultBlendblock())
	if got.SourceFactor != BlendSourceAlpha || got.DestFactor != BlendOneMinusSourceAlpha {
		t.Errorf("factors = %v/%v", got.SourceFactor, got.DestFactor)
	}
	if got.SourceFactorAlpha != BlendOne || got.Operation != BlendOpAdd || got.OperationAlpha != BlendOpMax {
		t.Errorf("untouched fields changed: %+v", got)
	}
	if def := DefaultBlendblock(); ApplyBlendblock(0, def) != def {
		t.Error("zero bits changed the block")
	}
}

func TestCompareShaderOperator(t *testing.T) {
	tests := map[CompareFunction]string{
		CompareAlwaysFail:   "==",
		CompareAlwaysPass:   "==",
		CompareLess:         "<",
		CompareLessEqual:    "<=",
		CompareEqual:        "==",
		CompareNotEqual:     "!=",
		CompareGreaterEqual: ">=",
		CompareGreater:      ">",
	}
	for c, want := range tests {
		if got := c.ShaderOperator(); got != want {
			t.Errorf("%v.ShaderOperator() = %q, want %q", c, got, want)
		}
	}
}

func TestAlphaToCoverageFor(t *testing.T) {
	b := DefaultBlendblock()
	b.AlphaToCoverage = A2CEnabledMsaaOnly
	if b.AlphaToCoverageFor(1) || !b.AlphaToCoverageFor(4) {
		t.Error("msaa-only alpha to coverage mismatch")
	}
}
