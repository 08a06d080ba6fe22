package wgpu

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/block"
	"github.com/gogpu/hlms/program"
	hlmsnaga "github.com/gogpu/hlms/program/naga"
)

const testWGSL = `
@vertex
fn main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

type testProgram struct {
	name  string
	stage hlms.ShaderType
	src   string
	code  []byte
}

func (p *testProgram) Name() string           { return p.name }
func (p *testProgram) Stage() hlms.ShaderType { return p.stage }
func (p *testProgram) Profile() string        { return Profile }
func (p *testProgram) Source() string         { return p.src }
func (p *testProgram) Microcode() []byte      { return p.code }

func createNoopDevice(t *testing.T) hal.Device {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device
}

func newTestRS(t *testing.T, opts ...Option) *RenderSystem {
	t.Helper()
	rs, err := New(createNoopDevice(t), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })
	return rs
}

func testPSO(name string) *hlms.PSO {
	mb := block.DefaultMacroblock()
	bb := block.DefaultBlendblock()
	pso := &hlms.PSO{
		Macroblock: &mb,
		Blendblock: &bb,
		VertexElements: [][]hlms.VertexElement{{
			{Semantic: hlms.SemanticPosition, Format: gputypes.VertexFormatFloat32x3},
		}},
		Operation:  hlms.OperationTriangleList,
		SampleMask: 0xFFFFFFFF,
	}
	pso.Pass.Colour[0] = gputypes.TextureFormatBGRA8Unorm
	pso.Pass.Depth = gputypes.TextureFormatDepth24PlusStencil8
	pso.Pass.SampleCount = 1
	pso.Shaders[hlms.VertexShader] = &testProgram{name: name + "_vs", stage: hlms.VertexShader, src: testWGSL, code: []byte(testWGSL)}
	pso.Shaders[hlms.PixelShader] = &testProgram{name: name + "_ps", stage: hlms.PixelShader, src: "ps", code: []byte("ps")}
	return pso
}

func TestNew(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilDevice) {
		t.Errorf("New(nil) err = %v, want ErrNilDevice", err)
	}
	if _, err := NewFromProvider(nil); !errors.Is(err, ErrNilProvider) {
		t.Errorf("NewFromProvider(nil) err = %v, want ErrNilProvider", err)
	}

	rs := newTestRS(t, WithName("vk"), WithReverseDepth(true), WithConfigOption("Fast Shader Build Hack", "yes"))
	if rs.Name() != "vk" || !rs.IsReverseDepth() {
		t.Errorf("options not applied: %q %v", rs.Name(), rs.IsReverseDepth())
	}
	caps := rs.Capabilities()
	if !caps.SupportsProfile(Profile) {
		t.Errorf("profiles = %v, want %q", caps.Profiles, Profile)
	}
	if v, ok := rs.ConfigOption("Fast Shader Build Hack"); !ok || v != "yes" {
		t.Errorf("ConfigOption = %q, %v", v, ok)
	}
}

func TestCreatePSOSharesPipelines(t *testing.T) {
	rs := newTestRS(t)

	a, b := testPSO("a"), testPSO("a")
	if !rs.CreatePSO(a, time.Time{}) || !rs.CreatePSO(b, time.Time{}) {
		t.Fatal("CreatePSO returned false without a deadline")
	}
	pa, ok := a.Backend.(*Pipeline)
	if !ok || pa.Raw() == nil {
		t.Fatalf("Backend = %#v, want *Pipeline", a.Backend)
	}
	if b.Backend != a.Backend {
		t.Error("identical PSOs did not share a pipeline")
	}

	c := testPSO("a")
	c.Macroblock.CullMode = block.CullNone
	rs.CreatePSO(c, time.Time{})
	if c.Backend == a.Backend {
		t.Error("PSOs with different culling share a pipeline")
	}

	s := rs.Stats()
	if s.Created != 3 || s.Hits != 1 || s.Misses != 2 || s.Pipelines != 2 || s.Modules != 2 {
		t.Errorf("stats = %+v", s)
	}

	for _, p := range []*hlms.PSO{a, b, c} {
		rs.DestroyPSO(p)
		if p.Backend != nil {
			t.Error("DestroyPSO left Backend set")
		}
	}
	s = rs.Stats()
	if s.Destroyed != 3 || s.Pipelines != 0 || s.Modules != 0 {
		t.Errorf("after destroy: %+v", s)
	}
}

func TestCreatePSODeadline(t *testing.T) {
	rs := newTestRS(t)
	pso := testPSO("late")
	if rs.CreatePSO(pso, time.Now().Add(-time.Second)) {
		t.Error("CreatePSO past its deadline returned true")
	}
	if pso.Backend != nil || rs.Stats().Deferred != 1 {
		t.Errorf("backend = %v, stats = %+v", pso.Backend, rs.Stats())
	}
	if !rs.CreatePSO(pso, time.Now().Add(time.Minute)) {
		t.Error("CreatePSO within its deadline returned false")
	}
}

func TestCreatePSOWithoutVertexShader(t *testing.T) {
	rs := newTestRS(t)
	pso := testPSO("novs")
	pso.Shaders[hlms.VertexShader] = nil
	if !rs.CreatePSO(pso, time.Time{}) {
		t.Error("CreatePSO returned false")
	}
	if pso.Backend != nil || rs.Stats().Failed != 1 {
		t.Errorf("backend = %v, stats = %+v", pso.Backend, rs.Stats())
	}
}

func TestShaderSource(t *testing.T) {
	spirv, err := hlmsnaga.NewCompiler(hlmsnaga.TargetSPIRV).Compile(&program.Request{
		Name:    "vs",
		Profile: "wgsl",
		Stage:   hlms.VertexShader,
		Source:  testWGSL,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	src := shaderSource(&testProgram{src: testWGSL, code: spirv})
	if len(src.SPIRV) == 0 || src.WGSL != "" {
		t.Errorf("SPIR-V microcode: got %d words, WGSL %q", len(src.SPIRV), src.WGSL)
	}
	src = shaderSource(&testProgram{src: testWGSL, code: []byte(testWGSL)})
	if src.WGSL != testWGSL || len(src.SPIRV) != 0 {
		t.Errorf("text microcode: got WGSL %q, %d words", src.WGSL, len(src.SPIRV))
	}
}

func TestCloseIdempotent(t *testing.T) {
	rs := newTestRS(t)
	pso := testPSO("a")
	rs.CreatePSO(pso, time.Time{})
	if err := rs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := rs.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	rs.DestroyPSO(pso)
	if s := rs.Stats(); s.Pipelines != 0 || s.Destroyed != 1 {
		t.Errorf("stats = %+v", s)
	}
}
