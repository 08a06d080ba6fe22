package hlms

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gogpu/gputypes"
)

// fakeRS is a render system that records PSO traffic.
type fakeRS struct {
	caps    Capabilities
	desc    PassDescriptor
	version int32
	exts    map[string]bool
	options map[string]string

	// deferPSO makes CreatePSO report that the deadline was hit.
	deferPSO  atomic.Bool
	created   atomic.Int32
	destroyed atomic.Int32

	mu     sync.Mutex
	logger *slog.Logger
}

func newFakeRS(profiles ...string) *fakeRS {
	if len(profiles) == 0 {
		profiles = []string{"glsl"}
	}
	rs := &fakeRS{
		caps:    Capabilities{Profiles: profiles, UserClipPlanes: true},
		version: 450,
	}
	rs.desc.Colour[0] = gputypes.TextureFormatRGBA8Unorm
	rs.desc.Depth = gputypes.TextureFormatDepth24PlusStencil8
	rs.desc.SampleCount = 1
	return rs
}

func (rs *fakeRS) Name() string                          { return "fake" }
func (rs *fakeRS) Capabilities() Capabilities            { return rs.caps }
func (rs *fakeRS) NativeShadingLanguageVersion() int32   { return rs.version }
func (rs *fakeRS) CheckExtension(name string) bool       { return rs.exts[name] }
func (rs *fakeRS) ReadOnlyIsTexBuffer() bool             { return false }
func (rs *fakeRS) IsReverseDepth() bool                  { return true }
func (rs *fakeRS) InvertVertexWinding() bool             { return false }
func (rs *fakeRS) CurrentPassDescriptor() PassDescriptor { return rs.desc }
func (rs *fakeRS) StencilParams() StencilParams          { return StencilParams{} }

func (rs *fakeRS) ConfigOption(name string) (string, bool) {
	v, ok := rs.options[name]
	return v, ok
}

func (rs *fakeRS) CreatePSO(pso *PSO, _ time.Time) bool {
	if rs.deferPSO.Load() {
		return false
	}
	rs.created.Add(1)
	pso.Backend = rs.created.Load()
	return true
}

func (rs *fakeRS) DestroyPSO(*PSO) { rs.destroyed.Add(1) }

func (rs *fakeRS) SetLogger(l *slog.Logger) {
	rs.mu.Lock()
	rs.logger = l
	rs.mu.Unlock()
}

type fakeProgram struct {
	name    string
	profile string
	stage   ShaderType
	src     string

	bound map[string][]int32
}

func (p *fakeProgram) Name() string      { return p.name }
func (p *fakeProgram) Stage() ShaderType { return p.stage }
func (p *fakeProgram) Profile() string   { return p.profile }
func (p *fakeProgram) Source() string    { return p.src }
func (p *fakeProgram) Microcode() []byte { return []byte(p.src) }

func (p *fakeProgram) BindSamplers(name string, units []int32) {
	if p.bound == nil {
		p.bound = map[string][]int32{}
	}
	p.bound[name] = units
}

// fakePrograms counts compiled programs.
type fakePrograms struct {
	mu       sync.Mutex
	programs []*fakeProgram
	logger   *slog.Logger
}

func (m *fakePrograms) CreateProgram(name, profile string, stage ShaderType, src string, _ ProgramOptions) (Program, error) {
	p := &fakeProgram{name: name, profile: profile, stage: stage, src: src}
	m.mu.Lock()
	m.programs = append(m.programs, p)
	m.mu.Unlock()
	return p, nil
}

func (m *fakePrograms) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.programs)
}

func (m *fakePrograms) SetLogger(l *slog.Logger) {
	m.mu.Lock()
	m.logger = l
	m.mu.Unlock()
}

func (m *fakePrograms) currentLogger() *slog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logger
}

func testData() fstest.MapFS {
	return fstest.MapFS{
		"VertexShader_vs.glsl": {Data: []byte("vs @insertpiece(custom_vs)\n")},
		"PixelShader_ps.glsl":  {Data: []byte("ps @property(hlms_alphablend)blend@end\n")},
		"Common_piece_all.any": {Data: []byte("@piece(common)c@end\n")},
	}
}

type testEngine struct {
	*Hlms
	rs    *fakeRS
	progs *fakePrograms
}

func newTestEngine(t testing.TB, opts ...Option) *testEngine {
	t.Helper()
	rs := newFakeRS()
	progs := &fakePrograms{}
	all := append([]Option{WithProgramManager(progs), WithRenderSystem(rs)}, opts...)
	h, err := New(TypePbs, "pbs", testData(), all...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return &testEngine{Hlms: h, rs: rs, progs: progs}
}

func testMesh(name string) *SubMesh {
	return &SubMesh{
		Name: name,
		Vaos: []VertexArray{{
			InputLayoutID: 1,
			Buffers: [][]VertexElement{{
				{SemanticPosition, gputypes.VertexFormatFloat32x3},
				{SemanticNormal, gputypes.VertexFormatFloat32x3},
				{SemanticTexCoord, gputypes.VertexFormatFloat32x2},
			}},
			Operation: OperationTriangleList,
		}},
	}
}

// assigned returns a queued renderable for a new mesh using d.
func (e *testEngine) assigned(t testing.TB, name string, d *Datablock) QueuedRenderable {
	t.Helper()
	m := testMesh(name)
	if err := e.Assign(m, d); err != nil {
		t.Fatalf("Assign(%s): %v", name, err)
	}
	return QueuedRenderable{Renderable: m, Object: name}
}

func (e *testEngine) pass(t testing.TB, info PassInfo) *Cache {
	t.Helper()
	p, err := e.PreparePassHash(&info)
	if err != nil {
		t.Fatalf("PreparePassHash: %v", err)
	}
	return p
}
