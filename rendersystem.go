package hlms

import (
	"slices"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hlms/block"
)

// MaxRenderTargets is the number of colour attachments a pass may bind.
const MaxRenderTargets = 8

// Capabilities describes what a render system supports.
type Capabilities struct {
	// Profiles lists supported shader profiles ("hlsl", "glsl", "glslvk",
	// "hlslvk", "metal", "wgsl") and, for D3D-style systems, shader
	// targets such as "vs_5_0".
	Profiles []string

	ShaderFloat16        bool
	ShaderRelaxedFloat   bool
	UserClipPlanes       bool
	CompiledShaderBuffer bool
}

// SupportsProfile reports whether profile is listed in c.Profiles.
func (c *Capabilities) SupportsProfile(profile string) bool {
	return slices.Contains(c.Profiles, profile)
}

// StencilParams is the stencil state of the active pass.
type StencilParams struct {
	Enabled     bool
	Reference   uint8
	ReadMask    uint8
	WriteMask   uint8
	Compare     block.CompareFunction
	FailOp      StencilOp
	DepthFailOp StencilOp
	PassOp      StencilOp
}

// StencilOp is a stencil buffer update.
type StencilOp uint8

// Stencil operations.
const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrementClamp
	StencilDecrementClamp
	StencilInvert
	StencilIncrementWrap
	StencilDecrementWrap
)

// PassDescriptor describes the attachments of the pass being recorded.
// Unused colour slots hold gputypes.TextureFormatUndefined.
type PassDescriptor struct {
	Colour        [MaxRenderTargets]gputypes.TextureFormat
	Resolve       [MaxRenderTargets]gputypes.TextureFormat
	Depth         gputypes.TextureFormat
	SampleCount   uint32
	TextureFlipY  bool
	ReadOnlyDepth bool
}

// NumColourEntries counts the bound colour attachments.
func (d *PassDescriptor) NumColourEntries() int {
	n := 0
	for _, f := range d.Colour {
		if f != gputypes.TextureFormatUndefined {
			n++
		}
	}
	return n
}

// HasDepth reports whether a depth attachment is bound.
func (d *PassDescriptor) HasDepth() bool {
	return d.Depth != gputypes.TextureFormatUndefined
}

// RenderSystem is the graphics backend a material type generates for.
//
// CreatePSO realizes a pipeline. It returns false when the deadline passed
// before the pipeline could be built; the engine retries later. A zero
// deadline means no limit.
type RenderSystem interface {
	Name() string
	Capabilities() Capabilities
	NativeShadingLanguageVersion() int32
	CheckExtension(name string) bool
	ReadOnlyIsTexBuffer() bool
	IsReverseDepth() bool
	InvertVertexWinding() bool
	CurrentPassDescriptor() PassDescriptor
	StencilParams() StencilParams
	ConfigOption(name string) (string, bool)

	CreatePSO(pso *PSO, deadline time.Time) bool
	DestroyPSO(pso *PSO)
}

// Program is a compiled GPU program for one stage.
type Program interface {
	Name() string
	Stage() ShaderType
	Profile() string
	Source() string
	Microcode() []byte
}

// SamplerBinder is implemented by programs that need texture units bound
// by name after creation (GLSL without explicit bindings).
type SamplerBinder interface {
	BindSamplers(name string, units []int32)
}

// ProgramOptions carries the per-program settings derived from the merged
// properties.
type ProgramOptions struct {
	// Target and EntryPoint are set for D3D-style profiles.
	Target     string
	EntryPoint string

	Skeletal          bool
	Pose              bool
	VpAndRtArrayIndex bool

	// DebugFilename is where the generated source was dumped, if anywhere.
	DebugFilename string
}

// ProgramManager compiles generated source. Implementations must be safe
// for concurrent use; package program provides one.
type ProgramManager interface {
	CreateProgram(name, profile string, stage ShaderType, source string, opts ProgramOptions) (Program, error)
}
