package hlms

import (
	"errors"
	"io/fs"
	"log/slog"
	"strconv"
	"sync"

	"github.com/gogpu/hlms/block"
	"github.com/gogpu/hlms/idstring"
)

// ErrNoProgramManager is returned by New without WithProgramManager.
var ErrNoProgramManager = errors.New("hlms: no program manager")

// Shader profiles in ascending preference. The last one the render system
// supports is used.
var shaderProfiles = [...]string{"hlsl", "glsl", "hlslvk", "glslvk", "metal", "wgsl"}

// D3D shader targets per stage, best first.
var bestD3DTargets = [NumShaderTypes][]string{
	{"vs_5_0", "vs_4_1", "vs_4_0", "vs_4_0_level_9_3", "vs_4_0_level_9_1"},
	{"ps_5_0", "ps_4_1", "ps_4_0", "ps_4_0_level_9_3", "ps_4_0_level_9_1"},
	{"gs_5_0", "gs_4_1", "gs_4_0"},
	{"hs_5_0", "hs_4_1", "hs_4_0"},
	{"ds_5_0", "ds_4_1", "ds_4_0"},
}

// GLSL extensions exposed as properties, with the shading language
// version that makes them core.
var glslExtensions = [...]struct {
	name       string
	minVersion int32
}{
	{"GL_ARB_base_instance", 420},
	{"GL_ARB_shading_language_420pack", 420},
	{"GL_ARB_texture_buffer_range", 430},
}

const fastShaderBuildHackOption = "Fast Shader Build Hack"

// Hlms generates shaders and pipeline state for one material type.
//
// Hashing, pass preparation and GetMaterial run on the caller's goroutine
// (slot 0). Shader generation for queued stubs runs on compile workers,
// each with its own slot; the caches they share are guarded by an
// internal mutex.
type Hlms struct {
	typ  Type
	name string

	dataFolder fs.FS
	libraries  []library
	pieceFiles [NumShaderTypes][]string

	rs       RenderSystem
	programs ProgramManager
	blocks   *block.Manager
	listener Listener
	impl     Implementation

	profile             string
	syntax              idstring.IdString
	ext                 string
	targets             [NumShaderTypes]string
	fastShaderBuildHack bool
	rsExtensions        []idstring.IdString
	precision           PrecisionMode

	debugOutput     bool
	debugProperties bool
	outputPath      string

	lightGathering        LightGatheringMode
	staticBranchingLights bool
	numLightsLimit        int
	areaApproxLimit       int
	areaLtcLimit          int

	workersMu sync.Mutex
	workers   []*WorkerContext

	mu                   sync.Mutex
	renderableCache      []RenderableCache
	renderableCapacity   int
	passCache            []PassCache
	shaderCodeCache      []*ShaderCodeCache
	shaderCache          []*Cache
	shadersGenerated     uint32
	shaderCodeCacheDirty bool
	customPieces         map[int32]customPieceFile

	datablocks       map[string]*Datablock
	defaultDatablock *Datablock
}

// New creates an engine for material type t that reads templates and
// piece files from dataFolder.
//
// A nil dataFolder is allowed; such an engine hashes renderables but
// generates no stages.
func New(t Type, name string, dataFolder fs.FS, opts ...Option) (*Hlms, error) {
	if t >= NumTypes {
		return nil, opError("Hlms.New", name, errors.New("material type out of range"))
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.programs == nil {
		return nil, opError("Hlms.New", name, ErrNoProgramManager)
	}

	h := &Hlms{
		typ:                   t,
		name:                  name,
		dataFolder:            dataFolder,
		programs:              o.programs,
		blocks:                o.blocks,
		listener:              o.listener,
		impl:                  o.impl,
		profile:               "unset!",
		precision:             o.precision,
		debugOutput:           o.debugOutput,
		debugProperties:       o.debugProperties,
		outputPath:            o.outputPath,
		lightGathering:        o.lightGathering,
		staticBranchingLights: o.staticBranchingLights,
		numLightsLimit:        o.numLightsLimit,
		areaApproxLimit:       o.areaApproxLimit,
		areaLtcLimit:          o.areaLtcLimit,
		renderableCapacity:    o.renderableCapacity,
		customPieces:          make(map[int32]customPieceFile),
		datablocks:            make(map[string]*Datablock),
	}
	if h.blocks == nil {
		h.blocks = block.NewManager()
	}
	if h.listener == nil {
		h.listener = NopListener{}
	}
	if h.impl == nil {
		h.impl = BaseImplementation{}
	}
	for _, lib := range o.libraries {
		h.libraries = append(h.libraries, library{fsys: lib})
	}
	h.workers = []*WorkerContext{newWorkerContext(0)}
	for i := 1; i <= o.workers; i++ {
		h.workers = append(h.workers, newWorkerContext(i))
	}

	if err := h.enumerate(); err != nil {
		return nil, err
	}
	trackEngine(h)
	propagateLogger(h.programs, slogger())

	if o.rs != nil {
		if err := h.ChangeRenderSystem(o.rs); err != nil {
			untrackEngine(h)
			return nil, err
		}
	}
	return h, nil
}

// Close destroys every PSO and datablock and detaches the engine from
// SetLogger. The engine must not be used afterwards.
func (h *Hlms) Close() error {
	h.ClearShaderCache()
	for name, d := range h.datablocks {
		d.release()
		delete(h.datablocks, name)
	}
	h.defaultDatablock = nil
	untrackEngine(h)
	return nil
}

func (h *Hlms) log() *slog.Logger { return slogger() }

func (h *Hlms) propagateLogger(l *slog.Logger) {
	propagateLogger(h.programs, l)
	if h.rs != nil {
		propagateLogger(h.rs, l)
	}
}

// Type returns the material type.
func (h *Hlms) Type() Type { return h.typ }

// Name returns the engine name given to New.
func (h *Hlms) Name() string { return h.name }

// RenderSystem returns the active render system, or nil.
func (h *Hlms) RenderSystem() RenderSystem { return h.rs }

// BlockManager returns the manager interning the engine's blocks.
func (h *Hlms) BlockManager() *block.Manager { return h.blocks }

// ShaderProfile returns the selected shader profile, or "unset!" without
// a render system.
func (h *Hlms) ShaderProfile() string { return h.profile }

// ShaderFileExt returns the template extension of the selected profile.
func (h *Hlms) ShaderFileExt() string { return h.ext }

// ShadersGenerated returns the shader code counter.
func (h *Hlms) ShadersGenerated() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shadersGenerated
}

// Worker returns the scratch state of generation slot id for callers that
// generate outside a CompileQueue, such as cache loaders. Slot 0 belongs to
// the goroutine driving GetMaterial.
func (h *Hlms) Worker(id int) *WorkerContext { return h.workerSlot(id) }

// workerSlot returns the scratch state of slot id, creating it on first
// use.
func (h *Hlms) workerSlot(id int) *WorkerContext {
	h.workersMu.Lock()
	defer h.workersMu.Unlock()
	for len(h.workers) <= id {
		h.workers = append(h.workers, newWorkerContext(len(h.workers)))
	}
	return h.workers[id]
}

// ChangeRenderSystem clears every cache and adopts rs: its shader
// profile, template extension, D3D targets and the extension properties
// templates branch on. The default datablock is created on the first
// call. A nil rs detaches the engine.
func (h *Hlms) ChangeRenderSystem(rs RenderSystem) error {
	h.ClearShaderCache()
	h.rs = rs
	h.profile = "unset!"
	h.ext = "unset!"
	h.syntax = idstring.New("unset!")
	h.targets = [NumShaderTypes]string{}
	h.rsExtensions = h.rsExtensions[:0]
	h.fastShaderBuildHack = false
	if rs == nil {
		return nil
	}
	propagateLogger(rs, slogger())

	if v, ok := rs.ConfigOption(fastShaderBuildHackOption); ok {
		h.fastShaderBuildHack, _ = strconv.ParseBool(v)
	}

	caps := rs.Capabilities()
	for _, p := range shaderProfiles {
		if caps.SupportsProfile(p) {
			h.profile = p
		}
	}
	h.syntax = idstring.New(h.profile)

	switch h.profile {
	case "hlsl", "hlslvk":
		h.ext = ".hlsl"
		for i, targets := range bestD3DTargets {
			for _, t := range targets {
				if caps.SupportsProfile(t) {
					h.targets[i] = t
					break
				}
			}
		}
	case "metal":
		h.ext = ".metal"
	case "wgsl":
		h.ext = ".wgsl"
	default:
		h.ext = ".glsl"
		if rs.CheckExtension("GL_AMD_shader_trinary_minmax") {
			h.rsExtensions = append(h.rsExtensions, PropGlAmdTrinaryMinMax)
		}
		for _, e := range glslExtensions {
			if rs.NativeShadingLanguageVersion() >= e.minVersion || rs.CheckExtension(e.name) {
				h.rsExtensions = append(h.rsExtensions, idstring.Register(e.name))
			}
		}
	}
	if rs.ReadOnlyIsTexBuffer() {
		h.rsExtensions = append(h.rsExtensions, PropReadOnlyIsTex)
	}

	if h.defaultDatablock == nil {
		d, err := h.CreateDatablock(DefaultDatablockName, block.DefaultMacroblock(), block.DefaultBlendblock())
		if err != nil {
			return err
		}
		h.defaultDatablock = d
	}
	h.log().Info("hlms: render system changed", "hlms", h.name,
		"render_system", rs.Name(), "profile", h.profile, "ext", h.ext)
	return nil
}

// SetPrecisionMode sets the requested float precision. Changing it clears
// the shader cache.
func (h *Hlms) SetPrecisionMode(p PrecisionMode) {
	if p == h.precision {
		return
	}
	h.ClearShaderCache()
	h.precision = p
}

// PrecisionMode returns the requested precision.
func (h *Hlms) PrecisionMode() PrecisionMode { return h.precision }

// SupportedPrecisionMode returns the precision shaders are generated
// with: the requested mode, degraded to what the render system supports.
func (h *Hlms) SupportedPrecisionMode() PrecisionMode {
	if h.precision == PrecisionFull32 || h.rs == nil {
		return PrecisionFull32
	}
	caps := h.rs.Capabilities()
	switch h.precision {
	case PrecisionMidf16:
		if caps.ShaderFloat16 {
			return PrecisionMidf16
		}
		if caps.ShaderRelaxedFloat {
			return PrecisionRelaxed
		}
	case PrecisionRelaxed:
		if caps.ShaderRelaxedFloat {
			return PrecisionRelaxed
		}
		if caps.ShaderFloat16 {
			return PrecisionMidf16
		}
	}
	return PrecisionFull32
}

func (h *Hlms) supportedPrecisionHash() int32 {
	switch h.SupportedPrecisionMode() {
	case PrecisionMidf16:
		return hashProp(PropMidf16)
	case PrecisionRelaxed:
		return hashProp(PropRelaxed)
	default:
		return hashProp(PropFull32)
	}
}

// ReloadFrom clears the caches and re-reads templates and piece files
// from dataFolder. A nil libraries keeps the current library folders.
// Custom piece files loaded from a file system are read again.
func (h *Hlms) ReloadFrom(dataFolder fs.FS, libraries []fs.FS) error {
	h.ClearShaderCache()
	if libraries != nil {
		h.libraries = h.libraries[:0]
		for _, lib := range libraries {
			h.libraries = append(h.libraries, library{fsys: lib})
		}
	}
	h.dataFolder = dataFolder
	h.pieceFiles = [NumShaderTypes][]string{}
	if err := h.enumerate(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for id, f := range h.customPieces {
		if f.fsys == nil {
			continue
		}
		src, err := fs.ReadFile(f.fsys, f.filename)
		if err != nil {
			errs = append(errs, opError("Hlms.ReloadFrom", f.filename, err))
			continue
		}
		f.source = string(src)
		h.customPieces[id] = f
	}
	h.log().Info("hlms: data folder reloaded", "hlms", h.name)
	return errors.Join(errs...)
}
