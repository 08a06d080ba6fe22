// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/block"
)

// Errors returned by New and NewFromProvider.
var (
	ErrNilDevice   = errors.New("wgpu: nil device")
	ErrNilProvider = errors.New("wgpu: provider does not expose a hal.Device")
	ErrClosed      = errors.New("wgpu: render system closed")
)

// Profile is the shader profile the render system reports.
const Profile = "wgsl"

// Option configures a RenderSystem.
type Option func(*RenderSystem)

// WithName overrides the render system name, which is part of every
// microcode key.
func WithName(name string) Option {
	return func(rs *RenderSystem) { rs.name = name }
}

// WithPipelineLayout sets the layout every pipeline is created with. By
// default an empty layout is created and owned by the render system.
func WithPipelineLayout(layout hal.PipelineLayout) Option {
	return func(rs *RenderSystem) { rs.layout = layout }
}

// WithEntryPoints sets the vertex and fragment entry point names. The
// default is "main" for both, which SPIR-V from program/naga uses.
func WithEntryPoints(vertex, fragment string) Option {
	return func(rs *RenderSystem) {
		rs.vertexEntry = vertex
		rs.fragmentEntry = fragment
	}
}

// WithReverseDepth makes IsReverseDepth report true and mirrors depth
// comparisons.
func WithReverseDepth(on bool) Option {
	return func(rs *RenderSystem) { rs.reverseDepth = on }
}

// WithInvertVertexWinding swaps the culled face.
func WithInvertVertexWinding(on bool) Option {
	return func(rs *RenderSystem) { rs.invertWinding = on }
}

// WithConfigOption sets a render system option such as
// "Fast Shader Build Hack".
func WithConfigOption(name, value string) Option {
	return func(rs *RenderSystem) { rs.options[name] = value }
}

// Stats counts pipeline traffic.
type Stats struct {
	Created   uint64 // PSOs realized
	Deferred  uint64 // CreatePSO calls past their deadline
	Failed    uint64 // pipeline creation errors
	Destroyed uint64 // PSOs released
	Hits      uint64 // PSOs that reused a cached pipeline
	Misses    uint64 // PSOs that created a pipeline
	Pipelines int    // live pipelines
	Modules   int    // live shader modules
}

// RenderSystem is an hlms.RenderSystem backed by a HAL device.
type RenderSystem struct {
	device        hal.Device
	layout        hal.PipelineLayout
	ownsLayout    bool
	name          string
	vertexEntry   string
	fragmentEntry string
	reverseDepth  bool
	invertWinding bool
	options       map[string]string

	cache  *pipelineCache
	closed atomic.Bool

	mu      sync.RWMutex
	pass    hlms.PassDescriptor
	stencil hlms.StencilParams

	created   atomic.Uint64
	deferred  atomic.Uint64
	failed    atomic.Uint64
	destroyed atomic.Uint64

	logger atomic.Pointer[slog.Logger]
}

var _ hlms.RenderSystem = (*RenderSystem)(nil)

// New creates a render system on device. The pass descriptor starts with
// one BGRA8 colour target and a Depth24PlusStencil8 attachment.
func New(device hal.Device, opts ...Option) (*RenderSystem, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	rs := &RenderSystem{
		device:        device,
		name:          "wgpu",
		vertexEntry:   "main",
		fragmentEntry: "main",
		options:       make(map[string]string),
		cache:         newPipelineCache(),
	}
	rs.pass.Colour[0] = gputypes.TextureFormatBGRA8Unorm
	rs.pass.Depth = gputypes.TextureFormatDepth24PlusStencil8
	rs.pass.SampleCount = 1
	for _, opt := range opts {
		opt(rs)
	}
	rs.logger.Store(slog.New(slog.DiscardHandler))

	if rs.layout == nil {
		layout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label: "hlms_pipeline_layout",
		})
		if err != nil {
			return nil, fmt.Errorf("create pipeline layout: %w", err)
		}
		rs.layout = layout
		rs.ownsLayout = true
	}
	return rs, nil
}

// NewFromProvider creates a render system on the device of a shared GPU
// context. The provider must implement HalDevice() any returning a
// hal.Device.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*RenderSystem, error) {
	type halProvider interface {
		HalDevice() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNilProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, ErrNilProvider
	}
	return New(device, opts...)
}

// SetLogger sets the logger. hlms.SetLogger forwards to it.
func (rs *RenderSystem) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	rs.logger.Store(l)
}

func (rs *RenderSystem) Name() string                        { return rs.name }
func (rs *RenderSystem) NativeShadingLanguageVersion() int32 { return 0 }
func (rs *RenderSystem) CheckExtension(string) bool          { return false }
func (rs *RenderSystem) ReadOnlyIsTexBuffer() bool           { return false }
func (rs *RenderSystem) IsReverseDepth() bool                { return rs.reverseDepth }
func (rs *RenderSystem) InvertVertexWinding() bool           { return rs.invertWinding }

// Capabilities reports the WGSL profile. WebGPU has no user clip planes.
func (rs *RenderSystem) Capabilities() hlms.Capabilities {
	return hlms.Capabilities{Profiles: []string{Profile}, CompiledShaderBuffer: true}
}

// ConfigOption returns a value set with WithConfigOption.
func (rs *RenderSystem) ConfigOption(name string) (string, bool) {
	v, ok := rs.options[name]
	return v, ok
}

// SetPassDescriptor sets the attachments of the pass being recorded.
func (rs *RenderSystem) SetPassDescriptor(d hlms.PassDescriptor) {
	rs.mu.Lock()
	rs.pass = d
	rs.mu.Unlock()
}

// CurrentPassDescriptor returns the attachments of the current pass.
func (rs *RenderSystem) CurrentPassDescriptor() hlms.PassDescriptor {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.pass
}

// SetStencilParams sets the stencil state of the current pass.
func (rs *RenderSystem) SetStencilParams(p hlms.StencilParams) {
	rs.mu.Lock()
	rs.stencil = p
	rs.mu.Unlock()
}

// StencilParams returns the stencil state of the current pass.
func (rs *RenderSystem) StencilParams() hlms.StencilParams {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.stencil
}

// CreatePSO builds or reuses a render pipeline for pso and stores it in
// pso.Backend as a *Pipeline.
//
// HAL pipeline creation is synchronous, so the deadline is only checked
// before starting. A creation error is logged and leaves Backend nil; the
// PSO is still reported as done so the engine does not retry it every
// frame.
func (rs *RenderSystem) CreatePSO(pso *hlms.PSO, deadline time.Time) bool {
	if !deadline.IsZero() && time.Now().After(deadline) {
		rs.deferred.Add(1)
		return false
	}
	log := rs.logger.Load()
	if rs.closed.Load() {
		log.Warn("wgpu: create pso", "err", ErrClosed)
		return true
	}
	req, err := rs.request(pso)
	if err != nil {
		rs.failed.Add(1)
		log.Warn("wgpu: create pso", "err", err)
		return true
	}
	p, err := rs.cache.getOrCreate(rs.device, req)
	if err != nil {
		rs.failed.Add(1)
		log.Warn("wgpu: create pso", "label", req.desc.Label, "err", err)
		return true
	}
	pso.Backend = p
	rs.created.Add(1)
	log.Debug("wgpu: pso created", "label", req.desc.Label, "hash", p.hash)
	return true
}

// DestroyPSO releases the pipeline created for pso.
func (rs *RenderSystem) DestroyPSO(pso *hlms.PSO) {
	p, ok := pso.Backend.(*Pipeline)
	if !ok {
		return
	}
	pso.Backend = nil
	rs.destroyed.Add(1)
	if rs.closed.Load() {
		return
	}
	rs.cache.release(rs.device, p)
}

// Close destroys every pipeline, shader module and the owned layout. PSOs
// still holding pipelines must not be drawn with afterwards.
func (rs *RenderSystem) Close() error {
	if rs.closed.Swap(true) {
		return nil
	}
	rs.cache.destroyAll(rs.device)
	if rs.ownsLayout {
		rs.device.DestroyPipelineLayout(rs.layout)
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (rs *RenderSystem) Stats() Stats {
	pipelines, modules := rs.cache.counts()
	return Stats{
		Created:   rs.created.Load(),
		Deferred:  rs.deferred.Load(),
		Failed:    rs.failed.Load(),
		Destroyed: rs.destroyed.Load(),
		Hits:      atomic.LoadUint64(&rs.cache.hits),
		Misses:    atomic.LoadUint64(&rs.cache.misses),
		Pipelines: pipelines,
		Modules:   modules,
	}
}

// request converts pso into a pipeline descriptor with unresolved shader
// modules.
func (rs *RenderSystem) request(pso *hlms.PSO) (*pipelineRequest, error) {
	vs := pso.Shaders[hlms.VertexShader]
	if vs == nil {
		return nil, ErrNoVertexShader
	}
	fs := pso.Shaders[hlms.PixelShader]
	log := rs.logger.Load()

	prim := gputypes.PrimitiveState{FrontFace: gputypes.FrontFaceCCW}
	t, exact := topology(pso.Operation)
	if !exact {
		log.Debug("wgpu: triangle fan drawn as list", "label", vs.Name())
	}
	prim.Topology = t
	if m := pso.Macroblock; m != nil {
		prim.CullMode = cullMode(m.CullMode, rs.invertWinding)
		if m.PolygonMode != block.PolygonSolid {
			log.Debug("wgpu: polygon mode unsupported, drawing solid", "label", vs.Name(), "mode", m.PolygonMode)
		}
	}
	if pso.Pass.ForceCullNone {
		prim.CullMode = gputypes.CullModeNone
	}

	req := &pipelineRequest{
		vs:    vs,
		vsKey: moduleKey(vs),
		desc: hal.RenderPipelineDescriptor{
			Label:  vs.Name(),
			Layout: rs.layout,
			Vertex: hal.VertexState{
				EntryPoint: rs.vertexEntry,
				Buffers:    vertexBuffers(pso.VertexElements),
			},
			Primitive:    prim,
			DepthStencil: depthStencil(pso, rs.reverseDepth),
			Multisample:  multisample(pso),
		},
	}
	if fs != nil {
		req.fs = fs
		req.fsKey = moduleKey(fs)
		req.desc.Fragment = &hal.FragmentState{
			EntryPoint: rs.fragmentEntry,
			Targets:    colorTargets(pso),
		}
	}
	return req, nil
}
