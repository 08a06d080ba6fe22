// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package null provides a render system that needs no GPU. It accepts
// every pipeline and is used by tools that only generate shaders, and by
// tests that need a deadline-aware PSO builder.
package null

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hlms"
)

// Pipeline is stored in hlms.PSO.Backend for every PSO the render system
// accepted.
type Pipeline struct {
	ID    uint64
	Label string
}

// Option configures a RenderSystem.
type Option func(*RenderSystem)

// WithName overrides the render system name. It is part of every
// microcode key, so tools mimicking a real backend set it to match.
func WithName(name string) Option {
	return func(rs *RenderSystem) { rs.name = name }
}

// WithProfiles sets the shader profiles and targets reported in
// Capabilities. The default is "glsl".
func WithProfiles(profiles ...string) Option {
	return func(rs *RenderSystem) { rs.caps.Profiles = slices.Clone(profiles) }
}

// WithCapabilities replaces the reported capabilities.
func WithCapabilities(c hlms.Capabilities) Option {
	return func(rs *RenderSystem) { rs.caps = c }
}

// WithShadingLanguageVersion sets NativeShadingLanguageVersion.
func WithShadingLanguageVersion(v int32) Option {
	return func(rs *RenderSystem) { rs.version = v }
}

// WithExtensions makes CheckExtension report the named extensions.
func WithExtensions(names ...string) Option {
	return func(rs *RenderSystem) {
		for _, n := range names {
			rs.extensions[n] = true
		}
	}
}

// WithConfigOption sets a render system option such as
// "Fast Shader Build Hack".
func WithConfigOption(name, value string) Option {
	return func(rs *RenderSystem) { rs.options[name] = value }
}

// WithReverseDepth sets IsReverseDepth.
func WithReverseDepth(on bool) Option {
	return func(rs *RenderSystem) { rs.reverseDepth = on }
}

// WithBuildCost makes every pipeline take d to build. CreatePSO refuses
// work that would finish after its deadline.
func WithBuildCost(d time.Duration) Option {
	return func(rs *RenderSystem) { rs.cost = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(rs *RenderSystem) { rs.now = now }
}

// RenderSystem is a headless hlms.RenderSystem. It is safe for concurrent
// use.
type RenderSystem struct {
	name         string
	caps         hlms.Capabilities
	version      int32
	extensions   map[string]bool
	options      map[string]string
	reverseDepth bool
	cost         time.Duration
	now          func() time.Time

	mu      sync.RWMutex
	pass    hlms.PassDescriptor
	stencil hlms.StencilParams

	nextID    atomic.Uint64
	created   atomic.Uint64
	deferred  atomic.Uint64
	destroyed atomic.Uint64

	logger atomic.Pointer[slog.Logger]
}

var _ hlms.RenderSystem = (*RenderSystem)(nil)

// New creates a headless render system with a single RGBA8 colour target
// and a depth-stencil attachment.
func New(opts ...Option) *RenderSystem {
	rs := &RenderSystem{
		name:       "null",
		caps:       hlms.Capabilities{Profiles: []string{"glsl"}, UserClipPlanes: true},
		version:    450,
		extensions: make(map[string]bool),
		options:    make(map[string]string),
		now:        time.Now,
	}
	rs.pass.Colour[0] = gputypes.TextureFormatRGBA8Unorm
	rs.pass.Depth = gputypes.TextureFormatDepth24PlusStencil8
	rs.pass.SampleCount = 1
	for _, opt := range opts {
		opt(rs)
	}
	rs.logger.Store(slog.New(slog.DiscardHandler))
	return rs
}

// SetLogger sets the logger. hlms.SetLogger forwards to it.
func (rs *RenderSystem) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	rs.logger.Store(l)
}

func (rs *RenderSystem) Name() string                        { return rs.name }
func (rs *RenderSystem) Capabilities() hlms.Capabilities     { return rs.caps }
func (rs *RenderSystem) NativeShadingLanguageVersion() int32 { return rs.version }
func (rs *RenderSystem) CheckExtension(name string) bool     { return rs.extensions[name] }
func (rs *RenderSystem) ReadOnlyIsTexBuffer() bool           { return false }
func (rs *RenderSystem) IsReverseDepth() bool                { return rs.reverseDepth }
func (rs *RenderSystem) InvertVertexWinding() bool           { return false }

// ConfigOption returns a value set with WithConfigOption.
func (rs *RenderSystem) ConfigOption(name string) (string, bool) {
	v, ok := rs.options[name]
	return v, ok
}

// SetPassDescriptor sets the attachments CurrentPassDescriptor reports.
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

// SetStencilParams sets the stencil state StencilParams reports.
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

// CreatePSO accepts pso unless its build cost would overrun deadline.
func (rs *RenderSystem) CreatePSO(pso *hlms.PSO, deadline time.Time) bool {
	if !deadline.IsZero() && rs.now().Add(rs.cost).After(deadline) {
		rs.deferred.Add(1)
		rs.logger.Load().Debug("null: pso deferred", "deadline", deadline)
		return false
	}
	id := rs.nextID.Add(1)
	label := ""
	if p := pso.Shaders[hlms.VertexShader]; p != nil {
		label = p.Name()
	}
	pso.Backend = &Pipeline{ID: id, Label: label}
	rs.created.Add(1)
	rs.logger.Load().Debug("null: pso created", "id", id, "label", label)
	return true
}

// DestroyPSO releases a pipeline created by CreatePSO.
func (rs *RenderSystem) DestroyPSO(pso *hlms.PSO) {
	if _, ok := pso.Backend.(*Pipeline); !ok {
		return
	}
	pso.Backend = nil
	rs.destroyed.Add(1)
}

// Stats counts pipeline traffic.
type Stats struct {
	Created   uint64
	Deferred  uint64
	Destroyed uint64
}

// Live returns the number of pipelines not yet destroyed.
func (s Stats) Live() uint64 { return s.Created - s.Destroyed }

// Stats returns a snapshot of the counters.
func (rs *RenderSystem) Stats() Stats {
	return Stats{
		Created:   rs.created.Load(),
		Deferred:  rs.deferred.Load(),
		Destroyed: rs.destroyed.Load(),
	}
}
