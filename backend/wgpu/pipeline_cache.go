// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/hlms"
	hlmsnaga "github.com/gogpu/hlms/program/naga"
)

// ErrNoVertexShader is logged for PSOs without a vertex program.
var ErrNoVertexShader = errors.New("wgpu: pso has no vertex shader")

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// Pipeline is stored in hlms.PSO.Backend. PSOs with identical GPU state
// share one Pipeline.
type Pipeline struct {
	hash   uint64
	raw    hal.RenderPipeline
	vs, fs *shaderModule
	refs   atomic.Int32
}

// Raw returns the HAL pipeline.
func (p *Pipeline) Raw() hal.RenderPipeline { return p.raw }

// Hash returns the descriptor hash the pipeline is cached under.
func (p *Pipeline) Hash() uint64 { return p.hash }

type shaderModule struct {
	key  uint64
	raw  hal.ShaderModule
	refs int
}

// pipelineCache caches render pipelines by descriptor hash and shader
// modules by microcode hash.
//
// It uses RWMutex with double-check locking: hits only take the read
// lock.
type pipelineCache struct {
	mu        sync.RWMutex
	pipelines map[uint64]*Pipeline
	modules   map[uint64]*shaderModule

	hits   uint64
	misses uint64
}

func newPipelineCache() *pipelineCache {
	return &pipelineCache{
		pipelines: make(map[uint64]*Pipeline),
		modules:   make(map[uint64]*shaderModule),
	}
}

// pipelineRequest is a descriptor whose shader modules are not resolved
// yet.
type pipelineRequest struct {
	desc   hal.RenderPipelineDescriptor
	vs, fs hlms.Program
	vsKey  uint64
	fsKey  uint64
}

// getOrCreate returns the pipeline for req, creating modules and the
// pipeline on a miss. The returned pipeline holds one new reference.
func (c *pipelineCache) getOrCreate(device hal.Device, req *pipelineRequest) (*Pipeline, error) {
	descHash := hashRenderPipeline(req)

	// Fast path: read lock
	c.mu.RLock()
	if p, ok := c.pipelines[descHash]; ok {
		p.refs.Add(1)
		c.mu.RUnlock()
		atomic.AddUint64(&c.hits, 1)
		return p, nil
	}
	c.mu.RUnlock()

	// Slow path: write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pipelines[descHash]; ok {
		p.refs.Add(1)
		atomic.AddUint64(&c.hits, 1)
		return p, nil
	}

	vs, err := c.acquireModule(device, req.vs, req.vsKey)
	if err != nil {
		return nil, err
	}
	var fs *shaderModule
	if req.fs != nil {
		if fs, err = c.acquireModule(device, req.fs, req.fsKey); err != nil {
			c.releaseModule(device, vs)
			return nil, err
		}
	}

	desc := req.desc
	desc.Vertex.Module = vs.raw
	if desc.Fragment != nil {
		frag := *desc.Fragment
		frag.Module = fs.raw
		desc.Fragment = &frag
	}
	raw, err := device.CreateRenderPipeline(&desc)
	if err != nil {
		c.releaseModule(device, vs)
		c.releaseModule(device, fs)
		return nil, fmt.Errorf("create render pipeline %q: %w", desc.Label, err)
	}

	p := &Pipeline{hash: descHash, raw: raw, vs: vs, fs: fs}
	p.refs.Store(1)
	c.pipelines[descHash] = p
	atomic.AddUint64(&c.misses, 1)
	return p, nil
}

// release drops one reference to p and destroys it with the last one.
func (c *pipelineCache) release(device hal.Device, p *Pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.refs.Add(-1) > 0 {
		return
	}
	delete(c.pipelines, p.hash)
	device.DestroyRenderPipeline(p.raw)
	c.releaseModule(device, p.vs)
	c.releaseModule(device, p.fs)
}

// acquireModule returns the module for prog. Caller must hold c.mu.
func (c *pipelineCache) acquireModule(device hal.Device, prog hlms.Program, key uint64) (*shaderModule, error) {
	if m, ok := c.modules[key]; ok {
		m.refs++
		return m, nil
	}
	raw, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  prog.Name(),
		Source: shaderSource(prog),
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module %q: %w", prog.Name(), err)
	}
	m := &shaderModule{key: key, raw: raw, refs: 1}
	c.modules[key] = m
	return m, nil
}

// releaseModule drops one reference to m. Caller must hold c.mu.
func (c *pipelineCache) releaseModule(device hal.Device, m *shaderModule) {
	if m == nil {
		return
	}
	m.refs--
	if m.refs > 0 {
		return
	}
	delete(c.modules, m.key)
	device.DestroyShaderModule(m.raw)
}

// destroyAll destroys every pipeline and module regardless of references.
func (c *pipelineCache) destroyAll(device hal.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pipelines {
		device.DestroyRenderPipeline(p.raw)
	}
	for _, m := range c.modules {
		device.DestroyShaderModule(m.raw)
	}
	c.pipelines = make(map[uint64]*Pipeline)
	c.modules = make(map[uint64]*shaderModule)
}

func (c *pipelineCache) counts() (pipelines, modules int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines), len(c.modules)
}

// shaderSource returns SPIR-V words for SPIR-V microcode and the
// program's source as WGSL otherwise.
func shaderSource(prog hlms.Program) hal.ShaderSource {
	code := prog.Microcode()
	if len(code) >= 4 && binary.LittleEndian.Uint32(code) == spirvMagic {
		if words, err := hlmsnaga.Words(code); err == nil {
			return hal.ShaderSource{SPIRV: words}
		}
	}
	return hal.ShaderSource{WGSL: prog.Source()}
}

// moduleKey hashes what a shader module is built from.
func moduleKey(prog hlms.Program) uint64 {
	if prog == nil {
		return 0
	}
	h := fnv.New64a()
	hashWriteString(h, prog.Profile())
	_, _ = h.Write(prog.Microcode())
	hashWriteString(h, prog.Source())
	return h.Sum64()
}

// hashRenderPipeline computes an FNV-1a hash over every field of req that
// affects the pipeline.
func hashRenderPipeline(req *pipelineRequest) uint64 {
	desc := &req.desc
	h := fnv.New64a()

	hashWriteUint64(h, req.vsKey)
	hashWriteString(h, desc.Vertex.EntryPoint)
	hashWriteUint64(h, req.fsKey)
	if desc.Fragment != nil {
		hashWriteString(h, desc.Fragment.EntryPoint)
		hashWriteUint32(h, uint32(len(desc.Fragment.Targets))) //nolint:gosec // G115: at most 8 targets
		for i := range desc.Fragment.Targets {
			t := &desc.Fragment.Targets[i]
			hashWriteUint32(h, uint32(t.Format))
			hashWriteUint32(h, uint32(t.WriteMask))
			hashWriteBool(h, t.Blend != nil)
			if t.Blend != nil {
				hashWriteUint32(h, uint32(t.Blend.Color.SrcFactor))
				hashWriteUint32(h, uint32(t.Blend.Color.DstFactor))
				hashWriteUint32(h, uint32(t.Blend.Color.Operation))
				hashWriteUint32(h, uint32(t.Blend.Alpha.SrcFactor))
				hashWriteUint32(h, uint32(t.Blend.Alpha.DstFactor))
				hashWriteUint32(h, uint32(t.Blend.Alpha.Operation))
			}
		}
	}

	hashWriteUint32(h, uint32(len(desc.Vertex.Buffers))) //nolint:gosec // G115: bounded by GPU limits
	for i := range desc.Vertex.Buffers {
		layout := &desc.Vertex.Buffers[i]
		hashWriteUint64(h, layout.ArrayStride)
		hashWriteUint32(h, uint32(layout.StepMode))
		hashWriteUint32(h, uint32(len(layout.Attributes))) //nolint:gosec // G115: bounded by GPU limits
		for j := range layout.Attributes {
			attr := &layout.Attributes[j]
			hashWriteUint32(h, attr.ShaderLocation)
			hashWriteUint32(h, uint32(attr.Format))
			hashWriteUint64(h, attr.Offset)
		}
	}

	hashWriteUint32(h, uint32(desc.Primitive.Topology))
	hashWriteUint32(h, uint32(desc.Primitive.FrontFace))
	hashWriteUint32(h, uint32(desc.Primitive.CullMode))

	hashWriteBool(h, desc.DepthStencil != nil)
	if ds := desc.DepthStencil; ds != nil {
		hashWriteUint32(h, uint32(ds.Format))
		hashWriteBool(h, ds.DepthWriteEnabled)
		hashWriteUint32(h, uint32(ds.DepthCompare))
		for _, f := range [2]*hal.StencilFaceState{&ds.StencilFront, &ds.StencilBack} {
			hashWriteUint32(h, uint32(f.Compare))
			hashWriteUint32(h, uint32(f.FailOp))
			hashWriteUint32(h, uint32(f.DepthFailOp))
			hashWriteUint32(h, uint32(f.PassOp))
		}
		hashWriteUint32(h, uint32(ds.StencilReadMask))
		hashWriteUint32(h, uint32(ds.StencilWriteMask))
	}

	hashWriteUint32(h, uint32(desc.Multisample.Count))
	hashWriteBool(h, desc.Multisample.AlphaToCoverageEnabled)
	return h.Sum64()
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

//nolint:gosec // G115: names and entry points are short
func hashWriteString(h hash.Hash64, s string) {
	hashWriteUint32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}
