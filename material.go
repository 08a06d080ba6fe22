package hlms

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/gogpu/hlms/block"
	"github.com/gogpu/hlms/property"
)

// Shadow map uv properties that are re-exposed to templates as float
// pieces once merged.
var shadowUvSuffixes = [...]string{
	"_uv_min_x", "_uv_min_y", "_uv_max_x", "_uv_max_y", "_uv_length_x", "_uv_length_y",
}

func finalHash(qr QueuedRenderable, pass *Cache, caster bool) uint32 {
	hash, casterHash := qr.Renderable.HlmsHashes()
	if caster {
		hash = casterHash
	}
	return hash | pass.Hash
}

// GetMaterial returns the PSO cache entry for drawing qr in pass. last is
// the entry returned for the previous renderable of the same pass; when
// its hash matches, it is returned without a lookup.
//
// With a nil queue, or for TypeLowLevel, missing entries are generated
// synchronously on slot 0. Otherwise a stub entry is returned and a
// request pushed to queue; the stub carries no shaders until
// [CompileQueue.Fire] has run.
func (h *Hlms) GetMaterial(last, pass *Cache, qr QueuedRenderable, caster bool, queue *CompileQueue) (*Cache, error) {
	if qr.Renderable == nil || qr.Renderable.Datablock() == nil {
		return nil, opError("Hlms.GetMaterial", qr.Object, ErrNilRenderable)
	}
	hash := finalHash(qr, pass, caster)
	if last != nil && last.Hash == hash {
		return last, nil
	}

	entry := h.ShaderCache(hash)
	async := queue != nil && h.typ != TypeLowLevel
	switch {
	case entry == nil && !async:
		h.log().Debug("hlms: shader cache miss", "hlms", h.name, "hash", hash)
		return h.createShaderCacheEntry(pass, hash, qr, nil, time.Time{}, h.workerSlot(0))
	case entry == nil:
		entry = h.addStubShaderCache(hash)
		queue.PushRequest(h, CompileRequest{Pass: pass, Queued: qr, Stub: entry, Caster: caster})
	case entry.Flags() == CacheFlagsCompilationRequired:
		if !async {
			if !entry.claim() {
				return entry, nil
			}
			return h.CompileStubEntry(entry, pass, qr, time.Time{}, h.workerSlot(0))
		}
		queue.PushRequest(h, CompileRequest{Pass: pass, Queued: qr, Stub: entry, Caster: caster})
	}
	return entry, nil
}

// GetMaterialWarmUp queues a warm-up compilation of qr in pass when its
// entry does not exist yet, and returns the final hash so callers can
// skip repeated renderables. Warm-up requests compile with no deadline.
func (h *Hlms) GetMaterialWarmUp(lastHash uint32, pass *Cache, qr QueuedRenderable, caster bool, queue *CompileQueue) uint32 {
	hash := finalHash(qr, pass, caster)
	if lastHash == hash || h.typ == TypeLowLevel || queue == nil {
		return hash
	}
	if h.ShaderCache(hash) == nil {
		stub := h.addStubShaderCache(hash)
		queue.PushWarmUpRequest(h, CompileRequest{Pass: pass, Queued: qr, Stub: stub, Caster: caster})
	}
	return hash
}

// CompileStubEntry fills stub, which the caller must have claimed, on the
// worker slot wc. A zero deadline waits for the render system as long as
// it takes.
func (h *Hlms) CompileStubEntry(stub, pass *Cache, qr QueuedRenderable, deadline time.Time, wc *WorkerContext) (*Cache, error) {
	entry, err := h.createShaderCacheEntry(pass, stub.Hash, qr, stub, deadline, wc)
	if err != nil {
		stub.setFlags(CacheFlagsNone)
		return nil, err
	}
	return entry, nil
}

// createShaderCacheEntry merges the renderable and pass properties,
// generates or reuses shaders and builds the PSO. With a stub it fills the
// stub in place; otherwise the entry is inserted in the shader cache.
func (h *Hlms) createShaderCacheEntry(pass *Cache, hash uint32, qr QueuedRenderable,
	stub *Cache, deadline time.Time, wc *WorkerContext) (*Cache, error) {
	r := qr.Renderable
	d := r.Datablock()
	rc := h.RenderableCache(hash)

	wc.Reset()
	wc.Props.CopyFrom(rc.Props)
	for _, p := range pass.Props.All() {
		wc.Props.Set(p.Key, p.Value)
	}
	wc.clearTextureRegs()
	for _, ext := range h.rsExtensions {
		wc.Props.Set(ext, 1)
	}
	for i := range wc.Pieces {
		wc.Pieces[i] = rc.Pieces[i].Clone()
	}

	if err := h.notifyPropertiesMerged(wc); err != nil {
		h.log().Error("hlms: merging properties failed", "hlms", h.name,
			"datablock", d.Name(), "object", qr.Object, "err", err)
		return nil, opError("Hlms.CreateShaderCacheEntry", d.Name(), errors.Join(ErrMerge, err))
	}
	h.listener.PropertiesMerged(h, wc, pass, qr)

	wc.Props.Unset(PropPsoMacroblock)
	wc.Props.Unset(PropPsoBlendblock)
	wc.Props.Unset(PropInputLayoutID)

	merged := RenderableCache{Props: wc.Props.Clone()}
	for i := range merged.Pieces {
		merged.Pieces[i] = wc.Pieces[i].Clone()
	}

	var code *ShaderCodeCache
	h.mu.Lock()
	for _, c := range h.shaderCodeCache {
		if c.Merged.Equal(&merged) {
			code = c
			break
		}
	}
	var counter uint32
	if code == nil {
		counter = h.shadersGenerated
		h.shadersGenerated++
	}
	h.mu.Unlock()

	if code == nil {
		var err error
		if code, err = h.compileShaderCode(wc, &merged, counter); err != nil {
			h.log().Error("hlms: shader generation failed", "hlms", h.name,
				"datablock", d.Name(), "object", qr.Object, "err", err)
			return nil, err
		}
	}

	caster := wc.Props.Get(PropShadowCaster, 0) != 0
	pso := PSO{
		Shaders:       code.Shaders,
		Macroblock:    d.Macroblock(caster),
		Blendblock:    d.Blendblock(caster),
		Pass:          pass.PSO.Pass,
		ClipDistances: clipDistanceMask(wc.Props.Get(PropPsoClipDistances, 0)),
		SampleMask:    math.MaxUint32,
	}
	if err := h.applyStrongBlockRules(wc.Props, &pso); err != nil {
		return nil, opError("Hlms.CreateShaderCacheEntry", d.Name(), err)
	}
	if vaos := r.VertexArrays(caster); len(vaos) > 0 {
		pso.VertexElements = vaos[0].Buffers
		pso.Operation = vaos[0].Operation
	}

	created := h.rs.CreatePSO(&pso, deadline)
	if !created {
		h.releaseStrongBlocks(&pso)
		h.log().Warn("hlms: pipeline creation deferred", "hlms", h.name,
			"datablock", d.Name(), "hash", hash)
		if stub == nil {
			// Left for the next GetMaterial to retry.
			stub = newCache(hash, h.typ, CacheFlagsCompilationRequired)
			h.addShaderCache(stub)
		} else if !stub.flags.CompareAndSwap(uint32(CacheFlagsCompilationRequested), uint32(CacheFlagsCompilationRequired)) {
			stub.setFlags(CacheFlagsNone)
		}
		return stub, nil
	}

	entry := stub
	if entry == nil {
		entry = newCache(hash, h.typ, CacheFlagsNone)
		entry.Props = merged.Props
		entry.PSO = pso
		h.addShaderCache(entry)
	} else {
		entry.PSO = pso
		entry.Props = merged.Props
		entry.setFlags(CacheFlagsNone)
	}

	h.listener.ShaderCacheEntryCreated(h, entry, pass, qr)
	if h.profile == "glsl" {
		applyTextureRegisters(&entry.PSO, wc)
	}
	h.log().Debug("hlms: pso created", "hlms", h.name, "hash", hash, "datablock", d.Name())
	return entry, nil
}

func clipDistanceMask(n int32) uint8 {
	if n <= 0 {
		return 0
	}
	mask := uint32(1)<<min(n, 8) - 1
	return uint8(mask) //nolint:gosec // G115: at most 8 distances
}

// notifyPropertiesMerged resolves msaa-only alpha to coverage and exposes
// the shadow map uv transforms as float pieces.
func (h *Hlms) notifyPropertiesMerged(wc *WorkerContext) error {
	if block.A2CSetting(wc.Props.Get(PropAlphaToCoverage, 0)) == block.A2CEnabledMsaaOnly && //nolint:gosec // G115: enum
		wc.Props.Get(PropMsaaSamples, 0) <= 1 {
		wc.Props.Set(PropAlphaToCoverage, 0)
	}

	n := int(wc.Props.Get(PropNumShadowMapLights, 0))
	for i := range n {
		for _, suffix := range shadowUvSuffixes {
			key := shadowMapProp(i, suffix)
			v := wc.Props.Get(key, -1)
			if v == -1 {
				continue
			}
			text := strconv.FormatFloat(float64(math.Float32frombits(uint32(v))), 'f', 6, 32) //nolint:gosec // G115: bit pattern
			for s := range wc.Pieces {
				if _, ok := wc.Pieces[s][key]; !ok {
					wc.Pieces[s][key] = text
				}
			}
		}
	}
	return h.impl.NotifyPropertiesMerged(h, wc)
}

// applyStrongBlockRules lets the listener and the implementation override
// the material blocks for the pass. Changed blocks are interned and
// marked for release with the entry.
func (h *Hlms) applyStrongBlockRules(props *property.Store, pso *PSO) error {
	m := *pso.Macroblock
	h.listener.ApplyStrongMacroblockRules(&m)
	h.impl.ApplyStrongMacroblockRules(block.MacroBits(uint32(props.Get(PropStrongMacroblockBits, 0))), &m) //nolint:gosec // G115: bit pattern
	if !m.Equal(pso.Macroblock) {
		mb, err := h.blocks.AcquireMacroblock(m)
		if err != nil {
			return err
		}
		pso.Macroblock = mb
		pso.StrongBlocks |= HasStrongMacroblock
	}

	b := *pso.Blendblock
	h.listener.ApplyStrongBlendblockRules(&b)
	h.impl.ApplyStrongBlendblockRules(block.BlendBits(uint32(props.Get(PropStrongBlendblockBits, 0))), &b) //nolint:gosec // G115: bit pattern
	if !b.Equal(pso.Blendblock) {
		bb, err := h.blocks.AcquireBlendblock(b)
		if err != nil {
			if pso.StrongBlocks&HasStrongMacroblock != 0 {
				_ = h.blocks.ReleaseMacroblock(pso.Macroblock)
			}
			return err
		}
		pso.Blendblock = bb
		pso.StrongBlocks |= HasStrongBlendblock
	}
	return nil
}

func (h *Hlms) releaseStrongBlocks(pso *PSO) {
	if pso.StrongBlocks&HasStrongMacroblock != 0 {
		if err := h.blocks.ReleaseMacroblock(pso.Macroblock); err != nil {
			h.log().Warn("hlms: releasing strong macroblock", "err", err)
		}
	}
	if pso.StrongBlocks&HasStrongBlendblock != 0 {
		if err := h.blocks.ReleaseBlendblock(pso.Blendblock); err != nil {
			h.log().Warn("hlms: releasing strong blendblock", "err", err)
		}
	}
	pso.StrongBlocks = 0
}

// applyTextureRegisters binds the sampler units recorded on wc to the
// programs that accept them.
func applyTextureRegisters(pso *PSO, wc *WorkerContext) {
	for i, prog := range pso.Shaders {
		sb, ok := prog.(SamplerBinder)
		if !ok {
			continue
		}
		for _, reg := range wc.TextureRegs(ShaderType(i)) { //nolint:gosec // G115: stage index
			units := make([]int32, max(reg.Count, 1))
			for j := range units {
				units[j] = reg.Unit + int32(j) //nolint:gosec // G115: unit counts are small
			}
			sb.BindSamplers(reg.Name, units)
		}
	}
}

func searchCache(list []*Cache, hash uint32) (int, bool) {
	return slices.BinarySearchFunc(list, hash, func(c *Cache, h uint32) int {
		switch {
		case c.Hash < h:
			return -1
		case c.Hash > h:
			return 1
		}
		return 0
	})
}

// ShaderCache returns the PSO cache entry with the given final hash, or
// nil.
func (h *Hlms) ShaderCache(hash uint32) *Cache {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i, ok := searchCache(h.shaderCache, hash); ok {
		return h.shaderCache[i]
	}
	return nil
}

func (h *Hlms) insertShaderCache(c *Cache) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i, ok := searchCache(h.shaderCache, c.Hash)
	if ok {
		panic("hlms: shader cache entry " + strconv.FormatUint(uint64(c.Hash), 16) + " already exists")
	}
	h.shaderCache = slices.Insert(h.shaderCache, i, c)
}

func (h *Hlms) addShaderCache(c *Cache) { h.insertShaderCache(c) }

func (h *Hlms) addStubShaderCache(hash uint32) *Cache {
	c := newCache(hash, h.typ, CacheFlagsCompilationRequired)
	h.insertShaderCache(c)
	return c
}

// NumShaderCacheEntries returns the number of PSO cache entries, stubs
// included.
func (h *Hlms) NumShaderCacheEntries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.shaderCache)
}

// ShaderCodeCache returns a snapshot of the generated shader code entries.
func (h *Hlms) ShaderCodeCache() []*ShaderCodeCache {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.shaderCodeCache)
}

// ClearShaderCache destroys every PSO and drops the pass and shader code
// caches. Renderable hashes stay valid. It must not overlap a Fire.
func (h *Hlms) ClearShaderCache() {
	h.mu.Lock()
	entries := h.shaderCache
	h.shaderCache = nil
	h.passCache = h.passCache[:0]
	h.shaderCodeCache = nil
	h.shadersGenerated = 0
	h.shaderCodeCacheDirty = true
	h.mu.Unlock()

	for _, c := range entries {
		if h.rs != nil {
			h.rs.DestroyPSO(&c.PSO)
		}
		h.releaseStrongBlocks(&c.PSO)
	}
	if len(entries) > 0 {
		h.log().Debug("hlms: shader cache cleared", "hlms", h.name, "entries", len(entries))
	}
}

// ShaderCodeCacheDirty reports whether shader code was added or cleared
// since the last call to ClearShaderCodeCacheDirty.
func (h *Hlms) ShaderCodeCacheDirty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shaderCodeCacheDirty
}

// ClearShaderCodeCacheDirty resets the flag returned by ShaderCodeCacheDirty.
func (h *Hlms) ClearShaderCodeCacheDirty() {
	h.mu.Lock()
	h.shaderCodeCacheDirty = false
	h.mu.Unlock()
}
