package hlms

import (
	"sync/atomic"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hlms/block"
	"github.com/gogpu/hlms/property"
)

// RenderableCache is the property and piece set a renderable hashed to.
type RenderableCache struct {
	Props  *property.Store
	Pieces [NumShaderTypes]property.Pieces
}

// Equal compares both sets by value.
func (c *RenderableCache) Equal(o *RenderableCache) bool {
	if !c.Props.Equal(o.Props) {
		return false
	}
	for i := range c.Pieces {
		if !c.Pieces[i].Equal(o.Pieces[i]) {
			return false
		}
	}
	return true
}

func (c *RenderableCache) clone() RenderableCache {
	out := RenderableCache{Props: c.Props.Clone()}
	for i := range c.Pieces {
		out.Pieces[i] = c.Pieces[i].Clone()
	}
	return out
}

// PassPso is the part of the pipeline the render pass decides. It is
// comparable so passes dedup with ==.
type PassPso struct {
	Stencil       StencilParams
	Colour        [MaxRenderTargets]gputypes.TextureFormat
	Resolve       [MaxRenderTargets]gputypes.TextureFormat
	Depth         gputypes.TextureFormat
	SampleCount   uint32
	AdapterID     uint32
	StrongMacro   block.MacroBits
	StrongBlend   block.BlendBits
	ForceCullNone bool
}

// PassCache is one distinct pass configuration.
type PassCache struct {
	Props *property.Store
	PSO   PassPso
}

// ShaderCodeCache holds the programs generated for one merged property set.
type ShaderCodeCache struct {
	Merged  RenderableCache
	Shaders [NumShaderTypes]Program
	// Sources holds the generated text per stage; empty for stages without
	// a template or disabled by it.
	Sources [NumShaderTypes]string
	// Counter is the shader counter the program names were built from.
	Counter uint32
}

// CacheFlags tracks deferred compilation of a stub entry.
type CacheFlags uint32

// Cache flags.
const (
	CacheFlagsNone CacheFlags = iota
	// CacheFlagsCompilationRequired marks a stub that still needs a worker.
	CacheFlagsCompilationRequired
	// CacheFlagsCompilationRequested marks a stub a worker has claimed.
	CacheFlagsCompilationRequested
)

func (f CacheFlags) String() string {
	switch f {
	case CacheFlagsCompilationRequired:
		return "compilation_required"
	case CacheFlagsCompilationRequested:
		return "compilation_requested"
	default:
		return "none"
	}
}

// Strong block flags of a PSO.
const (
	HasStrongMacroblock uint8 = 1 << iota
	HasStrongBlendblock
)

// PSO is everything a render system needs to build a pipeline.
type PSO struct {
	Shaders    [NumShaderTypes]Program
	Macroblock *block.Macroblock
	Blendblock *block.Blendblock
	Pass       PassPso

	VertexElements [][]VertexElement
	Operation      OperationType

	// ClipDistances is a mask of enabled user clip distances.
	ClipDistances uint8
	SampleMask    uint32

	// StrongBlocks records which of Macroblock and Blendblock were interned
	// by the pass rules and must be released with the entry.
	StrongBlocks uint8

	// Backend holds the render system's pipeline object.
	Backend any
}

// Cache is a PSO cache entry, or a pass when returned by PreparePassHash.
type Cache struct {
	Hash  uint32
	Type  Type
	Props *property.Store
	PSO   PSO

	flags atomic.Uint32
}

func newCache(hash uint32, t Type, flags CacheFlags) *Cache {
	c := &Cache{Hash: hash, Type: t}
	c.flags.Store(uint32(flags))
	return c
}

// Flags returns the compilation state. Safe for concurrent use.
func (c *Cache) Flags() CacheFlags { return CacheFlags(c.flags.Load()) }

func (c *Cache) setFlags(f CacheFlags) { c.flags.Store(uint32(f)) }

// claim moves a stub from required to requested. Only one caller wins.
func (c *Cache) claim() bool {
	return c.flags.CompareAndSwap(uint32(CacheFlagsCompilationRequired), uint32(CacheFlagsCompilationRequested))
}
