package hlms

import (
	"github.com/gogpu/hlms/block"
	"github.com/gogpu/hlms/property"
)

// Listener observes generation and may inject properties. Hooks run on
// the goroutine performing the work; PropertiesMerged and the strong
// block hooks may run on compile workers concurrently.
//
// Embed [NopListener] to implement only some hooks.
type Listener interface {
	// PreparePassHash runs after the engine set its pass properties.
	PreparePassHash(h *Hlms, pass *PassInfo, props *property.Store)
	// PropertiesMerged runs after renderable and pass properties merged,
	// before the shader code cache lookup.
	PropertiesMerged(h *Hlms, wc *WorkerContext, pass *Cache, qr QueuedRenderable)
	// ShaderCacheEntryCreated runs after a PSO entry is complete.
	ShaderCacheEntryCreated(h *Hlms, entry *Cache, pass *Cache, qr QueuedRenderable)

	ApplyStrongMacroblockRules(m *block.Macroblock)
	ApplyStrongBlendblockRules(b *block.Blendblock)
}

// NopListener implements every Listener hook as a no-op.
type NopListener struct{}

func (NopListener) PreparePassHash(*Hlms, *PassInfo, *property.Store)                {}
func (NopListener) PropertiesMerged(*Hlms, *WorkerContext, *Cache, QueuedRenderable) {}
func (NopListener) ShaderCacheEntryCreated(*Hlms, *Cache, *Cache, QueuedRenderable)  {}
func (NopListener) ApplyStrongMacroblockRules(*block.Macroblock)                     {}
func (NopListener) ApplyStrongBlendblockRules(*block.Blendblock)                     {}

// Implementation supplies the material-type specific parts of generation
// (a PBS or Unlit model). Embed [BaseImplementation] for defaults.
type Implementation interface {
	// CalculateHashForPreCreate adds datablock-specific properties and
	// pieces to the normal variant of a renderable.
	CalculateHashForPreCreate(h *Hlms, r Renderable, props *property.Store, pieces *[NumShaderTypes]property.Pieces)
	// CalculateHashForPreCaster adapts the shadow caster variant. pieces
	// holds the normal variant, casterPieces the caster variant being built.
	CalculateHashForPreCaster(h *Hlms, r Renderable, props *property.Store,
		casterPieces, pieces *[NumShaderTypes]property.Pieces)
	// PreparePassHash adds pass properties of the material type.
	PreparePassHash(h *Hlms, pass *PassInfo, props *property.Store)
	// NotifyPropertiesMerged runs on the worker after merging. An error
	// aborts generation of the entry.
	NotifyPropertiesMerged(h *Hlms, wc *WorkerContext) error

	ApplyStrongMacroblockRules(bits block.MacroBits, m *block.Macroblock)
	ApplyStrongBlendblockRules(bits block.BlendBits, b *block.Blendblock)
}

// BaseImplementation adds nothing to hashing and applies strong block
// bits with [block.ApplyMacroblock] and [block.ApplyBlendblock].
type BaseImplementation struct{}

func (BaseImplementation) CalculateHashForPreCreate(*Hlms, Renderable, *property.Store, *[NumShaderTypes]property.Pieces) {
}

func (BaseImplementation) CalculateHashForPreCaster(*Hlms, Renderable, *property.Store,
	*[NumShaderTypes]property.Pieces, *[NumShaderTypes]property.Pieces) {
}

func (BaseImplementation) PreparePassHash(*Hlms, *PassInfo, *property.Store) {}

func (BaseImplementation) NotifyPropertiesMerged(*Hlms, *WorkerContext) error { return nil }

func (BaseImplementation) ApplyStrongMacroblockRules(bits block.MacroBits, m *block.Macroblock) {
	*m = block.ApplyMacroblock(bits, *m)
}

func (BaseImplementation) ApplyStrongBlendblockRules(bits block.BlendBits, b *block.Blendblock) {
	*b = block.ApplyBlendblock(bits, *b)
}
