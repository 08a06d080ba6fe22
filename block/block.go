// Package block defines the rasterizer (macroblock) and blend (blendblock)
// state shared by many materials, the Manager that interns them, and the
// strong-block bit sets a render pass uses to override them.
package block

// CompareFunction is a depth or alpha test comparison.
type CompareFunction uint8

// Compare functions. The numeric order is part of the strong-bit encoding.
const (
	CompareAlwaysFail CompareFunction = iota
	CompareAlwaysPass
	CompareLess
	CompareLessEqual
	CompareEqual
	CompareNotEqual
	CompareGreaterEqual
	CompareGreater

	numCompareFunctions
)

var compareNames = [...]string{
	"always_fail", "always_pass", "less", "less_equal",
	"equal", "not_equal", "greater_equal", "greater",
}

// String returns the lower-case name of c.
func (c CompareFunction) String() string {
	if c < numCompareFunctions {
		return compareNames[c]
	}
	return "unknown"
}

// ShaderOperator returns the shading-language operator for c. The always
// variants have no operator and map to "==".
func (c CompareFunction) ShaderOperator() string {
	switch c {
	case CompareLess:
		return "<"
	case CompareLessEqual:
		return "<="
	case CompareNotEqual:
		return "!="
	case CompareGreaterEqual:
		return ">="
	case CompareGreater:
		return ">"
	default:
		return "=="
	}
}

// CullingMode selects which triangle winding is discarded.
type CullingMode uint8

// Culling modes. Zero is not a valid mode.
const (
	CullNone          CullingMode = 1
	CullClockwise     CullingMode = 2
	CullAnticlockwise CullingMode = 3
)

// PolygonMode selects how triangles are rasterized. Zero is not a valid mode.
type PolygonMode uint8

// Polygon modes.
const (
	PolygonPoints    PolygonMode = 1
	PolygonWireframe PolygonMode = 2
	PolygonSolid     PolygonMode = 3
)

// BlendFactor is a blend equation factor.
type BlendFactor uint8

// Blend factors. The numeric order is part of the strong-bit encoding.
const (
	BlendOne BlendFactor = iota
	BlendZero
	BlendDestColour
	BlendSourceColour
	BlendOneMinusDestColour
	BlendOneMinusSourceColour
	BlendDestAlpha
	BlendSourceAlpha
	BlendOneMinusDestAlpha
	BlendOneMinusSourceAlpha
)

// BlendOperation combines source and destination terms.
type BlendOperation uint8

// Blend operations. The numeric order is part of the strong-bit encoding.
const (
	BlendOpAdd BlendOperation = iota
	BlendOpSubtract
	BlendOpReverseSubtract
	BlendOpMin
	BlendOpMax
)

// BlendType is a shorthand for a common factor pair.
type BlendType uint8

// Blend types accepted by [Blendblock.SetBlendType].
const (
	BlendTransparentAlpha BlendType = iota
	BlendTransparentColour
	BlendAdd
	BlendModulate
	BlendReplace
)

func (t BlendType) factors() (src, dst BlendFactor) {
	switch t {
	case BlendTransparentAlpha:
		return BlendSourceAlpha, BlendOneMinusSourceAlpha
	case BlendTransparentColour:
		return BlendSourceColour, BlendOneMinusSourceColour
	case BlendModulate:
		return BlendDestColour, BlendZero
	case BlendAdd:
		return BlendOne, BlendOne
	default:
		return BlendOne, BlendZero
	}
}

// Channel write masks.
const (
	ChannelRed           uint8 = 0x01
	ChannelGreen         uint8 = 0x02
	ChannelBlue          uint8 = 0x04
	ChannelAlpha         uint8 = 0x08
	ChannelAll                 = ChannelRed | ChannelGreen | ChannelBlue | ChannelAlpha
	ChannelForceDisabled uint8 = 0x10
)

// A2CSetting controls alpha to coverage.
type A2CSetting uint8

// Alpha to coverage settings.
const (
	A2CDisabled A2CSetting = iota
	A2CEnabled
	// A2CEnabledMsaaOnly turns alpha to coverage on only for multisampled targets.
	A2CEnabledMsaaOnly
)

// handle is the bookkeeping a Manager attaches to an interned block.
type handle struct {
	id         uint16
	lifetimeID uint16
	refs       uint16
}

// ID is valid while the block is referenced; it may be reused afterwards.
func (h *handle) ID() uint16 { return h.id }

// LifetimeID never changes for the life of the Manager. Renderables hash it.
func (h *handle) LifetimeID() uint16 { return h.lifetimeID }

// Refs returns the current reference count.
func (h *handle) Refs() uint16 { return h.refs }

// Macroblock is rasterizer state.
type Macroblock struct {
	handle

	ScissorTest         bool
	DepthClamp          bool
	DepthCheck          bool
	DepthWrite          bool
	DepthFunc           CompareFunction
	DepthBiasConstant   float32
	DepthBiasSlopeScale float32
	CullMode            CullingMode
	PolygonMode         PolygonMode
	AllowGlobalDefaults bool
}

// DefaultMacroblock returns depth-tested, depth-written, back-face culled
// solid rendering.
func DefaultMacroblock() Macroblock {
	return Macroblock{
		DepthCheck:          true,
		DepthWrite:          true,
		DepthFunc:           CompareLessEqual,
		CullMode:            CullClockwise,
		PolygonMode:         PolygonSolid,
		AllowGlobalDefaults: true,
	}
}

func (m Macroblock) state() Macroblock {
	m.handle = handle{}
	return m
}

// Equal compares rasterizer state, ignoring interning bookkeeping.
func (m *Macroblock) Equal(o *Macroblock) bool {
	return m.state() == o.state()
}

// Blendblock is blend state.
type Blendblock struct {
	handle

	AlphaToCoverage   A2CSetting
	ChannelMask       uint8
	IsTransparent     uint8
	SeparateBlend     bool
	SourceFactor      BlendFactor
	DestFactor        BlendFactor
	SourceFactorAlpha BlendFactor
	DestFactorAlpha   BlendFactor
	Operation         BlendOperation
	OperationAlpha    BlendOperation

	AllowGlobalDefaults bool
}

// DefaultBlendblock returns opaque replace blending.
func DefaultBlendblock() Blendblock {
	return Blendblock{
		ChannelMask:         ChannelAll,
		SourceFactor:        BlendOne,
		DestFactor:          BlendZero,
		SourceFactorAlpha:   BlendOne,
		DestFactorAlpha:     BlendZero,
		Operation:           BlendOpAdd,
		OperationAlpha:      BlendOpAdd,
		AllowGlobalDefaults: true,
	}
}

func (b Blendblock) state() Blendblock {
	b.handle = handle{}
	return b
}

// Equal compares blend state, ignoring interning bookkeeping.
func (b *Blendblock) Equal(o *Blendblock) bool {
	return b.state() == o.state()
}

// SetBlendType sets colour and alpha factors from a single blend type.
func (b *Blendblock) SetBlendType(t BlendType) {
	b.SeparateBlend = false
	b.SourceFactor, b.DestFactor = t.factors()
	b.SourceFactorAlpha, b.DestFactorAlpha = b.SourceFactor, b.DestFactor
}

// SetSeparateBlendType sets colour and alpha factors independently.
func (b *Blendblock) SetSeparateBlendType(colour, alpha BlendType) {
	b.SeparateBlend = true
	b.SourceFactor, b.DestFactor = colour.factors()
	b.SourceFactorAlpha, b.DestFactorAlpha = alpha.factors()
}

// CalculateSeparateBlendMode derives SeparateBlend from the factors.
func (b *Blendblock) CalculateSeparateBlendMode() {
	b.SeparateBlend = b.SourceFactor != b.SourceFactorAlpha ||
		b.DestFactor != b.DestFactorAlpha ||
		b.Operation != b.OperationAlpha
}

// SetForceTransparentRenderOrder makes the render queue sort the block
// back to front even when it does not blend.
func (b *Blendblock) SetForceTransparentRenderOrder(force bool) {
	if force {
		b.IsTransparent |= 0x02
	} else {
		b.IsTransparent &^= 0x02
	}
}

// IsAutoTransparent reports whether the factors blend with the destination.
func (b *Blendblock) IsAutoTransparent() bool { return b.IsTransparent&0x01 != 0 }

// IsForcedTransparent reports whether transparent ordering was forced.
func (b *Blendblock) IsForcedTransparent() bool { return b.IsTransparent&0x02 != 0 }

// AlphaToCoverageFor reports whether alpha to coverage is active for a
// target with the given sample count.
func (b *Blendblock) AlphaToCoverageFor(samples uint8) bool {
	switch b.AlphaToCoverage {
	case A2CEnabled:
		return true
	case A2CEnabledMsaaOnly:
		return samples > 1
	}
	return false
}

func (b *Blendblock) blends() bool {
	return b.SourceFactor != BlendOne || b.DestFactor != BlendZero ||
		b.SourceFactorAlpha != BlendOne || b.DestFactorAlpha != BlendZero
}
