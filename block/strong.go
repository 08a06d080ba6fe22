package block

// A bit field inside a strong-block word.
type bitField struct {
	shift uint8
	width uint8
}

func (f bitField) mask() uint32 { return (uint32(1)<<f.width - 1) << f.shift }

func (f bitField) get(w uint32) uint32 { return (w & f.mask()) >> f.shift }

func (f bitField) set(w, v uint32) uint32 {
	return w&^f.mask() | (v<<f.shift)&f.mask()
}

// MacroField names a field of [MacroBits].
type MacroField uint8

// Macroblock override fields.
const (
	MacroScissorTest MacroField = iota
	MacroDepthClamp
	MacroDepthCheck
	MacroDepthWrite
	MacroDepthFunc
	MacroCullMode
	MacroPolygonMode

	numMacroFields
)

var macroFields = [numMacroFields]bitField{
	MacroScissorTest: {0, 2},
	MacroDepthClamp:  {2, 2},
	MacroDepthCheck:  {4, 2},
	MacroDepthWrite:  {6, 2},
	MacroDepthFunc:   {8, 4},
	MacroCullMode:    {12, 4},
	MacroPolygonMode: {16, 2},
}

// Toggle values for the two-bit boolean fields of [MacroBits].
const (
	ToggleKeep    uint32 = 0
	ToggleEnable  uint32 = 1
	ToggleDisable uint32 = 2
	ToggleInvert  uint32 = 3
)

// CullInvert is the [MacroCullMode] value that swaps clockwise and
// anticlockwise culling. Any other mode, CullNone included, becomes
// clockwise.
const CullInvert uint32 = 4

// MacroBits overrides macroblock state for every renderable drawn in a
// pass. Zero fields leave the material's value alone. Boolean fields take
// a toggle value; DepthFunc stores CompareFunction+1; CullMode and
// PolygonMode store the enum value.
//
// The layout is stored in pass properties and must stay stable.
type MacroBits uint32

// Named macroblock overrides.
const (
	ScissorTestEnabled  MacroBits = 1 << 0
	ScissorTestDisabled MacroBits = 1 << 1
	InvertScissorTest   MacroBits = ScissorTestEnabled | ScissorTestDisabled
	DepthClampEnabled   MacroBits = 1 << 2
	DepthClampDisabled  MacroBits = 1 << 3
	InvertDepthClamp    MacroBits = DepthClampEnabled | DepthClampDisabled
	DepthCheckEnabled   MacroBits = 1 << 4
	DepthCheckDisabled  MacroBits = 1 << 5
	InvertDepthCheck    MacroBits = DepthCheckEnabled | DepthCheckDisabled
	DepthWriteEnabled   MacroBits = 1 << 6
	DepthWriteDisabled  MacroBits = 1 << 7
	InvertDepthWrite    MacroBits = DepthWriteEnabled | DepthWriteDisabled
	InvertCullingMode   MacroBits = MacroBits(CullInvert) << 12
)

// Field returns the raw value of f.
func (b MacroBits) Field(f MacroField) uint32 { return macroFields[f].get(uint32(b)) }

// With returns b with f set to v.
func (b MacroBits) With(f MacroField, v uint32) MacroBits {
	return MacroBits(macroFields[f].set(uint32(b), v))
}

// WithDepthFunc returns b forcing the depth comparison to c.
func (b MacroBits) WithDepthFunc(c CompareFunction) MacroBits {
	return b.With(MacroDepthFunc, uint32(c)+1)
}

// WithCullMode returns b forcing the culling mode to c.
func (b MacroBits) WithCullMode(c CullingMode) MacroBits {
	return b.With(MacroCullMode, uint32(c))
}

// WithPolygonMode returns b forcing the polygon mode to p.
func (b MacroBits) WithPolygonMode(p PolygonMode) MacroBits {
	return b.With(MacroPolygonMode, uint32(p))
}

func applyToggle(v uint32, dst *bool) {
	switch v {
	case ToggleInvert:
		*dst = !*dst
	case ToggleEnable:
		*dst = true
	case ToggleDisable:
		*dst = false
	}
}

// ApplyMacroblock returns m with the overrides in bits applied.
func ApplyMacroblock(bits MacroBits, m Macroblock) Macroblock {
	if bits == 0 {
		return m
	}
	applyToggle(bits.Field(MacroScissorTest), &m.ScissorTest)
	applyToggle(bits.Field(MacroDepthClamp), &m.DepthClamp)
	applyToggle(bits.Field(MacroDepthCheck), &m.DepthCheck)
	applyToggle(bits.Field(MacroDepthWrite), &m.DepthWrite)

	if v := bits.Field(MacroDepthFunc); v > 0 {
		m.DepthFunc = CompareFunction(v - 1) //nolint:gosec // G115: 4-bit field
	}

	switch v := bits.Field(MacroCullMode); {
	case v == CullInvert:
		if m.CullMode == CullClockwise {
			m.CullMode = CullAnticlockwise
		} else {
			m.CullMode = CullClockwise
		}
	case v > 0:
		m.CullMode = CullingMode(v) //nolint:gosec // G115: 4-bit field
	}

	if v := bits.Field(MacroPolygonMode); v > 0 {
		m.PolygonMode = PolygonMode(v) //nolint:gosec // G115: 2-bit field
	}
	return m
}

// BlendField names a field of [BlendBits].
type BlendField uint8

// Blendblock override fields.
const (
	BlendSourceFactor BlendField = iota
	BlendDestFactor
	BlendSourceFactorAlpha
	BlendDestFactorAlpha
	BlendOperationField
	BlendOperationAlphaField

	numBlendFields
)

var blendFields = [numBlendFields]bitField{
	BlendSourceFactor:        {0, 4},
	BlendDestFactor:          {4, 4},
	BlendSourceFactorAlpha:   {8, 4},
	BlendDestFactorAlpha:     {12, 4},
	BlendOperationField:      {16, 4},
	BlendOperationAlphaField: {20, 4},
}

// BlendBits overrides blendblock state for a pass. Each field stores the
// enum value plus one; zero leaves the material's value alone.
type BlendBits uint32

// Field returns the raw value of f.
func (b BlendBits) Field(f BlendField) uint32 { return blendFields[f].get(uint32(b)) }

// With returns b with f set to v.
func (b BlendBits) With(f BlendField, v uint32) BlendBits {
	return BlendBits(blendFields[f].set(uint32(b), v))
}

// WithFactor returns b forcing factor field f to v.
func (b BlendBits) WithFactor(f BlendField, v BlendFactor) BlendBits {
	return b.With(f, uint32(v)+1)
}

// WithOperation returns b forcing operation field f to op.
func (b BlendBits) WithOperation(f BlendField, op BlendOperation) BlendBits {
	return b.With(f, uint32(op)+1)
}

// ApplyBlendblock returns bl with the overrides in bits applied.
func ApplyBlendblock(bits BlendBits, bl Blendblock) Blendblock {
	if bits == 0 {
		return bl
	}
	factors := [...]struct {
		field BlendField
		dst   *BlendFactor
	}{
		{BlendSourceFactor, &bl.SourceFactor},
		{BlendDestFactor, &bl.DestFactor},
		{BlendSourceFactorAlpha, &bl.SourceFactorAlpha},
		{BlendDestFactorAlpha, &bl.DestFactorAlpha},
	}
	for _, f := range factors {
		if v := bits.Field(f.field); v > 0 {
			*f.dst = BlendFactor(v - 1) //nolint:gosec // G115: 4-bit field
		}
	}
	if v := bits.Field(BlendOperationField); v > 0 {
		bl.Operation = BlendOperation(v - 1) //nolint:gosec // G115: 4-bit field
	}
	if v := bits.Field(BlendOperationAlphaField); v > 0 {
		bl.OperationAlpha = BlendOperation(v - 1) //nolint:gosec // G115: 4-bit field
	}
	return bl
}
