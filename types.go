package hlms

// Type identifies a material type. It occupies the top bits of every
// combined hash, so at most 8 types exist.
type Type uint8

// Material types.
const (
	// TypeLowLevel is the legacy material path. It never compiles on a
	// worker.
	TypeLowLevel Type = iota
	TypePbs
	TypeToon
	TypeUnlit
	TypeUser0
	TypeUser1
	TypeUser2
	TypeUser3

	NumTypes
)

var typeNames = [NumTypes]string{
	"low_level", "pbs", "toon", "unlit", "user0", "user1", "user2", "user3",
}

func (t Type) String() string {
	if t < NumTypes {
		return typeNames[t]
	}
	return "unknown"
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, bool) {
	for i, name := range typeNames {
		if name == s {
			return Type(i), true //nolint:gosec // G115: i < NumTypes
		}
	}
	return NumTypes, false
}

// ShaderType is a programmable pipeline stage.
type ShaderType uint8

// Shader stages, in generation order.
const (
	VertexShader ShaderType = iota
	PixelShader
	GeometryShader
	HullShader
	DomainShader

	NumShaderTypes
)

var (
	stageNames    = [NumShaderTypes]string{"vertex", "pixel", "geometry", "hull", "domain"}
	templateNames = [NumShaderTypes]string{
		"VertexShader_vs", "PixelShader_ps", "GeometryShader_gs", "HullShader_hs", "DomainShader_ds",
	}
	piecePatterns = [NumShaderTypes]string{"piece_vs", "piece_ps", "piece_gs", "piece_hs", "piece_ds"}
)

func (s ShaderType) String() string {
	if s < NumShaderTypes {
		return stageNames[s]
	}
	return "unknown"
}

// TemplateName returns the template file name of s without extension,
// e.g. "PixelShader_ps".
func (s ShaderType) TemplateName() string { return templateNames[s] }

// PrecisionMode selects the float precision generated shaders use.
type PrecisionMode uint8

// Precision modes.
const (
	PrecisionFull32 PrecisionMode = iota
	// PrecisionMidf16 uses 16-bit floats where the hardware has them.
	PrecisionMidf16
	// PrecisionRelaxed uses relaxed-precision qualifiers.
	PrecisionRelaxed
)

func (p PrecisionMode) String() string {
	switch p {
	case PrecisionMidf16:
		return "midf16"
	case PrecisionRelaxed:
		return "relaxed"
	default:
		return "full32"
	}
}

// ParsePrecisionMode is the inverse of PrecisionMode.String.
func ParsePrecisionMode(s string) (PrecisionMode, bool) {
	switch s {
	case "full32", "":
		return PrecisionFull32, true
	case "midf16":
		return PrecisionMidf16, true
	case "relaxed":
		return PrecisionRelaxed, true
	}
	return PrecisionFull32, false
}
