package hlms

// Combined hash layout: [type:3][renderable:21][pass:8].
const (
	TypeBits       = 3
	RenderableBits = 21
	PassBits       = 8

	TypeShift       = 32 - TypeBits
	RenderableShift = TypeShift - RenderableBits
	PassShift       = RenderableShift - PassBits

	TypeMask           = 1<<TypeBits - 1
	RenderableMask     = 1<<RenderableBits - 1
	PassMask           = 1<<PassBits - 1
	RenderableTypeMask = 1<<(TypeBits+RenderableBits) - 1
)

// PackHash builds a combined hash. Fields wider than their slot are
// truncated.
func PackHash(t Type, renderable, pass uint32) uint32 {
	return uint32(t&TypeMask)<<TypeShift |
		(renderable&RenderableMask)<<RenderableShift |
		(pass&PassMask)<<PassShift
}

// HashType extracts the material type of a combined hash.
func HashType(h uint32) Type { return Type(h >> TypeShift & TypeMask) } //nolint:gosec // G115: 3-bit field

// HashRenderable extracts the renderable cache index of a combined hash.
func HashRenderable(h uint32) uint32 { return h >> RenderableShift & RenderableMask }

// HashPass extracts the pass cache index of a combined hash.
func HashPass(h uint32) uint32 { return h >> PassShift & PassMask }
