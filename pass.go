package hlms

import "github.com/gogpu/gputypes"

// LightType classifies a light for light counting.
type LightType uint8

// Light types. LightNone marks an empty slot.
const (
	LightNone LightType = iota
	LightDirectional
	LightPoint
	LightSpotlight
	LightVpl
	LightAreaApprox
	LightAreaLtc

	numLightTypes
)

// Light is the part of a scene light pass hashing looks at.
type Light struct {
	Type LightType
	// TextureMask reports whether an area light samples a mask texture.
	TextureMask bool
}

// ShadowMap describes one shadow map of a shadow node.
type ShadowMap struct {
	// Inactive maps are skipped, e.g. a directional-only map with no
	// directional light in the scene.
	Inactive bool
	// Texture indexes ShadowNode.Textures.
	Texture  int32
	ArrayIdx int32
	UvOffset [2]float32
	UvLength [2]float32
	// Light is the type of the light rendering into this map.
	Light LightType
}

// ShadowNode is the shadow setup a receiving pass samples from.
type ShadowNode struct {
	Name string
	// PssmSplits is the number of cascades of the first directional light,
	// or 0 without PSSM.
	PssmSplits int
	PssmBlend  bool
	PssmFade   bool
	// ActiveCastingLights is the number of lights that cast shadows this
	// frame. A PSSM light counts once.
	ActiveCastingLights int
	// Casters lists the shadow casting lights in shadow map order.
	Casters  []Light
	Maps     []ShadowMap
	Textures []gputypes.TextureFormat
}

// PrePassMode selects depth pre-pass behaviour.
type PrePassMode uint8

// Pre-pass modes.
const (
	PrePassNone PrePassMode = iota
	// PrePassCreate renders depth and normals for a later pass.
	PrePassCreate
	// PrePassUse samples the results of an earlier PrePassCreate.
	PrePassUse
)

// LightGatheringMode selects how lights are counted for pass properties.
type LightGatheringMode uint8

// Light gathering modes.
const (
	// LightGatherForward counts every global light up to the light limit.
	LightGatherForward LightGatheringMode = iota
	// LightGatherForwardPlus counts shadow casters by type plus global
	// directional and area lights; other lights go through clustering.
	LightGatherForwardPlus
	// LightGatherNone counts no lights.
	LightGatherNone
)

// PassInfo describes the pass being prepared. Render systems supply the
// attachment state through CurrentPassDescriptor.
type PassInfo struct {
	Name string

	Caster         bool
	DualParaboloid bool
	// CasterLight is the light type rendering into the shadow map during
	// caster passes.
	CasterLight LightType

	ShadowNode *ShadowNode
	// Lights is the global light list, closest first.
	Lights []Light

	// UvBaking renders into UV space of set UvBakingSet.
	UvBaking         bool
	UvBakingSet      int32
	BakeLightingOnly bool

	InstancedStereo bool
	GenNormalsGBuf  bool

	ReflectedCamera bool
	DepthClamp      bool

	PrePass PrePassMode
	// PrePassMsaaSamples is the sample count of the pre-pass textures when
	// they are multisampled.
	PrePassMsaaSamples uint32
	Ssr                bool
	Refractions        bool
}
