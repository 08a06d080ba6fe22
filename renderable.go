package hlms

import "github.com/gogpu/gputypes"

// VertexSemantic is the meaning of a vertex attribute.
type VertexSemantic uint8

// Vertex semantics.
const (
	SemanticPosition VertexSemantic = iota
	SemanticBlendWeights
	SemanticBlendIndices
	SemanticNormal
	SemanticDiffuse
	SemanticSpecular
	SemanticTexCoord
	SemanticBinormal
	SemanticTangent

	numSemantics
)

// VertexElement is one attribute of a vertex buffer.
type VertexElement struct {
	Semantic VertexSemantic
	Format   gputypes.VertexFormat
}

// Components returns the number of scalar components of the element.
func (e VertexElement) Components() int {
	switch e.Format {
	case gputypes.VertexFormatFloat32, gputypes.VertexFormatUint32, gputypes.VertexFormatSint32:
		return 1
	case gputypes.VertexFormatFloat32x2, gputypes.VertexFormatFloat16x2,
		gputypes.VertexFormatUint16x2, gputypes.VertexFormatSint16x2,
		gputypes.VertexFormatSnorm16x2, gputypes.VertexFormatUnorm16x2,
		gputypes.VertexFormatUint32x2, gputypes.VertexFormatSint32x2:
		return 2
	case gputypes.VertexFormatFloat32x3, gputypes.VertexFormatUint32x3, gputypes.VertexFormatSint32x3:
		return 3
	default:
		return 4
	}
}

// OperationType is the primitive topology of a draw.
type OperationType uint8

// Operation types.
const (
	OperationPointList OperationType = iota
	OperationLineList
	OperationLineStrip
	OperationTriangleList
	OperationTriangleStrip
	OperationTriangleFan
)

// VertexArray is the geometry a renderable draws with.
type VertexArray struct {
	// InputLayoutID identifies the vertex declaration across arrays that
	// share it.
	InputLayoutID uint16
	Buffers       [][]VertexElement
	Operation     OperationType
}

// IdentityProjection selects how a renderable's view-projection matrix is
// supplied.
type IdentityProjection uint8

// Identity projection modes.
const (
	ProjectionCamera IdentityProjection = iota
	ProjectionIdentity
	// ProjectionIdentityDynamic switches between identity and camera
	// projection per frame.
	ProjectionIdentityDynamic
)

// Renderable is anything the engine can generate a pipeline for.
type Renderable interface {
	Datablock() *Datablock
	// VertexArrays returns the geometry for normal or shadow caster passes.
	VertexArrays(caster bool) []VertexArray
	HasSkeleton() bool
	// Poses returns the number of pose animations and their storage.
	Poses() (count int, halfPrecision, normals bool)
	IdentityWorld() bool
	IdentityProjection() IdentityProjection
	// HlmsHashes returns the hashes stored by the last CalculateHashFor.
	HlmsHashes() (hash, casterHash uint32)
}

// QueuedRenderable is a renderable queued for drawing, with the name of
// the scene object it belongs to for diagnostics.
type QueuedRenderable struct {
	Renderable Renderable
	Object     string
}

// SubMesh is a plain Renderable. Its hashes are computed when a datablock
// is assigned with [Hlms.Assign] and recomputed when the datablock changes.
type SubMesh struct {
	Name        string
	Vaos        []VertexArray
	CasterVaos  []VertexArray
	Skeleton    bool
	PoseCount   int
	PoseHalf    bool
	PoseNormals bool
	WorldIdent  bool
	Projection  IdentityProjection

	datablock  *Datablock
	hash       uint32
	casterHash uint32
}

// Datablock returns the assigned material, or nil.
func (m *SubMesh) Datablock() *Datablock { return m.datablock }

// VertexArrays returns CasterVaos for caster passes when set, else Vaos.
func (m *SubMesh) VertexArrays(caster bool) []VertexArray {
	if caster && len(m.CasterVaos) > 0 {
		return m.CasterVaos
	}
	return m.Vaos
}

func (m *SubMesh) HasSkeleton() bool { return m.Skeleton }

func (m *SubMesh) Poses() (int, bool, bool) { return m.PoseCount, m.PoseHalf, m.PoseNormals }

func (m *SubMesh) IdentityWorld() bool { return m.WorldIdent }

func (m *SubMesh) IdentityProjection() IdentityProjection { return m.Projection }

func (m *SubMesh) HlmsHashes() (uint32, uint32) { return m.hash, m.casterHash }

// shadowVaos returns only vertex arrays dedicated to shadow passes.
func shadowVaos(r Renderable) []VertexArray {
	if m, ok := r.(*SubMesh); ok {
		return m.CasterVaos
	}
	return r.VertexArrays(true)
}
