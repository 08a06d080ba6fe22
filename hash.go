package hlms

import (
	"github.com/gogpu/hlms/block"
	"github.com/gogpu/hlms/property"
)

// AddRenderableCache interns a property and piece set and returns its
// hash, with the material type and renderable fields filled in and the
// pass field zero. Equal sets return equal hashes.
//
// The sets are copied.
func (h *Hlms) AddRenderableCache(props *property.Store, pieces *[NumShaderTypes]property.Pieces) (uint32, error) {
	entry := RenderableCache{Props: props}
	if pieces != nil {
		entry.Pieces = *pieces
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	idx := -1
	for i := range h.renderableCache {
		if h.renderableCache[i].Equal(&entry) {
			idx = i
			break
		}
	}
	if idx < 0 {
		if len(h.renderableCache) >= h.renderableCapacity {
			return 0, opError("Hlms.AddRenderableCache", h.name, ErrRenderableCacheFull)
		}
		h.renderableCache = append(h.renderableCache, entry.clone())
		idx = len(h.renderableCache) - 1
	}
	return PackHash(h.typ, uint32(idx), 0), nil //nolint:gosec // G115: bounded by renderableCapacity
}

// RenderableCache returns the entry a renderable hash refers to. The
// returned value must not be modified.
func (h *Hlms) RenderableCache(hash uint32) *RenderableCache {
	idx := HashRenderable(hash)
	h.mu.Lock()
	defer h.mu.Unlock()
	if int(idx) >= len(h.renderableCache) {
		panic("hlms: renderable hash out of range")
	}
	return &h.renderableCache[idx]
}

// CalculateHashFor computes the normal and shadow caster hashes of r.
// It runs on the caller's slot and must not overlap other calls that use
// slot 0.
func (h *Hlms) CalculateHashFor(r Renderable) (hash, casterHash uint32, err error) {
	if r == nil || r.Datablock() == nil {
		return 0, 0, opError("Hlms.CalculateHashFor", "", ErrNilRenderable)
	}
	d := r.Datablock()
	wc := h.workerSlot(0)
	wc.Reset()
	props := wc.Props

	props.SetBool(PropSkeleton, r.HasSkeleton())
	numPoses, poseHalf, poseNormals := r.Poses()
	props.Set(PropPose, int32(numPoses)) //nolint:gosec // G115: pose counts are small
	props.SetBool(PropPoseHalfPrecision, poseHalf)
	props.SetBool(PropPoseNormals, poseNormals)

	numTexCoords := 0
	if vaos := r.VertexArrays(false); len(vaos) > 0 {
		numTexCoords = hashVertexLayout(props, &vaos[0])
	}
	props.Set(PropUvCount, int32(numTexCoords)) //nolint:gosec // G115: bounded by MaxUvSets

	h.setupSharedBasic(r, props, false)

	props.Set(PropPsoMacroblock, int32(d.Macroblock(false).LifetimeID()))
	props.Set(PropPsoBlendblock, int32(d.Blendblock(false).LifetimeID()))

	var pieces [NumShaderTypes]property.Pieces
	for i := range pieces {
		pieces[i] = property.Pieces{}
	}
	alphaTest, _ := d.AlphaTest()
	if alphaTest != block.CompareAlwaysPass {
		pieces[PixelShader][PieceAlphaTestCmpFunc] = alphaTest.ShaderOperator()
	}
	h.impl.CalculateHashForPreCreate(h, r, props, &pieces)

	hash, err = h.AddRenderableCache(props, &pieces)
	if err != nil {
		return 0, 0, err
	}

	// Casters only need depth: normals off, caster blending.
	props.Set(PropNormal, 0)
	props.Set(PropQTangent, 0)
	props.SetBool(PropAlphaBlend, d.Blendblock(true).IsAutoTransparent())
	props.Set(PropAlphaToCoverage, int32(d.Blendblock(true).AlphaToCoverage))

	var casterPieces [NumShaderTypes]property.Pieces
	for i := range casterPieces {
		casterPieces[i] = property.Pieces{}
	}
	if alphaTest != block.CompareAlwaysPass {
		casterPieces[PixelShader][PieceAlphaTestCmpFunc] = pieces[PixelShader][PieceAlphaTestCmpFunc]
	}
	if vaos := shadowVaos(r); len(vaos) > 0 {
		props.Set(PropInputLayoutID, int32(vaos[0].InputLayoutID))
	}
	h.impl.CalculateHashForPreCaster(h, r, props, &casterPieces, &pieces)
	props.Set(PropPsoMacroblock, int32(d.Macroblock(true).LifetimeID()))
	props.Set(PropPsoBlendblock, int32(d.Blendblock(true).LifetimeID()))

	casterHash, err = h.AddRenderableCache(props, &casterPieces)
	if err != nil {
		return 0, 0, err
	}
	h.log().Debug("hlms: renderable hashed", "hlms", h.name,
		"datablock", d.Name(), "hash", hash, "caster", casterHash)
	return hash, casterHash, nil
}

// hashVertexLayout sets the vertex input properties of vao and returns
// the number of texture coordinate sets.
func hashVertexLayout(props *property.Store, vao *VertexArray) int {
	var semIndex [numSemantics]int
	numTexCoords := 0
	for _, buf := range vao.Buffers {
		for _, e := range buf {
			idx := semIndex[e.Semantic]
			semIndex[e.Semantic]++
			comps := int32(e.Components()) //nolint:gosec // G115: at most 4

			switch e.Semantic {
			case SemanticNormal:
				if comps < 4 {
					props.Set(PropNormal, 1)
				} else {
					props.Set(PropQTangent, 1)
				}
			case SemanticTangent:
				props.Set(PropTangent, 1)
				if comps == 4 {
					props.Set(PropTangent4, 1)
				}
			case SemanticDiffuse:
				props.Set(PropColour, 1)
			case SemanticTexCoord:
				if idx >= MaxUvSets {
					continue
				}
				numTexCoords = max(numTexCoords, idx+1)
				props.Set(uvCountProps[idx], comps)
			case SemanticBlendWeights:
				props.Set(PropBonesPerVertex, comps)
			}
		}
	}
	props.Set(PropInputLayoutID, int32(vao.InputLayoutID))
	return numTexCoords
}

// setupSharedBasic sets the datablock and renderable properties common to
// both variants.
func (h *Hlms) setupSharedBasic(r Renderable, props *property.Store, caster bool) {
	d := r.Datablock()
	for i := range customPieceProps {
		if id := d.CustomPieceFile(ShaderType(i)); id != 0 { //nolint:gosec // G115: stage index
			props.Set(customPieceProps[i], id)
		}
	}

	alphaTest, _ := d.AlphaTest()
	props.SetBool(PropAlphaTest, alphaTest != block.CompareAlwaysPass)
	props.SetBool(PropAlphaTestShadowCasterOnly, d.ShadowAlphaTestOnly())
	props.SetBool(PropAlphaBlend, d.Blendblock(caster).IsAutoTransparent())
	props.Set(PropAlphaToCoverage, int32(d.Blendblock(caster).AlphaToCoverage))
	if d.AlphaHash() {
		props.Set(PropAlphaHash, 1)
	}
	if r.IdentityWorld() {
		props.Set(PropIdentityWorld, 1)
	}
	switch r.IdentityProjection() {
	case ProjectionIdentityDynamic:
		props.Set(PropIdentityViewProjDynamic, 1)
	case ProjectionIdentity:
		props.Set(PropIdentityViewProj, 1)
	}
}
