package hlms

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/hlms/block"
	"github.com/gogpu/hlms/idstring"
	"github.com/gogpu/hlms/property"
)

// PreparePassHash computes the pass properties for the pass about to be
// rendered and returns its pass cache entry. Call it once per pass, before
// any GetMaterial for that pass. It uses slot 0.
func (h *Hlms) PreparePassHash(pass *PassInfo) (*Cache, error) {
	if h.rs == nil {
		return nil, opError("Hlms.PreparePassHash", pass.Name, ErrNoRenderSystem)
	}
	wc := h.workerSlot(0)
	wc.Reset()
	props := wc.Props

	if !h.rs.IsReverseDepth() {
		props.Set(PropNoReverseDepth, 1)
	}
	desc := h.rs.CurrentPassDescriptor()

	forceCullNone := false
	if !pass.Caster {
		var err error
		if forceCullNone, err = h.prepareReceiverPass(props, pass, &desc); err != nil {
			return nil, err
		}
	} else {
		prepareCasterPass(props, pass, &desc)
	}

	if pass.ReflectedCamera {
		props.Set(PropPsoClipDistances, 1)
		props.Set(PropGlobalClipPlanes, 1)
		if caps := h.rs.Capabilities(); !caps.UserClipPlanes {
			props.Set(PropEmulateClipDistances, 1)
		}
	}
	props.SetBool(PropRenderDepthOnly, desc.NumColourEntries() == 0)

	switch pass.PrePass {
	case PrePassCreate:
		props.Set(PropPrePass, 1)
		props.Set(PropGenNormalsGBuf, 1)
	case PrePassUse:
		props.Set(PropUsePrePass, 1)
		props.Set(PropVPos, 1)
		props.Set(PropScreenPosInt, 1)
		if pass.PrePassMsaaSamples > 1 {
			props.Set(PropUsePrePassMsaa, int32(pass.PrePassMsaaSamples)) //nolint:gosec // G115: sample counts are small
		}
		if pass.Ssr {
			props.Set(PropUseSsr, 1)
		}
	}
	if desc.SampleCount > 0 {
		props.Set(PropMsaaSamples, int32(desc.SampleCount)) //nolint:gosec // G115: sample counts are small
	}
	if pass.Refractions {
		props.Set(PropVPos, 1)
		props.Set(PropScreenPosInt, 1)
		props.Set(PropSsRefractions, 1)
	}

	h.impl.PreparePassHash(h, pass, props)
	h.listener.PreparePassHash(h, pass, props)

	pso := h.passPsoForScene(props, pass, &desc, forceCullNone)
	entry := PassCache{Props: props, PSO: pso}

	h.mu.Lock()
	idx := -1
	for i := range h.passCache {
		if h.passCache[i].PSO == entry.PSO && h.passCache[i].Props.Equal(entry.Props) {
			idx = i
			break
		}
	}
	if idx < 0 {
		if len(h.passCache) > PassMask {
			h.mu.Unlock()
			return nil, opError("Hlms.PreparePassHash", pass.Name, ErrPassCacheFull)
		}
		h.passCache = append(h.passCache, PassCache{Props: props.Clone(), PSO: pso})
		idx = len(h.passCache) - 1
	}
	h.mu.Unlock()

	c := newCache(uint32(idx)<<PassShift, h.typ, CacheFlagsNone) //nolint:gosec // G115: bounded by PassMask
	c.Props = props.Clone()
	c.PSO.Pass = pso
	return c, nil
}

// shadowMapProp builds "hlms_shadowmap<i><suffix>".
func shadowMapProp(i int, suffix string) idstring.IdString {
	return idstring.New("hlms_shadowmap" + strconv.Itoa(i) + suffix)
}

func floatBits(f float32) int32 { return int32(math.Float32bits(f)) } //nolint:gosec // G115: bit pattern

func isDepthFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatDepth16Unorm, gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8, gputypes.TextureFormatDepth32Float,
		gputypes.TextureFormatDepth32FloatStencil8:
		return true
	}
	return false
}

// prepareReceiverPass sets shadow, baking and light properties of a pass
// that receives shadows. It reports whether culling must be disabled.
func (h *Hlms) prepareReceiverPass(props *property.Store, pass *PassInfo, desc *PassDescriptor) (bool, error) {
	numShadowMapLights := 0
	numPssmSplits := 0
	staticShadowMaps := false
	node := pass.ShadowNode

	if node != nil {
		numPssmSplits = node.PssmSplits
		props.Set(PropPssmSplits, int32(numPssmSplits)) //nolint:gosec // G115: split counts are small
		props.SetBool(PropPssmBlend, node.PssmBlend)
		props.SetBool(PropPssmFade, node.PssmFade)

		numShadowMapLights = node.ActiveCastingLights
		if numPssmSplits > 0 {
			numShadowMapLights += numPssmSplits - 1
		}
		props.Set(PropNumShadowMapLights, int32(numShadowMapLights)) //nolint:gosec // G115: light counts are small
		props.Set(PropNumShadowMapTextures, int32(len(node.Textures)))

		staticShadowMaps = h.staticBranchingLights && numShadowMapLights > numPssmSplits
		if staticShadowMaps {
			props.Set(PropStaticBranchShadows, 1)
		}

		if err := shadowMapProps(props, node, numShadowMapLights, staticShadowMaps); err != nil {
			return false, opError("Hlms.PreparePassHash", pass.Name, err)
		}

		usesDepth := -1
		for _, f := range node.Textures {
			depth := 0
			if isDepthFormat(f) {
				depth = 1
			}
			if usesDepth >= 0 && usesDepth != depth {
				return false, opError("Hlms.PreparePassHash", node.Name,
					fmt.Errorf("%w: shadow maps mix depth and colour textures", ErrMerge))
			}
			usesDepth = depth
		}
		props.SetBool(PropShadowUsesDepthTexture, usesDepth == 1)
	}

	forceCullNone := false
	if pass.UvBaking {
		forceCullNone = true
		props.Set(PropUseUvBaking, 1)
		props.Set(PropUvBaking, pass.UvBakingSet)
		if pass.BakeLightingOnly {
			props.Set(PropBakeLightingOnly, 1)
		}
	}
	if pass.InstancedStereo {
		props.Set(PropInstancedStereo, 1)
	}
	if pass.GenNormalsGBuf {
		props.Set(PropGenNormalsGBuf, 1)
	}
	if h.ext == ".glsl" {
		props.SetBool(PropForwardPlusFlipY, desc.TextureFlipY)
	}

	h.lightProps(props, pass, numPssmSplits, staticShadowMaps)
	return forceCullNone, nil
}

func shadowMapProps(props *property.Store, node *ShadowNode, numLights int, static bool) error {
	mapIdx := 0
	for i := range numLights {
		for mapIdx < len(node.Maps) && node.Maps[mapIdx].Inactive {
			mapIdx++
		}
		if mapIdx >= len(node.Maps) {
			return fmt.Errorf("%w: shadow node %q has %d active maps, need %d", ErrMerge, node.Name, i, numLights)
		}
		sm := &node.Maps[mapIdx]

		props.Set(shadowMapProp(i, ""), sm.Texture)
		if sm.UvOffset != [2]float32{} || sm.UvLength != [2]float32{1, 1} || static {
			props.Set(shadowMapProp(i, "_uvs_fulltex"), 1)
		}
		props.Set(shadowMapProp(i, "_uv_min_x"), floatBits(sm.UvOffset[0]))
		props.Set(shadowMapProp(i, "_uv_min_y"), floatBits(sm.UvOffset[1]))
		props.Set(shadowMapProp(i, "_uv_max_x"), floatBits(sm.UvOffset[0]+sm.UvLength[0]))
		props.Set(shadowMapProp(i, "_uv_max_y"), floatBits(sm.UvOffset[1]+sm.UvLength[1]))
		props.Set(shadowMapProp(i, "_array_idx"), sm.ArrayIdx)

		uvLength := func() {
			props.Set(shadowMapProp(i, "_uv_length_x"), floatBits(sm.UvLength[0]))
			props.Set(shadowMapProp(i, "_uv_length_y"), floatBits(sm.UvLength[1]))
		}
		switch {
		case static:
			uvLength()
			if sm.Light == LightDirectional {
				props.Set(shadowMapProp(i, "_is_directional_light"), 1)
			}
		case sm.Light == LightDirectional:
			props.Set(shadowMapProp(i, "_is_directional_light"), 1)
		case sm.Light == LightPoint:
			props.Set(shadowMapProp(i, "_is_point_light"), 1)
			uvLength()
		case sm.Light == LightSpotlight:
			props.Set(shadowMapProp(i, "_is_spot"), 1)
		}
		mapIdx++
	}
	return nil
}

// lightProps counts lights by type and stores the cumulative counts.
func (h *Hlms) lightProps(props *property.Store, pass *PassInfo, numPssmSplits int, staticShadowMaps bool) {
	var perType [numLightTypes]int
	areaWithMask := 0
	casterDirectional := 0
	node := pass.ShadowNode

	switch h.lightGathering {
	case LightGatherForwardPlus:
		if node != nil {
			for _, l := range node.Casters {
				if l.Type == LightNone {
					continue
				}
				if l.Type == LightDirectional {
					casterDirectional++
				}
				perType[l.Type]++
			}
		}
		perType[LightDirectional] = 0
		perType[LightAreaApprox] = 0
		perType[LightAreaLtc] = 0
		for _, l := range pass.Lights {
			switch l.Type {
			case LightDirectional:
				perType[LightDirectional]++
			case LightAreaApprox:
				perType[LightAreaApprox]++
				if l.TextureMask {
					areaWithMask++
				}
			case LightAreaLtc:
				perType[LightAreaLtc]++
			}
		}
		if h.numLightsLimit > 0 && perType[LightDirectional] > casterDirectional {
			perType[LightDirectional] = casterDirectional + h.numLightsLimit
			props.Set(PropStaticBranchLights, 1)
		}
	case LightGatherForward:
		if node != nil {
			for _, l := range node.Casters {
				if l.Type == LightDirectional {
					casterDirectional++
				}
			}
		}
		for i, l := range pass.Lights {
			if i >= h.numLightsLimit {
				break
			}
			perType[l.Type]++
		}
	}

	if !staticShadowMaps && perType[LightPoint] > 0 &&
		perType[LightDirectional] == 0 && perType[LightSpotlight] == 0 {
		props.Set(PropAllPointLights, 1)
	}

	perType[LightPoint] += perType[LightDirectional]
	perType[LightSpotlight] += perType[LightPoint]
	perType[LightAreaApprox] = min(perType[LightAreaApprox], h.areaApproxLimit)
	perType[LightAreaLtc] = min(perType[LightAreaLtc], h.areaLtcLimit)

	props.Set(PropLightsDirectional, int32(casterDirectional))         //nolint:gosec // G115: light counts are small
	props.Set(PropLightsDirNonCaster, int32(perType[LightDirectional])) //nolint:gosec // G115: light counts are small
	props.Set(PropLightsPoint, int32(perType[LightPoint]))              //nolint:gosec // G115: light counts are small
	props.Set(PropLightsSpot, int32(perType[LightSpotlight]))           //nolint:gosec // G115: light counts are small
	if perType[LightAreaApprox] > 0 {
		props.Set(PropLightsAreaApprox, int32(h.areaApproxLimit)) //nolint:gosec // G115: configured limit
	}
	if perType[LightAreaLtc] > 0 {
		props.Set(PropLightsAreaLtc, int32(h.areaLtcLimit)) //nolint:gosec // G115: configured limit
	}
	if areaWithMask > 0 {
		props.Set(PropLightsAreaTexMask, 1)
	}

	if node == nil {
		return
	}

	// Map shadow map index to light index for normal offset mapping.
	mapIdx, lightIdx := 0, int32(0)
	firstDirSplits := numPssmSplits
	if firstDirSplits == 0 && casterDirectional > 0 {
		firstDirSplits = 1
	}
	for range firstDirSplits {
		props.Set(shadowMapProp(mapIdx, "_light_idx"), lightIdx)
		mapIdx++
	}
	if firstDirSplits > 0 {
		lightIdx++
	}
	for i := 1; i < casterDirectional; i++ {
		props.Set(shadowMapProp(mapIdx, "_light_idx"), lightIdx)
		mapIdx++
		lightIdx++
	}

	if staticShadowMaps {
		props.Set(PropLightsPoint, 0)
		return
	}
	lightIdx += int32(perType[LightDirectional] - casterDirectional) //nolint:gosec // G115: light counts are small
	for i := perType[LightDirectional]; i < perType[LightSpotlight]; i++ {
		props.Set(shadowMapProp(mapIdx, "_light_idx"), lightIdx)
		mapIdx++
		lightIdx++
	}
}

func prepareCasterPass(props *property.Store, pass *PassInfo, desc *PassDescriptor) {
	props.Set(PropShadowCaster, 1)
	switch pass.CasterLight {
	case LightDirectional:
		props.Set(PropShadowCasterDirectional, 1)
	case LightPoint:
		props.Set(PropShadowCasterPoint, 1)
	}
	props.SetBool(PropDualParaboloidMapping, pass.DualParaboloid)

	for _, id := range [...]idstring.IdString{
		PropForward3D, PropNumShadowMapLights, PropNumShadowMapTextures, PropPssmSplits,
		PropLightsDirectional, PropLightsDirNonCaster, PropLightsPoint, PropLightsSpot,
		PropLightsAreaApprox,
	} {
		props.Set(id, 0)
	}
	props.SetBool(PropShadowUsesDepthTexture, desc.NumColourEntries() == 0)
}

// passPsoForScene captures the attachment state and folds pass-driven
// overrides into the strong macroblock bits property.
func (h *Hlms) passPsoForScene(props *property.Store, pass *PassInfo, desc *PassDescriptor, forceCullNone bool) PassPso {
	bits := block.MacroBits(uint32(props.Get(PropStrongMacroblockBits, 0))) //nolint:gosec // G115: bit pattern

	pso := PassPso{
		Stencil:     h.rs.StencilParams(),
		Colour:      desc.Colour,
		Resolve:     desc.Resolve,
		Depth:       desc.Depth,
		SampleCount: max(desc.SampleCount, 1),
		AdapterID:   1,
		StrongBlend: block.BlendBits(uint32(props.Get(PropStrongBlendblockBits, 0))), //nolint:gosec // G115: bit pattern
	}
	if !desc.HasDepth() {
		bits |= block.DepthCheckDisabled
	}
	if pass.PrePass == PrePassUse {
		bits |= block.DepthWriteDisabled
	}
	if pass.DepthClamp {
		bits |= block.DepthClampEnabled
	}
	if desc.TextureFlipY != h.rs.InvertVertexWinding() {
		bits |= block.InvertCullingMode
	}
	if forceCullNone {
		pso.ForceCullNone = true
		bits = bits.WithCullMode(block.CullNone)
	}
	pso.StrongMacro = bits
	props.Set(PropStrongMacroblockBits, int32(uint32(bits))) //nolint:gosec // G115: bit pattern
	return pso
}
