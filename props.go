package hlms

import (
	"strconv"

	"github.com/gogpu/hlms/idstring"
)

// Properties set per renderable. These are stable across frames and are
// cached in the renderable hash.
var (
	PropSkeleton          = idstring.Register("hlms_skeleton")
	PropBonesPerVertex    = idstring.Register("hlms_bones_per_vertex")
	PropPose              = idstring.Register("hlms_pose")
	PropPoseHalfPrecision = idstring.Register("hlms_pose_half")
	PropPoseNormals       = idstring.Register("hlms_pose_normals")

	PropNormal   = idstring.Register("hlms_normal")
	PropQTangent = idstring.Register("hlms_qtangent")
	PropTangent  = idstring.Register("hlms_tangent")
	PropTangent4 = idstring.Register("hlms_tangent4")
	PropColour   = idstring.Register("hlms_colour")

	PropIdentityWorld           = idstring.Register("hlms_identity_world")
	PropIdentityViewProj        = idstring.Register("hlms_identity_viewproj")
	PropIdentityViewProjDynamic = idstring.Register("hlms_identity_viewproj_dynamic")

	PropUvCount = idstring.Register("hlms_uv_count")

	PropAlphaTest                 = idstring.Register("alpha_test")
	PropAlphaTestShadowCasterOnly = idstring.Register("alpha_test_shadow_caster_only")
	PropAlphaBlend                = idstring.Register("hlms_alphablend")
	PropAlphaToCoverage           = idstring.Register("hlms_alpha_to_coverage")
	PropAlphaHash                 = idstring.Register("hlms_alpha_hash")
)

// Properties set per pass.
var (
	PropLightsDirectional   = idstring.Register("hlms_lights_directional")
	PropLightsDirNonCaster  = idstring.Register("hlms_lights_directional_non_caster")
	PropLightsPoint         = idstring.Register("hlms_lights_point")
	PropLightsSpot          = idstring.Register("hlms_lights_spot")
	PropLightsAreaApprox    = idstring.Register("hlms_lights_area_approx")
	PropLightsAreaLtc       = idstring.Register("hlms_lights_area_ltc")
	PropStaticBranchLights  = idstring.Register("hlms_static_branch_lights")
	PropStaticBranchShadows = idstring.Register("hlms_static_branch_shadow_map_lights")

	PropPsoClipDistances      = idstring.Register("hlms_pso_clip_distances")
	PropGlobalClipPlanes      = idstring.Register("hlms_global_clip_planes")
	PropEmulateClipDistances  = idstring.Register("hlms_emulate_clip_distances")
	PropDualParaboloidMapping = idstring.Register("hlms_dual_paraboloid_mapping")
	PropInstancedStereo       = idstring.Register("hlms_instanced_stereo")

	PropNumShadowMapLights      = idstring.Register("hlms_num_shadow_map_lights")
	PropNumShadowMapTextures    = idstring.Register("hlms_num_shadow_map_textures")
	PropPssmSplits              = idstring.Register("hlms_pssm_splits")
	PropPssmBlend               = idstring.Register("hlms_pssm_blend")
	PropPssmFade                = idstring.Register("hlms_pssm_fade")
	PropShadowCaster            = idstring.Register("hlms_shadowcaster")
	PropShadowCasterDirectional = idstring.Register("hlms_shadowcaster_directional")
	PropShadowCasterPoint       = idstring.Register("hlms_shadowcaster_point")
	PropShadowUsesDepthTexture  = idstring.Register("hlms_shadow_uses_depth_texture")
	PropRenderDepthOnly         = idstring.Register("hlms_render_depth_only")

	PropUseUvBaking      = idstring.Register("hlms_use_uv_baking")
	PropUvBaking         = idstring.Register("hlms_uv_baking")
	PropBakeLightingOnly = idstring.Register("hlms_bake_lighting_only")
	PropMsaaSamples      = idstring.Register("hlms_msaa_samples")
	PropGenNormalsGBuf   = idstring.Register("hlms_gen_normals_gbuffer")
	PropPrePass          = idstring.Register("hlms_prepass")
	PropUsePrePass       = idstring.Register("hlms_use_prepass")
	PropUsePrePassMsaa   = idstring.Register("hlms_use_prepass_msaa")
	PropUseSsr           = idstring.Register("hlms_use_ssr")
	PropSsRefractions    = idstring.Register("hlms_ss_refractions_available")
	PropForward3D        = idstring.Register("forward3d")
	PropVPos             = idstring.Register("hlms_vpos")
	PropScreenPosInt     = idstring.Register("hlms_screen_pos_int")
	PropNoReverseDepth   = idstring.Register("hlms_no_reverse_depth")
)

// Properties set by the engine right before a stage is preprocessed.
var (
	PropSyntax              = idstring.Register("syntax")
	PropHlsl                = idstring.Register("hlsl")
	PropGlsl                = idstring.Register("glsl")
	PropGlslvk              = idstring.Register("glslvk")
	PropHlslvk              = idstring.Register("hlslvk")
	PropMetal               = idstring.Register("metal")
	PropWgsl                = idstring.Register("wgsl")
	PropGL3Plus             = idstring.Register("GL3+")
	PropPrecisionMode       = idstring.Register("precision_mode")
	PropFull32              = idstring.Register("full32")
	PropMidf16              = idstring.Register("midf16")
	PropRelaxed             = idstring.Register("relaxed")
	PropFastShaderBuildHack = idstring.Register("fast_shader_build_hack")
	PropDisableStage        = idstring.Register("hlms_disable_stage")

	PropReadOnlyIsTex      = idstring.Register("hlms_readonly_is_tex")
	PropGlAmdTrinaryMinMax = idstring.Register("hlms_amd_trinary_minmax")
)

// Pipeline-state properties. They feed PSO assembly and are removed before
// the merged set is used as a shader code cache key.
var (
	PropPsoMacroblock        = idstring.Register("PsoMacroblock")
	PropPsoBlendblock        = idstring.Register("PsoBlendblock")
	PropInputLayoutID        = idstring.Register("InputLayoutId")
	PropStrongMacroblockBits = idstring.Register("StrongMacroblockBits")
	PropStrongBlendblockBits = idstring.Register("StrongBlendblockBits")
)

// PieceAlphaTestCmpFunc holds the shading-language comparison operator of
// the datablock's alpha test.
var PieceAlphaTestCmpFunc = idstring.Register("alpha_test_cmp_func")

// customPieceProps hold, per stage, the id of the datablock's custom piece
// file.
var customPieceProps = [NumShaderTypes]idstring.IdString{
	idstring.Register("_DatablockCustomPieceShaderNameVS"),
	idstring.Register("_DatablockCustomPieceShaderNamePS"),
	idstring.Register("_DatablockCustomPieceShaderNameGS"),
	idstring.Register("_DatablockCustomPieceShaderNameHS"),
	idstring.Register("_DatablockCustomPieceShaderNameDS"),
}

var uvCountProps = func() (ids [8]idstring.IdString) {
	for i := range ids {
		ids[i] = idstring.Register("hlms_uv_count" + strconv.Itoa(i))
	}
	return ids
}()

// MaxUvSets is the number of texture coordinate sets a layout may use.
const MaxUvSets = len(uvCountProps)

// hashProp stores the bit pattern of an id as a property value. Profile and
// precision properties compare against these.
func hashProp(id idstring.IdString) int32 { return id.I32() }

// Light layout properties added by pass preparation.
var (
	PropAllPointLights    = idstring.Register("hlms_all_point_lights")
	PropLightsAreaTexMask = idstring.Register("hlms_lights_area_tex_mask")
	PropForwardPlusFlipY  = idstring.Register("hlms_forwardplus_flipY")
)
