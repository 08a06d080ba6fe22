// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/block"
)

// compareFunction converts c. With reverse depth, ordering comparisons
// are mirrored so the same material works for both depth conventions.
func compareFunction(c block.CompareFunction, reverse bool) gputypes.CompareFunction {
	if reverse {
		switch c {
		case block.CompareLess:
			c = block.CompareGreater
		case block.CompareLessEqual:
			c = block.CompareGreaterEqual
		case block.CompareGreater:
			c = block.CompareLess
		case block.CompareGreaterEqual:
			c = block.CompareLessEqual
		}
	}
	switch c {
	case block.CompareAlwaysFail:
		return gputypes.CompareFunctionNever
	case block.CompareLess:
		return gputypes.CompareFunctionLess
	case block.CompareLessEqual:
		return gputypes.CompareFunctionLessEqual
	case block.CompareEqual:
		return gputypes.CompareFunctionEqual
	case block.CompareNotEqual:
		return gputypes.CompareFunctionNotEqual
	case block.CompareGreaterEqual:
		return gputypes.CompareFunctionGreaterEqual
	case block.CompareGreater:
		return gputypes.CompareFunctionGreater
	default:
		return gputypes.CompareFunctionAlways
	}
}

func blendFactor(f block.BlendFactor) gputypes.BlendFactor {
	switch f {
	case block.BlendZero:
		return gputypes.BlendFactorZero
	case block.BlendDestColour:
		return gputypes.BlendFactorDst
	case block.BlendSourceColour:
		return gputypes.BlendFactorSrc
	case block.BlendOneMinusDestColour:
		return gputypes.BlendFactorOneMinusDst
	case block.BlendOneMinusSourceColour:
		return gputypes.BlendFactorOneMinusSrc
	case block.BlendDestAlpha:
		return gputypes.BlendFactorDstAlpha
	case block.BlendSourceAlpha:
		return gputypes.BlendFactorSrcAlpha
	case block.BlendOneMinusDestAlpha:
		return gputypes.BlendFactorOneMinusDstAlpha
	case block.BlendOneMinusSourceAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha
	default:
		return gputypes.BlendFactorOne
	}
}

func blendOperation(op block.BlendOperation) gputypes.BlendOperation {
	switch op {
	case block.BlendOpSubtract:
		return gputypes.BlendOperationSubtract
	case block.BlendOpReverseSubtract:
		return gputypes.BlendOperationReverseSubtract
	case block.BlendOpMin:
		return gputypes.BlendOperationMin
	case block.BlendOpMax:
		return gputypes.BlendOperationMax
	default:
		return gputypes.BlendOperationAdd
	}
}

// blendState returns nil for replace blending, which needs no blend unit.
func blendState(b *block.Blendblock) *gputypes.BlendState {
	if b == nil {
		return nil
	}
	srcA, dstA, opA := b.SourceFactor, b.DestFactor, b.Operation
	if b.SeparateBlend {
		srcA, dstA, opA = b.SourceFactorAlpha, b.DestFactorAlpha, b.OperationAlpha
	}
	if b.SourceFactor == block.BlendOne && b.DestFactor == block.BlendZero && b.Operation == block.BlendOpAdd &&
		srcA == block.BlendOne && dstA == block.BlendZero && opA == block.BlendOpAdd {
		return nil
	}
	return &gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: blendFactor(b.SourceFactor),
			DstFactor: blendFactor(b.DestFactor),
			Operation: blendOperation(b.Operation),
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: blendFactor(srcA),
			DstFactor: blendFactor(dstA),
			Operation: blendOperation(opA),
		},
	}
}

// writeMask maps block channel bits, which share WebGPU's bit order.
func writeMask(b *block.Blendblock) gputypes.ColorWriteMask {
	if b == nil {
		return gputypes.ColorWriteMaskAll
	}
	if b.ChannelMask&block.ChannelForceDisabled != 0 {
		return gputypes.ColorWriteMaskNone
	}
	return gputypes.ColorWriteMask(b.ChannelMask & block.ChannelAll)
}

// cullMode converts m for counter-clockwise front faces.
func cullMode(m block.CullingMode, invertWinding bool) gputypes.CullMode {
	switch m {
	case block.CullClockwise:
		if invertWinding {
			return gputypes.CullModeFront
		}
		return gputypes.CullModeBack
	case block.CullAnticlockwise:
		if invertWinding {
			return gputypes.CullModeBack
		}
		return gputypes.CullModeFront
	default:
		return gputypes.CullModeNone
	}
}

// topology converts op. Triangle fans have no WebGPU equivalent and are
// drawn as lists; ok reports whether the mapping was exact.
func topology(op hlms.OperationType) (t gputypes.PrimitiveTopology, ok bool) {
	switch op {
	case hlms.OperationPointList:
		return gputypes.PrimitiveTopologyPointList, true
	case hlms.OperationLineList:
		return gputypes.PrimitiveTopologyLineList, true
	case hlms.OperationLineStrip:
		return gputypes.PrimitiveTopologyLineStrip, true
	case hlms.OperationTriangleStrip:
		return gputypes.PrimitiveTopologyTriangleStrip, true
	case hlms.OperationTriangleList:
		return gputypes.PrimitiveTopologyTriangleList, true
	default:
		return gputypes.PrimitiveTopologyTriangleList, false
	}
}

func stencilOperation(op hlms.StencilOp) hal.StencilOperation {
	switch op {
	case hlms.StencilZero:
		return hal.StencilOperationZero
	case hlms.StencilReplace:
		return hal.StencilOperationReplace
	case hlms.StencilIncrementClamp:
		return hal.StencilOperationIncrementClamp
	case hlms.StencilDecrementClamp:
		return hal.StencilOperationDecrementClamp
	case hlms.StencilInvert:
		return hal.StencilOperationInvert
	case hlms.StencilIncrementWrap:
		return hal.StencilOperationIncrementWrap
	case hlms.StencilDecrementWrap:
		return hal.StencilOperationDecrementWrap
	default:
		return hal.StencilOperationKeep
	}
}

// depthStencil returns nil when the pass has no depth attachment.
func depthStencil(pso *hlms.PSO, reverse bool) *hal.DepthStencilState {
	if pso.Pass.Depth == gputypes.TextureFormatUndefined {
		return nil
	}
	ds := &hal.DepthStencilState{
		Format:       pso.Pass.Depth,
		DepthCompare: gputypes.CompareFunctionAlways,
	}
	if m := pso.Macroblock; m != nil {
		ds.DepthWriteEnabled = m.DepthWrite
		if m.DepthCheck {
			ds.DepthCompare = compareFunction(m.DepthFunc, reverse)
		}
	}
	face := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	if st := pso.Pass.Stencil; st.Enabled {
		face = hal.StencilFaceState{
			Compare:     compareFunction(st.Compare, false),
			FailOp:      stencilOperation(st.FailOp),
			DepthFailOp: stencilOperation(st.DepthFailOp),
			PassOp:      stencilOperation(st.PassOp),
		}
		ds.StencilReadMask = uint32(st.ReadMask)
		ds.StencilWriteMask = uint32(st.WriteMask)
	}
	ds.StencilFront = face
	ds.StencilBack = face
	return ds
}

// vertexFormatSize returns the byte size of f. 8-bit formats are the
// fallback.
func vertexFormatSize(f gputypes.VertexFormat) uint64 {
	switch f {
	case gputypes.VertexFormatFloat32, gputypes.VertexFormatUint32, gputypes.VertexFormatSint32,
		gputypes.VertexFormatFloat16x2, gputypes.VertexFormatUint16x2, gputypes.VertexFormatSint16x2,
		gputypes.VertexFormatSnorm16x2, gputypes.VertexFormatUnorm16x2:
		return 4
	case gputypes.VertexFormatFloat32x2, gputypes.VertexFormatUint32x2, gputypes.VertexFormatSint32x2,
		gputypes.VertexFormatFloat16x4, gputypes.VertexFormatUint16x4, gputypes.VertexFormatSint16x4,
		gputypes.VertexFormatSnorm16x4, gputypes.VertexFormatUnorm16x4:
		return 8
	case gputypes.VertexFormatFloat32x3, gputypes.VertexFormatUint32x3, gputypes.VertexFormatSint32x3:
		return 12
	case gputypes.VertexFormatFloat32x4, gputypes.VertexFormatUint32x4, gputypes.VertexFormatSint32x4:
		return 16
	default:
		return 4
	}
}

// Shader locations per semantic. Texture coordinate sets take
// consecutive locations.
var semanticLocations = [...]uint32{
	hlms.SemanticPosition:     0,
	hlms.SemanticBlendWeights: 1,
	hlms.SemanticBlendIndices: 2,
	hlms.SemanticNormal:       3,
	hlms.SemanticDiffuse:      4,
	hlms.SemanticSpecular:     5,
	hlms.SemanticTexCoord:     6,
	hlms.SemanticBinormal:     uint32(6 + hlms.MaxUvSets),
	hlms.SemanticTangent:      uint32(7 + hlms.MaxUvSets),
}

// vertexBuffers lays out each buffer tightly packed in element order.
func vertexBuffers(buffers [][]hlms.VertexElement) []gputypes.VertexBufferLayout {
	out := make([]gputypes.VertexBufferLayout, 0, len(buffers))
	uv := uint32(0)
	for _, elems := range buffers {
		layout := gputypes.VertexBufferLayout{StepMode: gputypes.VertexStepModeVertex}
		for _, e := range elems {
			loc := semanticLocations[e.Semantic]
			if e.Semantic == hlms.SemanticTexCoord {
				loc += uv
				uv++
			}
			layout.Attributes = append(layout.Attributes, gputypes.VertexAttribute{
				Format:         e.Format,
				Offset:         layout.ArrayStride,
				ShaderLocation: loc,
			})
			layout.ArrayStride += vertexFormatSize(e.Format)
		}
		out = append(out, layout)
	}
	return out
}

// colorTargets returns one target per bound colour attachment.
func colorTargets(pso *hlms.PSO) []gputypes.ColorTargetState {
	var targets []gputypes.ColorTargetState
	blend := blendState(pso.Blendblock)
	mask := writeMask(pso.Blendblock)
	for _, f := range pso.Pass.Colour {
		if f == gputypes.TextureFormatUndefined {
			continue
		}
		targets = append(targets, gputypes.ColorTargetState{Format: f, Blend: blend, WriteMask: mask})
	}
	return targets
}

func multisample(pso *hlms.PSO) gputypes.MultisampleState {
	count := max(pso.Pass.SampleCount, 1)
	a2c := false
	if b := pso.Blendblock; b != nil {
		a2c = b.AlphaToCoverage == block.A2CEnabled || (b.AlphaToCoverage == block.A2CEnabledMsaaOnly && count > 1)
	}
	// The engine never masks samples; PSO.SampleMask is all ones.
	return gputypes.MultisampleState{
		Count:                  count,
		Mask:                   0xFFFFFFFF,
		AlphaToCoverageEnabled: a2c,
	}
}
