// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu provides an hlms.RenderSystem that realizes PSOs as render
// pipelines on a gogpu/wgpu HAL device.
//
// Shader programs compiled to SPIR-V (see program/naga) become SPIR-V
// shader modules; any other microcode is handed to the device as WGSL
// text. Identical pipeline descriptors share one hal.RenderPipeline.
//
//	rs, err := wgpu.New(device)
//	if err != nil {
//		return err
//	}
//	defer rs.Close()
//
// # Thread Safety
//
// CreatePSO and DestroyPSO are safe for concurrent use, as hlms compile
// workers call them in parallel.
package wgpu
