// Package hlms generates shader permutations from templates and caches the
// pipeline state objects built from them.
//
// A material type (PBS, Unlit, ...) is an [Hlms] bound to a data folder of
// templates and piece files. Renderables are hashed once, when their
// datablock is assigned, by [Hlms.CalculateHashFor]; passes are hashed once
// per frame by [Hlms.PreparePassHash]. At draw time [Hlms.GetMaterial]
// combines both into a 32-bit key:
//
//	[type:3][renderable:21][pass:8]
//
// and returns the cached pipeline state, generating and compiling the
// shaders on a miss. Generated source is deduplicated by the merged
// property set, so distinct keys that collapse to the same shaders share
// one set of programs.
//
// # Parallel compilation
//
// When a [CompileQueue] is supplied, misses reserve a stub entry and the
// expensive work runs later on a worker pool. Each worker owns a
// [WorkerContext] with private property and piece storage; only the cache
// containers are locked. A stub whose pipeline could not be built in time
// stays in [CacheFlagsCompilationRequired] and is re-queued by the next
// GetMaterial call that hits it.
//
// # Templates
//
// Templates use the macro language implemented by package preprocess:
//
//	@property( hlms_normal && !hlms_qtangent )
//	    vec3 normal = inNormal;
//	@end
//	@foreach( hlms_uv_count, n )
//	    outUv@n = inUv@n;@end
//
// Stage templates are named VertexShader_vs, PixelShader_ps,
// GeometryShader_gs, HullShader_hs and DomainShader_ds followed by the
// render system's extension (.glsl, .hlsl, .metal, .wgsl) or .any.
// Piece files are picked up when their lower-cased name contains
// piece_vs, piece_ps, ... or piece_all.
//
// # Logging
//
// The package is silent by default. Use [SetLogger] to route diagnostics
// (syntax errors, compile timeouts, cache statistics) to a [log/slog]
// logger.
package hlms
