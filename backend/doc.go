// Package backend selects the render system an hlms engine generates
// pipelines for.
//
// Render systems live in sub-packages:
//
//   - backend/wgpu builds PSOs as render pipelines on a gogpu/wgpu HAL device.
//   - backend/null accepts every PSO without a GPU, for tools and tests.
//
// # Registry
//
// A Registry maps names to factories. It is an ordinary value: create
// one, register what the program links, and pass it where a render
// system is chosen.
//
//	reg := backend.NewRegistry(backend.NameWGPU, backend.NameNull)
//	reg.Register(backend.NameNull, func() (hlms.RenderSystem, error) {
//		return null.New(), nil
//	})
//	rs, err := reg.Default()
package backend
