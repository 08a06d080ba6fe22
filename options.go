package hlms

import (
	"io/fs"

	"github.com/gogpu/hlms/block"
)

// Option configures an engine during creation.
//
// Example:
//
//	h, err := hlms.New(hlms.TypePbs, "pbs", os.DirFS("Media/Hlms/Pbs"),
//	    hlms.WithProgramManager(programs),
//	    hlms.WithRenderSystem(rs),
//	    hlms.WithLibraries(os.DirFS("Media/Hlms/Common")),
//	)
type Option func(*options)

// options holds optional configuration for engine creation.
type options struct {
	rs        RenderSystem
	programs  ProgramManager
	blocks    *block.Manager
	listener  Listener
	impl      Implementation
	libraries []fs.FS

	precision PrecisionMode
	workers   int

	debugOutput     bool
	debugProperties bool
	outputPath      string

	lightGathering        LightGatheringMode
	staticBranchingLights bool
	numLightsLimit        int
	areaApproxLimit       int
	areaLtcLimit          int

	renderableCapacity int
}

// defaultOptions returns the default engine options.
func defaultOptions() options {
	return options{
		lightGathering:     LightGatherForward,
		numLightsLimit:     8,
		areaApproxLimit:    1,
		areaLtcLimit:       1,
		renderableCapacity: RenderableMask + 1,
	}
}

// WithRenderSystem selects the render system at creation, as if
// ChangeRenderSystem had been called.
func WithRenderSystem(rs RenderSystem) Option {
	return func(o *options) { o.rs = rs }
}

// WithProgramManager sets the manager that compiles generated sources.
// It is required.
func WithProgramManager(pm ProgramManager) Option {
	return func(o *options) { o.programs = pm }
}

// WithBlockManager shares a block manager between engines. By default
// each engine owns one.
func WithBlockManager(m *block.Manager) Option {
	return func(o *options) { o.blocks = m }
}

// WithListener installs generation hooks.
func WithListener(l Listener) Option {
	return func(o *options) { o.listener = l }
}

// WithImplementation sets the material-type specific hooks.
func WithImplementation(impl Implementation) Option {
	return func(o *options) { o.impl = impl }
}

// WithLibraries adds folders of piece files processed before the data
// folder's own pieces, in the order given.
func WithLibraries(libs ...fs.FS) Option {
	return func(o *options) { o.libraries = append(o.libraries, libs...) }
}

// WithPrecision sets the requested float precision.
func WithPrecision(p PrecisionMode) Option {
	return func(o *options) { o.precision = p }
}

// WithWorkers preallocates worker slots for queues with n workers. Slots
// are otherwise created on first use.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithDebugOutput writes every generated stage to dir. With properties
// set, each file starts with a dump of the merged properties and pieces.
func WithDebugOutput(dir string, properties bool) Option {
	return func(o *options) {
		o.debugOutput = true
		o.outputPath = dir
		o.debugProperties = properties
	}
}

// WithLightGathering selects how pass lights are counted.
func WithLightGathering(m LightGatheringMode) Option {
	return func(o *options) { o.lightGathering = m }
}

// WithStaticBranchingLights makes shadow mapped lights beyond the PSSM
// splits use a static branch instead of a permutation per count.
func WithStaticBranchingLights(on bool) Option {
	return func(o *options) { o.staticBranchingLights = on }
}

// WithLightLimits caps the lights counted per pass: forward lights, and
// approximate and LTC area lights.
func WithLightLimits(lights, areaApprox, areaLtc int) Option {
	return func(o *options) {
		o.numLightsLimit = lights
		o.areaApproxLimit = areaApprox
		o.areaLtcLimit = areaLtc
	}
}

// WithRenderableCapacity lowers the number of distinct renderable sets
// the engine accepts. Values above the hash field size are clamped.
func WithRenderableCapacity(n int) Option {
	return func(o *options) { o.renderableCapacity = min(n, RenderableMask+1) }
}
