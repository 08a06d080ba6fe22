package backend

import (
	"errors"

	"github.com/gogpu/hlms"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNilFactory is returned by Register for a nil factory.
	ErrNilFactory = errors.New("backend: nil factory")
)

// Backend names used by the packages of this module.
const (
	NameWGPU = "wgpu"
	NameNull = "null"
)

// Factory creates a render system. A factory may fail, for example
// when no adapter is present; Default then tries the next backend.
type Factory func() (hlms.RenderSystem, error)
