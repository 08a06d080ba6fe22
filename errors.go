package hlms

import "errors"

var (
	// ErrRenderableCacheFull is returned when more distinct renderable
	// property sets exist than fit in the renderable field of the hash.
	ErrRenderableCacheFull = errors.New("hlms: too many material / mesh variations")

	// ErrPassCacheFull is returned when more distinct pass configurations
	// exist than fit in the pass field of the hash.
	ErrPassCacheFull = errors.New("hlms: too many pass variations")

	// ErrSyntax is returned when a template failed to preprocess.
	ErrSyntax = errors.New("hlms: template syntax error")

	// ErrNoTemplates is returned when a data folder holds no stage template.
	ErrNoTemplates = errors.New("hlms: data folder contains no valid template shader files")

	// ErrNoRenderSystem is returned by operations that need a render system
	// before one was set with ChangeRenderSystem.
	ErrNoRenderSystem = errors.New("hlms: no render system")

	// ErrDuplicateDatablock is returned when a datablock name is taken.
	ErrDuplicateDatablock = errors.New("hlms: datablock already exists")

	// ErrUnknownDatablock is returned when a datablock name is not found.
	ErrUnknownDatablock = errors.New("hlms: datablock not found")

	// ErrUnknownPieceFile is returned when a datablock references a custom
	// piece file that was never registered.
	ErrUnknownPieceFile = errors.New("hlms: custom piece file not registered")

	// ErrMerge is returned when properties merged for generation are
	// inconsistent.
	ErrMerge = errors.New("hlms: errors encountered while merging properties")

	// ErrNilRenderable is returned when a renderable or its datablock is nil.
	ErrNilRenderable = errors.New("hlms: nil renderable or datablock")
)

// Error describes a failed engine operation. Op names the operation that
// failed and Name the datablock, pass or file involved, if any.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Name == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Name + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op, name string, err error) error {
	return &Error{Op: op, Name: name, Err: err}
}
