package program

import (
	"sync"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/idstring"
)

// Request is a single stage handed to a Compiler.
type Request struct {
	Name    string
	Profile string
	Stage   hlms.ShaderType
	Source  string
	Options hlms.ProgramOptions
}

// Compiler turns generated source into microcode. Implementations must be
// safe for concurrent use.
type Compiler interface {
	Compile(req *Request) ([]byte, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(req *Request) ([]byte, error)

// Compile calls f(req).
func (f CompilerFunc) Compile(req *Request) ([]byte, error) { return f(req) }

// Passthrough uses the source text as microcode, for drivers that compile
// text themselves.
var Passthrough = CompilerFunc(func(req *Request) ([]byte, error) {
	return []byte(req.Source), nil
})

// Program is a compiled stage. It implements hlms.Program and
// hlms.SamplerBinder.
type Program struct {
	name      string
	profile   string
	stage     hlms.ShaderType
	source    string
	microcode []byte
	key       idstring.Hash128
	opts      hlms.ProgramOptions

	mu       sync.Mutex
	samplers map[string][]int32
}

func (p *Program) Name() string           { return p.name }
func (p *Program) Stage() hlms.ShaderType { return p.stage }
func (p *Program) Profile() string        { return p.profile }
func (p *Program) Source() string         { return p.source }
func (p *Program) Microcode() []byte      { return p.microcode }

// Key returns the microcode cache key of the program.
func (p *Program) Key() idstring.Hash128 { return p.key }

// Options returns the settings the program was created with.
func (p *Program) Options() hlms.ProgramOptions { return p.opts }

// BindSamplers records the texture units of the sampler uniform name.
func (p *Program) BindSamplers(name string, units []int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.samplers == nil {
		p.samplers = make(map[string][]int32)
	}
	p.samplers[name] = append([]int32(nil), units...)
}

// Samplers returns the units bound to name, or nil.
func (p *Program) Samplers(name string) []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samplers[name]
}

// MicrocodeHash returns the cache key of source compiled for the render
// system named renderSystem.
func MicrocodeHash(source, renderSystem string) idstring.Hash128 {
	src := idstring.Sum128([]byte(source)).Bytes()
	rs := idstring.Sum128([]byte(renderSystem)).Bytes()
	var buf [32]byte
	copy(buf[:16], src[:])
	copy(buf[16:], rs[:])
	return idstring.Sum128(buf[:])
}
