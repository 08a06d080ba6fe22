package program

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/idstring"
	"github.com/gogpu/hlms/internal/cache"
)

// ErrCompile wraps every error a Compiler returns.
var ErrCompile = errors.New("program: compilation failed")

// DefaultCacheLimit is the number of microcode entries kept by default.
const DefaultCacheLimit = 4096

// Option configures a Manager.
type Option func(*Manager)

// WithCompiler sets the compiler. The default is Passthrough.
func WithCompiler(c Compiler) Option {
	return func(m *Manager) { m.compiler = c }
}

// WithCacheLimit bounds the microcode cache. Zero means unlimited.
func WithCacheLimit(n int) Option {
	return func(m *Manager) { m.limit = n }
}

// WithMicrocodeCache enables or disables caching of compiled microcode.
// Caching is on by default.
func WithMicrocodeCache(on bool) Option {
	return func(m *Manager) { m.saveToCache = on }
}

// Stats counts Manager activity.
type Stats struct {
	Compiled uint64 // programs built by the compiler
	Reused   uint64 // programs built from cached microcode
	Failed   uint64
	Cache    cache.Stats
}

// Manager implements hlms.ProgramManager on top of a Compiler and a
// microcode cache. It is safe for concurrent use.
type Manager struct {
	renderSystem string
	compiler     Compiler
	limit        int
	saveToCache  bool

	microcode *cache.Cache[idstring.Hash128, []byte]
	dirty     atomic.Bool

	group singleflight.Group

	compiled atomic.Uint64
	reused   atomic.Uint64
	failed   atomic.Uint64

	logger atomic.Pointer[slog.Logger]
}

var _ hlms.ProgramManager = (*Manager)(nil)

// NewManager creates a manager for the render system named renderSystem.
// The name is part of every microcode key.
func NewManager(renderSystem string, opts ...Option) *Manager {
	m := &Manager{
		renderSystem: renderSystem,
		compiler:     Passthrough,
		limit:        DefaultCacheLimit,
		saveToCache:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.microcode = cache.New[idstring.Hash128, []byte](m.limit)
	m.microcode.OnEvict(func(idstring.Hash128, []byte) { m.dirty.Store(true) })
	m.logger.Store(slog.New(slog.DiscardHandler))
	return m
}

// SetLogger sets the logger. hlms.SetLogger forwards to it.
func (m *Manager) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	m.logger.Store(l)
}

func (m *Manager) log() *slog.Logger { return m.logger.Load() }

// RenderSystem returns the render system name given to NewManager.
func (m *Manager) RenderSystem() string { return m.renderSystem }

// CreateProgram compiles source, or reuses cached microcode for it.
// Concurrent calls for the same source compile once.
func (m *Manager) CreateProgram(name, profile string, stage hlms.ShaderType, source string,
	opts hlms.ProgramOptions) (hlms.Program, error) {
	key := MicrocodeHash(source, m.renderSystem)
	p := &Program{name: name, profile: profile, stage: stage, source: source, key: key, opts: opts}
	req := &Request{Name: name, Profile: profile, Stage: stage, Source: source, Options: opts}

	if !m.saveToCache {
		code, err := m.compile(req)
		if err != nil {
			return nil, err
		}
		p.microcode = code
		return p, nil
	}

	v, err, _ := m.group.Do(key.String(), func() (any, error) {
		if code, ok := m.microcode.Get(key); ok {
			m.reused.Add(1)
			m.log().Debug("program: microcode reused", "name", name, "key", key.String())
			return code, nil
		}
		code, err := m.compile(req)
		if err != nil {
			return nil, err
		}
		m.AddMicrocode(key, code)
		return code, nil
	})
	if err != nil {
		return nil, err
	}
	p.microcode = v.([]byte)
	return p, nil
}

func (m *Manager) compile(req *Request) ([]byte, error) {
	code, err := m.compiler.Compile(req)
	if err != nil {
		m.failed.Add(1)
		m.log().Warn("program: compile failed", "name", req.Name, "profile", req.Profile, "err", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, req.Name, err)
	}
	m.compiled.Add(1)
	m.log().Debug("program: compiled", "name", req.Name, "profile", req.Profile, "bytes", len(code))
	return code, nil
}

// IsMicrocodeAvailable reports whether key is cached.
func (m *Manager) IsMicrocodeAvailable(key idstring.Hash128) bool {
	return m.microcode.Contains(key)
}

// Microcode returns the cached microcode of key.
func (m *Manager) Microcode(key idstring.Hash128) ([]byte, bool) {
	return m.microcode.Get(key)
}

// AddMicrocode caches code under key and marks the cache dirty.
func (m *Manager) AddMicrocode(key idstring.Hash128, code []byte) {
	m.microcode.Set(key, code)
	m.dirty.Store(true)
}

// RemoveMicrocode drops key from the cache.
func (m *Manager) RemoveMicrocode(key idstring.Hash128) {
	if m.microcode.Delete(key) {
		m.dirty.Store(true)
	}
}

// ClearMicrocode empties the cache.
func (m *Manager) ClearMicrocode() {
	if m.microcode.Len() > 0 {
		m.dirty.Store(true)
	}
	m.microcode.Clear()
}

// RangeMicrocode calls fn for each cached entry, most recently used
// first, until fn returns false.
func (m *Manager) RangeMicrocode(fn func(key idstring.Hash128, code []byte) bool) {
	m.microcode.Range(fn)
}

// NumMicrocode returns the number of cached entries.
func (m *Manager) NumMicrocode() int { return m.microcode.Len() }

// Dirty reports whether the cache changed since it was last saved or
// loaded.
func (m *Manager) Dirty() bool { return m.dirty.Load() }

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Compiled: m.compiled.Load(),
		Reused:   m.reused.Load(),
		Failed:   m.failed.Load(),
		Cache:    m.microcode.Stats(),
	}
}
