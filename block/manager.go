package block

import (
	"errors"
	"fmt"
	"sync"
)

// MaxBlocks is the number of distinct blocks of each kind a Manager holds.
const MaxBlocks = 4096

var (
	// ErrTooManyBlocks is returned when a Manager runs out of block slots.
	ErrTooManyBlocks = errors.New("block: too many distinct blocks")

	// ErrUnknownBlock is returned when releasing a block the Manager does
	// not own or that is no longer referenced.
	ErrUnknownBlock = errors.New("block: unknown or unreferenced block")
)

// pool interns one kind of block. T is the state value, which doubles as
// the map key once bookkeeping has been stripped.
type pool[T comparable] struct {
	byState  map[T]*T
	all      []*T
	freeIDs  []uint16
	nextID   uint16
	handleOf func(*T) *handle
}

func newPool[T comparable](handleOf func(*T) *handle) pool[T] {
	return pool[T]{byState: make(map[T]*T), handleOf: handleOf}
}

func (p *pool[T]) acquire(state T) (*T, error) {
	if b, ok := p.byState[state]; ok {
		h := p.handleOf(b)
		if h.refs == 0 {
			id, err := p.allocID()
			if err != nil {
				return nil, err
			}
			h.id = id
		}
		h.refs++
		return b, nil
	}

	if len(p.all) >= MaxBlocks {
		return nil, ErrTooManyBlocks
	}
	id, err := p.allocID()
	if err != nil {
		return nil, err
	}
	b := new(T)
	*b = state
	h := p.handleOf(b)
	h.id = id
	h.lifetimeID = uint16(len(p.all)) //nolint:gosec // G115: bounded by MaxBlocks
	h.refs = 1
	p.all = append(p.all, b)
	p.byState[state] = b
	return b, nil
}

func (p *pool[T]) release(state T, b *T) error {
	owned, ok := p.byState[state]
	if !ok || owned != b {
		return ErrUnknownBlock
	}
	h := p.handleOf(b)
	if h.refs == 0 {
		return ErrUnknownBlock
	}
	h.refs--
	if h.refs == 0 {
		p.freeIDs = append(p.freeIDs, h.id)
	}
	return nil
}

func (p *pool[T]) allocID() (uint16, error) {
	if n := len(p.freeIDs); n > 0 {
		id := p.freeIDs[n-1]
		p.freeIDs = p.freeIDs[:n-1]
		return id, nil
	}
	if int(p.nextID) >= MaxBlocks {
		return 0, ErrTooManyBlocks
	}
	id := p.nextID
	p.nextID++
	return id, nil
}

func (p *pool[T]) active() int {
	n := 0
	for _, b := range p.all {
		if p.handleOf(b).refs > 0 {
			n++
		}
	}
	return n
}

// Manager interns macroblocks and blendblocks by value. Equal state always
// yields the same pointer, which stays valid for the life of the Manager;
// references are counted so renderables can share blocks.
//
// Manager is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	macros pool[Macroblock]
	blends pool[Blendblock]
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		macros: newPool(func(m *Macroblock) *handle { return &m.handle }),
		blends: newPool(func(b *Blendblock) *handle { return &b.handle }),
	}
}

// AcquireMacroblock returns the interned block equal to m and adds a reference.
func (mgr *Manager) AcquireMacroblock(m Macroblock) (*Macroblock, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	b, err := mgr.macros.acquire(m.state())
	if err != nil {
		return nil, fmt.Errorf("acquire macroblock: %w", err)
	}
	return b, nil
}

// ReleaseMacroblock drops a reference taken by AcquireMacroblock.
func (mgr *Manager) ReleaseMacroblock(m *Macroblock) error {
	if m == nil {
		return nil
	}
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return mgr.macros.release(m.state(), m)
}

// AcquireBlendblock returns the interned block equal to b and adds a
// reference. The auto-transparent flag is derived from the factors.
func (mgr *Manager) AcquireBlendblock(b Blendblock) (*Blendblock, error) {
	state := b.state()
	if state.blends() {
		state.IsTransparent |= 0x01
	} else {
		state.IsTransparent &^= 0x01
	}
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	out, err := mgr.blends.acquire(state)
	if err != nil {
		return nil, fmt.Errorf("acquire blendblock: %w", err)
	}
	return out, nil
}

// ReleaseBlendblock drops a reference taken by AcquireBlendblock.
func (mgr *Manager) ReleaseBlendblock(b *Blendblock) error {
	if b == nil {
		return nil
	}
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return mgr.blends.release(b.state(), b)
}

// Stats reports how many macroblocks and blendblocks are referenced.
func (mgr *Manager) Stats() (macroblocks, blendblocks int) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	return mgr.macros.active(), mgr.blends.active()
}
