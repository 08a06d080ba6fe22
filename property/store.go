// Package property implements the property store that drives conditional
// shader generation, and the piece maps collected by the preprocessor.
package property

import (
	"maps"
	"slices"
	"sort"

	"github.com/gogpu/hlms/idstring"
)

// Property is a single key/value pair.
type Property struct {
	Key   idstring.IdString
	Value int32
}

// Store is an ordered table of properties, sorted by key.
//
// Lookups are O(log n); insertion and removal shift the backing slice.
// Property counts per generation are small (tens to low hundreds), so a
// sorted slice beats a map for both memory and comparison cost.
//
// Store is not safe for concurrent use. Each worker owns its own Store.
type Store struct {
	props []Property
}

// NewStore returns an empty store with capacity for n properties.
func NewStore(n int) *Store {
	return &Store{props: make([]Property, 0, n)}
}

// FromSlice builds a store from props, which must already be sorted by key
// with no duplicates. The slice is copied.
func FromSlice(props []Property) *Store {
	return &Store{props: slices.Clone(props)}
}

func (s *Store) search(key idstring.IdString) (int, bool) {
	i := sort.Search(len(s.props), func(i int) bool { return s.props[i].Key >= key })
	return i, i < len(s.props) && s.props[i].Key == key
}

// Set inserts or overwrites key.
func (s *Store) Set(key idstring.IdString, value int32) {
	i, found := s.search(key)
	if found {
		s.props[i].Value = value
		return
	}
	s.props = slices.Insert(s.props, i, Property{Key: key, Value: value})
}

// SetBool stores 1 for true and 0 for false.
func (s *Store) SetBool(key idstring.IdString, value bool) {
	if value {
		s.Set(key, 1)
		return
	}
	s.Set(key, 0)
}

// Get returns the value of key, or def when absent.
func (s *Store) Get(key idstring.IdString, def int32) int32 {
	if i, found := s.search(key); found {
		return s.props[i].Value
	}
	return def
}

// Has reports whether key is present.
func (s *Store) Has(key idstring.IdString) bool {
	_, found := s.search(key)
	return found
}

// Unset removes key if present.
func (s *Store) Unset(key idstring.IdString) {
	if i, found := s.search(key); found {
		s.props = slices.Delete(s.props, i, i+1)
	}
}

// Reset removes every property, keeping the allocation.
func (s *Store) Reset() {
	s.props = s.props[:0]
}

// Len returns the number of properties. A nil store is empty.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.props)
}

// All returns the properties in key order. The slice aliases the store.
func (s *Store) All() []Property { return s.props }

// Clone returns an independent copy.
func (s *Store) Clone() *Store {
	return &Store{props: slices.Clone(s.props)}
}

// CopyFrom replaces the contents of s with those of other.
func (s *Store) CopyFrom(other *Store) {
	s.props = append(s.props[:0], other.props...)
}

// Equal reports whether both stores hold the same properties.
func (s *Store) Equal(other *Store) bool {
	if s == nil || other == nil {
		return s.Len() == other.Len()
	}
	return slices.Equal(s.props, other.props)
}

// Pieces maps piece names to their text.
type Pieces map[idstring.IdString]string

// Clone returns an independent copy; a nil map clones to an empty map.
func (p Pieces) Clone() Pieces {
	if p == nil {
		return Pieces{}
	}
	return maps.Clone(p)
}

// Equal compares both maps by value. Nil and empty maps are equal.
func (p Pieces) Equal(other Pieces) bool {
	return maps.Equal(p, other)
}
