// Package idstring provides hashed string identifiers used as property
// and piece keys throughout hlms.
//
// An IdString is the 32-bit MurmurHash3 of its text. Two IdStrings
// compare equal when their hashes match; the original text is not kept
// unless it was registered with [Register] for debugging.
package idstring

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/twmb/murmur3"
)

// Seed is the MurmurHash3 seed shared by every hash in hlms.
const Seed uint32 = 0x3A8EFA67

// IdString is a hashed string key.
type IdString uint32

// New hashes s into an IdString.
func New(s string) IdString {
	return IdString(murmur3.SeedSum32(Seed, []byte(s)))
}

// FromInt hashes the little-endian bytes of v.
func FromInt(v uint32) IdString {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return IdString(murmur3.SeedSum32(Seed, buf[:]))
}

// U32 returns the raw hash value.
func (id IdString) U32() uint32 { return uint32(id) }

// I32 returns the hash bit pattern as a signed value, the form stored in
// property values such as "syntax" or "precision_mode".
func (id IdString) I32() int32 { return int32(uint32(id)) } //nolint:gosec // G115: bit pattern reinterpretation

// String returns the registered friendly text if any, otherwise the hash.
func (id IdString) String() string {
	if s, ok := Friendly(id); ok {
		return s
	}
	return fmt.Sprintf("[Value 0x%08x]", uint32(id))
}

var (
	namesMu sync.RWMutex
	names   = make(map[IdString]string)
)

// Register hashes s and remembers the text for String and Friendly.
// It is intended for well-known keys and debug output.
func Register(s string) IdString {
	id := New(s)
	namesMu.Lock()
	names[id] = s
	namesMu.Unlock()
	return id
}

// Friendly returns the text registered for id.
func Friendly(id IdString) (string, bool) {
	namesMu.RLock()
	s, ok := names[id]
	namesMu.RUnlock()
	return s, ok
}

// Hash128 is a 128-bit MurmurHash3 digest.
type Hash128 [2]uint64

// Sum128 returns the x64 128-bit MurmurHash3 of data with both halves
// seeded with [Seed].
func Sum128(data []byte) Hash128 {
	h1, h2 := murmur3.SeedSum128(uint64(Seed), uint64(Seed), data)
	return Hash128{h1, h2}
}

// Bytes returns the digest as 16 little-endian bytes.
func (h Hash128) Bytes() [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint64(out[0:8], h[0])
	binary.LittleEndian.PutUint64(out[8:16], h[1])
	return out
}

// Hash128FromBytes decodes 16 little-endian bytes.
func Hash128FromBytes(b [16]byte) Hash128 {
	return Hash128{
		binary.LittleEndian.Uint64(b[0:8]),
		binary.LittleEndian.Uint64(b[8:16]),
	}
}

// String formats the digest as 32 hex digits.
func (h Hash128) String() string {
	return fmt.Sprintf("%016x%016x", h[0], h[1])
}
