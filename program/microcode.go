package program

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"fortio.org/safecast"

	"github.com/gogpu/hlms/idstring"
)

// ErrCorruptCache is returned by LoadMicrocodeCache for malformed input.
var ErrCorruptCache = errors.New("program: corrupt microcode cache")

// maxMicrocodeSize bounds a single entry read from disk.
const maxMicrocodeSize = 64 << 20

type microcodeEntry struct {
	key  idstring.Hash128
	code []byte
}

// SaveMicrocodeCache writes the cache to w when it is dirty and clears
// the dirty flag. Entries are written in key order. It reports whether
// anything was written.
func (m *Manager) SaveMicrocodeCache(w io.Writer) (bool, error) {
	if !m.dirty.Load() {
		return false, nil
	}

	var entries []microcodeEntry
	m.microcode.Range(func(k idstring.Hash128, v []byte) bool {
		entries = append(entries, microcodeEntry{k, v})
		return true
	})
	slices.SortFunc(entries, func(a, b microcodeEntry) int {
		ka, kb := a.key.Bytes(), b.key.Bytes()
		return bytes.Compare(ka[:], kb[:])
	})

	count, err := safecast.Conv[uint32](len(entries))
	if err != nil {
		return false, fmt.Errorf("program: microcode count: %w", err)
	}
	bw := bufio.NewWriter(w)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], count)
	_, _ = bw.Write(u32[:])
	for _, e := range entries {
		n, err := safecast.Conv[uint32](len(e.code))
		if err != nil {
			return false, fmt.Errorf("program: microcode %s: %w", e.key, err)
		}
		key := e.key.Bytes()
		_, _ = bw.Write(key[:])
		binary.LittleEndian.PutUint32(u32[:], n)
		_, _ = bw.Write(u32[:])
		_, _ = bw.Write(e.code)
	}
	if err := bw.Flush(); err != nil {
		return false, fmt.Errorf("program: save microcode cache: %w", err)
	}
	m.dirty.Store(false)
	m.log().Info("program: microcode cache saved", "entries", count)
	return true, nil
}

// LoadMicrocodeCache replaces the cache with the entries read from r and
// clears the dirty flag. On error the cache is left empty.
func (m *Manager) LoadMicrocodeCache(r io.Reader) error {
	m.microcode.Clear()

	br := bufio.NewReader(r)
	var u32 [4]byte
	if _, err := io.ReadFull(br, u32[:]); err != nil {
		return fmt.Errorf("%w: count: %w", ErrCorruptCache, err)
	}
	count := binary.LittleEndian.Uint32(u32[:])
	for i := range count {
		var key [16]byte
		if _, err := io.ReadFull(br, key[:]); err != nil {
			m.microcode.Clear()
			return fmt.Errorf("%w: entry %d: %w", ErrCorruptCache, i, err)
		}
		if _, err := io.ReadFull(br, u32[:]); err != nil {
			m.microcode.Clear()
			return fmt.Errorf("%w: entry %d: %w", ErrCorruptCache, i, err)
		}
		n := binary.LittleEndian.Uint32(u32[:])
		if n > maxMicrocodeSize {
			m.microcode.Clear()
			return fmt.Errorf("%w: entry %d is %d bytes", ErrCorruptCache, i, n)
		}
		code := make([]byte, n)
		if _, err := io.ReadFull(br, code); err != nil {
			m.microcode.Clear()
			return fmt.Errorf("%w: entry %d: %w", ErrCorruptCache, i, err)
		}
		m.microcode.Set(idstring.Hash128FromBytes(key), code)
	}
	m.dirty.Store(false)
	m.log().Info("program: microcode cache loaded", "entries", count)
	return nil
}
