// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package diskcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/idstring"
	"github.com/gogpu/hlms/property"
)

// ShaderCodeSchema is the current shader code cache version. Increment it
// whenever the encoded layout changes.
const ShaderCodeSchema uint16 = 1

// ErrStale is returned by LoadShaderCode for a cache written by another
// schema, material type, shader profile or template set.
var ErrStale = errors.New("diskcache: stale shader code cache")

// ShaderCodeFile is the encoded form of an engine's shader code cache.
type ShaderCodeFile struct {
	Schema   uint16   `msgpack:"schema"`
	Type     uint8    `msgpack:"type"`
	Profile  string   `msgpack:"profile"`
	Checksum [16]byte `msgpack:"checksum"`

	Entries []ShaderCodeEntry `msgpack:"entries"`
}

// ShaderCodeEntry is one hlms.ShaderCodeCache.
type ShaderCodeEntry struct {
	Counter    uint32                      `msgpack:"counter"`
	Properties []Property                  `msgpack:"props"`
	Pieces     [][]Piece                   `msgpack:"pieces"`
	Sources    [hlms.NumShaderTypes]string `msgpack:"sources"`
}

// Property is a merged property.
type Property struct {
	Key   uint32 `msgpack:"k"`
	Value int32  `msgpack:"v"`
}

// Piece is a merged piece of one stage.
type Piece struct {
	Key  uint32 `msgpack:"k"`
	Text string `msgpack:"t"`
}

// SnapshotShaderCode captures h's shader code cache.
func SnapshotShaderCode(h *hlms.Hlms) (*ShaderCodeFile, error) {
	sum, err := h.TemplateChecksum()
	if err != nil {
		return nil, err
	}
	f := &ShaderCodeFile{
		Schema:   ShaderCodeSchema,
		Type:     uint8(h.Type()),
		Profile:  h.ShaderProfile(),
		Checksum: sum.Bytes(),
	}
	for _, e := range h.ShaderCodeCache() {
		entry := ShaderCodeEntry{
			Counter: e.Counter,
			Sources: e.Sources,
			Pieces:  make([][]Piece, hlms.NumShaderTypes),
		}
		for _, p := range e.Merged.Props.All() {
			entry.Properties = append(entry.Properties, Property{Key: p.Key.U32(), Value: p.Value})
		}
		for i, pieces := range e.Merged.Pieces {
			for k, text := range pieces {
				entry.Pieces[i] = append(entry.Pieces[i], Piece{Key: k.U32(), Text: text})
			}
		}
		f.Entries = append(f.Entries, entry)
	}
	return f, nil
}

// SaveShaderCode writes h's shader code cache to w and clears the
// engine's dirty flag.
func SaveShaderCode(w io.Writer, h *hlms.Hlms) error {
	f, err := SnapshotShaderCode(h)
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("diskcache: encode shader code: %w", err)
	}
	h.ClearShaderCodeCacheDirty()
	hlms.Logger().Debug("diskcache: shader code saved", "hlms", h.Name(), "entries", len(f.Entries))
	return nil
}

// LoadShaderCode reads a cache written by SaveShaderCode and compiles
// every entry into h with up to workers goroutines. Zero or negative uses
// GOMAXPROCS. Workers use engine slots 1 to workers, so no CompileQueue
// may run on h meanwhile.
//
// The cache is rejected with ErrStale unless it was written for h's
// material type, shader profile and current templates.
func LoadShaderCode(ctx context.Context, r io.Reader, h *hlms.Hlms, workers int) error {
	f, err := DecodeShaderCode(r)
	if err != nil {
		return err
	}
	if err := checkShaderCode(f, h); err != nil {
		return err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(min(workers, len(f.Entries)), 1)

	var next atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		wc := h.Worker(w + 1)
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				i := int(next.Add(1) - 1)
				if i >= len(f.Entries) {
					return nil
				}
				merged, err := f.Entries[i].renderableCache()
				if err != nil {
					return err
				}
				if _, err := h.CompileFromPreprocessedSource(wc, merged, f.Entries[i].Sources, f.Entries[i].Counter); err != nil {
					return err
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	h.ClearShaderCodeCacheDirty()
	hlms.Logger().Debug("diskcache: shader code loaded", "hlms", h.Name(), "entries", len(f.Entries))
	return nil
}

// DecodeShaderCode reads a cache written by SaveShaderCode without
// loading it into an engine.
func DecodeShaderCode(r io.Reader) (*ShaderCodeFile, error) {
	var f ShaderCodeFile
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &f, nil
}

func checkShaderCode(f *ShaderCodeFile, h *hlms.Hlms) error {
	if f.Schema != ShaderCodeSchema {
		return fmt.Errorf("%w: schema %d, want %d", ErrStale, f.Schema, ShaderCodeSchema)
	}
	if hlms.Type(f.Type) != h.Type() {
		return fmt.Errorf("%w: material type %d, want %d", ErrStale, f.Type, h.Type())
	}
	if f.Profile != h.ShaderProfile() {
		return fmt.Errorf("%w: profile %q, want %q", ErrStale, f.Profile, h.ShaderProfile())
	}
	sum, err := h.TemplateChecksum()
	if err != nil {
		return err
	}
	if idstring.Hash128FromBytes(f.Checksum) != sum {
		return fmt.Errorf("%w: templates changed", ErrStale)
	}
	return nil
}

func (e *ShaderCodeEntry) renderableCache() (*hlms.RenderableCache, error) {
	props := make([]property.Property, len(e.Properties))
	for i, p := range e.Properties {
		if i > 0 && p.Key <= e.Properties[i-1].Key {
			return nil, fmt.Errorf("%w: properties out of order", ErrCorrupt)
		}
		props[i] = property.Property{Key: idstring.FromInt(p.Key), Value: p.Value}
	}
	if len(e.Pieces) > int(hlms.NumShaderTypes) {
		return nil, fmt.Errorf("%w: %d piece stages", ErrCorrupt, len(e.Pieces))
	}
	rc := &hlms.RenderableCache{Props: property.FromSlice(props)}
	for i := range rc.Pieces {
		rc.Pieces[i] = property.Pieces{}
		if i >= len(e.Pieces) {
			continue
		}
		for _, p := range e.Pieces[i] {
			rc.Pieces[i][idstring.FromInt(p.Key)] = p.Text
		}
	}
	return rc, nil
}
