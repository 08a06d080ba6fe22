package hlms

import (
	"errors"
	"io/fs"
	"slices"

	"github.com/gogpu/hlms/block"
	"github.com/gogpu/hlms/idstring"
)

// DefaultDatablockName names the datablock every engine creates once a
// render system is set.
const DefaultDatablockName = "[default]"

// Datablock is a material: the blocks and alpha settings shared by every
// renderable that uses it. Changing a datablock recomputes the hashes of
// the renderables linked to it.
//
// Datablocks are not safe for concurrent mutation.
type Datablock struct {
	name string
	hlms *Hlms

	// Index 0 is the normal variant, 1 the shadow caster variant.
	macroblocks [2]*block.Macroblock
	blendblocks [2]*block.Blendblock

	alphaTest           block.CompareFunction
	alphaTestThreshold  float32
	shadowAlphaTestOnly bool
	alphaHash           bool

	customPieces [NumShaderTypes]int32

	linked []*SubMesh
}

func variant(caster bool) int {
	if caster {
		return 1
	}
	return 0
}

// Name returns the datablock name.
func (d *Datablock) Name() string { return d.name }

// Hlms returns the engine that owns d.
func (d *Datablock) Hlms() *Hlms { return d.hlms }

// Macroblock returns the rasterizer state for normal or caster passes.
func (d *Datablock) Macroblock(caster bool) *block.Macroblock { return d.macroblocks[variant(caster)] }

// Blendblock returns the blend state for normal or caster passes.
func (d *Datablock) Blendblock(caster bool) *block.Blendblock { return d.blendblocks[variant(caster)] }

// AlphaTest returns the alpha test comparison and threshold.
func (d *Datablock) AlphaTest() (block.CompareFunction, float32) {
	return d.alphaTest, d.alphaTestThreshold
}

// ShadowAlphaTestOnly reports whether alpha testing only applies to
// shadow casters.
func (d *Datablock) ShadowAlphaTestOnly() bool { return d.shadowAlphaTestOnly }

// AlphaHash reports whether hashed alpha testing is on.
func (d *Datablock) AlphaHash() bool { return d.alphaHash }

// CustomPieceFile returns the id of the custom piece file for stage, or 0.
func (d *Datablock) CustomPieceFile(stage ShaderType) int32 { return d.customPieces[stage] }

// SetMacroblock replaces the rasterizer state. Setting the normal variant
// also sets the caster variant.
func (d *Datablock) SetMacroblock(m block.Macroblock, caster bool) error {
	mgr := d.hlms.blocks
	nb, err := mgr.AcquireMacroblock(m)
	if err != nil {
		return opError("Datablock.SetMacroblock", d.name, err)
	}
	slots := []int{1}
	if !caster {
		slots = []int{0, 1}
		if _, err := mgr.AcquireMacroblock(m); err != nil {
			_ = mgr.ReleaseMacroblock(nb)
			return opError("Datablock.SetMacroblock", d.name, err)
		}
	}
	for _, i := range slots {
		if old := d.macroblocks[i]; old != nil {
			_ = mgr.ReleaseMacroblock(old)
		}
		d.macroblocks[i] = nb
	}
	return d.flushRenderables()
}

// SetBlendblock replaces the blend state. Setting the normal variant also
// sets the caster variant.
func (d *Datablock) SetBlendblock(b block.Blendblock, caster bool) error {
	mgr := d.hlms.blocks
	nb, err := mgr.AcquireBlendblock(b)
	if err != nil {
		return opError("Datablock.SetBlendblock", d.name, err)
	}
	slots := []int{1}
	if !caster {
		slots = []int{0, 1}
		if _, err := mgr.AcquireBlendblock(b); err != nil {
			_ = mgr.ReleaseBlendblock(nb)
			return opError("Datablock.SetBlendblock", d.name, err)
		}
	}
	for _, i := range slots {
		if old := d.blendblocks[i]; old != nil {
			_ = mgr.ReleaseBlendblock(old)
		}
		d.blendblocks[i] = nb
	}
	return d.flushRenderables()
}

// SetAlphaTest sets the alpha test comparison. CompareAlwaysPass disables
// it. shadowOnly limits the test to shadow casters.
func (d *Datablock) SetAlphaTest(cmp block.CompareFunction, threshold float32, shadowOnly bool) error {
	if d.alphaTest == cmp && d.shadowAlphaTestOnly == shadowOnly {
		d.alphaTestThreshold = threshold
		return nil
	}
	d.alphaTest, d.alphaTestThreshold, d.shadowAlphaTestOnly = cmp, threshold, shadowOnly
	return d.flushRenderables()
}

// SetAlphaHash toggles hashed alpha testing.
func (d *Datablock) SetAlphaHash(on bool) error {
	if d.alphaHash == on {
		return nil
	}
	d.alphaHash = on
	return d.flushRenderables()
}

// SetCustomPieceFile makes stage parse filename from fsys before the
// engine's own pieces. An empty filename removes the custom piece file.
func (d *Datablock) SetCustomPieceFile(stage ShaderType, filename string, fsys fs.FS) error {
	if filename == "" {
		return d.clearCustomPiece(stage)
	}
	id := idstring.New(filename).I32()
	if d.customPieces[stage] == id {
		return nil
	}
	src, err := fs.ReadFile(fsys, filename)
	if err != nil {
		return opError("Datablock.SetCustomPieceFile", d.name, err)
	}
	if err := d.hlms.addCustomPieceFile(filename, string(src), fsys); err != nil {
		return err
	}
	d.customPieces[stage] = id
	return d.flushRenderables()
}

// SetCustomPieceCode is SetCustomPieceFile with the source supplied
// directly. filename only identifies the code.
func (d *Datablock) SetCustomPieceCode(stage ShaderType, filename, code string) error {
	if filename == "" {
		return d.clearCustomPiece(stage)
	}
	if err := d.hlms.addCustomPieceFile(filename, code, nil); err != nil {
		return err
	}
	d.customPieces[stage] = idstring.New(filename).I32()
	return d.flushRenderables()
}

func (d *Datablock) clearCustomPiece(stage ShaderType) error {
	if d.customPieces[stage] == 0 {
		return nil
	}
	d.customPieces[stage] = 0
	return d.flushRenderables()
}

// flushRenderables recomputes the hashes of every linked renderable.
func (d *Datablock) flushRenderables() error {
	var errs []error
	for _, m := range d.linked {
		if err := d.hlms.rehash(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Datablock) link(m *SubMesh) {
	if !slices.Contains(d.linked, m) {
		d.linked = append(d.linked, m)
	}
}

func (d *Datablock) unlink(m *SubMesh) {
	if i := slices.Index(d.linked, m); i >= 0 {
		d.linked = slices.Delete(d.linked, i, i+1)
	}
}

func (d *Datablock) release() {
	mgr := d.hlms.blocks
	for i := range d.macroblocks {
		_ = mgr.ReleaseMacroblock(d.macroblocks[i])
		_ = mgr.ReleaseBlendblock(d.blendblocks[i])
		d.macroblocks[i], d.blendblocks[i] = nil, nil
	}
}

// customPieceFile is datablock-supplied source parsed before the engine's
// piece files.
type customPieceFile struct {
	filename string
	source   string
	// fsys is where the file was read from; nil when supplied from memory.
	fsys fs.FS
}

func (h *Hlms) addCustomPieceFile(filename, source string, fsys fs.FS) error {
	id := idstring.New(filename).I32()
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.customPieces[id]; ok {
		if cur.source != source {
			return opError("Hlms.AddCustomPieceFile", filename, errors.New("same filename registered with different content"))
		}
		return nil
	}
	h.customPieces[id] = customPieceFile{filename: filename, source: source, fsys: fsys}
	return nil
}

func (h *Hlms) customPieceSource(id int32) (customPieceFile, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.customPieces[id]
	return f, ok
}

// CreateDatablock creates a datablock with the given blocks. The caster
// variant starts as a copy of the normal one.
func (h *Hlms) CreateDatablock(name string, m block.Macroblock, b block.Blendblock) (*Datablock, error) {
	if _, ok := h.datablocks[name]; ok {
		return nil, opError("Hlms.CreateDatablock", name, ErrDuplicateDatablock)
	}
	d := &Datablock{name: name, hlms: h, alphaTest: block.CompareAlwaysPass}
	for i := range d.macroblocks {
		mb, err := h.blocks.AcquireMacroblock(m)
		if err != nil {
			d.release()
			return nil, opError("Hlms.CreateDatablock", name, err)
		}
		bb, err := h.blocks.AcquireBlendblock(b)
		if err != nil {
			_ = h.blocks.ReleaseMacroblock(mb)
			d.release()
			return nil, opError("Hlms.CreateDatablock", name, err)
		}
		d.macroblocks[i], d.blendblocks[i] = mb, bb
	}
	h.datablocks[name] = d
	h.log().Debug("hlms: datablock created", "hlms", h.name, "datablock", name)
	return d, nil
}

// Datablock returns the datablock called name.
func (h *Hlms) Datablock(name string) (*Datablock, error) {
	d, ok := h.datablocks[name]
	if !ok {
		return nil, opError("Hlms.Datablock", name, ErrUnknownDatablock)
	}
	return d, nil
}

// DefaultDatablock returns the fallback datablock, or nil before a render
// system is set.
func (h *Hlms) DefaultDatablock() *Datablock { return h.defaultDatablock }

// Datablocks returns the names of all datablocks, sorted.
func (h *Hlms) Datablocks() []string {
	names := make([]string, 0, len(h.datablocks))
	for n := range h.datablocks {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// DestroyDatablock releases a datablock. Renderables still using it move
// to the default datablock. The default datablock cannot be destroyed.
func (h *Hlms) DestroyDatablock(name string) error {
	d, ok := h.datablocks[name]
	if !ok || d == h.defaultDatablock {
		return opError("Hlms.DestroyDatablock", name, ErrUnknownDatablock)
	}
	var errs []error
	for _, m := range slices.Clone(d.linked) {
		if err := h.Assign(m, h.defaultDatablock); err != nil {
			errs = append(errs, err)
		}
	}
	d.release()
	delete(h.datablocks, name)
	return errors.Join(errs...)
}

// Assign sets the datablock of m and computes its hashes. A nil datablock
// assigns the default one.
func (h *Hlms) Assign(m *SubMesh, d *Datablock) error {
	if m == nil {
		return opError("Hlms.Assign", "", ErrNilRenderable)
	}
	if d == nil {
		d = h.defaultDatablock
	}
	if d == nil {
		return opError("Hlms.Assign", m.Name, ErrNilRenderable)
	}
	if old := m.datablock; old != nil && old != d {
		old.unlink(m)
	}
	m.datablock = d
	d.link(m)
	return d.hlms.rehash(m)
}

func (h *Hlms) rehash(m *SubMesh) error {
	hash, caster, err := h.CalculateHashFor(m)
	if err != nil {
		return err
	}
	m.hash, m.casterHash = hash, caster
	return nil
}
