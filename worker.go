package hlms

import (
	"github.com/gogpu/hlms/idstring"
	"github.com/gogpu/hlms/property"
)

// TextureReg binds a sampler name to consecutive texture units.
type TextureReg struct {
	Name  string
	Unit  int32
	Count int32
}

// WorkerContext is the private scratch state of one generation slot.
// Slot 0 belongs to the caller of hashing, pass preparation and serial
// material lookups; compile workers get one slot each.
//
// A WorkerContext must only be used by the goroutine that owns it.
type WorkerContext struct {
	ID     int
	Props  *property.Store
	Pieces [NumShaderTypes]property.Pieces

	textureRegs [NumShaderTypes][]TextureReg
}

func newWorkerContext(id int) *WorkerContext {
	wc := &WorkerContext{ID: id, Props: property.NewStore(128)}
	for i := range wc.Pieces {
		wc.Pieces[i] = property.Pieces{}
	}
	return wc
}

// Reset clears properties, pieces and texture registers.
func (wc *WorkerContext) Reset() {
	wc.Props.Reset()
	for i := range wc.Pieces {
		clear(wc.Pieces[i])
	}
	wc.clearTextureRegs()
}

// SetProperty is a shorthand for wc.Props.Set with a string key.
func (wc *WorkerContext) SetProperty(name string, value int32) {
	wc.Props.Set(idstring.New(name), value)
}

// Property is a shorthand for wc.Props.Get with a string key.
func (wc *WorkerContext) Property(name string, def int32) int32 {
	return wc.Props.Get(idstring.New(name), def)
}

// SetPiece sets a piece in every stage.
func (wc *WorkerContext) SetPiece(name idstring.IdString, text string) {
	for i := range wc.Pieces {
		wc.Pieces[i][name] = text
	}
}

// SetTextureReg records a sampler binding for stage and stores the unit in
// the property named after the sampler, so templates can emit it.
func (wc *WorkerContext) SetTextureReg(stage ShaderType, name string, unit, count int32) {
	wc.textureRegs[stage] = append(wc.textureRegs[stage], TextureReg{Name: name, Unit: unit, Count: count})
	wc.SetProperty(name, unit)
}

// TextureRegs returns the sampler bindings recorded for stage.
func (wc *WorkerContext) TextureRegs(stage ShaderType) []TextureReg {
	return wc.textureRegs[stage]
}

func (wc *WorkerContext) clearTextureRegs() {
	for i := range wc.textureRegs {
		wc.textureRegs[i] = wc.textureRegs[i][:0]
	}
}
