// Package program compiles the sources an hlms engine generates and keeps
// the resulting microcode in a bounded in-memory cache that can be saved
// to and restored from disk.
//
// A Manager implements hlms.ProgramManager:
//
//	pm := program.NewManager("wgpu", program.WithCompiler(naga.NewCompiler()))
//	h, err := hlms.New(hlms.TypePbs, "pbs", data, hlms.WithProgramManager(pm))
//
// Microcode is keyed by [MicrocodeHash] of the source and the render
// system name, so identical sources generated by different engines or
// sessions compile once.
//
// # Cache file format
//
// SaveMicrocodeCache writes, little-endian:
//
//	uint32 count
//	count × { [16]byte hash; uint32 length; [length]byte microcode }
package program
