// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package naga provides a program.Compiler for WGSL templates built on
// github.com/gogpu/naga.
//
// WGSL sources are parsed, lowered and validated, then emitted as SPIR-V
// or translated to GLSL, HLSL or MSL text. Sources generated for other
// profiles are passed through unchanged.
package naga

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"

	"github.com/gogpu/hlms/program"
)

// Target is the output a Compiler emits for WGSL sources.
type Target uint8

// Compiler targets.
const (
	TargetSPIRV Target = iota
	TargetGLSL
	TargetHLSL
	TargetMSL
)

func (t Target) String() string {
	switch t {
	case TargetGLSL:
		return "glsl"
	case TargetHLSL:
		return "hlsl"
	case TargetMSL:
		return "msl"
	default:
		return "spirv"
	}
}

// ErrInvalidSPIRV is returned by Words for input that is not whole words.
var ErrInvalidSPIRV = errors.New("naga: SPIR-V length is not a multiple of 4")

// Compiler compiles WGSL with naga. The zero value emits SPIR-V.
type Compiler struct {
	Target Target

	// Debug emits SPIR-V debug instructions.
	Debug bool
}

var _ program.Compiler = (*Compiler)(nil)

// NewCompiler returns a compiler for target.
func NewCompiler(target Target) *Compiler {
	return &Compiler{Target: target}
}

// Compile implements program.Compiler.
func (c *Compiler) Compile(req *program.Request) ([]byte, error) {
	if req.Profile != "wgsl" {
		return []byte(req.Source), nil
	}
	if c.Target == TargetSPIRV {
		opts := naga.DefaultOptions()
		opts.Debug = c.Debug
		return naga.CompileWithOptions(req.Source, opts)
	}

	module, err := lower(req.Source)
	if err != nil {
		return nil, err
	}
	var out string
	switch c.Target {
	case TargetGLSL:
		out, _, err = glsl.Compile(module, glsl.DefaultOptions())
	case TargetHLSL:
		out, _, err = hlsl.Compile(module, hlsl.DefaultOptions())
	case TargetMSL:
		out, _, err = msl.Compile(module, msl.DefaultOptions())
	default:
		return nil, fmt.Errorf("naga: unknown target %d", c.Target)
	}
	if err != nil {
		return nil, fmt.Errorf("naga: %s backend: %w", c.Target, err)
	}
	return []byte(out), nil
}

func lower(source string) (*ir.Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("lowering error: %w", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("validation failed: %w", &verrs[0])
	}
	return module, nil
}

// Words converts SPIR-V bytes to the little-endian words shader modules
// take.
func Words(spirv []byte) ([]uint32, error) {
	if len(spirv)%4 != 0 {
		return nil, ErrInvalidSPIRV
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return words, nil
}
