package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/program"
)

const sample = `
[hlms]
type        = "unlit"
data_folder = "Hlms/Unlit"
libraries   = ["Hlms/Common", "/abs/lib"]
precision   = "midf16"
workers     = 3

[render_system]
name                   = "null"
fast_shader_build_hack = true

[debug]
output     = "dumps"
properties = true

[cache]
microcode = "cache/microcode.bin"
`

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default invalid: %v", err)
	}
	if cfg.Type() != hlms.TypePbs {
		t.Errorf("Type = %v, want pbs", cfg.Type())
	}
	if cfg.Cache.MicrocodeLimit != program.DefaultCacheLimit {
		t.Errorf("MicrocodeLimit = %d", cfg.Cache.MicrocodeLimit)
	}
	if cfg.DataFolder() != nil {
		t.Error("DataFolder without a path should be nil")
	}
}

func TestLoadResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hlms.toml")
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type() != hlms.TypeUnlit || cfg.Hlms.Workers != 3 || !cfg.RenderSystem.FastShaderBuildHack {
		t.Errorf("decoded %+v", cfg)
	}
	if want := filepath.Join(dir, "Hlms/Unlit"); cfg.Hlms.DataFolder != want {
		t.Errorf("DataFolder = %q, want %q", cfg.Hlms.DataFolder, want)
	}
	if cfg.Hlms.Libraries[1] != "/abs/lib" {
		t.Errorf("absolute library rewritten to %q", cfg.Hlms.Libraries[1])
	}
	if want := filepath.Join(dir, "cache/microcode.bin"); cfg.Cache.Microcode != want {
		t.Errorf("Microcode = %q, want %q", cfg.Cache.Microcode, want)
	}
	// Keys the file leaves out keep their defaults.
	if cfg.Cache.MicrocodeLimit != program.DefaultCacheLimit {
		t.Errorf("MicrocodeLimit = %d", cfg.Cache.MicrocodeLimit)
	}
	if n := len(cfg.EngineOptions()); n != 4 {
		t.Errorf("EngineOptions returned %d options, want 4", n)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"unknown type", "[hlms]\ntype = \"metal\"\n"},
		{"unknown precision", "[hlms]\nprecision = \"half\"\n"},
		{"negative workers", "[hlms]\nworkers = -1\n"},
		{"properties without output", "[debug]\nproperties = true\n"},
		{"unknown key", "[hlms]\ndata = \"x\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.toml))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestDecodeSyntaxError(t *testing.T) {
	if _, err := Decode(strings.NewReader("[hlms\n")); err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want a parse error", err)
	}
}

func TestWriteDecode(t *testing.T) {
	cfg := Default()
	cfg.Hlms.Type = "toon"
	cfg.Cache.ShaderCode = "toon.msgpack"
	var buf bytes.Buffer
	if err := cfg.Write(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode(Write()): %v\n%s", err, buf.String())
	}
	if got.Type() != hlms.TypeToon || got.Cache.ShaderCode != "toon.msgpack" {
		t.Errorf("got %+v", got)
	}
}
