// Package config loads engine settings from TOML.
//
//	[hlms]
//	type        = "pbs"
//	data_folder = "Media/Hlms/Pbs/GLSL"
//	libraries   = ["Media/Hlms/Common/GLSL"]
//	precision   = "midf16"
//	workers     = 4
//
//	[render_system]
//	name = "wgpu"
//
//	[debug]
//	output     = "dumps"
//	properties = true
//
//	[cache]
//	microcode       = "cache/microcode.bin"
//	microcode_limit = 4096
//	shader_code     = "cache/pbs.msgpack"
//	pipeline        = "cache/pipeline.bin"
//
// Relative paths are resolved against the directory of the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/backend"
	"github.com/gogpu/hlms/program"
)

// ErrInvalid is wrapped by every Validate error.
var ErrInvalid = errors.New("config: invalid")

// Config is the decoded configuration.
type Config struct {
	Hlms         Engine       `toml:"hlms"`
	RenderSystem RenderSystem `toml:"render_system"`
	Debug        Debug        `toml:"debug"`
	Cache        Cache        `toml:"cache"`
}

// Engine configures hlms.New.
type Engine struct {
	Type       string   `toml:"type"`
	DataFolder string   `toml:"data_folder"`
	Libraries  []string `toml:"libraries"`
	Precision  string   `toml:"precision"`
	Workers    int      `toml:"workers"`
}

// RenderSystem selects and tunes the backend.
type RenderSystem struct {
	// Name is a backend.Registry name; empty picks the registry default.
	Name                string `toml:"name"`
	FastShaderBuildHack bool   `toml:"fast_shader_build_hack"`
	ReverseDepth        bool   `toml:"reverse_depth"`
}

// Debug enables writing generated shaders to Output.
type Debug struct {
	Output     string `toml:"output"`
	Properties bool   `toml:"properties"`
}

// Cache names the disk cache files. Empty paths disable a cache.
type Cache struct {
	Microcode      string `toml:"microcode"`
	MicrocodeLimit int    `toml:"microcode_limit"`
	ShaderCode     string `toml:"shader_code"`
	Pipeline       string `toml:"pipeline"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		Hlms: Engine{
			Type:      hlms.TypePbs.String(),
			Precision: hlms.PrecisionFull32.String(),
		},
		Cache: Cache{MicrocodeLimit: program.DefaultCacheLimit},
	}
}

// Load reads path over Default, resolves relative paths against its
// directory and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := checkUndecoded(meta); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads TOML from r over Default and validates it. Paths are left
// as written.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	meta, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := checkUndecoded(meta); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func checkUndecoded(meta toml.MetaData) error {
	keys := meta.Undecoded()
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(names, ", "))
}

// Write encodes c as TOML.
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func (c *Config) resolve(dir string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	abs(&c.Hlms.DataFolder)
	for i := range c.Hlms.Libraries {
		abs(&c.Hlms.Libraries[i])
	}
	abs(&c.Debug.Output)
	abs(&c.Cache.Microcode)
	abs(&c.Cache.ShaderCode)
	abs(&c.Cache.Pipeline)
}

// Validate reports every invalid value, joined.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := hlms.ParseType(c.Hlms.Type); !ok {
		errs = append(errs, fmt.Errorf("%w: [hlms].type %q", ErrInvalid, c.Hlms.Type))
	}
	if _, ok := hlms.ParsePrecisionMode(c.Hlms.Precision); !ok {
		errs = append(errs, fmt.Errorf("%w: [hlms].precision %q", ErrInvalid, c.Hlms.Precision))
	}
	if c.Hlms.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: [hlms].workers %d", ErrInvalid, c.Hlms.Workers))
	}
	if c.Cache.MicrocodeLimit < 0 {
		errs = append(errs, fmt.Errorf("%w: [cache].microcode_limit %d", ErrInvalid, c.Cache.MicrocodeLimit))
	}
	if c.Debug.Properties && c.Debug.Output == "" {
		errs = append(errs, fmt.Errorf("%w: [debug].properties needs [debug].output", ErrInvalid))
	}
	return errors.Join(errs...)
}

// Type returns the parsed material type.
func (c *Config) Type() hlms.Type {
	t, _ := hlms.ParseType(c.Hlms.Type)
	return t
}

// EngineOptions returns the hlms options c describes, without a program
// manager or render system.
func (c *Config) EngineOptions() []hlms.Option {
	precision, _ := hlms.ParsePrecisionMode(c.Hlms.Precision)
	opts := []hlms.Option{hlms.WithPrecision(precision)}
	if c.Hlms.Workers > 0 {
		opts = append(opts, hlms.WithWorkers(c.Hlms.Workers))
	}
	if len(c.Hlms.Libraries) > 0 {
		libs := make([]fs.FS, len(c.Hlms.Libraries))
		for i, dir := range c.Hlms.Libraries {
			libs[i] = os.DirFS(dir)
		}
		opts = append(opts, hlms.WithLibraries(libs...))
	}
	if c.Debug.Output != "" {
		opts = append(opts, hlms.WithDebugOutput(c.Debug.Output, c.Debug.Properties))
	}
	return opts
}

// ProgramOptions returns the program.Manager options c describes.
func (c *Config) ProgramOptions() []program.Option {
	return []program.Option{program.WithCacheLimit(c.Cache.MicrocodeLimit)}
}

// DataFolder returns the data folder as a file system, or nil when unset.
func (c *Config) DataFolder() fs.FS {
	if c.Hlms.DataFolder == "" {
		return nil
	}
	return os.DirFS(c.Hlms.DataFolder)
}

// OpenRenderSystem creates the configured render system from reg.
func (c *Config) OpenRenderSystem(reg *backend.Registry) (hlms.RenderSystem, error) {
	if c.RenderSystem.Name == "" {
		return reg.Default()
	}
	return reg.Get(c.RenderSystem.Name)
}
