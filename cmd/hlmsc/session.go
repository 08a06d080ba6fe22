package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/spf13/cobra"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/backend"
	"github.com/gogpu/hlms/backend/null"
	"github.com/gogpu/hlms/backend/wgpu"
	"github.com/gogpu/hlms/config"
	"github.com/gogpu/hlms/diskcache"
	"github.com/gogpu/hlms/program"
	"github.com/gogpu/hlms/program/naga"
)

// session is an engine opened from a configuration, with its caches
// loaded.
type session struct {
	cfg     config.Config
	rs      hlms.RenderSystem
	pm      *program.Manager
	h       *hlms.Hlms
	closers []func()
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "TOML configuration file")
	cmd.Flags().String("data", "", "data folder, overriding [hlms].data_folder")
	cmd.Flags().String("backend", "", "render system: null or wgpu (headless device)")
	cmd.Flags().String("profile", "glsl", "shader profile the null render system reports")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if data, _ := cmd.Flags().GetString("data"); data != "" {
		cfg.Hlms.DataFolder = data
	}
	if name, _ := cmd.Flags().GetString("backend"); name != "" {
		cfg.RenderSystem.Name = name
	}
	if cfg.Hlms.DataFolder == "" {
		return cfg, usageError("no data folder: pass --data or set [hlms].data_folder")
	}
	return cfg, cfg.Validate()
}

func newRegistry(cfg *config.Config, profile string) *backend.Registry {
	reg := backend.NewRegistry(backend.NameNull)
	hack := fmt.Sprint(cfg.RenderSystem.FastShaderBuildHack)
	_ = reg.Register(backend.NameNull, func() (hlms.RenderSystem, error) {
		return null.New(
			null.WithProfiles(profile),
			null.WithReverseDepth(cfg.RenderSystem.ReverseDepth),
			null.WithConfigOption("Fast Shader Build Hack", hack),
		), nil
	})
	_ = reg.Register(backend.NameWGPU, func() (hlms.RenderSystem, error) {
		return openHeadlessWGPU(
			wgpu.WithReverseDepth(cfg.RenderSystem.ReverseDepth),
			wgpu.WithConfigOption("Fast Shader Build Hack", hack),
		)
	})
	return reg
}

// openHeadlessWGPU opens the wgpu render system on a noop HAL device,
// which validates pipeline descriptors without a GPU.
func openHeadlessWGPU(opts ...wgpu.Option) (*wgpu.RenderSystem, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, errors.New("no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	return wgpu.New(openDev.Device, opts...)
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	profile, _ := cmd.Flags().GetString("profile")
	s := &session{cfg: cfg}

	s.rs, err = cfg.OpenRenderSystem(newRegistry(&cfg, profile))
	if err != nil {
		return nil, err
	}
	if c, ok := s.rs.(io.Closer); ok {
		s.closers = append(s.closers, func() { _ = c.Close() })
	}

	caps := s.rs.Capabilities()
	var compiler program.Compiler = program.Passthrough
	if caps.SupportsProfile("wgsl") {
		compiler = naga.NewCompiler(naga.TargetSPIRV)
	}
	s.pm = program.NewManager(s.rs.Name(), append(cfg.ProgramOptions(), program.WithCompiler(compiler))...)
	if err := readFile(cfg.Cache.Microcode, s.pm.LoadMicrocodeCache); err != nil {
		printWarn(os.Stderr, "microcode cache ignored: %v", err)
	}

	opts := append(cfg.EngineOptions(), hlms.WithProgramManager(s.pm), hlms.WithRenderSystem(s.rs))
	s.h, err = hlms.New(cfg.Type(), cfg.Hlms.Type, cfg.DataFolder(), opts...)
	if err != nil {
		s.close()
		return nil, err
	}
	s.closers = append([]func(){func() { _ = s.h.Close() }}, s.closers...)

	err = readFile(cfg.Cache.ShaderCode, func(r io.Reader) error {
		return diskcache.LoadShaderCode(ctx, r, s.h, cfg.Hlms.Workers)
	})
	if err != nil {
		printWarn(os.Stderr, "shader code cache ignored: %v", err)
	}
	return s, nil
}

// save writes the caches that changed.
func (s *session) save() error {
	var errs []error
	if s.cfg.Cache.Microcode != "" && s.pm.Dirty() {
		errs = append(errs, writeFile(s.cfg.Cache.Microcode, func(w io.Writer) error {
			_, err := s.pm.SaveMicrocodeCache(w)
			return err
		}))
	}
	if s.cfg.Cache.ShaderCode != "" && s.h.ShaderCodeCacheDirty() {
		errs = append(errs, writeFile(s.cfg.Cache.ShaderCode, func(w io.Writer) error {
			return diskcache.SaveShaderCode(w, s.h)
		}))
	}
	return errors.Join(errs...)
}

func (s *session) close() {
	for _, c := range s.closers {
		c()
	}
}

// readFile calls fn with the contents of path. A missing or unset path is
// not an error.
func readFile(path string, fn func(io.Reader) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// writeFile replaces path with what fn writes.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".hlmsc-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
