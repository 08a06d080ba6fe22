package hlms

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gogpu/hlms/idstring"
	"github.com/gogpu/hlms/preprocess"
	"github.com/gogpu/hlms/property"
)

// Template extensions probed before the render system is known.
var probeExtensions = [...]string{".glsl", ".hlsl", ".metal", ".wgsl", ".any"}

// library is a folder of piece files shared between material types.
type library struct {
	fsys       fs.FS
	pieceFiles [NumShaderTypes][]string
}

// enumeratePieceFiles lists the piece files of every stage in fsys, sorted
// by name. It reports whether any piece file was found.
func enumeratePieceFiles(fsys fs.FS, out *[NumShaderTypes][]string) (bool, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return false, err
	}
	lower := cases.Lower(language.Und)
	found := false
	for i := range out {
		out[i] = out[i][:0]
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := lower.String(e.Name())
			if strings.Contains(name, piecePatterns[i]) || strings.Contains(name, "piece_all") {
				found = true
				out[i] = append(out[i], e.Name())
			}
		}
		slices.Sort(out[i])
	}
	return found, nil
}

func hasTemplates(fsys fs.FS) bool {
	for _, t := range templateNames {
		for _, ext := range probeExtensions {
			if _, err := fs.Stat(fsys, t+ext); err == nil {
				return true
			}
		}
	}
	return false
}

// enumerate scans the data folder and libraries.
func (h *Hlms) enumerate() error {
	if h.dataFolder == nil {
		return nil
	}
	if !hasTemplates(h.dataFolder) {
		return opError("Hlms.New", h.name, ErrNoTemplates)
	}
	if _, err := enumeratePieceFiles(h.dataFolder, &h.pieceFiles); err != nil {
		return opError("Hlms.New", h.name, err)
	}
	for i := range h.libraries {
		lib := &h.libraries[i]
		found, err := enumeratePieceFiles(lib.fsys, &lib.pieceFiles)
		if err != nil {
			return opError("Hlms.New", h.name, err)
		}
		if !found {
			h.log().Warn("hlms: library has no piece files", "hlms", h.name, "library", i)
		}
	}
	return nil
}

// matchesExt reports whether a piece file belongs to the active render
// system.
func (h *Hlms) matchesExt(name string) bool {
	return strings.HasSuffix(name, h.ext) || strings.HasSuffix(name, ".any")
}

func (h *Hlms) templateExists(stage ShaderType) bool {
	if h.dataFolder == nil {
		return false
	}
	_, err := fs.Stat(h.dataFolder, templateNames[stage]+h.ext)
	return err == nil
}

// processPieces collects the pieces of every matching file into ctx.
func (h *Hlms) processPieces(p *preprocess.Parser, ctx *preprocess.Context, fsys fs.FS, files []string) error {
	for _, name := range files {
		if !h.matchesExt(name) {
			continue
		}
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		ctx.Filename = name
		if _, bad := p.ParsePieceFile(ctx, string(src)); bad {
			return fmt.Errorf("%w in %s", ErrSyntax, name)
		}
	}
	return nil
}

// setPresetProperties sets the profile and precision properties templates
// branch on.
func (h *Hlms) setPresetProperties(props *property.Store) {
	if h.profile == "glsl" || h.profile == "glslvk" {
		props.Set(PropGL3Plus, h.rs.NativeShadingLanguageVersion())
	}
	props.Set(PropSyntax, h.syntax.I32())
	for _, id := range [...]idstring.IdString{
		PropHlsl, PropGlsl, PropGlslvk, PropHlslvk, PropMetal, PropWgsl,
		PropFull32, PropMidf16, PropRelaxed,
	} {
		props.Set(id, hashProp(id))
	}
	props.Set(PropPrecisionMode, h.supportedPrecisionHash())
	if h.fastShaderBuildHack {
		props.Set(PropFastShaderBuildHack, 1)
	}
}

func uniqueName(t Type, counter uint32) uint32 {
	return uint32(t)*100000000 + counter
}

// compileShaderCode generates and compiles every stage of merged, which
// the new entry takes ownership of. wc.Props must hold the merged
// properties; they accumulate across stages.
func (h *Hlms) compileShaderCode(wc *WorkerContext, merged *RenderableCache, counter uint32) (*ShaderCodeCache, error) {
	name := uniqueName(h.typ, counter)
	entry := &ShaderCodeCache{Merged: *merged, Counter: counter}
	parser := preprocess.NewParser(h.log())
	props := wc.Props

	for i := range NumShaderTypes {
		if !h.templateExists(i) {
			continue
		}
		h.setPresetProperties(props)

		var dump bytes.Buffer
		if h.debugOutput && h.debugProperties {
			dumpProperties(&dump, props, merged.Pieces[i])
		}

		ctx := &preprocess.Context{Props: props, Pieces: merged.Pieces[i].Clone()}

		if id := props.Get(customPieceProps[i], 0); id != 0 {
			f, ok := h.customPieceSource(id)
			if !ok {
				return nil, opError("Hlms.CompileShaderCode", strconv.Itoa(int(id)), ErrUnknownPieceFile)
			}
			ctx.Filename = f.filename
			if _, bad := parser.ParsePieceFile(ctx, f.source); bad {
				return nil, opError("Hlms.CompileShaderCode", f.filename, ErrSyntax)
			}
		}
		for _, lib := range h.libraries {
			if err := h.processPieces(parser, ctx, lib.fsys, lib.pieceFiles[i]); err != nil {
				return nil, opError("Hlms.CompileShaderCode", h.name, err)
			}
		}
		if err := h.processPieces(parser, ctx, h.dataFolder, h.pieceFiles[i]); err != nil {
			return nil, opError("Hlms.CompileShaderCode", h.name, err)
		}

		filename := templateNames[i] + h.ext
		src, err := fs.ReadFile(h.dataFolder, filename)
		if err != nil {
			return nil, opError("Hlms.CompileShaderCode", filename, err)
		}
		ctx.Filename = filename
		out, bad := parser.Parse(ctx, string(src))
		if bad {
			h.log().Warn("hlms: template syntax errors", "hlms", h.name,
				"shader", strconv.FormatUint(uint64(name), 10)+templateNames[i])
			return nil, opError("Hlms.CompileShaderCode", filename, ErrSyntax)
		}

		debugFile := h.writeDebugOutput(name, i, dump.Bytes(), out)

		if props.Get(PropDisableStage, 0) == 0 {
			entry.Sources[i] = out
			prog, err := h.createProgram(props, name, i, out, debugFile)
			if err != nil {
				return nil, err
			}
			entry.Shaders[i] = prog
		}
		props.Set(PropDisableStage, 0)
	}

	h.pushShaderCode(entry)
	return entry, nil
}

// CompileFromPreprocessedSource inserts a shader code entry built from
// already generated sources, e.g. loaded from a disk cache. Empty sources
// are skipped. It is safe for concurrent use with distinct wc.
func (h *Hlms) CompileFromPreprocessedSource(wc *WorkerContext, merged *RenderableCache,
	sources [NumShaderTypes]string, counter uint32) (*ShaderCodeCache, error) {
	if h.rs == nil {
		return nil, opError("Hlms.CompileFromPreprocessedSource", h.name, ErrNoRenderSystem)
	}
	name := uniqueName(h.typ, counter)
	entry := &ShaderCodeCache{Merged: merged.clone(), Sources: sources, Counter: counter}
	wc.Props.CopyFrom(merged.Props)

	for i := range NumShaderTypes {
		if sources[i] == "" {
			continue
		}
		var dump bytes.Buffer
		if h.debugOutput && h.debugProperties {
			dumpProperties(&dump, wc.Props, merged.Pieces[i])
		}
		debugFile := h.writeDebugOutput(name, i, dump.Bytes(), sources[i])
		prog, err := h.createProgram(wc.Props, name, i, sources[i], debugFile)
		if err != nil {
			return nil, err
		}
		entry.Shaders[i] = prog
	}

	h.mu.Lock()
	h.shadersGenerated = max(h.shadersGenerated, counter+1)
	h.mu.Unlock()
	h.pushShaderCode(entry)
	return entry, nil
}

func (h *Hlms) pushShaderCode(entry *ShaderCodeCache) {
	h.mu.Lock()
	h.shaderCodeCache = append(h.shaderCodeCache, entry)
	h.shaderCodeCacheDirty = true
	h.mu.Unlock()
}

func (h *Hlms) createProgram(props *property.Store, name uint32, stage ShaderType, src, debugFile string) (Program, error) {
	opts := ProgramOptions{
		Skeletal:          props.Get(PropSkeleton, 0) != 0,
		Pose:              props.Get(PropPose, 0) != 0,
		VpAndRtArrayIndex: props.Get(PropInstancedStereo, 0) != 0,
		DebugFilename:     debugFile,
	}
	if t := h.targets[stage]; t != "" {
		opts.Target = t
		opts.EntryPoint = "main"
	}
	progName := strconv.FormatUint(uint64(name), 10) + templateNames[stage]
	prog, err := h.programs.CreateProgram(progName, h.profile, stage, src, opts)
	if err != nil {
		return nil, opError("Hlms.CreateProgram", progName, err)
	}
	return prog, nil
}

// writeDebugOutput dumps generated source when debug output is on and
// returns the file written, or "".
func (h *Hlms) writeDebugOutput(name uint32, stage ShaderType, header []byte, src string) string {
	if !h.debugOutput {
		return ""
	}
	path := filepath.Join(h.outputPath, strconv.FormatUint(uint64(name), 10)+templateNames[stage]+h.ext)
	data := make([]byte, 0, len(header)+len(src))
	data = append(append(data, header...), src...)
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: debug dumps are meant to be read
		h.log().Warn("hlms: debug output failed", "path", path, "err", err)
		return ""
	}
	return path
}

// dumpProperties writes props and pieces as a comment block that shader
// compilers skip.
func dumpProperties(w *bytes.Buffer, props *property.Store, pieces property.Pieces) {
	w.WriteString("#if 0")
	for _, p := range props.All() {
		fmt.Fprintf(w, "\n\t***\t%s\t%d", friendlyName(p.Key), p.Value)
	}
	w.WriteString("\n\tDONE DUMPING PROPERTIES")
	keys := make([]idstring.IdString, 0, len(pieces))
	for k := range pieces {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "\n\t***\t%s\t%s", friendlyName(k), pieces[k])
	}
	w.WriteString("\n\tDONE DUMPING PIECES\n#endif\n")
}

func friendlyName(id idstring.IdString) string {
	if s, ok := idstring.Friendly(id); ok {
		return s
	}
	return id.String()
}

// TemplateChecksum hashes every piece file and template the active render
// system would read. Disk caches store it to detect stale entries.
func (h *Hlms) TemplateChecksum() (idstring.Hash128, error) {
	var sum idstring.Hash128
	if h.dataFolder == nil {
		return sum, nil
	}
	chain := func(fsys fs.FS, name string) error {
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		prev := sum.Bytes()
		buf := make([]byte, 0, len(prev)+len(src))
		buf = append(append(buf, prev[:]...), src...)
		sum = idstring.Sum128(buf)
		return nil
	}
	chainPieces := func(fsys fs.FS, files []string) error {
		for _, f := range files {
			if !h.matchesExt(f) {
				continue
			}
			if err := chain(fsys, f); err != nil {
				return err
			}
		}
		return nil
	}

	var errs []error
	for i := range NumShaderTypes {
		if !h.templateExists(i) {
			continue
		}
		for _, lib := range h.libraries {
			errs = append(errs, chainPieces(lib.fsys, lib.pieceFiles[i]))
		}
		errs = append(errs, chainPieces(h.dataFolder, h.pieceFiles[i]))
		errs = append(errs, chain(h.dataFolder, templateNames[i]+h.ext))
	}
	if err := errors.Join(errs...); err != nil {
		return idstring.Hash128{}, opError("Hlms.TemplateChecksum", h.name, err)
	}
	return sum, nil
}
