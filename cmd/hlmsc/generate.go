package main

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/spf13/cobra"

	"github.com/gogpu/hlms"
)

var generateCmd = &cobra.Command{
	Use:   "generate [flags]",
	Short: "Generate the shaders one mesh needs",
	Long: `Generate opens the configured engine, hashes a mesh with the requested
vertex layout, prepares a main pass and compiles its material on the
compile queue. The generated programs are listed and the configured
caches are updated.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	addSessionFlags(generateCmd)
	generateCmd.Flags().Bool("normals", true, "mesh has normals")
	generateCmd.Flags().Int("uvs", 1, "number of texture coordinate sets")
	generateCmd.Flags().Bool("tangents", false, "mesh has tangents")
	generateCmd.Flags().Bool("caster", false, "prepare a shadow caster pass instead")
	generateCmd.Flags().Duration("budget", 0, "PSO creation budget; zero waits for every PSO")
}

func testMesh(normals, tangents bool, uvs int) *hlms.SubMesh {
	elems := []hlms.VertexElement{{Semantic: hlms.SemanticPosition, Format: gputypes.VertexFormatFloat32x3}}
	if normals {
		elems = append(elems, hlms.VertexElement{Semantic: hlms.SemanticNormal, Format: gputypes.VertexFormatFloat32x3})
	}
	if tangents {
		elems = append(elems, hlms.VertexElement{Semantic: hlms.SemanticTangent, Format: gputypes.VertexFormatFloat32x4})
	}
	for range uvs {
		elems = append(elems, hlms.VertexElement{Semantic: hlms.SemanticTexCoord, Format: gputypes.VertexFormatFloat32x2})
	}
	return &hlms.SubMesh{
		Name: "hlmsc",
		Vaos: []hlms.VertexArray{{
			InputLayoutID: 1,
			Buffers:       [][]hlms.VertexElement{elems},
			Operation:     hlms.OperationTriangleList,
		}},
	}
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	normals, _ := cmd.Flags().GetBool("normals")
	tangents, _ := cmd.Flags().GetBool("tangents")
	uvs, _ := cmd.Flags().GetInt("uvs")
	caster, _ := cmd.Flags().GetBool("caster")
	budget, _ := cmd.Flags().GetDuration("budget")
	if uvs < 0 || uvs > hlms.MaxUvSets {
		return usageError("--uvs must be between 0 and %d", hlms.MaxUvSets)
	}

	ctx := cmd.Context()
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	mesh := testMesh(normals, tangents, uvs)
	if err := s.h.Assign(mesh, nil); err != nil {
		return err
	}
	pass, err := s.h.PreparePassHash(&hlms.PassInfo{Name: "main", Caster: caster})
	if err != nil {
		return err
	}

	queue := hlms.NewCompileQueue(s.cfg.Hlms.Workers)
	defer queue.Close()
	qr := hlms.QueuedRenderable{Renderable: mesh, Object: mesh.Name}
	entry, err := s.h.GetMaterial(nil, pass, qr, caster, queue)
	if err != nil {
		return err
	}
	var deadline time.Time
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}
	start := time.Now()
	if err := queue.Fire(ctx, deadline); err != nil {
		return err
	}
	elapsed := time.Since(start)

	printShaderCode(s.h)
	switch entry.Flags() {
	case hlms.CacheFlagsNone:
		_, _ = okColor.Printf("pso %#08x ready in %v\n", entry.Hash, elapsed.Round(time.Microsecond))
	default:
		printWarn(os.Stdout, "pso %#08x still %v after the %v budget", entry.Hash, entry.Flags(), budget)
	}
	st := s.pm.Stats()
	_, _ = dimColor.Printf("programs: %d compiled, %d from cache, %d failed\n", st.Compiled, st.Reused, st.Failed)

	return s.save()
}

func printShaderCode(h *hlms.Hlms) {
	entries := h.ShaderCodeCache()
	slices.SortFunc(entries, func(a, b *hlms.ShaderCodeCache) int { return cmp.Compare(a.Counter, b.Counter) })
	printHeader(os.Stdout, "%s: %d shader code entries (%s)", h.Name(), len(entries), h.ShaderProfile())
	for _, e := range entries {
		fmt.Printf("  #%d  %d properties\n", e.Counter, e.Merged.Props.Len())
		for stage, p := range e.Shaders {
			if p == nil {
				continue
			}
			fmt.Printf("    %-8s %-28s %6d bytes\n", hlms.ShaderType(stage), p.Name(), len(p.Microcode()))
		}
	}
}
