package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/diskcache"
	"github.com/gogpu/hlms/idstring"
	"github.com/gogpu/hlms/program"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the contents of a disk cache",
}

var inspectMicrocodeCmd = &cobra.Command{
	Use:   "microcode file",
	Short: "List a microcode cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return inspectFile(args[0], inspectMicrocode)
	},
}

var inspectPipelineCmd = &cobra.Command{
	Use:   "pipeline file",
	Short: "Print a pipeline cache header",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return inspectFile(args[0], inspectPipeline)
	},
}

var inspectShaderCodeCmd = &cobra.Command{
	Use:   "shadercode file",
	Short: "List a shader code cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sources, _ := cmd.Flags().GetBool("sources")
		return inspectFile(args[0], func(w io.Writer, r io.Reader) error {
			return inspectShaderCode(w, r, sources)
		})
	},
}

func init() {
	inspectShaderCodeCmd.Flags().Bool("sources", false, "print the generated sources")
	inspectCmd.AddCommand(inspectMicrocodeCmd, inspectPipelineCmd, inspectShaderCodeCmd)
}

func inspectFile(path string, fn func(io.Writer, io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	printHeader(os.Stdout, "%s", path)
	return fn(os.Stdout, f)
}

func inspectMicrocode(w io.Writer, r io.Reader) error {
	pm := program.NewManager("")
	if err := pm.LoadMicrocodeCache(r); err != nil {
		return err
	}
	total := 0
	pm.RangeMicrocode(func(key idstring.Hash128, code []byte) bool {
		fmt.Fprintf(w, "  %s  %8d bytes\n", key, len(code))
		total += len(code)
		return true
	})
	_, _ = dimColor.Fprintf(w, "%d entries, %d bytes\n", pm.NumMicrocode(), total)
	return nil
}

func inspectPipeline(w io.Writer, r io.Reader) error {
	hdr, err := diskcache.ReadPipelineHeader(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  vendor   %#06x\n", hdr.VendorID)
	fmt.Fprintf(w, "  device   %#06x\n", hdr.DeviceID)
	fmt.Fprintf(w, "  driver   %d\n", hdr.DriverVersion)
	fmt.Fprintf(w, "  abi      %d-byte pointers\n", hdr.DriverABI)
	fmt.Fprintf(w, "  uuid     %s\n", hdr.UUID)
	fmt.Fprintf(w, "  data     %d bytes, hash %#016x\n", hdr.DataSize, hdr.DataHash)

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if !hdr.Verify(data) {
		printWarn(w, "hash mismatch: file is corrupt or truncated")
		return nil
	}
	_, _ = okColor.Fprintln(w, "  hash ok")
	return nil
}

func inspectShaderCode(w io.Writer, r io.Reader, sources bool) error {
	f, err := diskcache.DecodeShaderCode(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  schema %d, type %s, profile %s\n", f.Schema, hlms.Type(f.Type), f.Profile)
	fmt.Fprintf(w, "  templates %s\n", idstring.Hash128FromBytes(f.Checksum))
	if f.Schema != diskcache.ShaderCodeSchema {
		printWarn(w, "schema %d is not the current %d", f.Schema, diskcache.ShaderCodeSchema)
	}
	for _, e := range f.Entries {
		fmt.Fprintf(w, "  #%d  %d properties\n", e.Counter, len(e.Properties))
		for stage, src := range e.Sources {
			if src == "" {
				continue
			}
			fmt.Fprintf(w, "    %-8s %6d bytes\n", hlms.ShaderType(stage), len(src))
			if sources {
				_, _ = dimColor.Fprintln(w, src)
			}
		}
	}
	return nil
}
