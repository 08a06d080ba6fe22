package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/hlms"
	"github.com/gogpu/hlms/idstring"
	"github.com/gogpu/hlms/preprocess"
)

var errSyntax = errors.New("syntax errors")

var preprocessCmd = &cobra.Command{
	Use:   "preprocess [flags] template",
	Short: "Run the template preprocessor over one file",
	Long: `Preprocess evaluates a template against the given properties. Piece
files are parsed first, in order, so the template can insert their pieces.`,
	Args: cobra.ExactArgs(1),
	RunE: runPreprocess,
}

func init() {
	preprocessCmd.Flags().StringArrayP("prop", "p", nil, "set a property, name=value (value defaults to 1)")
	preprocessCmd.Flags().StringArray("pieces", nil, "piece file parsed before the template")
	preprocessCmd.Flags().StringP("output", "o", "", "write the result to a file instead of stdout")
	preprocessCmd.Flags().Bool("dump", false, "print the final properties and pieces to stderr")
}

// parseProp parses name=value. A bare name sets 1.
func parseProp(s string) (string, int32, error) {
	name, value, found := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", 0, usageError("empty property name in %q", s)
	}
	if !found {
		return name, 1, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return "", 0, usageError("property %s: %v", name, err)
	}
	return name, int32(v), nil
}

func runPreprocess(cmd *cobra.Command, args []string) error {
	props, _ := cmd.Flags().GetStringArray("prop")
	pieceFiles, _ := cmd.Flags().GetStringArray("pieces")
	output, _ := cmd.Flags().GetString("output")
	dump, _ := cmd.Flags().GetBool("dump")

	ctx := preprocess.NewContext(args[0])
	for _, p := range props {
		name, v, err := parseProp(p)
		if err != nil {
			return err
		}
		ctx.Props.Set(idstring.Register(name), v)
	}

	parser := preprocess.NewParser(hlms.Logger())
	bad := false
	for _, f := range pieceFiles {
		src, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		ctx.Filename = f
		if _, b := parser.ParsePieceFile(ctx, string(src)); b {
			printWarn(os.Stderr, "%s: syntax errors", f)
			bad = true
		}
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	ctx.Filename = args[0]
	out, b := parser.Parse(ctx, string(src))
	if b {
		return fmt.Errorf("%s: %w", args[0], errSyntax)
	}

	if dump {
		dumpContext(ctx)
	}
	if output != "" {
		if err := os.WriteFile(output, []byte(out), 0o644); err != nil { //nolint:gosec // G306: generated source is not secret
			return err
		}
		_, _ = okColor.Fprintf(os.Stderr, "wrote %s\n", output)
	} else {
		fmt.Print(out)
	}
	if bad {
		return errSyntax
	}
	return nil
}

func dumpContext(ctx *preprocess.Context) {
	printHeader(os.Stderr, "properties")
	for _, p := range ctx.Props.All() {
		fmt.Fprintf(os.Stderr, "  %s = %d\n", p.Key, p.Value)
	}
	printHeader(os.Stderr, "pieces")
	for k, v := range ctx.Pieces {
		_, _ = dimColor.Fprintf(os.Stderr, "  %s: %q\n", k, v)
	}
}
