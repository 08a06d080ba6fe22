package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	errorColor  = color.New(color.FgRed, color.Bold)
	warnColor   = color.New(color.FgYellow)
	okColor     = color.New(color.FgGreen)
	headerColor = color.New(color.FgCyan, color.Bold)
	dimColor    = color.New(color.Faint)
)

var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func printError(err error) {
	_, _ = errorColor.Fprint(os.Stderr, "error: ")
	fmt.Fprintln(os.Stderr, err)
}

func printWarn(w io.Writer, format string, args ...any) {
	_, _ = warnColor.Fprint(w, "warning: ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printHeader(w io.Writer, format string, args ...any) {
	_, _ = headerColor.Fprintf(w, format+"\n", args...)
}
