// Package cli is the build command's terminal output.
package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

type Output struct {
	enableColors bool
}

func NewOutput() *Output {
	return &Output{
		enableColors: isatty.IsTerminal(os.Stdout.Fd()),
	}
}

func (o *Output) DisableColors() {
	o.enableColors = false
}

func (o *Output) green(text string) string {
	if !o.enableColors {
		return text
	}
	return "\033[32m" + text + "\033[0m"
}

func (o *Output) yellow(text string) string {
	if !o.enableColors {
		return text
	}
	return "\033[33m" + text + "\033[0m"
}

func (o *Output) red(text string) string {
	if !o.enableColors {
		return text
	}
	return "\033[31m" + text + "\033[0m"
}

func (o *Output) PrintHeader(msg string) {
	fmt.Println(msg)
	fmt.Println()
}

func (o *Output) PrintStep(msg string, args ...any) {
	fmt.Printf("  "+msg+"\n", args...)
}

func (o *Output) PrintSuccess(msg string, args ...any) {
	fmt.Printf("  "+o.green("✓ ")+"%s\n", fmt.Sprintf(msg, args...))
}

func (o *Output) PrintWarning(msg string, args ...any) {
	fmt.Printf("  "+o.yellow("⚠ ")+"%s\n", fmt.Sprintf(msg, args...))
}

func (o *Output) PrintError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "  "+o.red("✗ ")+"%s\n", fmt.Sprintf(msg, args...))
}

func (o *Output) PrintFile(path string) {
	fmt.Printf("    %s\n", path)
}

func (o *Output) PrintDone(msg string) {
	fmt.Println(msg)
}
