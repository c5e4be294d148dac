package main

import (
	"fmt"
	"os"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
)

// emit writes one marked line to stderr, coloring the whole line unless
// --no-color is set.
func emit(color, mark, format string, args ...any) {
	line := mark + " " + fmt.Sprintf(format, args...)
	if !noColor {
		line = color + line + ansiReset
	}
	fmt.Fprintln(os.Stderr, line)
}

func printSuccess(format string, args ...any) { emit(ansiGreen, "✓", format, args...) }

func printError(format string, args ...any) { emit(ansiRed, "✗", format, args...) }

func printWarning(format string, args ...any) { emit(ansiYellow, "⚠", format, args...) }

func printStep(format string, args ...any) { emit(ansiCyan, "→", format, args...) }

// printStatus renders an indented label/value pair with a bold label.
func printStatus(label, format string, args ...any) {
	l := label + ":"
	if !noColor {
		l = ansiBold + l + ansiReset
	}
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, fmt.Sprintf(format, args...))
}
