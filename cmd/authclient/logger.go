package main

import (
	"fmt"
	"io"
)

type cliLogger struct {
	w       io.Writer
	verbose bool
}

func newCLILogger(w io.Writer, verbose bool) cliLogger {
	return cliLogger{w: w, verbose: verbose}
}

func (l cliLogger) Debug(format string, args ...any) {
	if l.verbose {
		fmt.Fprintf(l.w, "[DBG] "+format+"\n", args...)
	}
}

func (l cliLogger) Info(format string, args ...any) {
	if l.verbose {
		fmt.Fprintf(l.w, "[INF] "+format+"\n", args...)
	}
}

func (l cliLogger) Warn(format string, args ...any) {
	fmt.Fprintf(l.w, "[WRN] "+format+"\n", args...)
}

func (l cliLogger) Error(format string, args ...any) {
	if l.verbose {
		fmt.Fprintf(l.w, "[ERR] "+format+"\n", args...)
	}
}
