// Package logger writes vetrina's diagnostic output to stderr.
//
// Debug, Info, Warn and Section only print with --verbose; Error always
// prints. Long-running commands such as "mcp serve" turn on timestamps so
// server logs can be correlated with requests.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var tags = [...]string{
	levelDebug: "[DEBUG] ",
	levelInfo:  "[INFO] ",
	levelWarn:  "[WARN] ",
	levelError: "[ERROR] ",
}

var (
	mu         sync.RWMutex
	verbose    bool
	timestamps bool
	output     io.Writer = os.Stderr
	now                  = time.Now
)

// SetVerbose turns the verbose levels on or off.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether verbose output is on.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetTimestamps prefixes every line with an RFC 3339 UTC time when on.
func SetTimestamps(on bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = on
}

// SetOutput redirects log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// logf holds the write lock so concurrent lines never interleave.
func logf(l level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l < levelError && !verbose {
		return
	}
	line := tags[l] + fmt.Sprintf(format, args...) + "\n"
	if timestamps {
		line = now().UTC().Format(time.RFC3339) + " " + line
	}
	_, _ = io.WriteString(output, line)
}

// Section prints a blank line and a banner before a multi-step operation.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

func Debug(format string, args ...any) { logf(levelDebug, format, args...) }
func Info(format string, args ...any)  { logf(levelInfo, format, args...) }
func Warn(format string, args ...any)  { logf(levelWarn, format, args...) }

// Error prints regardless of verbosity.
func Error(format string, args ...any) { logf(levelError, format, args...) }

// Timed starts a stopwatch; the returned func logs the elapsed time at debug
// level. Typical use: defer logger.Timed("semantic phase")().
func Timed(label string) func() {
	start := now()
	return func() {
		Debug("%s took %s", label, now().Sub(start).Round(time.Microsecond))
	}
}
