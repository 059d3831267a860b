// Package debug provides the ambient, gated logging calls used throughout
// treehouse (debug.Logf everywhere a package wants a cheap, opt-in trace
// line). Recreated from the call-site contract used pervasively across
// the teacher's cmd/bd and internal packages: a package-level Logf gated
// on an env var, silent by default.
package debug

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const enableEnvVar = "TREEHOUSE_DEBUG"
const logFileEnvVar = "TREEHOUSE_DEBUG_LOG"

var (
	mu      sync.Mutex
	enabled bool
	once    sync.Once
	out     *lumberjack.Logger
)

func initOnce() {
	once.Do(func() {
		enabled = os.Getenv(enableEnvVar) != ""
		if path := os.Getenv(logFileEnvVar); path != "" {
			out = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     7, // days
			}
		}
	})
}

// Enabled reports whether debug logging is currently on.
func Enabled() bool {
	initOnce()
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetEnabled overrides the env-var-derived default; mainly useful for
// tests that want to assert on debug output without setting env vars.
func SetEnabled(v bool) {
	initOnce()
	mu.Lock()
	defer mu.Unlock()
	enabled = v
}

// Logf writes a debug line to stderr (or the configured rotating log
// file, if TREEHOUSE_DEBUG_LOG is set) when debug logging is enabled.
// It is a silent no-op otherwise, so call sites can sprinkle it freely
// without a cost in the common case.
func Logf(format string, args ...any) {
	initOnce()
	mu.Lock()
	on, w := enabled, out
	mu.Unlock()
	if !on {
		return
	}
	line := fmt.Sprintf(format, args...)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	if w != nil {
		_, _ = w.Write([]byte(line))
		return
	}
	fmt.Fprint(os.Stderr, line)
}
