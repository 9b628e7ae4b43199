// Package threads resolves how many goroutines the rankings decoder may use.
//
// The count comes from the PYARROW_THREADS environment variable, the name the
// cisTarget tools already use, and defaults to 4.
package threads

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/inodb/rnkdb/internal/ctdb"
)

// EnvVar overrides the default thread count.
const EnvVar = "PYARROW_THREADS"

// Default is used when EnvVar is unset or not an integer.
const Default = ctdb.DefaultCPUCount

var (
	logger = zap.NewNop()

	mu      sync.Mutex
	loaded  bool
	fromEnv int
)

// SetLogger sets the logger used to report ignored or clamped values.
// Call it before the first FromEnv or Apply.
func SetLogger(l *zap.Logger) {
	logger = l
}

// Resolve turns a raw setting into a thread count. Empty or unparseable
// values give Default, values below 1 give 1. The returned warning is empty
// unless the value was ignored or clamped.
func Resolve(raw string) (n int, warning string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Default, ""
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return Default, "not an integer, using default"
	}
	if n < 1 {
		return 1, "below 1, clamped to 1"
	}
	return n, ""
}

// FromEnv returns the thread count from the environment. The variable is
// read once per process, or once after each Reset.
func FromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return fromEnv
	}

	raw := os.Getenv(EnvVar)
	n, warning := Resolve(raw)
	if warning != "" {
		logger.Warn("invalid thread count",
			zap.String("env", EnvVar),
			zap.String("value", raw),
			zap.String("action", warning),
			zap.Int("threads", n))
	}
	fromEnv, loaded = n, true
	return fromEnv
}

// Apply sets the decoder pool size. n <= 0 applies FromEnv. It returns the
// value applied and may be called any number of times.
func Apply(n int) int {
	if n <= 0 {
		n = FromEnv()
	}
	ctdb.SetCPUCount(n)
	return ctdb.CPUCount()
}

// Init applies FromEnv unless a count was already applied, and returns the
// decoder pool size. Databases call it when they are opened without an
// explicit thread count.
func Init() int {
	if ctdb.CPUCountSet() {
		return ctdb.CPUCount()
	}
	return Apply(0)
}

// Reset forgets the value read from the environment and the applied count,
// so the next Init reads EnvVar again.
func Reset() {
	mu.Lock()
	loaded, fromEnv = false, 0
	mu.Unlock()
	ctdb.ResetCPUCount()
}
