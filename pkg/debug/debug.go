// Package debug provides category-based debug logging for deployq.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): controlled via DEPLOYQ_DEBUG env
//   - Levels (HOW MUCH detail): controlled via DEPLOYQ_LOG_LEVEL env
//
// Usage:
//
//	debug.Log("auth", "token resolved", "organisation", org)
//	if debug.Enabled("storage") { /* expensive formatting */ }
//
// Categories: auth, storage, queue, transport, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
package debug

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
// At TRACE, full untruncated request/response bodies are logged.
const LevelTrace = slog.LevelDebug - 4

// categories holds the set of enabled debug categories.
// Access is read-only after Init(), so no synchronization needed.
var categories map[string]bool

func init() {
	// Initialize from environment for immediate availability.
	// Can be re-initialized later via Init().
	categories = parseCategories(os.Getenv("DEPLOYQ_DEBUG"))
}

// Init configures the debug system. Called at startup with fallback
// values; environment variables take precedence.
func Init(fallbackCategories string, fallbackLevel string) {
	cats := os.Getenv("DEPLOYQ_DEBUG")
	if cats == "" {
		cats = fallbackCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv("DEPLOYQ_LOG_LEVEL")
	if level == "" {
		level = fallbackLevel
	}
	if level == "" {
		level = "INFO"
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// parseCategories splits a comma-separated category list into a set.
func parseCategories(s string) map[string]bool {
	result := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			result[part] = true
		}
	}
	return result
}

// Enabled reports whether debug output is active for the given category.
// This is a constant-time map lookup with zero allocation.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op (zero overhead).
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
// Only visible when DEPLOYQ_LOG_LEVEL=TRACE.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(nil, LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(nil, LevelTrace)
}

// Raw writes plain text to stderr without any slog formatting.
// Use this for copy-paste-ready output (full HTTP bodies, headers).
// Only emitted when category is enabled AND level is TRACE.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, text)
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the list of enabled categories (for health/status reporting).
func Categories() []string {
	var result []string
	for k := range categories {
		result = append(result, k)
	}
	return result
}
