// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants for the command surface. Engine events carry their
// own operation strings and convert through Op directly.
const (
	OpReciterLoad    Op = "load reciters"
	OpCachePrefetch  Op = "prefetch range audio"
	OpManifestImport Op = "import reciter manifest"
	OpPlaybackStart  Op = "start playback"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
