// Package goroutine holds helpers for background goroutines.
package goroutine

import (
	"fmt"
	"os"
	"runtime"

	"go.uber.org/zap"
)

// StackTraceBufferSize is the buffer size for stack trace collection
const StackTraceBufferSize = 4096

// Recover recovers from a panic in the calling goroutine and logs it with its
// stack. Must be deferred directly. A nil logger falls back to stderr.
func Recover(name string, logger *zap.SugaredLogger, fields ...interface{}) {
	if r := recover(); r != nil {
		buf := make([]byte, StackTraceBufferSize)
		n := runtime.Stack(buf, false)

		if logger == nil {
			fmt.Fprintf(os.Stderr, "PANIC in goroutine %s (no logger): %v\n%s\n", name, r, string(buf[:n]))
			return
		}
		kv := append([]interface{}{"goroutine", name, "panic", r, "stack", string(buf[:n])}, fields...)
		logger.Errorw("Goroutine panic recovered", kv...)
	}
}
