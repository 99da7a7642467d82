// Panic recovery for the message fabric.
//
// Handlers run arbitrary application code; a panic inside one must degrade
// to an error reply rather than kill the worker's consumer loop.
package agentcomm

import (
	"fmt"
	"runtime/debug"
)

// SafeExecuteWithResult runs fn, converting a panic into an error carrying
// the operation name. The stack is logged, never returned to the caller.
func SafeExecuteWithResult[T any](logger Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if logger != nil {
			logger.Error("panic_recovered",
				"operation", operation,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
		err = fmt.Errorf("panic in %s: %v", operation, r)
	}()
	return fn()
}
