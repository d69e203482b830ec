package logx

import (
	"fmt"
	"runtime"
	"strings"
)

// StackTrace renders up to depth frames of the calling goroutine, one
// "function (file:line)" per line. skip counts from the caller of
// StackTrace.
func StackTrace(skip, depth int) string {
	if depth <= 0 {
		depth = 16
	}
	pcs := make([]uintptr, depth)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	lines := make([]string, 0, n)
	for {
		fr, more := frames.Next()
		if fr.Function != "" {
			lines = append(lines, fmt.Sprintf("%s (%s:%d)", fr.Function, fr.File, fr.Line))
		}
		if !more {
			break
		}
	}
	return strings.Join(lines, "\n")
}
