package notice

import (
	"github.com/go-stack/stack"
)

const (
	BacktraceStackDepth = 64
)

// Frame is a single backtrace entry.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// NewBacktrace captures the calling goroutine's stack, skipping skip frames
// above the caller of NewBacktrace.
func NewBacktrace(skip int) []Frame {
	// The first call in the trace is NewBacktrace itself.
	cs := stack.Trace().TrimRuntime()
	if skip+1 >= len(cs) {
		return nil
	}

	cs = cs[skip+1:]
	if len(cs) > BacktraceStackDepth {
		cs = cs[:BacktraceStackDepth]
	}

	out := make([]Frame, 0, len(cs))
	for _, c := range cs {
		f := c.Frame()
		out = append(out, Frame{
			File:     f.File,
			Line:     f.Line,
			Function: f.Function,
		})
	}

	return out
}
