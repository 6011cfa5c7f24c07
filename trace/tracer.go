// Package trace provides pcode execution tracing for debugging
package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cinder/vm"
)

// Tracer writes one line per executed instruction and per call,
// optionally filtered by function name patterns. It satisfies the
// machine's tracer hook.
type Tracer struct {
	enabled bool
	filters []string
	writer  io.Writer
	mu      sync.Mutex
}

// New creates a tracer. With no filters every function is traced;
// otherwise only functions matching one of the glob patterns are.
func New(enabled bool, filters []string, writer io.Writer) *Tracer {
	if writer == nil {
		writer = os.Stderr
	}
	return &Tracer{
		enabled: enabled,
		filters: filters,
		writer:  writer,
	}
}

// matchesFilter checks if a function name matches any filter pattern
func (t *Tracer) matchesFilter(fn string) bool {
	if len(t.filters) == 0 {
		return true
	}
	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, fn); matched {
			return true
		}
	}
	return false
}

// Instruction logs one executed instruction
func (t *Tracer) Instruction(fn string, ip int, op vm.OpCode, line int) {
	if !t.enabled || !t.matchesFilter(fn) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	where := fn
	if where == "" {
		where = "<fragment>"
	}
	fmt.Fprintf(t.writer, "[TRACE] %s:%04d %-16s line=%d\n", where, ip, op, line)
}

// Call logs entry into a new frame
func (t *Tracer) Call(fn string, depth int) {
	if !t.enabled || !t.matchesFilter(fn) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	where := fn
	if where == "" {
		where = "<fragment>"
	}
	fmt.Fprintf(t.writer, "[TRACE] CALL %s%s depth=%d\n",
		strings.Repeat("  ", depth-1), where, depth)
}
