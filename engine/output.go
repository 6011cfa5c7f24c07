package engine

import (
	"fmt"
	"os"
	"strings"
)

// lineSink receives one flushed line of scripted output, without the
// trailing newline.
type lineSink func(line string)

// lineBuffer accumulates scripted output and delivers whole lines to
// the active sink. Partial content is held until the next newline or
// an explicit Flush.
type lineBuffer struct {
	sink lineSink
	buf  strings.Builder
}

func newLineBuffer() *lineBuffer {
	return &lineBuffer{sink: consoleSink}
}

// consoleSink is the default sink: the process's stdout
func consoleSink(line string) {
	fmt.Fprintln(os.Stdout, line)
}

// WriteString buffers s, flushing a sink call per completed line
func (b *lineBuffer) WriteString(s string) {
	for {
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			b.buf.WriteString(s)
			return
		}
		b.buf.WriteString(s[:nl])
		b.sink(b.buf.String())
		b.buf.Reset()
		s = s[nl+1:]
	}
}

// Flush delivers any buffered partial line
func (b *lineBuffer) Flush() {
	if b.buf.Len() == 0 {
		return
	}
	b.sink(b.buf.String())
	b.buf.Reset()
}
