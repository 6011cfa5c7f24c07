// Package preproc implements the textual preprocessor: macro
// definition and expansion, conditional compilation, file inclusion,
// and the #lib library-linkage directive. It runs over a fragment
// before any syntax analysis and splits the text into segments, each
// optionally scoped to an open library link.
package preproc

import (
	"fmt"
	"strings"
)

// maxExpandDepth bounds recursive macro expansion
const maxExpandDepth = 32

// maxIncludeDepth bounds nested file inclusion
const maxIncludeDepth = 64

// Macro is one #define, object-like or function-like
type Macro struct {
	Name     string
	Params   []string
	Body     string
	FuncLike bool
}

// Table holds the macro definitions of a session. It lives in the
// persistent program state and survives across fragments.
type Table struct {
	macros map[string]*Macro
}

// NewTable creates an empty macro table
func NewTable() *Table {
	return &Table{macros: make(map[string]*Macro)}
}

// Define adds or replaces a macro
func (t *Table) Define(m *Macro) {
	t.macros[m.Name] = m
}

// Undef removes a macro
func (t *Table) Undef(name string) {
	delete(t.macros, name)
}

// Defined reports whether a macro of that name exists
func (t *Table) Defined(name string) bool {
	_, ok := t.macros[name]
	return ok
}

// Lookup returns a macro by name
func (t *Table) Lookup(name string) (*Macro, bool) {
	m, ok := t.macros[name]
	return m, ok
}

// LinkSpec names one open library link
type LinkSpec struct {
	Path   string // module path; empty for the self-process link
	Self   bool   // '*' sentinel: resolve against the host process
	Scheme string // mangling scheme name; empty selects the default
	Line   int
}

// Segment is a run of preprocessed source text. Link is nil for
// ordinary text and non-nil for prototypes inside a #lib block.
type Segment struct {
	Text string
	Link *LinkSpec
	Line int // source line the segment starts on
}

// Processor preprocesses fragments against persistent macro and
// include state. Open resolves an include path to its content and a
// canonical identity used for idempotent inclusion.
type Processor struct {
	Macros   *Table
	Included map[string]bool
	Open     func(path string) (content, canonical string, err error)
}

// condState is one level of #ifdef nesting
type condState struct {
	active    bool // this branch is being kept
	taken     bool // some branch of this level was kept
	sawElse   bool
	outerLive bool
}

// Process preprocesses one fragment. Included files are inlined
// (subject to idempotent inclusion), macros are expanded, conditionals
// resolved, and #lib directives split the output into segments.
func (p *Processor) Process(src string) ([]Segment, error) {
	return p.process(src, 0)
}

func (p *Processor) process(src string, depth int) ([]Segment, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("include nesting too deep")
	}

	var segs []Segment
	var buf strings.Builder
	var conds []condState
	var link *LinkSpec
	segStart := 1

	flush := func(line int) {
		if strings.TrimSpace(buf.String()) != "" {
			segs = append(segs, Segment{Text: buf.String(), Link: link, Line: segStart})
		}
		buf.Reset()
		segStart = line
	}

	live := func() bool {
		for _, c := range conds {
			if !c.active {
				return false
			}
		}
		return true
	}

	lines := splitContinuations(src)
	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)

		if strings.HasPrefix(trimmed, "#") {
			directive, rest := splitDirective(trimmed)
			switch directive {
			case "ifdef", "ifndef":
				name := strings.TrimSpace(rest)
				if name == "" {
					return nil, fmt.Errorf("line %d: #%s without a name", lineNo, directive)
				}
				defined := p.Macros.Defined(name)
				want := defined
				if directive == "ifndef" {
					want = !defined
				}
				conds = append(conds, condState{active: want, taken: want, outerLive: live()})
				continue
			case "else":
				if len(conds) == 0 {
					return nil, fmt.Errorf("line %d: #else without #ifdef", lineNo)
				}
				c := &conds[len(conds)-1]
				if c.sawElse {
					return nil, fmt.Errorf("line %d: duplicate #else", lineNo)
				}
				c.sawElse = true
				c.active = !c.taken
				c.taken = true
				continue
			case "endif":
				if len(conds) == 0 {
					return nil, fmt.Errorf("line %d: #endif without #ifdef", lineNo)
				}
				conds = conds[:len(conds)-1]
				continue
			}

			if !live() {
				continue
			}

			switch directive {
			case "define":
				m, err := parseDefine(rest, lineNo)
				if err != nil {
					return nil, err
				}
				p.Macros.Define(m)
			case "undef":
				p.Macros.Undef(strings.TrimSpace(rest))
			case "include":
				if link != nil {
					return nil, fmt.Errorf("line %d: #include inside #lib block", lineNo)
				}
				path, err := parseIncludePath(rest, lineNo)
				if err != nil {
					return nil, err
				}
				if p.Open == nil {
					return nil, fmt.Errorf("line %d: no include resolver configured", lineNo)
				}
				content, canonical, err := p.Open(path)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				if p.Included[canonical] {
					continue // idempotent inclusion
				}
				p.Included[canonical] = true
				flush(lineNo)
				sub, err := p.process(content, depth+1)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", path, err)
				}
				segs = append(segs, sub...)
				segStart = lineNo + 1
			case "lib":
				spec, err := parseLibSpec(rest, lineNo)
				if err != nil {
					return nil, err
				}
				if spec == nil {
					// bare #lib closes the block
					if link == nil {
						return nil, fmt.Errorf("line %d: #lib end without a matching #lib begin", lineNo)
					}
					flush(lineNo + 1)
					link = nil
					continue
				}
				if link != nil {
					return nil, fmt.Errorf("line %d: nested #lib blocks are not permitted", lineNo)
				}
				flush(lineNo + 1)
				link = spec
			case "pragma":
				// pragmas are accepted and ignored
			default:
				return nil, fmt.Errorf("line %d: unsupported directive #%s", lineNo, directive)
			}
			continue
		}

		if !live() {
			continue
		}

		expanded, err := p.expandLine(raw, 0)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		buf.WriteString(expanded)
		buf.WriteByte('\n')
	}

	if len(conds) > 0 {
		return nil, fmt.Errorf("unterminated #ifdef")
	}
	if link != nil {
		return nil, fmt.Errorf("line %d: unterminated #lib block", link.Line)
	}
	flush(len(lines) + 1)
	return segs, nil
}

// splitContinuations splits source into lines, joining backslash
// continuations so a #define body may span lines.
func splitContinuations(src string) []string {
	raw := strings.Split(src, "\n")
	var out []string
	for i := 0; i < len(raw); i++ {
		line := strings.TrimRight(raw[i], "\r")
		for strings.HasSuffix(line, "\\") && i+1 < len(raw) {
			i++
			line = line[:len(line)-1] + strings.TrimRight(raw[i], "\r")
		}
		out = append(out, line)
	}
	return out
}

// splitDirective splits "#define FOO 1" into ("define", "FOO 1")
func splitDirective(line string) (string, string) {
	s := strings.TrimSpace(line[1:])
	for i, c := range s {
		if c == ' ' || c == '\t' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// parseDefine parses the body of a #define directive
func parseDefine(rest string, lineNo int) (*Macro, error) {
	rest = strings.TrimLeft(rest, " \t")
	end := 0
	for end < len(rest) && isIdentChar(rest[end]) {
		end++
	}
	if end == 0 {
		return nil, fmt.Errorf("line %d: #define without a name", lineNo)
	}
	m := &Macro{Name: rest[:end]}
	rest = rest[end:]

	// '(' immediately after the name makes it function-like
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return nil, fmt.Errorf("line %d: unterminated macro parameter list", lineNo)
		}
		m.FuncLike = true
		for _, param := range strings.Split(rest[1:end], ",") {
			param = strings.TrimSpace(param)
			if param != "" {
				m.Params = append(m.Params, param)
			}
		}
		rest = rest[end+1:]
	}
	m.Body = strings.TrimSpace(rest)
	return m, nil
}

// parseIncludePath parses "file.h" or <file.h>
func parseIncludePath(rest string, lineNo int) (string, error) {
	rest = strings.TrimSpace(rest)
	if len(rest) >= 2 {
		if rest[0] == '"' && rest[len(rest)-1] == '"' {
			return rest[1 : len(rest)-1], nil
		}
		if rest[0] == '<' && rest[len(rest)-1] == '>' {
			return rest[1 : len(rest)-1], nil
		}
	}
	return "", fmt.Errorf("line %d: malformed #include", lineNo)
}

// parseLibSpec parses the argument of #lib. nil means the bare closing
// form. The optional trailing word selects the mangling scheme.
func parseLibSpec(rest string, lineNo int) (*LinkSpec, error) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields) > 2 {
		return nil, fmt.Errorf("line %d: malformed #lib directive", lineNo)
	}

	spec := &LinkSpec{Line: lineNo}
	path := strings.Trim(fields[0], `"`)
	if path == "*" {
		spec.Self = true
	} else {
		spec.Path = path
	}
	if len(fields) == 2 {
		spec.Scheme = fields[1]
	}
	return spec, nil
}

// expandLine performs macro expansion on one line of ordinary source,
// leaving string and character literals untouched.
func (p *Processor) expandLine(line string, depth int) (string, error) {
	if depth > maxExpandDepth {
		return "", fmt.Errorf("macro expansion too deep")
	}

	var out strings.Builder
	i := 0
	changed := false
	for i < len(line) {
		c := line[i]

		// skip string literals
		if c == '"' || c == '\'' {
			quote := c
			out.WriteByte(c)
			i++
			for i < len(line) {
				out.WriteByte(line[i])
				if line[i] == '\\' && i+1 < len(line) {
					i++
					out.WriteByte(line[i])
					i++
					continue
				}
				if line[i] == quote {
					i++
					break
				}
				i++
			}
			continue
		}

		if isIdentStart(c) {
			start := i
			for i < len(line) && isIdentChar(line[i]) {
				i++
			}
			word := line[start:i]
			m, ok := p.Macros.Lookup(word)
			if !ok {
				out.WriteString(word)
				continue
			}
			if !m.FuncLike {
				out.WriteString(m.Body)
				changed = true
				continue
			}
			// function-like macro needs an argument list
			j := i
			for j < len(line) && (line[j] == ' ' || line[j] == '\t') {
				j++
			}
			if j >= len(line) || line[j] != '(' {
				out.WriteString(word)
				continue
			}
			args, next, err := scanMacroArgs(line, j)
			if err != nil {
				return "", err
			}
			if len(args) != len(m.Params) {
				return "", fmt.Errorf("macro %s expects %d arguments, got %d",
					m.Name, len(m.Params), len(args))
			}
			out.WriteString(substituteParams(m, args))
			i = next
			changed = true
			continue
		}

		out.WriteByte(c)
		i++
	}

	if changed {
		return p.expandLine(out.String(), depth+1)
	}
	return out.String(), nil
}

// scanMacroArgs scans a parenthesized argument list starting at the
// '(' and returns the arguments and the index past the ')'.
func scanMacroArgs(line string, open int) ([]string, int, error) {
	depth := 0
	var args []string
	var cur strings.Builder
	i := open
	for i < len(line) {
		c := line[i]
		switch c {
		case '(':
			depth++
			if depth > 1 {
				cur.WriteByte(c)
			}
		case ')':
			depth--
			if depth == 0 {
				if cur.Len() > 0 || len(args) > 0 {
					args = append(args, strings.TrimSpace(cur.String()))
				}
				return args, i + 1, nil
			}
			cur.WriteByte(c)
		case ',':
			if depth == 1 {
				args = append(args, strings.TrimSpace(cur.String()))
				cur.Reset()
			} else {
				cur.WriteByte(c)
			}
		default:
			cur.WriteByte(c)
		}
		i++
	}
	return nil, 0, fmt.Errorf("unterminated macro argument list")
}

// substituteParams replaces parameter names in the macro body
func substituteParams(m *Macro, args []string) string {
	var out strings.Builder
	body := m.Body
	i := 0
	for i < len(body) {
		if isIdentStart(body[i]) {
			start := i
			for i < len(body) && isIdentChar(body[i]) {
				i++
			}
			word := body[start:i]
			replaced := false
			for k, param := range m.Params {
				if word == param {
					out.WriteString(args[k])
					replaced = true
					break
				}
			}
			if !replaced {
				out.WriteString(word)
			}
			continue
		}
		out.WriteByte(body[i])
		i++
	}
	return out.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || '0' <= c && c <= '9'
}
