package preproc

import (
	"fmt"
	"strings"
	"testing"
)

func newProcessor(files map[string]string) *Processor {
	return &Processor{
		Macros:   NewTable(),
		Included: make(map[string]bool),
		Open: func(path string) (string, string, error) {
			content, ok := files[path]
			if !ok {
				return "", "", fmt.Errorf("cannot open %q", path)
			}
			return content, "/abs/" + path, nil
		},
	}
}

func joined(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

func TestObjectMacroExpansion(t *testing.T) {
	p := newProcessor(nil)
	segs, err := p.Process("#define LIMIT 10\nint x = LIMIT;\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(joined(segs)); got != "int x = 10;" {
		t.Errorf("got %q", got)
	}
}

func TestFunctionMacroExpansion(t *testing.T) {
	p := newProcessor(nil)
	segs, err := p.Process("#define SQR(x) ((x)*(x))\nSQR(3);\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(joined(segs)); got != "((3)*(3));" {
		t.Errorf("got %q", got)
	}
}

func TestMacroNotExpandedInStrings(t *testing.T) {
	p := newProcessor(nil)
	segs, err := p.Process("#define FOO 1\nputs(\"FOO\");\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(joined(segs)); got != `puts("FOO");` {
		t.Errorf("got %q", got)
	}
}

func TestMacroPersistsAcrossFragments(t *testing.T) {
	p := newProcessor(nil)
	if _, err := p.Process("#define N 7\n"); err != nil {
		t.Fatal(err)
	}
	segs, err := p.Process("N;\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(joined(segs)); got != "7;" {
		t.Errorf("got %q", got)
	}
}

func TestUndef(t *testing.T) {
	p := newProcessor(nil)
	segs, err := p.Process("#define N 7\n#undef N\nN;\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(joined(segs)); got != "N;" {
		t.Errorf("got %q", got)
	}
}

func TestConditionals(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"ifdef_taken", "#define A 1\n#ifdef A\nyes;\n#else\nno;\n#endif\n", "yes;"},
		{"ifdef_not_taken", "#ifdef A\nyes;\n#else\nno;\n#endif\n", "no;"},
		{"ifndef", "#ifndef A\nyes;\n#endif\n", "yes;"},
		{"nested", "#define A 1\n#ifdef A\n#ifdef B\ninner;\n#endif\nouter;\n#endif\n", "outer;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProcessor(nil)
			segs, err := p.Process(tt.src)
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.TrimSpace(joined(segs)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConditionalErrors(t *testing.T) {
	tests := []string{
		"#ifdef A\n",
		"#endif\n",
		"#else\n",
		"#ifdef A\n#else\n#else\n#endif\n",
	}
	for _, src := range tests {
		p := newProcessor(nil)
		if _, err := p.Process(src); err == nil {
			t.Errorf("%q: expected error", src)
		}
	}
}

func TestIncludeInlinesFile(t *testing.T) {
	p := newProcessor(map[string]string{
		"defs.h": "int shared = 1;\n",
	})
	segs, err := p.Process("#include \"defs.h\"\nshared;\n")
	if err != nil {
		t.Fatal(err)
	}
	text := joined(segs)
	if !strings.Contains(text, "int shared = 1;") || !strings.Contains(text, "shared;") {
		t.Errorf("got %q", text)
	}
}

func TestIncludeIsIdempotent(t *testing.T) {
	p := newProcessor(map[string]string{
		"defs.h": "int shared = 1;\n",
	})
	for i := 0; i < 2; i++ {
		segs, err := p.Process("#include \"defs.h\"\n")
		if err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		if i == 1 && strings.Contains(joined(segs), "shared") {
			t.Error("second inclusion re-inlined the file")
		}
	}
}

func TestIncludeDefinesPersist(t *testing.T) {
	p := newProcessor(map[string]string{
		"limits.h": "#define MAX 99\n",
	})
	if _, err := p.Process("#include <limits.h>\n"); err != nil {
		t.Fatal(err)
	}
	segs, err := p.Process("MAX;\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(joined(segs)); got != "99;" {
		t.Errorf("got %q", got)
	}
}

func TestLibSegmentation(t *testing.T) {
	p := newProcessor(nil)
	segs, err := p.Process(`before;
#lib "libm.so.6"
double sqrt(double x);
#lib
after;
`)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segs))
	}
	if segs[0].Link != nil || segs[2].Link != nil {
		t.Error("plain segments must not carry a link")
	}
	if segs[1].Link == nil {
		t.Fatal("lib segment has no link")
	}
	if segs[1].Link.Path != "libm.so.6" || segs[1].Link.Self {
		t.Errorf("link: %+v", segs[1].Link)
	}
	if !strings.Contains(segs[1].Text, "sqrt") {
		t.Errorf("lib segment text: %q", segs[1].Text)
	}
}

func TestLibSelfAndScheme(t *testing.T) {
	p := newProcessor(nil)
	segs, err := p.Process("#lib * msvc\nint f(int);\n#lib\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	link := segs[0].Link
	if link == nil || !link.Self || link.Scheme != "msvc" {
		t.Errorf("link: %+v", link)
	}
}

func TestLibErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated", "#lib \"x.so\"\nint f(int);\n"},
		{"nested", "#lib \"x.so\"\n#lib \"y.so\"\n#lib\n"},
		{"close_without_open", "#lib\n"},
		{"include_inside", "#lib \"x.so\"\n#include \"defs.h\"\n#lib\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProcessor(map[string]string{"defs.h": ""})
			if _, err := p.Process(tt.src); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestContinuationLines(t *testing.T) {
	p := newProcessor(nil)
	segs, err := p.Process("#define BIG 1 + \\\n2\nBIG;\n")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(joined(segs)); got != "1 + 2;" {
		t.Errorf("got %q", got)
	}
}

func TestUnsupportedDirective(t *testing.T) {
	p := newProcessor(nil)
	if _, err := p.Process("#frobnicate\n"); err == nil {
		t.Error("expected error")
	}
}
