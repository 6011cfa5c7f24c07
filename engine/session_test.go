package engine

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinder/ctype"
	"cinder/interop"
	"cinder/interop/mangle"
)

func newSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEvalAndResult(t *testing.T) {
	s := newSession(t, Options{})

	got, err := s.Eval("2 + 3 * 4")
	require.NoError(t, err)
	assert.Equal(t, "14", got)
	assert.Equal(t, "(int) 14", s.Result())
	assert.Equal(t, "14", s.Value())
	assert.Empty(t, s.LastError())

	got, err = s.Eval("20*2.3")
	require.NoError(t, err)
	assert.Equal(t, "46", got)
	assert.Equal(t, "(double) 46", s.Result())
}

func TestPersistentState(t *testing.T) {
	s := newSession(t, Options{})

	require.NoError(t, s.Exec("int x = 5;"))
	got, err := s.Eval("x + 1")
	require.NoError(t, err)
	assert.Equal(t, "6", got)

	require.NoError(t, s.Exec("int twice(int n) { return 2 * n; }"))
	got, err = s.Eval("twice(x)")
	require.NoError(t, err)
	assert.Equal(t, "10", got)
}

func TestErrorTaxonomy(t *testing.T) {
	s := newSession(t, Options{})

	err := s.Exec("int = ;")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, err.Error(), s.LastError())

	err = s.Exec("int strlen(char* s);")
	var le *LinkError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, err.Error(), "#lib")

	err = s.Exec("1 / 0;")
	var rf *RuntimeFault
	require.ErrorAs(t, err, &rf)
	assert.Contains(t, err.Error(), "division by zero")

	// a failed fragment leaves prior state intact
	require.NoError(t, s.Exec("int ok = 7;"))
	_ = s.Exec("no such syntax")
	got, err := s.Eval("ok")
	require.NoError(t, err)
	assert.Equal(t, "7", got)
}

func TestResultIntoAndErrorInto(t *testing.T) {
	s := newSession(t, Options{})

	require.NoError(t, s.Exec("40 + 2;"))
	buf := make([]byte, 64)
	n := s.ResultInto(buf)
	assert.Equal(t, "(int) 42", string(buf[:n]))

	require.Error(t, s.Exec("1 / 0;"))
	small := make([]byte, 8)
	n = s.ErrorInto(small)
	assert.Equal(t, 8, n)
	assert.Equal(t, s.LastError()[:8], string(small[:8]))
}

func TestIncludeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defs.h")
	src := "int marker = 0;\nmarker = marker + 1;\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	s := newSession(t, Options{IncludePath: []string{dir}})
	require.NoError(t, s.Include("defs.h"))
	require.NoError(t, s.Include("defs.h"))

	got, err := s.Eval("marker")
	require.NoError(t, err)
	assert.Equal(t, "1", got, "second inclusion must be a no-op")

	// a directive inside a fragment shares the same included set
	require.NoError(t, s.Exec("#include \"defs.h\"\n"))
	got, err = s.Eval("marker")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestLoadAlwaysRuns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "count.c")
	require.NoError(t, os.WriteFile(path, []byte("int n = 0;\nn = n + 1;\n"), 0o644))

	s := newSession(t, Options{})
	require.NoError(t, s.Load(path))
	require.NoError(t, s.Load(path))

	got, err := s.Eval("n")
	require.NoError(t, err)
	assert.Equal(t, "1", got, "reloading redeclares n, so the counter restarts")

	err = s.Load(filepath.Join(dir, "missing.c"))
	var ce *CompileError
	assert.ErrorAs(t, err, &ce)
}

func TestSetQuoted(t *testing.T) {
	s := newSession(t, Options{})
	require.NoError(t, s.Exec("char* msg;"))

	require.NoError(t, s.SetQuoted("msg", `say "hello" twice`))
	got, err := s.Eval("msg")
	require.NoError(t, err)
	assert.Equal(t, `say "hello" twice`, got)

	require.NoError(t, s.Exec("int num;"))
	assert.Error(t, s.SetQuoted("num", "nope"), "non-string variable")
	assert.Error(t, s.SetQuoted("ghost", "nope"), "undefined variable")
}

func TestInitRefAliasesHostMemory(t *testing.T) {
	s := newSession(t, Options{})

	var radius float64 = 2
	var area float64
	require.NoError(t, s.InitRef("double", "radius", unsafe.Pointer(&radius)))
	require.NoError(t, s.InitRef("double", "area", unsafe.Pointer(&area)))

	require.NoError(t, s.Exec("area = 2*3.1412*radius*radius;"))
	assert.InDelta(t, 2*3.1412*4, area, 1e-9)

	radius = 10
	got, err := s.Eval("radius")
	require.NoError(t, err)
	assert.Equal(t, "10", got, "host writes are visible without recompiling")

	var flag bool
	require.NoError(t, s.InitRef("bool", "flag", unsafe.Pointer(&flag)))
	require.NoError(t, s.Exec("flag = 1 < 2;"))
	assert.True(t, flag)

	assert.Error(t, s.InitRef("no_such_type", "x", unsafe.Pointer(&area)))
}

func TestOutputRedirection(t *testing.T) {
	s := newSession(t, Options{Bootstrap: true})

	var lines []string
	s.SetOutput(func(line string) { lines = append(lines, line) })

	require.NoError(t, s.Exec(`printf("alpha\nbeta\n");`))
	assert.Equal(t, []string{"alpha", "beta"}, lines)

	// partial lines buffer until completed or flushed
	lines = nil
	require.NoError(t, s.Exec(`printf("half");`))
	assert.Empty(t, lines)
	require.NoError(t, s.Exec(`printf(" and whole\n");`))
	assert.Equal(t, []string{"half and whole"}, lines)

	lines = nil
	require.NoError(t, s.Exec(`printf("tail with no newline");`))
	s.Flush()
	assert.Equal(t, []string{"tail with no newline"}, lines)
}

func TestBootstrapBuiltins(t *testing.T) {
	s := newSession(t, Options{Bootstrap: true})

	tests := []struct {
		src, want string
	}{
		{"sqrt(16.0)", "4"},
		{"pow(2, 10)", "1024"},
		{"abs(-4)", "4"},
		{`strlen("hello")`, "5"},
		{`atoi("  42") + 1`, "43"},
		{`atof("2.5") * 4`, "10"},
	}
	for _, tt := range tests {
		got, err := s.Eval(tt.src)
		require.NoError(t, err, tt.src)
		assert.Equal(t, tt.want, got, tt.src)
	}
}

func TestCompileAndCall(t *testing.T) {
	s := newSession(t, Options{})

	c, err := s.Compile("int a, int b", "return a + b;")
	require.NoError(t, err)

	v, err := c.Call(2, 3)
	require.NoError(t, err)
	assert.Equal(t, "5", v.String())

	v, err = c.Call(10, -4)
	require.NoError(t, err)
	assert.Equal(t, "6", v.String())

	// compiled units can reach session state
	require.NoError(t, s.Exec("int base = 100;"))
	c2, err := s.Compile("int n", "return base + n;")
	require.NoError(t, err)
	v, err = c2.Call(11)
	require.NoError(t, err)
	assert.Equal(t, "111", v.String())

	_, err = s.Compile("int a", "return a +;")
	assert.Error(t, err)
}

func TestLinkErrors(t *testing.T) {
	s := newSession(t, Options{})

	err := s.Exec("#lib * borland\nint f();\n#lib\n")
	var le *LinkError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, err.Error(), "scheme")

	err = s.Exec("#lib \"no/such/library.so\"\nint f();\n#lib\n")
	require.ErrorAs(t, err, &le)
}

func TestImportValidation(t *testing.T) {
	s := newSession(t, Options{})

	var ce *CompileError
	err := s.Import("int f() { return 1; }", unsafe.Pointer(&ce))
	assert.ErrorAs(t, err, &ce, "definitions cannot be imported")

	err = s.Import("int a; int b;", unsafe.Pointer(&ce))
	assert.ErrorAs(t, err, &ce, "exactly one declaration")

	var le *LinkError
	err = s.Import("int f(int);", nil)
	assert.ErrorAs(t, err, &le, "nil address")
}

func TestImportVariableAlias(t *testing.T) {
	s := newSession(t, Options{})

	var level int32 = 3
	require.NoError(t, s.Import("int level;", unsafe.Pointer(&level)))
	got, err := s.Eval("level * 2")
	require.NoError(t, err)
	assert.Equal(t, "6", got)
}

func TestNativeFunctionImport(t *testing.T) {
	if !interop.Available() {
		t.Skip("native interop not available on this platform")
	}
	// Import needs a real C ABI entry point; a closure stub provides
	// one without linking an external library.
	sig := mangle.Signature{
		Name:     "echo",
		Ret:      ctype.Int,
		Params:   []*ctype.Type{ctype.Int},
		CLinkage: true,
	}
	stub, err := interop.NewStub(sig, interop.Cdecl, func(args []ctype.Value) (ctype.Value, error) {
		return args[0], nil
	})
	if err != nil {
		t.Skipf("cannot build native stub: %v", err)
	}
	defer stub.Release()

	s := newSession(t, Options{})
	require.NoError(t, s.Import("int echo(int);", unsafe.Pointer(stub.Entry)))
	got, err := s.Eval("echo(41) + 1")
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestStepLimit(t *testing.T) {
	s := newSession(t, Options{StepLimit: 50000})
	err := s.Exec("while (true) { }")
	var rf *RuntimeFault
	require.ErrorAs(t, err, &rf)
	assert.Contains(t, err.Error(), "step limit")
}

func TestCloseMakesSessionUnusable(t *testing.T) {
	s, err := Open(Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	assert.ErrorIs(t, s.Exec("1;"), ErrClosed)
	_, err = s.Eval("1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Load("x.c"), ErrClosed)
	assert.ErrorIs(t, s.SetQuoted("a", "b"), ErrClosed)
	assert.ErrorIs(t, s.InitRef("int", "a", unsafe.Pointer(&err)), ErrClosed)
}
