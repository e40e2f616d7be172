package lang

import (
	"errors"
	"strings"
	"testing"
)

func TestTokenizeIndentation(t *testing.T) {
	toks, err := Tokenize("if x:\n    y = 1\nz = 2\n")
	if err != nil {
		t.Fatal(err)
	}
	want := []TokenType{
		KEYWORD, NAME, OP, NEWLINE,
		INDENT, NAME, OP, INT, NEWLINE,
		DEDENT, NAME, OP, INT, NEWLINE, EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(toks), toks)
	}
	for i, tok := range toks {
		if tok.Type != want[i] {
			t.Errorf("token %d: got %s, want %s", i, tok.Type, want[i])
		}
	}
}

func TestTokenizeBracketsJoinLines(t *testing.T) {
	toks, err := Tokenize("x = [1,\n     2]\n")
	if err != nil {
		t.Fatal(err)
	}
	for _, tok := range toks {
		if tok.Type == INDENT {
			t.Fatalf("unexpected INDENT inside brackets at %d:%d", tok.Line, tok.Col)
		}
	}
}

func TestTokenizeNumbers(t *testing.T) {
	tests := []struct {
		src  string
		typ  TokenType
		want any
	}{
		{"42", INT, int64(42)},
		{"0x1f", INT, int64(31)},
		{"1_000", INT, int64(1000)},
		{"2.5", FLOAT, 2.5},
		{"1e3", FLOAT, 1000.0},
		{".5", FLOAT, 0.5},
	}
	for _, tt := range tests {
		toks, err := Tokenize(tt.src)
		if err != nil {
			t.Errorf("%s: %v", tt.src, err)
			continue
		}
		if toks[0].Type != tt.typ || toks[0].Literal != tt.want {
			t.Errorf("%s: got %s %v, want %s %v", tt.src, toks[0].Type, toks[0].Literal, tt.typ, tt.want)
		}
	}
}

func TestTokenizeStrings(t *testing.T) {
	toks, err := Tokenize(`s = 'a\tb' + "it's" + """multi
line"""`)
	if err != nil {
		t.Fatal(err)
	}
	var lits []string
	for _, tok := range toks {
		if tok.Type == STRING {
			lits = append(lits, tok.Literal.(string))
		}
	}
	want := []string{"a\tb", "it's", "multi\nline"}
	if strings.Join(lits, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", lits, want)
	}
}

func TestParseFunctionScopes(t *testing.T) {
	mod, err := Parse(`
total = 0
def add(a, b=2, *rest, scale=1, **opts):
    global total
    c = a + b
    total = total + c
    for i in rest:
        c += i
    return c * scale
`)
	if err != nil {
		t.Fatal(err)
	}
	if len(mod.Body) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(mod.Body))
	}
	fn, ok := mod.Body[1].(*FunctionDef)
	if !ok {
		t.Fatalf("expected FunctionDef, got %T", mod.Body[1])
	}
	if fn.Line != 3 || fn.Name != "add" {
		t.Errorf("got %s at line %d", fn.Name, fn.Line)
	}
	if len(fn.Params) != 2 || fn.VarArg != "rest" || len(fn.KwOnly) != 1 || fn.KwArg != "opts" {
		t.Errorf("unexpected signature: %+v", fn)
	}
	for _, name := range []string{"a", "b", "c", "i", "rest", "scale", "opts"} {
		if !fn.Locals[name] {
			t.Errorf("expected %s to be local", name)
		}
	}
	if fn.Locals["total"] || !fn.Globals["total"] {
		t.Error("expected total to be global")
	}
}

func TestParseElifNests(t *testing.T) {
	mod, err := Parse("if a:\n    pass\nelif b:\n    pass\nelse:\n    pass\n")
	if err != nil {
		t.Fatal(err)
	}
	outer := mod.Body[0].(*If)
	if len(outer.Else) != 1 {
		t.Fatalf("expected nested elif, got %d statements", len(outer.Else))
	}
	inner, ok := outer.Else[0].(*If)
	if !ok || inner.Line != 3 || len(inner.Else) != 1 {
		t.Errorf("unexpected elif shape: %+v", outer.Else[0])
	}
}

func TestParseExpressions(t *testing.T) {
	srcs := []string{
		"x = [i * i for i in range(10) if i % 2 == 0]",
		"y = {'a': 1, 'b': (2, 3)}",
		"z = a if b else c",
		"w = not a and b or c",
		"v = 1 < x <= 3",
		"u = x not in y and x is not None",
		"t = s[1:-1:2] + s[:3] + s[::2]",
		"print(1, 2, sep='')",
		"a, b = b, a",
		"q = -2 ** 2",
		"r = max(xs, key=len)",
		"items = sum(x for x in xs)",
	}
	for _, src := range srcs {
		if _, err := Parse(src); err != nil {
			t.Errorf("%s: %v", src, err)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		kind string
		line int
		msg  string
	}{
		{"x = (1 +\n", "SyntaxError", 1, "'(' was never closed"},
		{"  x = 1\n", "IndentationError", 1, "unexpected indent"},
		{"if x:\ny = 1\n", "IndentationError", 2, "expected an indented block"},
		{"if x:\n    y = 1\n  z = 2\n", "IndentationError", 3, "unindent does not match"},
		{"return 1\n", "SyntaxError", 1, "'return' outside function"},
		{"break\n", "SyntaxError", 1, "'break' outside loop"},
		{"1 = x\n", "SyntaxError", 1, "cannot assign to literal"},
		{"f() = 1\n", "SyntaxError", 1, "cannot assign to function call"},
		{"x = 'abc\n", "SyntaxError", 1, "unterminated string"},
		{"def f(a, a):\n    pass\n", "SyntaxError", 1, "duplicate argument"},
		{"def f(a=1, b):\n    pass\n", "SyntaxError", 1, "non-default argument"},
		{"x = 08\n", "SyntaxError", 1, "leading zeros"},
		{"x = $\n", "SyntaxError", 1, "invalid character"},
		{"try:\n    pass\n", "SyntaxError", 3, "expected 'except'"},
		{"f(a=1, 2)\n", "SyntaxError", 1, "positional argument follows keyword"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.src)
		var ce *CompileError
		if !errors.As(err, &ce) {
			t.Errorf("%q: expected CompileError, got %v", tt.src, err)
			continue
		}
		if ce.Kind != tt.kind || ce.Line != tt.line || !strings.Contains(ce.Msg, tt.msg) {
			t.Errorf("%q: got %s line %d %q, want %s line %d containing %q",
				tt.src, ce.Kind, ce.Line, ce.Msg, tt.kind, tt.line, tt.msg)
		}
		if ce.Col < 1 {
			t.Errorf("%q: column must be 1-based, got %d", tt.src, ce.Col)
		}
	}
}

func TestErrorsInsideOpenBrackets(t *testing.T) {
	tests := []struct {
		src       string
		line, col int
		msg       string
	}{
		{"def f(:\n", 1, 7, "expected a name"},
		{"x = [1,\n2,\n3\ny = 2\n", 4, 1, "expected ']'"},
		{"x = 1\ny = f(a, [b,\n", 2, 6, "'(' was never closed"},
		{"d = {'a': (1,\n", 1, 5, "'{' was never closed"},
		{"print((1 +)\n", 1, 11, ""},
	}
	for _, tt := range tests {
		_, err := Parse(tt.src)
		var ce *CompileError
		if !errors.As(err, &ce) {
			t.Errorf("%q: expected CompileError, got %v", tt.src, err)
			continue
		}
		if ce.Line != tt.line || ce.Col != tt.col || !strings.Contains(ce.Msg, tt.msg) {
			t.Errorf("%q: got %d:%d %q, want %d:%d containing %q",
				tt.src, ce.Line, ce.Col, ce.Msg, tt.line, tt.col, tt.msg)
		}
	}

	if _, err := Tokenize("f(1,\n"); err == nil || !strings.Contains(err.Error(), "'(' was never closed") {
		t.Errorf("expected Tokenize to reject unclosed bracket, got %v", err)
	}
}

func TestCompileErrorSnippet(t *testing.T) {
	src := "x = 1\ny = (x +)\nz = 3"
	_, err := Parse(src)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	snip := ce.Snippet(src)
	if !strings.Contains(snip, "2 | y = (x +)") {
		t.Errorf("snippet missing offending line:\n%s", snip)
	}
	if !strings.Contains(snip, "^") {
		t.Errorf("snippet missing caret:\n%s", snip)
	}
}
