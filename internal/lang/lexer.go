package lang

import (
	"strconv"
	"strings"
	"unicode"
)

type lexer struct {
	src     []rune
	pos     int
	line    int
	col     int
	open    []int // token indexes of open brackets; newlines inside them are insignificant
	indents []int
	tokens  []Token
	bol     bool // at beginning of a logical line

	// Set when input ends inside brackets: the outermost open bracket and
	// the index of the first token synthesized after the last real one.
	unclosed *Token
	tail     int
}

// Tokenize splits source text into tokens, synthesizing NEWLINE, INDENT and
// DEDENT tokens from the line structure.
func Tokenize(src string) ([]Token, error) {
	lx, err := lex(src)
	if err != nil {
		return nil, err
	}
	if lx.unclosed != nil {
		return nil, neverClosed(*lx.unclosed)
	}
	return lx.tokens, nil
}

func lex(src string) (*lexer, error) {
	lx := &lexer{
		src:     []rune(strings.ReplaceAll(src, "\r\n", "\n")),
		line:    1,
		col:     1,
		indents: []int{0},
		bol:     true,
	}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx, nil
}

func neverClosed(open Token) *CompileError {
	return syntaxErrorf(open.Line, open.Col, "'%s' was never closed", open.Lexeme)
}

func (lx *lexer) peek(off int) rune {
	if lx.pos+off >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+off]
}

func (lx *lexer) eof() bool { return lx.pos >= len(lx.src) }

func (lx *lexer) advance() rune {
	r := lx.src[lx.pos]
	lx.pos++
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) emit(t TokenType, lexeme string, lit any, line, col int) {
	lx.tokens = append(lx.tokens, Token{Type: t, Lexeme: lexeme, Literal: lit, Line: line, Col: col})
}

func (lx *lexer) lastType() TokenType {
	if len(lx.tokens) == 0 {
		return NEWLINE
	}
	return lx.tokens[len(lx.tokens)-1].Type
}

func (lx *lexer) run() error {
	for !lx.eof() {
		if lx.bol && len(lx.open) == 0 {
			blank, err := lx.indentation()
			if err != nil {
				return err
			}
			if blank {
				continue
			}
		}

		c := lx.peek(0)
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			lx.advance()
		case c == '#':
			lx.skipComment()
		case c == '\\' && lx.peek(1) == '\n':
			lx.advance()
			lx.advance()
		case c == '\n':
			line, col := lx.line, lx.col
			lx.advance()
			if len(lx.open) == 0 {
				lx.emit(NEWLINE, "\n", nil, line, col)
				lx.bol = true
			}
		case unicode.IsDigit(c) || (c == '.' && unicode.IsDigit(lx.peek(1))):
			if err := lx.number(); err != nil {
				return err
			}
		case c == '_' || unicode.IsLetter(c):
			lx.name()
		case c == '\'' || c == '"':
			if err := lx.str(); err != nil {
				return err
			}
		default:
			if err := lx.operator(); err != nil {
				return err
			}
		}
	}

	lx.tail = len(lx.tokens)
	if len(lx.open) > 0 {
		first := lx.tokens[lx.open[0]]
		lx.unclosed = &first
	}
	if lx.lastType() != NEWLINE {
		lx.emit(NEWLINE, "", nil, lx.line, lx.col)
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.emit(DEDENT, "", nil, lx.line, 1)
	}
	lx.emit(EOF, "", nil, lx.line, lx.col)
	return nil
}

// indentation measures the leading whitespace of a line and emits INDENT or
// DEDENT tokens. Blank and comment-only lines are consumed and reported.
func (lx *lexer) indentation() (bool, error) {
	width := 0
scan:
	for !lx.eof() {
		switch lx.peek(0) {
		case ' ':
			width++
		case '\t':
			width += 8 - width%8
		case '\f', '\r':
		default:
			break scan
		}
		lx.advance()
	}
	if lx.eof() {
		return true, nil
	}
	switch lx.peek(0) {
	case '\n':
		lx.advance()
		return true, nil
	case '#':
		lx.skipComment()
		if !lx.eof() {
			lx.advance()
		}
		return true, nil
	}

	lx.bol = false
	top := lx.indents[len(lx.indents)-1]
	switch {
	case width > top:
		if len(lx.tokens) == 0 {
			return false, indentErrorf(lx.line, lx.col, "unexpected indent")
		}
		lx.indents = append(lx.indents, width)
		lx.emit(INDENT, "", nil, lx.line, 1)
	case width < top:
		for width < lx.indents[len(lx.indents)-1] {
			lx.indents = lx.indents[:len(lx.indents)-1]
			lx.emit(DEDENT, "", nil, lx.line, 1)
		}
		if lx.indents[len(lx.indents)-1] != width {
			return false, indentErrorf(lx.line, lx.col, "unindent does not match any outer indentation level")
		}
	}
	return false, nil
}

func (lx *lexer) skipComment() {
	for !lx.eof() && lx.peek(0) != '\n' {
		lx.advance()
	}
}

func (lx *lexer) number() error {
	line, col := lx.line, lx.col
	start := lx.pos
	isFloat := false

	if lx.peek(0) == '0' && strings.ContainsRune("xXoObB", lx.peek(1)) {
		lx.advance()
		lx.advance()
		for !lx.eof() && (isHexDigit(lx.peek(0)) || lx.peek(0) == '_') {
			lx.advance()
		}
		text := string(lx.src[start:lx.pos])
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return syntaxErrorf(line, col, "invalid integer literal %q", text)
		}
		lx.emit(INT, text, n, line, col)
		return nil
	}

	digits := func() {
		for !lx.eof() && (unicode.IsDigit(lx.peek(0)) || lx.peek(0) == '_') {
			lx.advance()
		}
	}
	digits()
	if lx.peek(0) == '.' && !unicode.IsLetter(lx.peek(1)) {
		isFloat = true
		lx.advance()
		digits()
	}
	if c := lx.peek(0); c == 'e' || c == 'E' {
		next := lx.peek(1)
		if unicode.IsDigit(next) || ((next == '+' || next == '-') && unicode.IsDigit(lx.peek(2))) {
			isFloat = true
			lx.advance()
			if next == '+' || next == '-' {
				lx.advance()
			}
			digits()
		}
	}

	text := string(lx.src[start:lx.pos])
	clean := strings.ReplaceAll(text, "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return syntaxErrorf(line, col, "invalid float literal %q", text)
		}
		lx.emit(FLOAT, text, f, line, col)
		return nil
	}
	if len(clean) > 1 && clean[0] == '0' && strings.Trim(clean, "0") != "" {
		return syntaxErrorf(line, col, "leading zeros in decimal integer literals are not permitted")
	}
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return syntaxErrorf(line, col, "integer literal %s is too large", text)
	}
	lx.emit(INT, text, n, line, col)
	return nil
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func (lx *lexer) name() {
	line, col := lx.line, lx.col
	start := lx.pos
	for !lx.eof() {
		c := lx.peek(0)
		if c != '_' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			break
		}
		lx.advance()
	}
	text := string(lx.src[start:lx.pos])
	if keywords[text] {
		lx.emit(KEYWORD, text, nil, line, col)
		return
	}
	lx.emit(NAME, text, nil, line, col)
}

func (lx *lexer) str() error {
	line, col := lx.line, lx.col
	start := lx.pos
	quote := lx.advance()
	triple := lx.peek(0) == quote && lx.peek(1) == quote
	if triple {
		lx.advance()
		lx.advance()
	}

	var b strings.Builder
	for {
		if lx.eof() {
			return syntaxErrorf(line, col, "unterminated string literal")
		}
		c := lx.peek(0)
		if c == quote {
			if !triple {
				lx.advance()
				break
			}
			if lx.peek(1) == quote && lx.peek(2) == quote {
				lx.advance()
				lx.advance()
				lx.advance()
				break
			}
		}
		if c == '\n' && !triple {
			return syntaxErrorf(line, col, "unterminated string literal")
		}
		if c == '\\' {
			lx.advance()
			if lx.eof() {
				return syntaxErrorf(line, col, "unterminated string literal")
			}
			e := lx.advance()
			switch e {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '0':
				b.WriteRune(0)
			case '\\', '\'', '"':
				b.WriteRune(e)
			case '\n':
				// escaped newline joins lines
			default:
				b.WriteRune('\\')
				b.WriteRune(e)
			}
			continue
		}
		b.WriteRune(lx.advance())
	}
	lx.emit(STRING, string(lx.src[start:lx.pos]), b.String(), line, col)
	return nil
}

func (lx *lexer) operator() error {
	line, col := lx.line, lx.col
	rest := string(lx.src[lx.pos:min(lx.pos+3, len(lx.src))])
	for _, op := range operators {
		if !strings.HasPrefix(rest, op) {
			continue
		}
		for range []rune(op) {
			lx.advance()
		}
		switch op {
		case "(", "[", "{":
			lx.open = append(lx.open, len(lx.tokens))
		case ")", "]", "}":
			if len(lx.open) == 0 {
				return syntaxErrorf(line, col, "unmatched '%s'", op)
			}
			lx.open = lx.open[:len(lx.open)-1]
		}
		lx.emit(OP, op, nil, line, col)
		return nil
	}
	return syntaxErrorf(line, col, "invalid character '%c'", lx.peek(0))
}
