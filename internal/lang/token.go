package lang

import "fmt"

// TokenType is the lexical class of a token.
type TokenType int

const (
	EOF TokenType = iota
	NEWLINE
	INDENT
	DEDENT
	NAME
	KEYWORD
	INT
	FLOAT
	STRING
	OP
)

var tokenNames = map[TokenType]string{
	EOF:     "end of input",
	NEWLINE: "newline",
	INDENT:  "indent",
	DEDENT:  "dedent",
	NAME:    "name",
	KEYWORD: "keyword",
	INT:     "integer",
	FLOAT:   "float",
	STRING:  "string",
	OP:      "operator",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is one lexical token. Literal holds the decoded value for INT
// (int64), FLOAT (float64) and STRING (string) tokens.
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal any
	Line    int
	Col     int
}

var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true,
	"if": true, "elif": true, "else": true, "while": true, "for": true,
	"break": true, "continue": true, "pass": true, "def": true, "return": true,
	"global": true, "try": true, "except": true, "as": true, "raise": true,
	"True": true, "False": true, "None": true,
}

// operators ordered longest first so the lexer can take the longest match.
var operators = []string{
	"**=", "//=",
	"**", "//", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=",
	"+", "-", "*", "/", "%", "<", ">", "=", "(", ")", "[", "]", "{", "}",
	",", ":", ".", ";",
}
