package sqlparse

import "fmt"

// TokKind classifies lexer tokens.
type TokKind int

const (
	TokEOF TokKind = iota
	TokIdent        // unquoted identifier, already case-folded
	TokQIdent       // quoted identifier, case preserved
	TokKeyword      // reserved word, canonical uppercase in Text
	TokInt          // integer literal, optional sign and exponent suffix
	TokFloat        // float literal, mandatory fractional part
	TokString       // '...' string literal, '' unescaped
	TokHex          // X'...' or 0x... hex literal, decoded bytes in Bytes
	TokStar
	TokComma
	TokDot
	TokLParen
	TokRParen
	TokSemi
	TokEq
	TokNeq
	TokLt
	TokGt
	TokLe
	TokGe
)

// Pos is a byte offset plus human-readable line/column (both 1-based).
type Pos struct {
	Offset int
	Line   int
	Col    int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is one lexical unit of a query string.
type Token struct {
	Kind  TokKind
	Text  string // decoded text: folded ident, string contents, digits
	Bytes []byte // hex literal payload
	Pos   Pos
}

func (t Token) describe() string {
	switch t.Kind {
	case TokEOF:
		return "end of input"
	case TokString:
		return fmt.Sprintf("string %q", t.Text)
	case TokHex:
		return "hex literal"
	default:
		return fmt.Sprintf("%q", t.Text)
	}
}

// keywords is the reserved-word set of the grammar. Unquoted identifiers
// matching a keyword (case-insensitively) lex as TokKeyword.
var keywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "JOIN": true, "ON": true,
	"AND": true, "OR": true, "ORDER": true, "BY": true, "ASC": true,
	"DESC": true, "LIMIT": true, "DISTINCT": true, "AS": true,
	"COUNT": true, "SUM": true,
	"INSERT": true, "INTO": true, "VALUES": true, "DELETE": true,
	"UPDATE": true, "SET": true, "SHOW": true, "TO": true,
	"TRUE": true, "FALSE": true,
}

// SyntaxError reports malformed query text with the offending position.
// Always recoverable: the query is rejected, nothing else is affected.
type SyntaxError struct {
	Pos Pos
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %s: %s", e.Pos, e.Msg)
}

func syntaxErrorf(pos Pos, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
