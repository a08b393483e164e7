package sqlparse

import (
	"encoding/hex"
	"strings"

	"github.com/roach88/liveql/internal/value"
)

// lexer tokenizes a query string.
//
// Lexical rules:
//   - unquoted identifiers fold to canonical case (Unicode case folding)
//   - quoted identifiers ("...") preserve case; "" embeds a quote
//   - strings use '...'; '' embeds a quote
//   - hex literals: X'4142' or 0x4142
//   - integers: digits with optional sign and optional signed exponent (1E6)
//   - floats: mandatory fractional part, optional exponent (1.5, 2.5e-3)
type lexer struct {
	src  string
	off  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) pos() Pos {
	return Pos{Offset: l.off, Line: l.line, Col: l.col}
}

func (l *lexer) peek() byte {
	if l.off >= len(l.src) {
		return 0
	}
	return l.src[l.off]
}

func (l *lexer) peekAt(n int) byte {
	if l.off+n >= len(l.src) {
		return 0
	}
	return l.src[l.off+n]
}

func (l *lexer) advance() byte {
	c := l.src[l.off]
	l.off++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) skipSpace() {
	for l.off < len(l.src) {
		c := l.peek()
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			l.advance()
			continue
		}
		// -- line comments
		if c == '-' && l.peekAt(1) == '-' {
			for l.off < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
			continue
		}
		return
	}
}

// next returns the next token or a SyntaxError.
func (l *lexer) next() (Token, error) {
	l.skipSpace()
	start := l.pos()

	if l.off >= len(l.src) {
		return Token{Kind: TokEOF, Pos: start}, nil
	}

	c := l.peek()
	switch {
	case c == '\'':
		return l.lexString(start)
	case c == '"':
		return l.lexQuotedIdent(start)
	case c == '0' && (l.peekAt(1) == 'x' || l.peekAt(1) == 'X'):
		return l.lexHex0x(start)
	case (c == 'x' || c == 'X') && l.peekAt(1) == '\'':
		return l.lexHexQuoted(start)
	case isDigit(c):
		return l.lexNumber(start, false)
	case c == '-' && isDigit(l.peekAt(1)):
		l.advance()
		return l.lexNumber(start, true)
	case isIdentStart(c):
		return l.lexIdent(start)
	}

	// Symbols and comparison operators.
	l.advance()
	switch c {
	case '*':
		return Token{Kind: TokStar, Text: "*", Pos: start}, nil
	case ',':
		return Token{Kind: TokComma, Text: ",", Pos: start}, nil
	case '.':
		return Token{Kind: TokDot, Text: ".", Pos: start}, nil
	case '(':
		return Token{Kind: TokLParen, Text: "(", Pos: start}, nil
	case ')':
		return Token{Kind: TokRParen, Text: ")", Pos: start}, nil
	case ';':
		return Token{Kind: TokSemi, Text: ";", Pos: start}, nil
	case '=':
		return Token{Kind: TokEq, Text: "=", Pos: start}, nil
	case '!':
		if l.peek() == '=' {
			l.advance()
			return Token{Kind: TokNeq, Text: "!=", Pos: start}, nil
		}
		return Token{}, syntaxErrorf(start, "unexpected character %q", "!")
	case '<':
		if l.peek() == '=' {
			l.advance()
			return Token{Kind: TokLe, Text: "<=", Pos: start}, nil
		}
		if l.peek() == '>' {
			l.advance()
			return Token{Kind: TokNeq, Text: "<>", Pos: start}, nil
		}
		return Token{Kind: TokLt, Text: "<", Pos: start}, nil
	case '>':
		if l.peek() == '=' {
			l.advance()
			return Token{Kind: TokGe, Text: ">=", Pos: start}, nil
		}
		return Token{Kind: TokGt, Text: ">", Pos: start}, nil
	}

	return Token{}, syntaxErrorf(start, "unexpected character %q", string(rune(c)))
}

func (l *lexer) lexString(start Pos) (Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.off >= len(l.src) {
			return Token{}, syntaxErrorf(start, "unterminated string literal")
		}
		c := l.advance()
		if c == '\'' {
			if l.peek() == '\'' {
				l.advance()
				sb.WriteByte('\'')
				continue
			}
			return Token{Kind: TokString, Text: sb.String(), Pos: start}, nil
		}
		sb.WriteByte(c)
	}
}

func (l *lexer) lexQuotedIdent(start Pos) (Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.off >= len(l.src) {
			return Token{}, syntaxErrorf(start, "unterminated quoted identifier")
		}
		c := l.advance()
		if c == '"' {
			if l.peek() == '"' {
				l.advance()
				sb.WriteByte('"')
				continue
			}
			if sb.Len() == 0 {
				return Token{}, syntaxErrorf(start, "empty quoted identifier")
			}
			return Token{Kind: TokQIdent, Text: sb.String(), Pos: start}, nil
		}
		sb.WriteByte(c)
	}
}

func (l *lexer) lexHex0x(start Pos) (Token, error) {
	l.advance() // 0
	l.advance() // x
	digits := l.takeWhile(isHexDigit)
	return l.hexToken(start, digits)
}

func (l *lexer) lexHexQuoted(start Pos) (Token, error) {
	l.advance() // x
	l.advance() // opening quote
	digits := l.takeWhile(isHexDigit)
	if l.peek() != '\'' {
		return Token{}, syntaxErrorf(start, "unterminated hex literal")
	}
	l.advance()
	return l.hexToken(start, digits)
}

func (l *lexer) hexToken(start Pos, digits string) (Token, error) {
	if len(digits) == 0 {
		return Token{}, syntaxErrorf(start, "empty hex literal")
	}
	if len(digits)%2 != 0 {
		digits = "0" + digits
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return Token{}, syntaxErrorf(start, "invalid hex literal: %v", err)
	}
	return Token{Kind: TokHex, Text: digits, Bytes: b, Pos: start}, nil
}

// lexNumber lexes an integer or float. The leading sign, if any, has
// already been consumed by the caller (neg is true in that case).
func (l *lexer) lexNumber(start Pos, neg bool) (Token, error) {
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(l.takeWhile(isDigit))

	isFloat := false
	if l.peek() == '.' {
		if !isDigit(l.peekAt(1)) {
			return Token{}, syntaxErrorf(start, "float literal requires digits after the decimal point")
		}
		isFloat = true
		sb.WriteByte(l.advance())
		sb.WriteString(l.takeWhile(isDigit))
	}

	if c := l.peek(); c == 'e' || c == 'E' {
		sb.WriteByte(l.advance())
		if c := l.peek(); c == '+' || c == '-' {
			sb.WriteByte(l.advance())
		}
		exp := l.takeWhile(isDigit)
		if exp == "" {
			return Token{}, syntaxErrorf(start, "exponent requires digits")
		}
		sb.WriteString(exp)
	}

	if isIdentStart(l.peek()) {
		return Token{}, syntaxErrorf(start, "malformed numeric literal")
	}

	kind := TokInt
	if isFloat {
		kind = TokFloat
	}
	return Token{Kind: kind, Text: sb.String(), Pos: start}, nil
}

func (l *lexer) lexIdent(start Pos) (Token, error) {
	raw := l.takeWhile(isIdentPart)
	upper := strings.ToUpper(raw)
	if keywords[upper] {
		return Token{Kind: TokKeyword, Text: upper, Pos: start}, nil
	}
	return Token{Kind: TokIdent, Text: value.FoldIdent(raw), Pos: start}, nil
}

func (l *lexer) takeWhile(pred func(byte) bool) string {
	start := l.off
	for l.off < len(l.src) && pred(l.peek()) {
		l.advance()
	}
	return l.src[start:l.off]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
