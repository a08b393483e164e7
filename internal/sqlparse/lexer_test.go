package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := newLexer(src)
	var toks []Token
	for {
		tok, err := l.next()
		require.NoError(t, err)
		if tok.Kind == TokEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestLexer_IdentFolding(t *testing.T) {
	toks := lexAll(t, "Inventory ITEM_name")
	require.Len(t, toks, 2)
	assert.Equal(t, TokIdent, toks[0].Kind)
	assert.Equal(t, toks[0].Text, lexAll(t, "inventory")[0].Text, "unquoted identifiers fold to one canonical case")
	assert.Equal(t, toks[1].Text, lexAll(t, "item_NAME")[0].Text)
}

func TestLexer_QuotedIdentPreservesCase(t *testing.T) {
	toks := lexAll(t, `"Inventory" "say ""hi"""`)
	require.Len(t, toks, 2)
	assert.Equal(t, TokQIdent, toks[0].Kind)
	assert.Equal(t, "Inventory", toks[0].Text)
	assert.Equal(t, `say "hi"`, toks[1].Text)
}

func TestLexer_StringEscapes(t *testing.T) {
	toks := lexAll(t, `'it''s'`)
	require.Len(t, toks, 1)
	assert.Equal(t, TokString, toks[0].Kind)
	assert.Equal(t, "it's", toks[0].Text)
}

func TestLexer_HexForms(t *testing.T) {
	toks := lexAll(t, `0xDEAD X'beef' x'F'`)
	require.Len(t, toks, 3)
	assert.Equal(t, []byte{0xde, 0xad}, toks[0].Bytes)
	assert.Equal(t, []byte{0xbe, 0xef}, toks[1].Bytes)
	assert.Equal(t, []byte{0x0f}, toks[2].Bytes, "odd digit count is left-padded")
}

func TestLexer_Numbers(t *testing.T) {
	testCases := []struct {
		src  string
		kind TokKind
		text string
	}{
		{"42", TokInt, "42"},
		{"-7", TokInt, "-7"},
		{"1E6", TokInt, "1E6"},
		{"2e-3", TokInt, "2e-3"},
		{"1.5", TokFloat, "1.5"},
		{"-2.25e2", TokFloat, "-2.25e2"},
	}
	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			toks := lexAll(t, tc.src)
			require.Len(t, toks, 1)
			assert.Equal(t, tc.kind, toks[0].Kind)
			assert.Equal(t, tc.text, toks[0].Text)
		})
	}
}

func TestLexer_FloatRequiresFractionDigits(t *testing.T) {
	l := newLexer("1.")
	_, err := l.next()
	require.Error(t, err)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
}

func TestLexer_Operators(t *testing.T) {
	toks := lexAll(t, "= != <> < > <= >=")
	kinds := make([]TokKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Equal(t, []TokKind{TokEq, TokNeq, TokNeq, TokLt, TokGt, TokLe, TokGe}, kinds)
}

func TestLexer_PositionTracking(t *testing.T) {
	toks := lexAll(t, "a\n  b")
	require.Len(t, toks, 2)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 1, toks[0].Pos.Col)
	assert.Equal(t, 2, toks[1].Pos.Line)
	assert.Equal(t, 3, toks[1].Pos.Col)
}

func TestLexer_LineComments(t *testing.T) {
	toks := lexAll(t, "a -- trailing comment\nb")
	require.Len(t, toks, 2)
	assert.Equal(t, "a", toks[0].Text)
	assert.Equal(t, "b", toks[1].Text)
}

func TestLexer_UnterminatedString(t *testing.T) {
	l := newLexer("'oops")
	_, err := l.next()
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Pos.Line)
}
