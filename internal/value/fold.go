package value

import "golang.org/x/text/cases"

// FoldIdent canonicalizes an unquoted identifier using Unicode case
// folding. Quoted identifiers bypass this and compare byte-for-byte.
// Caser values may be stateful, so each call takes a fresh one.
func FoldIdent(name string) string {
	return cases.Fold().String(name)
}
