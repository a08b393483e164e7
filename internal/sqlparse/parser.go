package sqlparse

// Recursive-descent parser over the lexer.
//
// Precedence: comparison operators share one level and do not chain;
// AND binds tighter than OR. Disjunction is parsed here unconditionally;
// dialect restrictions (no OR, no != in subscriptions) are the binder's
// responsibility so that error messages name the rule, not the syntax.

// Parse parses a single statement, requiring all input to be consumed
// (an optional trailing semicolon is allowed).
func Parse(src string) (Statement, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.bump(); err != nil {
		return nil, err
	}

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	if p.tok.Kind == TokSemi {
		if err := p.bump(); err != nil {
			return nil, err
		}
	}
	if p.tok.Kind != TokEOF {
		return nil, syntaxErrorf(p.tok.Pos, "unexpected %s after statement", p.tok.describe())
	}
	return stmt, nil
}

type parser struct {
	lex *lexer
	tok Token
}

// bump advances to the next token.
func (p *parser) bump() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

// eat consumes the current token if it matches kind.
func (p *parser) eat(kind TokKind) (Token, bool, error) {
	if p.tok.Kind != kind {
		return Token{}, false, nil
	}
	tok := p.tok
	return tok, true, p.bump()
}

// expect consumes a token of the given kind or fails.
func (p *parser) expect(kind TokKind, what string) (Token, error) {
	if p.tok.Kind != kind {
		return Token{}, syntaxErrorf(p.tok.Pos, "expected %s, found %s", what, p.tok.describe())
	}
	tok := p.tok
	return tok, p.bump()
}

// keyword reports whether the current token is the given keyword.
func (p *parser) keyword(kw string) bool {
	return p.tok.Kind == TokKeyword && p.tok.Text == kw
}

// eatKeyword consumes the keyword if present.
func (p *parser) eatKeyword(kw string) (bool, error) {
	if !p.keyword(kw) {
		return false, nil
	}
	return true, p.bump()
}

// expectKeyword consumes the keyword or fails.
func (p *parser) expectKeyword(kw string) (Pos, error) {
	if !p.keyword(kw) {
		return Pos{}, syntaxErrorf(p.tok.Pos, "expected %s, found %s", kw, p.tok.describe())
	}
	pos := p.tok.Pos
	return pos, p.bump()
}

func (p *parser) parseStatement() (Statement, error) {
	switch {
	case p.keyword("SELECT"):
		return p.parseSelect()
	case p.keyword("INSERT"):
		return p.parseInsert()
	case p.keyword("DELETE"):
		return p.parseDelete()
	case p.keyword("UPDATE"):
		return p.parseUpdate()
	case p.keyword("SET"):
		return p.parseSet()
	case p.keyword("SHOW"):
		return p.parseShow()
	default:
		return nil, syntaxErrorf(p.tok.Pos, "expected statement, found %s", p.tok.describe())
	}
}

// parseIdent accepts an unquoted or quoted identifier.
func (p *parser) parseIdent(what string) (Ident, error) {
	switch p.tok.Kind {
	case TokIdent:
		id := Ident{Name: p.tok.Text, Pos: p.tok.Pos}
		return id, p.bump()
	case TokQIdent:
		id := Ident{Name: p.tok.Text, Quoted: true, Pos: p.tok.Pos}
		return id, p.bump()
	default:
		return Ident{}, syntaxErrorf(p.tok.Pos, "expected %s, found %s", what, p.tok.describe())
	}
}

// parseColumnRef parses `col` or `table.col`.
func (p *parser) parseColumnRef() (ColumnRef, error) {
	first, err := p.parseIdent("column name")
	if err != nil {
		return ColumnRef{}, err
	}
	if _, ok, err := p.eat(TokDot); err != nil {
		return ColumnRef{}, err
	} else if !ok {
		return ColumnRef{Column: first}, nil
	}
	col, err := p.parseIdent("column name")
	if err != nil {
		return ColumnRef{}, err
	}
	return ColumnRef{Table: first, Column: col}, nil
}

func (p *parser) parseSelect() (*SelectStmt, error) {
	stmt := &SelectStmt{Pos: p.tok.Pos}
	if err := p.bump(); err != nil { // SELECT
		return nil, err
	}

	distinct, err := p.eatKeyword("DISTINCT")
	if err != nil {
		return nil, err
	}
	stmt.Distinct = distinct

	if stmt.Projection, err = p.parseProjection(); err != nil {
		return nil, err
	}

	if _, err = p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	if stmt.From, err = p.parseIdent("table name"); err != nil {
		return nil, err
	}

	for p.keyword("JOIN") {
		join := JoinClause{Pos: p.tok.Pos}
		if err := p.bump(); err != nil {
			return nil, err
		}
		if join.Table, err = p.parseIdent("table name"); err != nil {
			return nil, err
		}
		if _, err = p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		if join.Left, err = p.parseColumnRef(); err != nil {
			return nil, err
		}
		if _, err = p.expect(TokEq, `"="`); err != nil {
			return nil, err
		}
		if join.Right, err = p.parseColumnRef(); err != nil {
			return nil, err
		}
		stmt.Joins = append(stmt.Joins, join)
	}

	if ok, err := p.eatKeyword("WHERE"); err != nil {
		return nil, err
	} else if ok {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}

	if ok, err := p.eatKeyword("ORDER"); err != nil {
		return nil, err
	} else if ok {
		if _, err = p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			var item OrderItem
			if item.Column, err = p.parseColumnRef(); err != nil {
				return nil, err
			}
			if ok, err := p.eatKeyword("DESC"); err != nil {
				return nil, err
			} else if ok {
				item.Desc = true
			} else if _, err := p.eatKeyword("ASC"); err != nil {
				return nil, err
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if _, ok, err := p.eat(TokComma); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
	}

	if ok, err := p.eatKeyword("LIMIT"); err != nil {
		return nil, err
	} else if ok {
		tok, err := p.expect(TokInt, "integer")
		if err != nil {
			return nil, err
		}
		stmt.Limit = &Literal{Kind: LitInt, Text: tok.Text, Pos: tok.Pos}
	}

	return stmt, nil
}

func (p *parser) parseProjection() ([]SelectItem, error) {
	var items []SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if _, ok, err := p.eat(TokComma); err != nil {
			return nil, err
		} else if !ok {
			return items, nil
		}
	}
}

func (p *parser) parseSelectItem() (SelectItem, error) {
	// `*`
	if _, ok, err := p.eat(TokStar); err != nil {
		return SelectItem{}, err
	} else if ok {
		return SelectItem{Star: true}, nil
	}

	// COUNT(*) | COUNT(DISTINCT col) | SUM(col)
	if p.keyword("COUNT") || p.keyword("SUM") {
		return p.parseAggregate()
	}

	// column | table.col | table.*
	first, err := p.parseIdent("projection")
	if err != nil {
		return SelectItem{}, err
	}
	if _, ok, err := p.eat(TokDot); err != nil {
		return SelectItem{}, err
	} else if ok {
		if _, ok, err := p.eat(TokStar); err != nil {
			return SelectItem{}, err
		} else if ok {
			return SelectItem{Star: true, StarTable: first}, nil
		}
		col, err := p.parseIdent("column name")
		if err != nil {
			return SelectItem{}, err
		}
		item := SelectItem{Column: &ColumnRef{Table: first, Column: col}}
		return p.parseAlias(item)
	}
	item := SelectItem{Column: &ColumnRef{Column: first}}
	return p.parseAlias(item)
}

func (p *parser) parseAggregate() (SelectItem, error) {
	isCount := p.keyword("COUNT")
	if err := p.bump(); err != nil {
		return SelectItem{}, err
	}
	if _, err := p.expect(TokLParen, `"("`); err != nil {
		return SelectItem{}, err
	}

	var item SelectItem
	switch {
	case isCount && p.tok.Kind == TokStar:
		if err := p.bump(); err != nil {
			return SelectItem{}, err
		}
		item = SelectItem{Agg: AggCountStar}
	case isCount:
		if _, err := p.expectKeyword("DISTINCT"); err != nil {
			return SelectItem{}, err
		}
		col, err := p.parseColumnRef()
		if err != nil {
			return SelectItem{}, err
		}
		item = SelectItem{Agg: AggCountDistinct, AggCol: &col}
	default:
		col, err := p.parseColumnRef()
		if err != nil {
			return SelectItem{}, err
		}
		item = SelectItem{Agg: AggSum, AggCol: &col}
	}

	if _, err := p.expect(TokRParen, `")"`); err != nil {
		return SelectItem{}, err
	}
	return p.parseAlias(item)
}

func (p *parser) parseAlias(item SelectItem) (SelectItem, error) {
	ok, err := p.eatKeyword("AS")
	if err != nil {
		return SelectItem{}, err
	}
	if !ok {
		return item, nil
	}
	alias, err := p.parseIdent("alias")
	if err != nil {
		return SelectItem{}, err
	}
	item.Alias = alias
	return item, nil
}

// parseExpr parses a disjunction (lowest precedence).
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseConjunction()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		pos := p.tok.Pos
		if err := p.bump(); err != nil {
			return nil, err
		}
		right, err := p.parseConjunction()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right, Pos: pos}
	}
	return left, nil
}

func (p *parser) parseConjunction() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		if err := p.bump(); err != nil {
			return nil, err
		}
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

var cmpOps = map[TokKind]CmpOp{
	TokEq:  OpEq,
	TokNeq: OpNeq,
	TokLt:  OpLt,
	TokGt:  OpGt,
	TokLe:  OpLe,
	TokGe:  OpGe,
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	op, ok := cmpOps[p.tok.Kind]
	if !ok {
		// Bare operands are not predicates; require a comparison unless
		// this is a parenthesized subexpression already combined above.
		if _, isCol := left.(ColumnExpr); isCol {
			return nil, syntaxErrorf(p.tok.Pos, "expected comparison operator, found %s", p.tok.describe())
		}
		if _, isLit := left.(Literal); isLit {
			return nil, syntaxErrorf(p.tok.Pos, "expected comparison operator, found %s", p.tok.describe())
		}
		return left, nil
	}
	pos := p.tok.Pos
	if err := p.bump(); err != nil {
		return nil, err
	}

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return Compare{Op: op, Left: left, Right: right, Pos: pos}, nil
}

// parseOperand parses a comparison operand: column reference, literal,
// or a parenthesized expression.
func (p *parser) parseOperand() (Expr, error) {
	tok := p.tok
	switch tok.Kind {
	case TokLParen:
		if err := p.bump(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, `")"`); err != nil {
			return nil, err
		}
		return inner, nil
	case TokIdent, TokQIdent:
		ref, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		return ColumnExpr{Ref: ref}, nil
	case TokInt:
		return Literal{Kind: LitInt, Text: tok.Text, Pos: tok.Pos}, p.bump()
	case TokFloat:
		return Literal{Kind: LitFloat, Text: tok.Text, Pos: tok.Pos}, p.bump()
	case TokString:
		return Literal{Kind: LitString, Str: tok.Text, Pos: tok.Pos}, p.bump()
	case TokHex:
		return Literal{Kind: LitHex, Bytes: tok.Bytes, Pos: tok.Pos}, p.bump()
	case TokKeyword:
		switch tok.Text {
		case "TRUE":
			return Literal{Kind: LitBool, Bool: true, Pos: tok.Pos}, p.bump()
		case "FALSE":
			return Literal{Kind: LitBool, Bool: false, Pos: tok.Pos}, p.bump()
		}
	}
	return nil, syntaxErrorf(tok.Pos, "expected expression, found %s", tok.describe())
}

// parseLiteral parses a literal in a VALUES/SET position.
func (p *parser) parseLiteral() (Literal, error) {
	tok := p.tok
	switch tok.Kind {
	case TokInt:
		return Literal{Kind: LitInt, Text: tok.Text, Pos: tok.Pos}, p.bump()
	case TokFloat:
		return Literal{Kind: LitFloat, Text: tok.Text, Pos: tok.Pos}, p.bump()
	case TokString:
		return Literal{Kind: LitString, Str: tok.Text, Pos: tok.Pos}, p.bump()
	case TokHex:
		return Literal{Kind: LitHex, Bytes: tok.Bytes, Pos: tok.Pos}, p.bump()
	case TokKeyword:
		switch tok.Text {
		case "TRUE":
			return Literal{Kind: LitBool, Bool: true, Pos: tok.Pos}, p.bump()
		case "FALSE":
			return Literal{Kind: LitBool, Bool: false, Pos: tok.Pos}, p.bump()
		}
	}
	return Literal{}, syntaxErrorf(tok.Pos, "expected literal, found %s", tok.describe())
}

func (p *parser) parseInsert() (*InsertStmt, error) {
	stmt := &InsertStmt{Pos: p.tok.Pos}
	if err := p.bump(); err != nil { // INSERT
		return nil, err
	}
	if _, err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	var err error
	if stmt.Table, err = p.parseIdent("table name"); err != nil {
		return nil, err
	}

	if _, ok, err := p.eat(TokLParen); err != nil {
		return nil, err
	} else if ok {
		for {
			col, err := p.parseIdent("column name")
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
			if _, ok, err := p.eat(TokComma); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if _, err := p.expect(TokRParen, `")"`); err != nil {
			return nil, err
		}
	}

	if _, err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	for {
		if _, err := p.expect(TokLParen, `"("`); err != nil {
			return nil, err
		}
		var row []Literal
		for {
			lit, err := p.parseLiteral()
			if err != nil {
				return nil, err
			}
			row = append(row, lit)
			if _, ok, err := p.eat(TokComma); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if _, err := p.expect(TokRParen, `")"`); err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)
		if _, ok, err := p.eat(TokComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	return stmt, nil
}

func (p *parser) parseDelete() (*DeleteStmt, error) {
	stmt := &DeleteStmt{Pos: p.tok.Pos}
	if err := p.bump(); err != nil { // DELETE
		return nil, err
	}
	if _, err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	var err error
	if stmt.Table, err = p.parseIdent("table name"); err != nil {
		return nil, err
	}
	if ok, err := p.eatKeyword("WHERE"); err != nil {
		return nil, err
	} else if ok {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) parseUpdate() (*UpdateStmt, error) {
	stmt := &UpdateStmt{Pos: p.tok.Pos}
	if err := p.bump(); err != nil { // UPDATE
		return nil, err
	}
	var err error
	if stmt.Table, err = p.parseIdent("table name"); err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	for {
		col, err := p.parseIdent("column name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokEq, `"="`); err != nil {
			return nil, err
		}
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		stmt.Set = append(stmt.Set, Assignment{Column: col, Value: lit})
		if _, ok, err := p.eat(TokComma); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if ok, err := p.eatKeyword("WHERE"); err != nil {
		return nil, err
	} else if ok {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *parser) parseSet() (*SetStmt, error) {
	stmt := &SetStmt{Pos: p.tok.Pos}
	if err := p.bump(); err != nil { // SET
		return nil, err
	}
	var err error
	if stmt.Name, err = p.parseIdent("variable name"); err != nil {
		return nil, err
	}
	// Both `SET var = value` and `SET var TO value` are accepted.
	if _, ok, err := p.eat(TokEq); err != nil {
		return nil, err
	} else if !ok {
		if _, err := p.expectKeyword("TO"); err != nil {
			return nil, err
		}
	}
	if stmt.Value, err = p.parseLiteral(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *parser) parseShow() (*ShowStmt, error) {
	stmt := &ShowStmt{Pos: p.tok.Pos}
	if err := p.bump(); err != nil { // SHOW
		return nil, err
	}
	var err error
	if stmt.Name, err = p.parseIdent("variable name"); err != nil {
		return nil, err
	}
	return stmt, nil
}
