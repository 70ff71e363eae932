package ast

// parseQuery parses a full SELECT, including UNION chains: `query (UNION
// [ALL] query)*`, left-associative.
func (p *Parser) parseQuery() (Query, error) {
	left, err := p.parseSelectCore()
	if err != nil {
		return Query{}, err
	}
	for p.isKeyword("UNION") {
		if err := p.advance(); err != nil {
			return Query{}, err
		}
		all := false
		if p.isKeyword("ALL") {
			all = true
			if err := p.advance(); err != nil {
				return Query{}, err
			}
		}
		right, err := p.parseSelectCore()
		if err != nil {
			return Query{}, err
		}
		l, r := left, right
		left = Query{Set: &SetOp{Op: "UNION", All: all, Left: &l, Right: &r}}
	}
	return left, nil
}

func (p *Parser) parseSelectCore() (Query, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return Query{}, err
	}
	distinct := false
	if p.isKeyword("DISTINCT") {
		distinct = true
		if err := p.advance(); err != nil {
			return Query{}, err
		}
	}
	projection, err := p.parseSelectList()
	if err != nil {
		return Query{}, err
	}

	var from []TableWithJoins
	if p.isKeyword("FROM") {
		if err := p.advance(); err != nil {
			return Query{}, err
		}
		from, err = p.parseFromList()
		if err != nil {
			return Query{}, err
		}
	}

	var where Expr
	if p.isKeyword("WHERE") {
		if err := p.advance(); err != nil {
			return Query{}, err
		}
		where, err = p.parseExpr()
		if err != nil {
			return Query{}, err
		}
	}

	var groupBy []Expr
	if p.isKeyword("GROUP") {
		if err := p.advance(); err != nil {
			return Query{}, err
		}
		if err := p.expectKeyword("BY"); err != nil {
			return Query{}, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return Query{}, err
			}
			groupBy = append(groupBy, e)
			if p.isPunct(",") {
				if err := p.advance(); err != nil {
					return Query{}, err
				}
				continue
			}
			break
		}
	}

	var having Expr
	if p.isKeyword("HAVING") {
		if err := p.advance(); err != nil {
			return Query{}, err
		}
		having, err = p.parseExpr()
		if err != nil {
			return Query{}, err
		}
	}

	return Query{
		From:       from,
		Where:      where,
		Projection: projection,
		GroupBy:    groupBy,
		Having:     having,
		Distinct:   distinct,
	}, nil
}

func (p *Parser) parseSelectList() ([]SelectItem, error) {
	var items []SelectItem
	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return items, nil
}

func (p *Parser) parseSelectItem() (SelectItem, error) {
	if p.isPunct("*") {
		if err := p.advance(); err != nil {
			return SelectItem{}, err
		}
		return SelectItem{Wildcard: true}, nil
	}
	// table.* needs one token of lookahead past the identifier.
	if p.cur.kind == tokIdent {
		la, err := p.lookahead()
		if err != nil {
			return SelectItem{}, err
		}
		if la.kind == tokPunct && la.text == "." {
			table := p.cur.raw
			if err := p.advance(); err != nil {
				return SelectItem{}, err
			}
			if err := p.advance(); err != nil {
				return SelectItem{}, err
			}
			if p.isPunct("*") {
				if err := p.advance(); err != nil {
					return SelectItem{}, err
				}
				return SelectItem{QualifiedWildcardTable: table}, nil
			}
			// Not a wildcard: rewind logically by parsing the rest of a
			// qualified identifier expression from here.
			col, err := p.expectIdent()
			if err != nil {
				return SelectItem{}, err
			}
			e := Expr(Ident{Table: table, Column: col})
			return p.finishSelectItemFrom(e)
		}
	}
	e, err := p.parseExpr()
	if err != nil {
		return SelectItem{}, err
	}
	return p.finishSelectItemFrom(e)
}

func (p *Parser) finishSelectItemFrom(e Expr) (SelectItem, error) {
	e, err := p.continueBinaryExpr(e)
	if err != nil {
		return SelectItem{}, err
	}
	alias := ""
	if p.isKeyword("AS") {
		if err := p.advance(); err != nil {
			return SelectItem{}, err
		}
		alias, err = p.expectIdent()
		if err != nil {
			return SelectItem{}, err
		}
	} else if p.cur.kind == tokIdent {
		alias, err = p.expectIdent()
		if err != nil {
			return SelectItem{}, err
		}
	}
	return SelectItem{Expr: e, Alias: alias}, nil
}

func (p *Parser) parseFromList() ([]TableWithJoins, error) {
	var list []TableWithJoins
	for {
		twj, err := p.parseTableWithJoins()
		if err != nil {
			return nil, err
		}
		list = append(list, twj)
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return list, nil
}

func (p *Parser) parseTableFactor() (TableFactor, error) {
	if p.isKeyword("DUAL") {
		if err := p.advance(); err != nil {
			return TableFactor{}, err
		}
		return TableFactor{Dual: true}, nil
	}
	name, err := p.expectIdent()
	if err != nil {
		return TableFactor{}, err
	}
	alias := ""
	if p.isKeyword("AS") {
		if err := p.advance(); err != nil {
			return TableFactor{}, err
		}
		alias, err = p.expectIdent()
		if err != nil {
			return TableFactor{}, err
		}
	} else if p.cur.kind == tokIdent {
		alias, err = p.expectIdent()
		if err != nil {
			return TableFactor{}, err
		}
	}
	return TableFactor{Name: name, Alias: alias}, nil
}

func (p *Parser) parseTableWithJoins() (TableWithJoins, error) {
	base, err := p.parseTableFactor()
	if err != nil {
		return TableWithJoins{}, err
	}
	twj := TableWithJoins{Table: base}
	for {
		kind, ok, err := p.peekJoinKind()
		if err != nil {
			return TableWithJoins{}, err
		}
		if !ok {
			break
		}
		j, err := p.parseJoin(kind)
		if err != nil {
			return TableWithJoins{}, err
		}
		twj.Joins = append(twj.Joins, j)
	}
	return twj, nil
}

// peekJoinKind reports whether the cursor sits at the start of a join
// clause and, if so, which kind, without consuming the JOIN keyword itself.
func (p *Parser) peekJoinKind() (JoinKind, bool, error) {
	switch {
	case p.isKeyword("JOIN"):
		return JoinInnerOn, true, nil
	case p.isKeyword("INNER"):
		return JoinInnerOn, true, nil
	case p.isKeyword("CROSS"):
		return JoinCross, true, nil
	case p.isKeyword("NATURAL"):
		return JoinInnerNatural, true, nil
	case p.isKeyword("LEFT"):
		return JoinLeftOuter, true, nil
	case p.isKeyword("RIGHT"):
		return JoinRightOuter, true, nil
	case p.isKeyword("FULL"):
		return JoinFullOuter, true, nil
	default:
		return 0, false, nil
	}
}

func (p *Parser) parseJoin(kind JoinKind) (Join, error) {
	// Consume the leading qualifier keyword(s) before JOIN itself.
	switch kind {
	case JoinInnerOn:
		if p.isKeyword("INNER") {
			if err := p.advance(); err != nil {
				return Join{}, err
			}
		}
	case JoinCross:
		if err := p.advance(); err != nil {
			return Join{}, err
		}
	case JoinInnerNatural:
		if err := p.advance(); err != nil {
			return Join{}, err
		}
	case JoinLeftOuter, JoinRightOuter, JoinFullOuter:
		if err := p.advance(); err != nil {
			return Join{}, err
		}
		if p.isKeyword("OUTER") {
			if err := p.advance(); err != nil {
				return Join{}, err
			}
		}
	}
	if err := p.expectKeyword("JOIN"); err != nil {
		return Join{}, err
	}
	table, err := p.parseTableFactor()
	if err != nil {
		return Join{}, err
	}

	switch kind {
	case JoinCross, JoinInnerNatural:
		return Join{Kind: kind, Table: table}, nil
	case JoinInnerOn:
		if p.isKeyword("USING") {
			using, err := p.parseUsingList()
			if err != nil {
				return Join{}, err
			}
			return Join{Kind: JoinInnerUsing, Table: table, Using: using}, nil
		}
		if err := p.expectKeyword("ON"); err != nil {
			return Join{}, err
		}
		on, err := p.parseExpr()
		if err != nil {
			return Join{}, err
		}
		return Join{Kind: JoinInnerOn, Table: table, On: on}, nil
	default: // LEFT/RIGHT/FULL OUTER
		if err := p.expectKeyword("ON"); err != nil {
			return Join{}, err
		}
		on, err := p.parseExpr()
		if err != nil {
			return Join{}, err
		}
		return Join{Kind: kind, Table: table, On: on}, nil
	}
}

func (p *Parser) parseUsingList() ([]string, error) {
	if err := p.expectKeyword("USING"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return names, p.expectPunct(")")
}
