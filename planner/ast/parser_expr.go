package ast

import "fmt"

// parseExpr parses a full scalar expression at the lowest precedence (OR).
func (p *Parser) parseExpr() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinaryRHS(0, left)
}

// parseExprAtPrec parses an expression that must bind at least as tightly
// as minPrec — used for the "low"/"high" operands of BETWEEN, where the
// AND separating them must not be consumed as a logical AND continuation.
func (p *Parser) parseExprAtPrec(minPrec int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinaryRHS(minPrec, left)
}

// continueBinaryExpr resumes binary-operator parsing given an
// already-parsed left operand (used by parseSelectItem after it has
// special-cased a leading `table.ident` to distinguish it from `table.*`).
func (p *Parser) continueBinaryExpr(left Expr) (Expr, error) {
	return p.parseBinaryRHS(0, left)
}

const (
	precOr         = 1
	precAnd        = 2
	precComparison = 3
	precAdditive   = 4
	precMultiplicative = 5
)

func binaryOpPrec(op string) (int, bool) {
	switch op {
	case "OR":
		return precOr, true
	case "AND":
		return precAnd, true
	case "=", "<>", "<", "<=", ">", ">=":
		return precComparison, true
	case "+", "-":
		return precAdditive, true
	case "*", "/", "%":
		return precMultiplicative, true
	default:
		return 0, false
	}
}

func (p *Parser) parseBinaryRHS(minPrec int, left Expr) (Expr, error) {
	for {
		if p.isKeyword("BETWEEN") && precComparison >= minPrec {
			e, err := p.parseBetween(left, false)
			if err != nil {
				return nil, err
			}
			left = e
			continue
		}
		if p.isKeyword("IN") && precComparison >= minPrec {
			e, err := p.parseInList(left, false)
			if err != nil {
				return nil, err
			}
			left = e
			continue
		}
		if p.isKeyword("IS") && precComparison >= minPrec {
			e, err := p.parseIsNull(left)
			if err != nil {
				return nil, err
			}
			left = e
			continue
		}
		if p.isKeyword("NOT") && precComparison >= minPrec {
			la, err := p.lookahead()
			if err != nil {
				return nil, err
			}
			if la.kind == tokKeyword && la.text == "BETWEEN" {
				if err := p.advance(); err != nil { // consume NOT
					return nil, err
				}
				e, err := p.parseBetween(left, true)
				if err != nil {
					return nil, err
				}
				left = e
				continue
			}
			if la.kind == tokKeyword && la.text == "IN" {
				if err := p.advance(); err != nil {
					return nil, err
				}
				e, err := p.parseInList(left, true)
				if err != nil {
					return nil, err
				}
				left = e
				continue
			}
			break
		}

		var opText string
		switch {
		case p.isKeyword("OR"):
			opText = "OR"
		case p.isKeyword("AND"):
			opText = "AND"
		case p.cur.kind == tokPunct:
			switch p.cur.text {
			case "=", "<>", "<", "<=", ">", ">=", "+", "-", "*", "/", "%":
				opText = p.cur.text
			}
		}
		if opText == "" {
			break
		}
		prec, _ := binaryOpPrec(opText)
		if prec < minPrec {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		right, err = p.parseBinaryRHS(prec+1, right)
		if err != nil {
			return nil, err
		}
		left = BinaryOp{Op: opText, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseBetween(left Expr, negated bool) (Expr, error) {
	if err := p.expectKeyword("BETWEEN"); err != nil {
		return nil, err
	}
	low, err := p.parseExprAtPrec(precAdditive)
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AND"); err != nil {
		return nil, err
	}
	high, err := p.parseExprAtPrec(precAdditive)
	if err != nil {
		return nil, err
	}
	return Between{Expr: left, Low: low, High: high, Negated: negated}, nil
}

func (p *Parser) parseInList(left Expr, negated bool) (Expr, error) {
	if err := p.expectKeyword("IN"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var list []Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return InList{Expr: left, List: list, Negated: negated}, nil
}

func (p *Parser) parseIsNull(left Expr) (Expr, error) {
	if err := p.expectKeyword("IS"); err != nil {
		return nil, err
	}
	negated := false
	if p.isKeyword("NOT") {
		negated = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("NULL"); err != nil {
		return nil, err
	}
	op := "ISNULL"
	if negated {
		op = "ISNOTNULL"
	}
	return UnaryOp{Op: op, Expr: left}, nil
}

// parseUnary handles the prefix operators NOT, unary +/-, then hands off
// to parsePrimary.
func (p *Parser) parseUnary() (Expr, error) {
	switch {
	case p.isKeyword("NOT"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryOp{Op: "NOT", Expr: inner}, nil
	case p.isPunct("+"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryOp{Op: "+", Expr: inner}, nil
	case p.isPunct("-"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return UnaryOp{Op: "-", Expr: inner}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	switch {
	case p.cur.kind == tokInt:
		v, err := parseIntLiteral(p.cur.text)
		if err != nil {
			return nil, err
		}
		return IntLiteral{Value: v}, p.advance()
	case p.cur.kind == tokFloat:
		v, err := parseFloatLiteral(p.cur.text)
		if err != nil {
			return nil, err
		}
		return FloatLiteral{Value: v}, p.advance()
	case p.cur.kind == tokString:
		v := p.cur.text
		return StringLiteral{Value: v}, p.advance()
	case p.isKeyword("TRUE"):
		return BoolLiteral{Value: true}, p.advance()
	case p.isKeyword("FALSE"):
		return BoolLiteral{Value: false}, p.advance()
	case p.isKeyword("NULL"):
		return NullLiteral{}, p.advance()
	case p.isKeyword("CASE"):
		return p.parseCase()
	case p.isKeyword("CAST"):
		return p.parseCast()
	case p.isPunct("("):
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return e, p.expectPunct(")")
	case p.cur.kind == tokIdent:
		return p.parseIdentOrFuncCall()
	default:
		return nil, fmt.Errorf("ast: unexpected token %q in expression", p.cur.text)
	}
}

func (p *Parser) parseIdentOrFuncCall() (Expr, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.isPunct(".") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return Ident{Table: name, Column: col}, nil
	}
	if p.isPunct("(") {
		return p.parseFuncCallArgs(name)
	}
	return Ident{Column: name}, nil
}

func (p *Parser) parseFuncCallArgs(name string) (Expr, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	lowerName := toLowerASCII(name)
	if p.isPunct("*") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return FuncCall{Name: lowerName, Star: true}, nil
	}
	distinct := false
	if p.isKeyword("DISTINCT") {
		distinct = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	var args []Expr
	if !p.isPunct(")") {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if p.isPunct(",") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return FuncCall{Name: lowerName, Args: args, Distinct: distinct}, nil
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func (p *Parser) parseCase() (Expr, error) {
	if err := p.expectKeyword("CASE"); err != nil {
		return nil, err
	}
	var operand Expr
	if !p.isKeyword("WHEN") {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		operand = e
	}
	var whens []CaseWhen
	for p.isKeyword("WHEN") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		when, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		whens = append(whens, CaseWhen{When: when, Then: then})
	}
	var elseExpr Expr
	if p.isKeyword("ELSE") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elseExpr = e
	}
	if err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return Case{Operand: operand, Whens: whens, Else: elseExpr}, nil
}

func (p *Parser) parseCast() (Expr, error) {
	if err := p.expectKeyword("CAST"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	typeName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return Cast{Expr: e, Type: typeName}, nil
}
