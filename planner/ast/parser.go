package ast

import "fmt"

// Parser turns SQL text into a Statement tree, standing in for the external
// SQL parser the rest of the planner assumes upstream (see the package doc
// comment in ast.go). It implements a small, fixed grammar: CREATE
// SOURCE|SINK|VIEW|TABLE, DROP, INSERT, SELECT (with FROM/JOIN/WHERE/GROUP
// BY/HAVING/UNION/DISTINCT), and PEEK.
type Parser struct {
	lex  *lexer
	cur  token
	peek *token
}

// Parse parses a single SQL statement from sql. A trailing semicolon is
// accepted and ignored.
func Parse(sql string) (Statement, error) {
	p := &Parser{lex: newLexer(sql)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.cur.kind == tokPunct && p.cur.text == ";" {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.cur.kind != tokEOF {
		return nil, fmt.Errorf("ast: unexpected trailing input near %q", p.cur.text)
	}
	return stmt, nil
}

func (p *Parser) advance() error {
	if p.peek != nil {
		p.cur = *p.peek
		p.peek = nil
		return nil
	}
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) lookahead() (token, error) {
	if p.peek == nil {
		tok, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &tok
	}
	return *p.peek, nil
}

func (p *Parser) isKeyword(kw string) bool {
	return p.cur.kind == tokKeyword && p.cur.text == kw
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return fmt.Errorf("ast: expected %s, got %q", kw, p.cur.text)
	}
	return p.advance()
}

func (p *Parser) isPunct(s string) bool {
	return p.cur.kind == tokPunct && p.cur.text == s
}

func (p *Parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		return fmt.Errorf("ast: expected %q, got %q", s, p.cur.text)
	}
	return p.advance()
}

func (p *Parser) expectIdent() (string, error) {
	if p.cur.kind != tokIdent {
		return "", fmt.Errorf("ast: expected identifier, got %q", p.cur.text)
	}
	name := p.cur.raw
	return name, p.advance()
}

func (p *Parser) parseStatement() (Statement, error) {
	switch {
	case p.isKeyword("CREATE"):
		return p.parseCreate()
	case p.isKeyword("DROP"):
		return p.parseDrop()
	case p.isKeyword("INSERT"):
		return p.parseInsert()
	case p.isKeyword("SELECT"):
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		return Select{Query: q}, nil
	case p.isKeyword("PEEK"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return Peek{Name: name}, nil
	case p.isKeyword("TAIL"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return Tail{Name: name}, nil
	case p.cur.kind == tokEOF:
		return nil, fmt.Errorf("ast: empty statement")
	default:
		return nil, fmt.Errorf("ast: unsupported statement starting at %q", p.cur.text)
	}
}

func (p *Parser) parseCreate() (Statement, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	materialized := false
	if p.isKeyword("MATERIALIZED") {
		materialized = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	switch {
	case p.isKeyword("SOURCE"):
		return p.parseCreateSource()
	case p.isKeyword("SINK"):
		return p.parseCreateSink()
	case p.isKeyword("VIEW"):
		return p.parseCreateView(materialized)
	case p.isKeyword("TABLE"):
		return p.parseCreateTable()
	default:
		return nil, fmt.Errorf("ast: expected SOURCE, SINK, VIEW, or TABLE after CREATE, got %q", p.cur.text)
	}
}

func (p *Parser) parseColumnList() ([]ColumnDef, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var cols []ColumnDef
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		typeName, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		nullable := true
		if p.isKeyword("NOT") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("NULL"); err != nil {
				return nil, err
			}
			nullable = false
		} else if p.isKeyword("NULL") {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		cols = append(cols, ColumnDef{Name: name, Type: typeName, Nullable: nullable})
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return cols, p.expectPunct(")")
}

func (p *Parser) parseCreateSource() (Statement, error) {
	if err := p.expectKeyword("SOURCE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("URL"); err != nil {
		return nil, err
	}
	if p.cur.kind != tokString {
		return nil, fmt.Errorf("ast: expected a URL string literal, got %q", p.cur.text)
	}
	url := p.cur.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	return CreateSource{Name: name, Columns: cols, URL: url}, nil
}

func (p *Parser) parseCreateSink() (Statement, error) {
	if err := p.expectKeyword("SINK"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("URL"); err != nil {
		return nil, err
	}
	if p.cur.kind != tokString {
		return nil, fmt.Errorf("ast: expected a URL string literal, got %q", p.cur.text)
	}
	url := p.cur.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	return CreateSink{Name: name, From: from, URL: url}, nil
}

func (p *Parser) parseCreateView(materialized bool) (Statement, error) {
	if err := p.expectKeyword("VIEW"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	return CreateView{Name: name, Query: q, Materialized: materialized}, nil
}

func (p *Parser) parseCreateTable() (Statement, error) {
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	cols, err := p.parseColumnList()
	if err != nil {
		return nil, err
	}
	return CreateTable{Name: name, Columns: cols}, nil
}

func (p *Parser) parseDrop() (Statement, error) {
	if err := p.expectKeyword("DROP"); err != nil {
		return nil, err
	}
	switch {
	case p.isKeyword("SOURCE"), p.isKeyword("SINK"), p.isKeyword("VIEW"), p.isKeyword("TABLE"):
		if err := p.advance(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("ast: expected SOURCE, SINK, VIEW, or TABLE after DROP, got %q", p.cur.text)
	}
	ifExists := false
	if p.isKeyword("IF") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
		ifExists = true
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
	mode := DropRestrict
	if p.isKeyword("CASCADE") {
		mode = DropCascade
		if err := p.advance(); err != nil {
			return nil, err
		}
	} else if p.isKeyword("RESTRICT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return Drop{Names: names, Mode: mode, IfExists: ifExists}, nil
}

func (p *Parser) parseInsert() (Statement, error) {
	if err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var cols []string
	if p.isPunct("(") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, name)
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
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	var rows [][]Expr
	for {
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
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
		rows = append(rows, row)
		if p.isPunct(",") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return Insert{Table: table, Columns: cols, Rows: rows}, nil
}
