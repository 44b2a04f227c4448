package filter

import (
	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

// Parse parses a filter string into its AST. The grammar is
//
//	FILTER   = orExpr
//	orExpr   = andExpr *( "or" andExpr )
//	andExpr  = primary *( "and" primary )
//	primary  = "not" "(" orExpr ")" / "(" orExpr ")" / attrExp / valuePath
//	attrExp  = ATTR ( "pr" / compareOp literal )
//	valuePath = ATTR "[" orExpr "]"
//
// so "a and b or c" parses as "(a and b) or c". Every failure is a
// *domain.InvalidFilterError; there are no partial results.
func Parse(input string) (Expr, error) {
	toks, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != TokenEOF {
		return nil, domain.ErrInvalidFilter("unexpected %q at position %d", p.peek().Text, p.peek().Pos)
	}
	return expr, nil
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) peek() Token { return p.toks[p.pos] }

func (p *parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != TokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind TokenKind, what string) (Token, error) {
	t := p.peek()
	if t.Kind != kind {
		return Token{}, domain.ErrInvalidFilter("expected %s at position %d, found %q", what, t.Pos, t.Text)
	}
	return p.next(), nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TokenOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == TokenAnd {
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	switch t := p.peek(); t.Kind {
	case TokenNot:
		p.next()
		if _, err := p.expect(TokenLParen, `"(" after not`); err != nil {
			return nil, err
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, `")"`); err != nil {
			return nil, err
		}
		return &Not{Expr: inner}, nil

	case TokenLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, `")"`); err != nil {
			return nil, err
		}
		return inner, nil

	case TokenAttr:
		return p.parseAttrExpr()

	default:
		return nil, domain.ErrInvalidFilter("expected expression at position %d, found %q", t.Pos, t.Text)
	}
}

func (p *parser) parseAttrExpr() (Expr, error) {
	attr := p.next()

	if p.peek().Kind == TokenLBracket {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRBracket, `"]"`); err != nil {
			return nil, err
		}
		return &ValuePath{Path: attr.Text, Filter: inner}, nil
	}

	op, err := p.expect(TokenOp, "comparison operator")
	if err != nil {
		return nil, err
	}
	if Operator(op.Text) == OpPr {
		return &Compare{Path: attr.Text, Op: OpPr}, nil
	}

	value, err := p.parseLiteral(op.Text)
	if err != nil {
		return nil, err
	}
	return &Compare{Path: attr.Text, Op: Operator(op.Text), Value: value}, nil
}

func (p *parser) parseLiteral(op string) (interface{}, error) {
	switch t := p.peek(); t.Kind {
	case TokenString:
		p.next()
		return t.Str, nil
	case TokenNumber:
		p.next()
		return t.Num, nil
	case TokenBool:
		p.next()
		return t.Bool, nil
	case TokenNull:
		p.next()
		return nil, nil
	default:
		return nil, domain.ErrInvalidFilter("operator %q requires a literal at position %d, found %q", op, t.Pos, t.Text)
	}
}
