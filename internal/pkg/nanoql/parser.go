package nanoql

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser parses filter expressions into an AST.
type Parser struct {
	lexer   *Lexer
	current Token
}

// Parse parses the input string and returns the AST root node.
// An empty or blank input yields a nil node, which matches every row.
func Parse(input string) (Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	p := &Parser{lexer: NewLexer(input)}
	p.advance()
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", p.current.Value, p.current.Pos)
	}
	return node, nil
}

func (p *Parser) advance() {
	p.current = p.lexer.NextToken()
}

// parseOr handles OR expressions (lowest precedence).
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current.Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

// parseAnd handles AND expressions.
func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.current.Type == TokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

// parseNot handles NOT expressions.
func (p *Parser) parseNot() (Node, error) {
	if p.current.Type == TokenNot {
		p.advance()
		expr, err := p.parseNot() // NOT is right-associative
		if err != nil {
			return nil, err
		}
		return NotExpr{Expr: expr}, nil
	}
	return p.parsePrimary()
}

// parsePrimary handles (expr), key<op>value and full-text terms.
func (p *Parser) parsePrimary() (Node, error) {
	switch p.current.Type {
	case TokenLParen:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.Type != TokenRParen {
			return nil, fmt.Errorf("expected ')' at position %d", p.current.Pos)
		}
		p.advance()
		return expr, nil

	case TokenString:
		value := p.current.Value
		p.advance()
		return MatchExpr{Value: value, Op: "CONTAINS"}, nil

	case TokenWord:
		word := p.current
		p.advance()

		op, ok := comparison(p.current.Type)
		if !ok {
			if len(word.Value) == 1 && isOperator(word.Value[0]) {
				return nil, fmt.Errorf("unexpected %q at position %d", word.Value, word.Pos)
			}
			return MatchExpr{Value: word.Value, Op: "CONTAINS"}, nil
		}

		key, known := Fields[strings.ToLower(word.Value)]
		if !known {
			return nil, fmt.Errorf("unknown field %q at position %d", word.Value, word.Pos)
		}
		p.advance()
		return p.parseValue(key, op)

	case TokenEOF:
		return nil, fmt.Errorf("unexpected end of expression")

	default:
		return nil, fmt.Errorf("unexpected %q at position %d", p.current.Value, p.current.Pos)
	}
}

// parseValue parses the operand after key<op>.
func (p *Parser) parseValue(key, op string) (Node, error) {
	if p.current.Type != TokenWord && p.current.Type != TokenString {
		return nil, fmt.Errorf("expected value after %s%s at position %d", key, op, p.current.Pos)
	}
	value := p.current.Value
	p.advance()

	switch op {
	case ">", ">=", "<", "<=":
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return nil, fmt.Errorf("%s%s needs an integer, got %q", key, op, value)
		}
	}
	return MatchExpr{Key: key, Value: value, Op: op}, nil
}

func comparison(t TokenType) (string, bool) {
	switch t {
	case TokenColon:
		return "=", true
	case TokenNeq:
		return "!=", true
	case TokenGt:
		return ">", true
	case TokenGte:
		return ">=", true
	case TokenLt:
		return "<", true
	case TokenLte:
		return "<=", true
	}
	return "", false
}
