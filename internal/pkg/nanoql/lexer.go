package nanoql

import (
	"strings"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenWord
	TokenString
	TokenColon
	TokenLParen
	TokenRParen
	TokenAnd
	TokenOr
	TokenNot
	TokenNeq // !=
	TokenGt  // >
	TokenGte // >=
	TokenLt  // <
	TokenLte // <=
)

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Lexer tokenizes filter expressions.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	for l.pos < len(l.input) && isBlank(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	start := l.pos
	ch := l.input[l.pos]
	next := byte(0)
	if l.pos+1 < len(l.input) {
		next = l.input[l.pos+1]
	}

	switch {
	case ch == ':':
		l.pos++
		return Token{Type: TokenColon, Value: ":", Pos: start}
	case ch == '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: start}
	case ch == ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: start}
	case ch == '!' && next == '=':
		l.pos += 2
		return Token{Type: TokenNeq, Value: "!=", Pos: start}
	case ch == '>' && next == '=':
		l.pos += 2
		return Token{Type: TokenGte, Value: ">=", Pos: start}
	case ch == '<' && next == '=':
		l.pos += 2
		return Token{Type: TokenLte, Value: "<=", Pos: start}
	case ch == '>':
		l.pos++
		return Token{Type: TokenGt, Value: ">", Pos: start}
	case ch == '<':
		l.pos++
		return Token{Type: TokenLt, Value: "<", Pos: start}
	case ch == '"':
		return l.readString()
	}
	return l.readWord()
}

// readString reads a double-quoted string; backslash escapes the next byte.
func (l *Lexer) readString() Token {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) && l.input[l.pos] != '"' {
		if l.input[l.pos] == '\\' && l.pos+1 < len(l.input) {
			l.pos++
		}
		sb.WriteByte(l.input[l.pos])
		l.pos++
	}
	if l.pos < len(l.input) {
		l.pos++
	}
	return Token{Type: TokenString, Value: sb.String(), Pos: start}
}

// readWord reads a bare word. Words may hold paths, addresses and dates,
// so only blanks and operator bytes end them.
func (l *Lexer) readWord() Token {
	start := l.pos
	for l.pos < len(l.input) && !isBlank(l.input[l.pos]) && !isOperator(l.input[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		// Lone '!' or similar; consume it so the parser can report it.
		l.pos++
	}
	value := l.input[start:l.pos]

	switch strings.ToUpper(value) {
	case "AND":
		return Token{Type: TokenAnd, Value: "AND", Pos: start}
	case "OR":
		return Token{Type: TokenOr, Value: "OR", Pos: start}
	case "NOT":
		return Token{Type: TokenNot, Value: "NOT", Pos: start}
	}
	return Token{Type: TokenWord, Value: value, Pos: start}
}

func isBlank(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isOperator(ch byte) bool {
	switch ch {
	case ':', '(', ')', '!', '<', '>', '"':
		return true
	}
	return false
}
