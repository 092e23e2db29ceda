package nanoql

import (
	"testing"
)

// testRow implements Row for testing
type testRow map[string]string

func (r testRow) Lookup(field string) string {
	if v, ok := r[field]; ok {
		return v
	}
	return "-"
}

func TestLexer(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{"method:GET", []TokenType{TokenWord, TokenColon, TokenWord, TokenEOF}},
		{`path:"/a b"`, []TokenType{TokenWord, TokenColon, TokenString, TokenEOF}},
		{"ip:10.0.0.1", []TokenType{TokenWord, TokenColon, TokenWord, TokenEOF}},
		{"a AND b", []TokenType{TokenWord, TokenAnd, TokenWord, TokenEOF}},
		{"a or b", []TokenType{TokenWord, TokenOr, TokenWord, TokenEOF}},
		{"NOT a", []TokenType{TokenNot, TokenWord, TokenEOF}},
		{"(a)", []TokenType{TokenLParen, TokenWord, TokenRParen, TokenEOF}},
		{`key!="value"`, []TokenType{TokenWord, TokenNeq, TokenString, TokenEOF}},
		{"status>=400", []TokenType{TokenWord, TokenGte, TokenWord, TokenEOF}},
		{"size<10", []TokenType{TokenWord, TokenLt, TokenWord, TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lexer := NewLexer(tt.input)
			for i, expected := range tt.expected {
				tok := lexer.NextToken()
				if tok.Type != expected {
					t.Errorf("token %d: expected %v, got %v (%q)", i, expected, tok.Type, tok.Value)
				}
			}
		})
	}
}

func TestParseSimple(t *testing.T) {
	tests := []struct {
		input string
		want  MatchExpr
	}{
		{"method:GET", MatchExpr{Key: "method", Value: "GET", Op: "="}},
		{"ip:10.0.32.179", MatchExpr{Key: "client_ip", Value: "10.0.32.179", Op: "="}},
		{"path!=/favicon.ico", MatchExpr{Key: "resource", Value: "/favicon.ico", Op: "!="}},
		{"status>=400", MatchExpr{Key: "status", Value: "400", Op: ">="}},
		{`"kernel"`, MatchExpr{Value: "kernel", Op: "CONTAINS"}},
		{"kernel", MatchExpr{Value: "kernel", Op: "CONTAINS"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			m, ok := node.(MatchExpr)
			if !ok || m != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, node, tt.want)
			}
		})
	}
}

func TestParseCompound(t *testing.T) {
	node, err := Parse("method:POST AND (status:4xx OR status:5xx)")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	bin, ok := node.(BinaryExpr)
	if !ok || bin.Op != "AND" {
		t.Fatalf("expected AND at root, got %+v", node)
	}
	if left, ok := bin.Left.(MatchExpr); !ok || left.Key != "method" {
		t.Errorf("left expected method:POST, got %+v", bin.Left)
	}
	if right, ok := bin.Right.(BinaryExpr); !ok || right.Op != "OR" {
		t.Errorf("expected OR on right, got %+v", bin.Right)
	}
}

func TestParseNot(t *testing.T) {
	node, err := Parse("NOT method:HEAD")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	not, ok := node.(NotExpr)
	if !ok {
		t.Fatalf("expected NotExpr, got %+v", node)
	}
	if m, ok := not.Expr.(MatchExpr); !ok || m.Value != "HEAD" {
		t.Errorf("expected method:HEAD, got %+v", not.Expr)
	}
}

func TestParseEmpty(t *testing.T) {
	node, err := Parse("   ")
	if err != nil || node != nil {
		t.Fatalf("expected nil node, got %+v, %v", node, err)
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"agent:curl",
		"method:",
		"status>abc",
		"(method:GET",
		"method:GET)",
		"NOT",
		"!",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); err == nil {
				t.Errorf("Parse(%q) expected error", input)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	row := testRow{
		"client_ip": "10.0.32.179",
		"user_id":   "-",
		"timestamp": "31/Oct/1994:14:03:20 +0000",
		"method":    "GET",
		"resource":  "/system/get.php?token=l_CHgTmLxX",
		"protocol":  "HTTP/1.0",
		"status":    "404",
		"size":      "484",
	}

	tests := []struct {
		query    string
		expected bool
	}{
		{"method:get", true},
		{"method:POST", false},
		{"ip:10.0.32.179", true},
		{"status:404", true},
		{"status:4xx", true},
		{"status:2xx", false},
		{"status>=400", true},
		{"status<400", false},
		{"size>484", false},
		{"size<=484", true},
		{"path:/system/*", true},
		{"path:/kernel/*", false},
		{`"token="`, true},
		{"user:-", true},
		{"method:GET AND status:404", true},
		{"method:GET AND status:200", false},
		{"method:POST OR status:404", true},
		{"NOT method:GET", false},
		{"NOT (method:POST OR protocol:HTTP/1.1)", true},
		{`time:"31/Oct/1994:14:03:20 +0000"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			node, err := Parse(tt.query)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if got := Match(node, row); got != tt.expected {
				t.Errorf("Match(%q) = %v, want %v", tt.query, got, tt.expected)
			}
		})
	}
}

func TestMatchNullNumeric(t *testing.T) {
	row := testRow{"status": "-", "size": "-"}
	for _, q := range []string{"status>0", "status<1000", "size>=0"} {
		node, err := Parse(q)
		if err != nil {
			t.Fatalf("parse error: %v", err)
		}
		if Match(node, row) {
			t.Errorf("Match(%q) on null value should be false", q)
		}
	}
	node, _ := Parse("status:-")
	if !Match(node, row) {
		t.Error("status:- should match a null status")
	}
}
