package nanoql

import (
	"strconv"
	"strings"
)

// Row is the view of one table row the evaluator needs.
// Lookup returns the textual value of a canonical field; absent values are
// reported as "-".
type Row interface {
	Lookup(field string) string
}

// fieldOrder lists the canonical fields searched by full-text terms.
var fieldOrder = []string{
	"client_ip", "user_id", "timestamp", "method", "resource", "protocol", "status", "size",
}

// Match evaluates the AST node against a row.
func Match(node Node, row Row) bool {
	if node == nil {
		return true
	}

	switch n := node.(type) {
	case BinaryExpr:
		return evalBinary(n, row)
	case MatchExpr:
		return evalMatch(n, row)
	case NotExpr:
		return !Match(n.Expr, row)
	default:
		return false
	}
}

func evalBinary(expr BinaryExpr, row Row) bool {
	switch expr.Op {
	case "AND":
		return Match(expr.Left, row) && Match(expr.Right, row)
	case "OR":
		return Match(expr.Left, row) || Match(expr.Right, row)
	default:
		return false
	}
}

func evalMatch(expr MatchExpr, row Row) bool {
	if expr.Key == "" {
		return matchFullText(expr.Value, row)
	}

	value := row.Lookup(expr.Key)
	switch expr.Op {
	case "=":
		return matchEqual(value, expr.Value)
	case "!=":
		return !matchEqual(value, expr.Value)
	case "CONTAINS":
		return containsIgnoreCase(value, expr.Value)
	case ">", ">=", "<", "<=":
		return compareInt(value, expr.Op, expr.Value)
	default:
		return matchEqual(value, expr.Value)
	}
}

// matchEqual is case-insensitive. A trailing '*' turns it into a prefix
// match, and "4xx" style values match a whole status class.
func matchEqual(value, query string) bool {
	if strings.HasSuffix(query, "*") {
		return strings.HasPrefix(strings.ToLower(value), strings.ToLower(strings.TrimSuffix(query, "*")))
	}
	if len(query) == 3 && strings.EqualFold(query[1:], "xx") && len(value) == 3 {
		return value[0] == query[0]
	}
	return strings.EqualFold(value, query)
}

// compareInt compares numerically; non-numeric values (including "-") never match.
func compareInt(value, op, query string) bool {
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false
	}
	q, err := strconv.ParseInt(query, 10, 64)
	if err != nil {
		return false
	}
	switch op {
	case ">":
		return v > q
	case ">=":
		return v >= q
	case "<":
		return v < q
	case "<=":
		return v <= q
	}
	return false
}

func containsIgnoreCase(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchFullText(query string, row Row) bool {
	for _, f := range fieldOrder {
		if containsIgnoreCase(row.Lookup(f), query) {
			return true
		}
	}
	return false
}
