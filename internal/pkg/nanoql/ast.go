package nanoql

// Node is the interface implemented by all AST nodes.
type Node interface {
	node() // marker method
}

// BinaryExpr represents a binary logical expression (AND, OR).
type BinaryExpr struct {
	Op    string // "AND" or "OR"
	Left  Node
	Right Node
}

func (BinaryExpr) node() {}

// MatchExpr compares one field against a value.
// An empty Key is a full-text term matched against every field.
type MatchExpr struct {
	Key   string // canonical field name, see Fields
	Value string
	Op    string // "=", "!=", "CONTAINS", ">", ">=", "<", "<="
}

func (MatchExpr) node() {}

// NotExpr negates its inner expression.
type NotExpr struct {
	Expr Node
}

func (NotExpr) node() {}

// Fields maps accepted key spellings to canonical field names.
var Fields = map[string]string{
	"ip":        "client_ip",
	"client_ip": "client_ip",
	"user":      "user_id",
	"user_id":   "user_id",
	"time":      "timestamp",
	"timestamp": "timestamp",
	"method":    "method",
	"resource":  "resource",
	"path":      "resource",
	"protocol":  "protocol",
	"status":    "status",
	"size":      "size",
}
