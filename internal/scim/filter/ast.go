package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator is a SCIM comparison operator keyword.
type Operator string

const (
	OpEq Operator = "eq"
	OpNe Operator = "ne"
	OpCo Operator = "co"
	OpSw Operator = "sw"
	OpEw Operator = "ew"
	OpGt Operator = "gt"
	OpGe Operator = "ge"
	OpLt Operator = "lt"
	OpLe Operator = "le"
	OpPr Operator = "pr"
)

// LogicalOp is a boolean connective.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
)

// Expr is a node of the filter AST. Nodes are immutable once constructed;
// evaluation never mutates them.
type Expr interface {
	String() string
	exprNode()
}

// Compare is a single attribute comparison. Value is nil for the unary
// "pr" operator; otherwise it holds a decoded string, float64, bool, or
// nil (null literal).
type Compare struct {
	Path  string
	Op    Operator
	Value interface{}
}

func (*Compare) exprNode() {}

func (e *Compare) String() string {
	if e.Op == OpPr {
		return fmt.Sprintf("%s pr", e.Path)
	}
	return fmt.Sprintf("%s %s %s", e.Path, e.Op, formatLiteral(e.Value))
}

// Logical connects two sub-filters with "and" or "or".
type Logical struct {
	Op    LogicalOp
	Left  Expr
	Right Expr
}

func (*Logical) exprNode() {}

func (e *Logical) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

// Not negates a parenthesized sub-filter.
type Not struct {
	Expr Expr
}

func (*Not) exprNode() {}

func (e *Not) String() string {
	return fmt.Sprintf("not (%s)", e.Expr)
}

// ValuePath applies a sub-filter to each element of a multi-valued
// attribute, e.g. emails[type eq "work"].
type ValuePath struct {
	Path   string
	Filter Expr
}

func (*ValuePath) exprNode() {}

func (e *ValuePath) String() string {
	return fmt.Sprintf("%s[%s]", e.Path, e.Filter)
}

func formatLiteral(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// attrSegments splits an AST attribute path on dots. URN handling happens
// in the evaluator, which knows the registered schemas.
func attrSegments(path string) []string {
	return strings.Split(path, ".")
}
