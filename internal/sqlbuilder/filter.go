package sqlbuilder

import (
	"strings"
	"unicode"
)

// FilterOperand is either a leaf placeholder name (a "#name" identifier alias
// or a ":name" value alias) or a nested filter node.
type FilterOperand struct {
	Leaf string
	Node *FilterNode
}

// FilterNode is one level of the declarative predicate tree sent with find
// and count commands.
type FilterNode struct {
	Op      string
	Left    *FilterOperand
	Right   *FilterOperand
	Bracket bool
}

// Condition is compiled predicate text plus the values it binds. The zero
// value means "no filter".
type Condition struct {
	SQL  string
	Args map[string]any
}

// Empty reports whether the condition carries no predicate.
func (c Condition) Empty() bool { return c.SQL == "" }

// valueArgPrefix namespaces filter value placeholders so they cannot collide
// with column placeholders in the surrounding statement.
const valueArgPrefix = "fv_"

// CompileFilter renders a filter tree to predicate text. Identifier aliases
// are resolved through names and emitted identifier-quoted; value aliases are
// resolved through values and emitted as named placeholders. A malformed root
// (missing operator or operand) compiles to an empty condition, which callers
// must treat as "no filter". A malformed or unresolvable nested node is an
// error.
func CompileFilter(node *FilterNode, names map[string]string, values map[string]any) (Condition, error) {
	if node == nil || !wellFormed(node) {
		return Condition{}, nil
	}
	args := map[string]any{}
	text, err := compileNode(node, names, values, args)
	if err != nil {
		return Condition{}, err
	}
	return Condition{SQL: text, Args: args}, nil
}

func wellFormed(n *FilterNode) bool {
	return stripSpace(n.Op) != "" && n.Left != nil && n.Right != nil
}

func compileNode(n *FilterNode, names map[string]string, values map[string]any, args map[string]any) (string, error) {
	if !wellFormed(n) {
		return "", badQueryf("malformed filter node")
	}
	left, err := compileOperand(n.Left, names, values, args)
	if err != nil {
		return "", err
	}
	right, err := compileOperand(n.Right, names, values, args)
	if err != nil {
		return "", err
	}
	text := left + " " + stripSpace(n.Op) + " " + right
	if n.Bracket {
		text = "(" + text + ")"
	}
	return text, nil
}

func compileOperand(op *FilterOperand, names map[string]string, values map[string]any, args map[string]any) (string, error) {
	if op.Node != nil {
		return compileNode(op.Node, names, values, args)
	}
	leaf := strings.TrimSpace(op.Leaf)
	switch {
	case strings.HasPrefix(leaf, "#"):
		column, ok := names[leaf]
		if !ok {
			return "", badQueryf("unresolved attribute name %s", leaf)
		}
		return QuoteIdent(column), nil
	case strings.HasPrefix(leaf, ":"):
		value, ok := values[leaf]
		if !ok {
			return "", badQueryf("unresolved attribute value %s", leaf)
		}
		name := valueArgPrefix + leaf[1:]
		args[name] = value
		return placeholder(name), nil
	default:
		return "", badQueryf("filter operand %q is neither #name nor :name", leaf)
	}
}

// whereClause renders a compiled condition as a parenthesized WHERE clause,
// or nothing when the condition is empty.
func whereClause(c Condition) string {
	if c.Empty() {
		return ""
	}
	return "WHERE (" + c.SQL + ")"
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
