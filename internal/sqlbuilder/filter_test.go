package sqlbuilder

import (
	"errors"
	"testing"
)

func leaf(s string) *FilterOperand { return &FilterOperand{Leaf: s} }

func node(n *FilterNode) *FilterOperand { return &FilterOperand{Node: n} }

func TestCompileFilterSimpleComparison(t *testing.T) {
	cond, err := CompileFilter(
		&FilterNode{Op: "=", Left: leaf("#status"), Right: leaf(":status")},
		map[string]string{"#status": "status"},
		map[string]any{":status": "open"},
	)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := `"status" = @fv_status`
	if cond.SQL != want {
		t.Fatalf("sql = %q, want %q", cond.SQL, want)
	}
	if got := cond.Args["fv_status"]; got != "open" {
		t.Fatalf("bound value = %v, want open", got)
	}
}

func TestCompileFilterNestedBrackets(t *testing.T) {
	tree := &FilterNode{
		Op: "AND",
		Left: node(&FilterNode{
			Op: ">", Left: leaf("#a"), Right: leaf(":a"), Bracket: true,
		}),
		Right: node(&FilterNode{
			Op: "<", Left: leaf("#b"), Right: leaf(":b"), Bracket: true,
		}),
		Bracket: true,
	}
	cond, err := CompileFilter(tree,
		map[string]string{"#a": "age", "#b": "balance"},
		map[string]any{":a": 21, ":b": 100},
	)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := `(("age" > @fv_a) AND ("balance" < @fv_b))`
	if cond.SQL != want {
		t.Fatalf("sql = %q, want %q", cond.SQL, want)
	}
	if len(cond.Args) != 2 {
		t.Fatalf("args = %v, want two values", cond.Args)
	}
}

func TestCompileFilterBracketControlsParens(t *testing.T) {
	cond, err := CompileFilter(
		&FilterNode{Op: "LIKE", Left: leaf("#n"), Right: leaf(":n")},
		map[string]string{"#n": "name"},
		map[string]any{":n": "a%"},
	)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if want := `"name" LIKE @fv_n`; cond.SQL != want {
		t.Fatalf("sql = %q, want %q", cond.SQL, want)
	}
}

func TestCompileFilterOperatorWhitespaceStripped(t *testing.T) {
	cond, err := CompileFilter(
		&FilterNode{Op: "  N O T LIKE  ", Left: leaf("#c"), Right: leaf(":v")},
		map[string]string{"#c": "c"},
		map[string]any{":v": 1},
	)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if want := `"c" NOTLIKE @fv_v`; cond.SQL != want {
		t.Fatalf("sql = %q, want %q", cond.SQL, want)
	}
}

func TestCompileFilterMalformedRootIsNoFilter(t *testing.T) {
	cases := []*FilterNode{
		nil,
		{Op: "", Left: leaf("#a"), Right: leaf(":a")},
		{Op: "=", Left: nil, Right: leaf(":a")},
		{Op: "=", Left: leaf("#a"), Right: nil},
	}
	for i, tree := range cases {
		cond, err := CompileFilter(tree, nil, nil)
		if err != nil {
			t.Fatalf("case %d: unexpected error %v", i, err)
		}
		if !cond.Empty() {
			t.Fatalf("case %d: expected empty condition, got %q", i, cond.SQL)
		}
	}
}

func TestCompileFilterMalformedNestedNodeFails(t *testing.T) {
	tree := &FilterNode{
		Op:    "AND",
		Left:  node(&FilterNode{Op: "", Left: leaf("#a"), Right: leaf(":a")}),
		Right: node(&FilterNode{Op: "=", Left: leaf("#b"), Right: leaf(":b")}),
	}
	_, err := CompileFilter(tree,
		map[string]string{"#a": "a", "#b": "b"},
		map[string]any{":a": 1, ":b": 2},
	)
	var bad ErrBadQuery
	if !errors.As(err, &bad) {
		t.Fatalf("expected ErrBadQuery, got %v", err)
	}
}

func TestCompileFilterUnresolvedAliasFails(t *testing.T) {
	_, err := CompileFilter(
		&FilterNode{Op: "=", Left: leaf("#missing"), Right: leaf(":v")},
		map[string]string{}, map[string]any{":v": 1},
	)
	if err == nil {
		t.Fatal("expected error for unresolved #missing")
	}
	_, err = CompileFilter(
		&FilterNode{Op: "=", Left: leaf("#c"), Right: leaf(":missing")},
		map[string]string{"#c": "c"}, map[string]any{},
	)
	if err == nil {
		t.Fatal("expected error for unresolved :missing")
	}
	_, err = CompileFilter(
		&FilterNode{Op: "=", Left: leaf("bare"), Right: leaf(":v")},
		map[string]string{}, map[string]any{":v": 1},
	)
	if err == nil {
		t.Fatal("expected error for bare operand")
	}
}

func TestWhereClause(t *testing.T) {
	if got := whereClause(Condition{}); got != "" {
		t.Fatalf("empty condition rendered %q", got)
	}
	got := whereClause(Condition{SQL: `"a" = @fv_a`})
	if want := `WHERE ("a" = @fv_a)`; got != want {
		t.Fatalf("whereClause = %q, want %q", got, want)
	}
}
