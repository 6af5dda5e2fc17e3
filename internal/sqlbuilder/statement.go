// Package sqlbuilder turns declarative command input into parameterized SQL.
// Every schema, table, and column name passes through the identifier-quoting
// path; every literal value is bound through a named placeholder. Builders are
// pure: they never touch a database.
package sqlbuilder

import (
	"fmt"
	"strings"
)

// Schema and role names for tenant data and the cross-tenant relation store.
const (
	DataSchema     = "ivd_data"
	OwnerRole      = "ivd_data"
	RelationSchema = "ivd_relations"
	RelationTable  = "business2people"

	// MirrorSuffix marks a tenant's pseudonymization mirror table.
	MirrorSuffix = ".pn"
)

// DefaultPK is the primary-key column assumed when a command does not name one.
const DefaultPK = "id"

// Statement is one or more SQL texts sharing a single named-parameter map.
// Placeholders appear in the text as @name; the relational adapter rebinds
// them to driver-positional parameters at execution time.
type Statement struct {
	SQL  []string
	Args map[string]any
}

func single(text string, args map[string]any) Statement {
	if args == nil {
		args = map[string]any{}
	}
	return Statement{SQL: []string{text}, Args: args}
}

// Table is a schema-qualified table reference.
type Table struct {
	Schema string
	Name   string
}

// TenantTable derives the table reference for an account id, optionally
// suffixed (mirror tables).
func TenantTable(account, suffix string) Table {
	return Table{Schema: DataSchema, Name: account + suffix}
}

// Qualified renders the reference with both parts identifier-quoted.
func (t Table) Qualified() string {
	return QuoteIdent(t.Schema) + "." + QuoteIdent(t.Name)
}

// QuoteIdent wraps name in double quotes, doubling any embedded quote. This is
// the only path by which a name may reach statement text.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdentList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func placeholder(name string) string { return "@" + name }

func placeholderList(names []string) string {
	marked := make([]string, len(names))
	for i, n := range names {
		marked[i] = placeholder(n)
	}
	return strings.Join(marked, ", ")
}

// ErrBadQuery reports command input that cannot produce a statement.
type ErrBadQuery struct{ Reason string }

func (e ErrBadQuery) Error() string { return "bad query: " + e.Reason }

func badQueryf(format string, args ...any) error {
	return ErrBadQuery{Reason: fmt.Sprintf(format, args...)}
}
