package sqlbuilder

import (
	"fmt"
	"strconv"
	"strings"
)

// Field is one column/value pair destined for the value-parameter path.
// Fields are ordered so generated statement text is deterministic.
type Field struct {
	Column string
	Value  any
}

// OrderBy is one ORDER BY term. Direction normalizes to ASC unless it is
// exactly DESC (case-insensitive).
type OrderBy struct {
	Column    string
	Direction string
}

// Pagination is the page-window configuration attached to find commands.
// A PageSize of zero disables LIMIT and OFFSET entirely.
type Pagination struct {
	PageSize int
	Page     int
}

// DefaultPageSize applies when a find command carries no pagination config
// and no handler override.
const DefaultPageSize = 2

func normalizeDirection(dir string) string {
	if strings.ToUpper(dir) == "DESC" {
		return "DESC"
	}
	return "ASC"
}

func orderClause(order []OrderBy) string {
	if len(order) == 0 {
		return "ORDER BY " + QuoteIdent(DefaultPK)
	}
	terms := make([]string, len(order))
	for i, o := range order {
		terms[i] = QuoteIdent(o.Column) + " " + normalizeDirection(o.Direction)
	}
	return "ORDER BY " + strings.Join(terms, ", ")
}

// limitOffsetClause renders the LIMIT/OFFSET tail. The handler override wins
// only when no pagination config is present; an effective limit of zero means
// no clause at all.
func limitOffsetClause(page *Pagination, override *int) string {
	limit := DefaultPageSize
	offset := 0
	switch {
	case page != nil:
		if page.PageSize == 0 {
			return ""
		}
		limit = page.PageSize
		offset = page.Page * limit
	case override != nil:
		limit = *override
	}
	if limit == 0 {
		return ""
	}
	clause := "LIMIT " + strconv.Itoa(limit)
	if offset > 0 {
		clause += " OFFSET " + strconv.Itoa(offset)
	}
	return clause
}

func selectColumns(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	return quoteIdentList(columns)
}

// CountAllItems counts rows matching an optional condition.
func CountAllItems(t Table, cond Condition) Statement {
	text := joinSQL("SELECT COUNT(*) FROM "+t.Qualified(), whereClause(cond)) + ";"
	return single(text, cond.Args)
}

// PutItem inserts one row and returns its primary key. When id is non-nil the
// primary-key column is written explicitly.
func PutItem(t Table, pk string, id *int64, fields []Field) (Statement, error) {
	if len(fields) == 0 {
		return Statement{}, badQueryf("put item without data")
	}
	if pk == "" {
		pk = DefaultPK
	}
	args := map[string]any{}
	var columns, markers []string
	if id != nil {
		columns = append(columns, pk)
		markers = append(markers, placeholder("col_id"))
		args["col_id"] = *id
	}
	for i, f := range fields {
		name := fmt.Sprintf("col_%d", i+1)
		columns = append(columns, f.Column)
		markers = append(markers, placeholder(name))
		args[name] = f.Value
	}
	text := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s;",
		t.Qualified(), quoteIdentList(columns), strings.Join(markers, ", "), QuoteIdent(pk))
	return single(text, args), nil
}

// PutItems inserts a batch of rows, one INSERT per item, sharing a parameter
// map. Statements run sequentially; a failure aborts the remainder.
func PutItems(t Table, pk string, items [][]Field) (Statement, error) {
	if len(items) == 0 {
		return Statement{}, badQueryf("put items without data")
	}
	if pk == "" {
		pk = DefaultPK
	}
	args := map[string]any{}
	texts := make([]string, 0, len(items))
	for itemIdx, fields := range items {
		if len(fields) == 0 {
			return Statement{}, badQueryf("put items: item %d has no columns", itemIdx+1)
		}
		var columns, markers []string
		for colIdx, f := range fields {
			name := fmt.Sprintf("col_%d_%d", itemIdx+1, colIdx+1)
			columns = append(columns, f.Column)
			markers = append(markers, placeholder(name))
			args[name] = f.Value
		}
		texts = append(texts, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s;",
			t.Qualified(), quoteIdentList(columns), strings.Join(markers, ", "), QuoteIdent(pk)))
	}
	return Statement{SQL: texts, Args: args}, nil
}

// GetItem selects one row by primary key. An empty columns list selects *.
func GetItem(t Table, pk string, id any, columns []string) Statement {
	if pk == "" {
		pk = DefaultPK
	}
	text := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s;",
		selectColumns(columns), t.Qualified(), QuoteIdent(pk), placeholder("pk"))
	return single(text, map[string]any{"pk": id})
}

// UpdateItem updates the named columns of one row selected by primary key.
func UpdateItem(t Table, pk string, id any, fields []Field) (Statement, error) {
	if len(fields) == 0 {
		return Statement{}, badQueryf("update item without data")
	}
	if pk == "" {
		pk = DefaultPK
	}
	args := map[string]any{"pk": id}
	sets := make([]string, len(fields))
	for i, f := range fields {
		name := fmt.Sprintf("col_%d", i+1)
		sets[i] = QuoteIdent(f.Column) + " = " + placeholder(name)
		args[name] = f.Value
	}
	text := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s;",
		t.Qualified(), strings.Join(sets, ", "), QuoteIdent(pk), placeholder("pk"))
	return single(text, args), nil
}

// DeleteItem removes one row by primary key.
func DeleteItem(t Table, pk string, id any) Statement {
	if pk == "" {
		pk = DefaultPK
	}
	text := fmt.Sprintf("DELETE FROM %s WHERE %s = %s;",
		t.Qualified(), QuoteIdent(pk), placeholder("pk"))
	return single(text, map[string]any{"pk": id})
}

// DeleteItems removes every row matching the condition; an empty condition
// clears the table.
func DeleteItems(t Table, cond Condition) Statement {
	text := joinSQL("DELETE FROM "+t.Qualified(), whereClause(cond)) + ";"
	return single(text, cond.Args)
}

// FindItems selects rows with optional projection, condition, ordering, and
// page window.
func FindItems(t Table, columns []string, cond Condition, order []OrderBy, page *Pagination, limitOverride *int) Statement {
	text := joinSQL(
		"SELECT "+selectColumns(columns)+" FROM "+t.Qualified(),
		whereClause(cond),
		orderClause(order),
		limitOffsetClause(page, limitOverride),
	) + ";"
	return single(text, cond.Args)
}

// DropTable drops the tenant table outright. Not idempotent: dropping a
// missing table is an error the caller surfaces.
func DropTable(t Table) Statement {
	return single("DROP TABLE "+t.Qualified()+";", nil)
}

func joinSQL(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
