package sqlbuilder

import "fmt"

// ColumnDef declares one data-driven column for account table creation. Type
// is the abstract command-level type, mapped to a native type on render.
type ColumnDef struct {
	Name string
	Type string
}

// MigrationAction is one schema change inside an updateDataTypes command.
// Add and Update use Name and Type; Rename uses From and To.
type MigrationAction struct {
	Name string
	Type string
	From string
	To   string
}

// MigrationActions groups schema changes by kind. Kinds are always emitted in
// add, drop, rename, update order; within a kind, input order is preserved.
type MigrationActions struct {
	Add    []MigrationAction
	Drop   []MigrationAction
	Rename []MigrationAction
	Update []MigrationAction
}

func (m MigrationActions) empty() bool {
	return len(m.Add) == 0 && len(m.Drop) == 0 && len(m.Rename) == 0 && len(m.Update) == 0
}

// NativeType maps an abstract column type to its native column type. Unknown
// types fall back to text.
func NativeType(abstract string) string {
	switch abstract {
	case "string":
		return "text"
	case "integer":
		return "integer"
	case "boolean":
		return "smallint"
	case "numeric":
		return "numeric"
	case "float":
		return "double precision"
	case "time", "timetz", "timestamp", "timestamptz":
		return abstract
	case "timedelta":
		return "interval"
	default:
		return "text"
	}
}

// castFor returns the ALTER COLUMN target type and USING cast for a type
// update. Only numeric targets get a cast; everything else becomes text with
// no cast expression.
func castFor(abstract, column string) (native, using string) {
	switch NativeType(abstract) {
	case "integer":
		return "integer", fmt.Sprintf(" USING (trim(%s)::integer)", QuoteIdent(column))
	case "smallint":
		return "smallint", fmt.Sprintf(" USING (trim(%s)::smallint)", QuoteIdent(column))
	default:
		return "text", ""
	}
}

// UpdateDataTypes renders the DDL for a schema migration command. An empty
// action set is an error, matching the "empty update query" contract.
func UpdateDataTypes(t Table, actions MigrationActions) (Statement, error) {
	if actions.empty() {
		return Statement{}, badQueryf("empty update query")
	}
	var texts []string
	for _, a := range actions.Add {
		texts = append(texts, fmt.Sprintf(
			"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s;",
			t.Qualified(), QuoteIdent(a.Name), NativeType(a.Type)))
	}
	for _, a := range actions.Drop {
		texts = append(texts, fmt.Sprintf(
			"ALTER TABLE %s DROP COLUMN IF EXISTS %s;",
			t.Qualified(), QuoteIdent(a.Name)))
	}
	for _, a := range actions.Rename {
		texts = append(texts, fmt.Sprintf(
			"ALTER TABLE %s RENAME COLUMN %s TO %s;",
			t.Qualified(), QuoteIdent(a.From), QuoteIdent(a.To)))
	}
	for _, a := range actions.Update {
		native, using := castFor(a.Type, a.Name)
		texts = append(texts, fmt.Sprintf(
			"ALTER TABLE %s ALTER COLUMN %s TYPE %s%s;",
			t.Qualified(), QuoteIdent(a.Name), native, using))
	}
	return Statement{SQL: texts, Args: map[string]any{}}, nil
}

// createTable composes the optional drop preamble, the CREATE, the ownership
// transfer, and any post-DDL (indexes) into one sequential statement list.
func createTable(t Table, columnDefs []string, dropFirst bool, postSQL []string) Statement {
	var texts []string
	if dropFirst {
		texts = append(texts, "DROP TABLE IF EXISTS "+t.Qualified()+";")
	}
	cols := ""
	for i, def := range columnDefs {
		if i > 0 {
			cols += ", "
		}
		cols += def
	}
	texts = append(texts,
		"CREATE TABLE "+t.Qualified()+" ("+cols+");",
		"ALTER TABLE "+t.Qualified()+" OWNER TO "+QuoteIdent(OwnerRole)+";",
	)
	texts = append(texts, postSQL...)
	return Statement{SQL: texts, Args: map[string]any{}}
}

// CreateAccountTable creates a tenant record table: a serial primary key plus
// the data-driven columns from the account's declared data types.
func CreateAccountTable(t Table, cols []ColumnDef, dropFirst bool) Statement {
	defs := []string{QuoteIdent(DefaultPK) + " serial PRIMARY KEY"}
	for _, c := range cols {
		defs = append(defs, QuoteIdent(c.Name)+" "+NativeType(c.Type))
	}
	return createTable(t, defs, dropFirst, nil)
}

func indexDDL(t Table, unique bool, column string) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s);",
		kind, QuoteIdent(t.Name+"_idx_"+column), t.Qualified(), QuoteIdent(column))
}

// CreateChangeRequestTable creates the per-account change-request log table
// with its index set.
func CreateChangeRequestTable(t Table, dropFirst bool) Statement {
	defs := []string{
		QuoteIdent("id") + " serial PRIMARY KEY",
		QuoteIdent("ivd_version") + " int NOT NULL DEFAULT 1",
		QuoteIdent("people_id") + " int NOT NULL",
		QuoteIdent("data") + " text NOT NULL",
		QuoteIdent("created_at") + " timestamp without time zone DEFAULT now()",
		QuoteIdent("tag") + " varchar(255)",
		QuoteIdent("status") + " varchar(255)",
	}
	post := []string{
		indexDDL(t, false, "people_id"),
		indexDDL(t, false, "created_at"),
		indexDDL(t, false, "tag"),
		indexDDL(t, false, "status"),
	}
	return createTable(t, defs, dropFirst, post)
}

// CreateStatusTable creates the per-account status table. people_id is
// unique: one status row per person.
func CreateStatusTable(t Table, dropFirst bool) Statement {
	defs := []string{
		QuoteIdent("id") + " serial PRIMARY KEY",
		QuoteIdent("ivd_version") + " int NOT NULL DEFAULT 1",
		QuoteIdent("people_id") + " int NOT NULL",
		QuoteIdent("data") + " text NOT NULL",
		QuoteIdent("created_at") + " timestamp without time zone DEFAULT now()",
		QuoteIdent("updated_at") + " timestamp without time zone DEFAULT now()",
		QuoteIdent("tag") + " varchar(255)",
		QuoteIdent("status") + " varchar(255)",
	}
	post := []string{
		indexDDL(t, true, "people_id"),
		indexDDL(t, false, "created_at"),
		indexDDL(t, false, "updated_at"),
		indexDDL(t, false, "tag"),
		indexDDL(t, false, "status"),
	}
	return createTable(t, defs, dropFirst, post)
}

// CreateEventTable creates the per-account event log table.
func CreateEventTable(t Table, dropFirst bool) Statement {
	defs := []string{
		QuoteIdent("id") + " serial PRIMARY KEY",
		QuoteIdent("ivd_version") + " int NOT NULL DEFAULT 1",
		QuoteIdent("oid") + " varchar(1024) NOT NULL",
		QuoteIdent("type") + " varchar(255) NOT NULL",
		QuoteIdent("created_at") + " timestamp with time zone DEFAULT now()",
		QuoteIdent("updated_at") + " timestamp with time zone DEFAULT now()",
		QuoteIdent("event_time") + " timestamp with time zone",
		QuoteIdent("event_action") + " text NOT NULL",
		QuoteIdent("tag") + " varchar(255)",
		QuoteIdent("metadata") + " text",
		QuoteIdent("attributes") + " text",
		QuoteIdent("security") + " text",
	}
	post := []string{
		indexDDL(t, false, "oid"),
		indexDDL(t, false, "type"),
		indexDDL(t, false, "created_at"),
		indexDDL(t, false, "updated_at"),
		indexDDL(t, false, "tag"),
	}
	return createTable(t, defs, dropFirst, post)
}
