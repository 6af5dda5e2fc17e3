package sqlbuilder

import (
	"reflect"
	"testing"
)

func TestQuoteIdent(t *testing.T) {
	cases := []struct{ in, want string }{
		{"id", `"id"`},
		{"acct-7.pn", `"acct-7.pn"`},
		{`evil"name`, `"evil""name"`},
	}
	for _, c := range cases {
		if got := QuoteIdent(c.in); got != c.want {
			t.Fatalf("QuoteIdent(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTenantTableQualified(t *testing.T) {
	got := TenantTable("acct-7", "").Qualified()
	if want := `"ivd_data"."acct-7"`; got != want {
		t.Fatalf("Qualified = %q, want %q", got, want)
	}
	got = TenantTable("acct-7", MirrorSuffix).Qualified()
	if want := `"ivd_data"."acct-7.pn"`; got != want {
		t.Fatalf("mirror Qualified = %q, want %q", got, want)
	}
}

func TestLimitOffsetClause(t *testing.T) {
	override := 50
	zero := 0
	cases := []struct {
		name     string
		page     *Pagination
		override *int
		want     string
	}{
		{"default when absent", nil, nil, "LIMIT 2"},
		{"page window", &Pagination{PageSize: 10, Page: 3}, nil, "LIMIT 10 OFFSET 30"},
		{"first page has no offset", &Pagination{PageSize: 10, Page: 0}, nil, "LIMIT 10"},
		{"zero page size disables clause", &Pagination{PageSize: 0, Page: 5}, nil, ""},
		{"override without page", nil, &override, "LIMIT 50"},
		{"zero override disables clause", nil, &zero, ""},
		{"page wins over override", &Pagination{PageSize: 4, Page: 1}, &override, "LIMIT 4 OFFSET 4"},
	}
	for _, c := range cases {
		if got := limitOffsetClause(c.page, c.override); got != c.want {
			t.Fatalf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}

func TestOrderClause(t *testing.T) {
	if got := orderClause(nil); got != `ORDER BY "id"` {
		t.Fatalf("default order = %q", got)
	}
	got := orderClause([]OrderBy{
		{Column: "created_at", Direction: "desc"},
		{Column: "tag", Direction: "sideways"},
	})
	if want := `ORDER BY "created_at" DESC, "tag" ASC`; got != want {
		t.Fatalf("orderClause = %q, want %q", got, want)
	}
}

func TestCountAllItems(t *testing.T) {
	stmt := CountAllItems(TenantTable("acct", ""), Condition{})
	if want := `SELECT COUNT(*) FROM "ivd_data"."acct";`; stmt.SQL[0] != want {
		t.Fatalf("sql = %q, want %q", stmt.SQL[0], want)
	}
	cond := Condition{SQL: `"tag" = @fv_tag`, Args: map[string]any{"fv_tag": "x"}}
	stmt = CountAllItems(TenantTable("acct", ""), cond)
	if want := `SELECT COUNT(*) FROM "ivd_data"."acct" WHERE ("tag" = @fv_tag);`; stmt.SQL[0] != want {
		t.Fatalf("filtered sql = %q, want %q", stmt.SQL[0], want)
	}
}

func TestPutItem(t *testing.T) {
	fields := []Field{{Column: "name", Value: "ada"}, {Column: "tag", Value: "t1"}}
	stmt, err := PutItem(TenantTable("acct", ""), "", nil, fields)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	want := `INSERT INTO "ivd_data"."acct" ("name", "tag") VALUES (@col_1, @col_2) RETURNING "id";`
	if stmt.SQL[0] != want {
		t.Fatalf("sql = %q, want %q", stmt.SQL[0], want)
	}
	wantArgs := map[string]any{"col_1": "ada", "col_2": "t1"}
	if !reflect.DeepEqual(stmt.Args, wantArgs) {
		t.Fatalf("args = %v, want %v", stmt.Args, wantArgs)
	}
}

func TestPutItemExplicitID(t *testing.T) {
	id := int64(9)
	stmt, err := PutItem(TenantTable("acct", MirrorSuffix), "id", &id, []Field{{Column: "name", Value: "ada"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	want := `INSERT INTO "ivd_data"."acct.pn" ("id", "name") VALUES (@col_id, @col_1) RETURNING "id";`
	if stmt.SQL[0] != want {
		t.Fatalf("sql = %q, want %q", stmt.SQL[0], want)
	}
	if stmt.Args["col_id"] != int64(9) {
		t.Fatalf("col_id = %v, want 9", stmt.Args["col_id"])
	}
}

func TestPutItemWithoutDataFails(t *testing.T) {
	if _, err := PutItem(TenantTable("acct", ""), "", nil, nil); err == nil {
		t.Fatal("expected error for empty field list")
	}
}

func TestPutItems(t *testing.T) {
	stmt, err := PutItems(TenantTable("acct", ""), "", [][]Field{
		{{Column: "name", Value: "ada"}},
		{{Column: "name", Value: "bob"}, {Column: "tag", Value: "t"}},
	})
	if err != nil {
		t.Fatalf("put items: %v", err)
	}
	if len(stmt.SQL) != 2 {
		t.Fatalf("statements = %d, want 2", len(stmt.SQL))
	}
	if want := `INSERT INTO "ivd_data"."acct" ("name") VALUES (@col_1_1) RETURNING "id";`; stmt.SQL[0] != want {
		t.Fatalf("first sql = %q, want %q", stmt.SQL[0], want)
	}
	if want := `INSERT INTO "ivd_data"."acct" ("name", "tag") VALUES (@col_2_1, @col_2_2) RETURNING "id";`; stmt.SQL[1] != want {
		t.Fatalf("second sql = %q, want %q", stmt.SQL[1], want)
	}
	if stmt.Args["col_2_2"] != "t" {
		t.Fatalf("col_2_2 = %v, want t", stmt.Args["col_2_2"])
	}
}

func TestGetItem(t *testing.T) {
	stmt := GetItem(TenantTable("acct", ""), "", 7, nil)
	if want := `SELECT * FROM "ivd_data"."acct" WHERE "id" = @pk;`; stmt.SQL[0] != want {
		t.Fatalf("sql = %q, want %q", stmt.SQL[0], want)
	}
	stmt = GetItem(TenantTable("acct", ""), "", 7, []string{"name", "tag"})
	if want := `SELECT "name", "tag" FROM "ivd_data"."acct" WHERE "id" = @pk;`; stmt.SQL[0] != want {
		t.Fatalf("projected sql = %q, want %q", stmt.SQL[0], want)
	}
	if stmt.Args["pk"] != 7 {
		t.Fatalf("pk arg = %v, want 7", stmt.Args["pk"])
	}
}

func TestUpdateItem(t *testing.T) {
	stmt, err := UpdateItem(TenantTable("acct", ""), "", 7, []Field{
		{Column: "name", Value: "ada"}, {Column: "tag", Value: "t"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := `UPDATE "ivd_data"."acct" SET "name" = @col_1, "tag" = @col_2 WHERE "id" = @pk;`
	if stmt.SQL[0] != want {
		t.Fatalf("sql = %q, want %q", stmt.SQL[0], want)
	}
	if _, err := UpdateItem(TenantTable("acct", ""), "", 7, nil); err == nil {
		t.Fatal("expected error for empty update")
	}
}

func TestDeleteItem(t *testing.T) {
	stmt := DeleteItem(TenantTable("acct", ""), "", 7)
	if want := `DELETE FROM "ivd_data"."acct" WHERE "id" = @pk;`; stmt.SQL[0] != want {
		t.Fatalf("sql = %q, want %q", stmt.SQL[0], want)
	}
}

func TestFindItems(t *testing.T) {
	cond := Condition{SQL: `"tag" = @fv_tag`, Args: map[string]any{"fv_tag": "x"}}
	stmt := FindItems(TenantTable("acct", ""), []string{"id", "name"}, cond,
		[]OrderBy{{Column: "name", Direction: "DESC"}}, &Pagination{PageSize: 10, Page: 2}, nil)
	want := `SELECT "id", "name" FROM "ivd_data"."acct" WHERE ("tag" = @fv_tag) ORDER BY "name" DESC LIMIT 10 OFFSET 20;`
	if stmt.SQL[0] != want {
		t.Fatalf("sql = %q, want %q", stmt.SQL[0], want)
	}
}

func TestFindItemsDefaults(t *testing.T) {
	stmt := FindItems(TenantTable("acct", ""), nil, Condition{}, nil, nil, nil)
	want := `SELECT * FROM "ivd_data"."acct" ORDER BY "id" LIMIT 2;`
	if stmt.SQL[0] != want {
		t.Fatalf("sql = %q, want %q", stmt.SQL[0], want)
	}
}

func TestDropTable(t *testing.T) {
	stmt := DropTable(TenantTable("acct", ""))
	if want := `DROP TABLE "ivd_data"."acct";`; stmt.SQL[0] != want {
		t.Fatalf("sql = %q, want %q", stmt.SQL[0], want)
	}
}
