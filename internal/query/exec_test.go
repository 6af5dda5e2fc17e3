package query

import (
	"context"
	"encoding/json"
	"testing"

	"idvault/internal/config"
	"idvault/internal/docstore"
	"idvault/internal/sqlbuilder"
)

// fakeRel records every statement and answers with canned results.
type fakeRel struct {
	stmts []sqlbuilder.Statement

	affected     int64
	execErr      error
	returning    []any
	returningErr error
	rows         []map[string]any
	fetchErr     error
	scalar       any
	scalarErr    error

	closed bool
}

func (f *fakeRel) Exec(_ context.Context, stmt sqlbuilder.Statement) (int64, error) {
	f.stmts = append(f.stmts, stmt)
	return f.affected, f.execErr
}

func (f *fakeRel) ExecReturning(_ context.Context, stmt sqlbuilder.Statement) ([]any, error) {
	f.stmts = append(f.stmts, stmt)
	return f.returning, f.returningErr
}

func (f *fakeRel) Fetch(_ context.Context, stmt sqlbuilder.Statement) ([]map[string]any, error) {
	f.stmts = append(f.stmts, stmt)
	return f.rows, f.fetchErr
}

func (f *fakeRel) FetchScalar(_ context.Context, stmt sqlbuilder.Statement) (any, error) {
	f.stmts = append(f.stmts, stmt)
	return f.scalar, f.scalarErr
}

func (f *fakeRel) Close() error {
	f.closed = true
	return nil
}

// fakeDoc records document-store calls and answers with canned outcomes.
type fakeDoc struct {
	calls []string

	count    int
	countErr error

	putOutcome    docstore.Outcome
	getPayload    string
	getOutcome    docstore.Outcome
	updateOutcome docstore.Outcome
	deleteOutcome docstore.Outcome

	metaCreateOutcome docstore.Outcome
	metaSetOutcome    docstore.Outcome
	metaPayload       string
	metaGetOutcome    docstore.Outcome
	metaDeleteOutcome docstore.Outcome

	lastAccount string
	lastID      string
	lastPayload string
}

func (f *fakeDoc) CountAllItems(_ context.Context, account string) (int, error) {
	f.calls = append(f.calls, "count")
	f.lastAccount = account
	return f.count, f.countErr
}

func (f *fakeDoc) PutItem(_ context.Context, account, id, payload string) (docstore.Outcome, error) {
	f.calls = append(f.calls, "put")
	f.lastAccount, f.lastID, f.lastPayload = account, id, payload
	return f.putOutcome, nil
}

func (f *fakeDoc) GetItem(_ context.Context, account, id string) (string, docstore.Outcome, error) {
	f.calls = append(f.calls, "get")
	f.lastAccount, f.lastID = account, id
	return f.getPayload, f.getOutcome, nil
}

func (f *fakeDoc) UpdateItem(_ context.Context, account, id, payload string) (docstore.Outcome, error) {
	f.calls = append(f.calls, "update")
	f.lastAccount, f.lastID, f.lastPayload = account, id, payload
	return f.updateOutcome, nil
}

func (f *fakeDoc) DeleteItem(_ context.Context, account, id string) (docstore.Outcome, error) {
	f.calls = append(f.calls, "delete")
	f.lastAccount, f.lastID = account, id
	return f.deleteOutcome, nil
}

func (f *fakeDoc) CreateAccountMetadata(_ context.Context, account string) (docstore.Outcome, error) {
	f.calls = append(f.calls, "meta-create")
	f.lastAccount = account
	return f.metaCreateOutcome, nil
}

func (f *fakeDoc) SetAccountMetadata(_ context.Context, account, metadata string) (docstore.Outcome, error) {
	f.calls = append(f.calls, "meta-set")
	f.lastAccount, f.lastPayload = account, metadata
	return f.metaSetOutcome, nil
}

func (f *fakeDoc) GetAccountMetadata(_ context.Context, account string) (string, docstore.Outcome, error) {
	f.calls = append(f.calls, "meta-get")
	f.lastAccount = account
	return f.metaPayload, f.metaGetOutcome, nil
}

func (f *fakeDoc) DeleteAccountMetadata(_ context.Context, account string) (docstore.Outcome, error) {
	f.calls = append(f.calls, "meta-delete")
	f.lastAccount = account
	return f.metaDeleteOutcome, nil
}

func testEndpoint() *config.Endpoint {
	return &config.Endpoint{
		DBHost: "db.local", DBPort: "5432", DBName: "bank",
		DBUser: "svc", DBPassword: "secret",
		Region: "eu-west-1", TableName: "records",
	}
}

func testConfig() *config.Config {
	ep := testEndpoint()
	return &config.Config{
		ConnectionType: config.ConnectionTypeV1,
		Business:       ep,
		BusinessData:   &config.SecurityData{},
		People:         ep,
		Relation:       ep,
	}
}

func useRel(t *testing.T, rel *fakeRel) {
	t.Helper()
	restore := overrideOpenRel(func(context.Context, *config.Endpoint) (relExec, error) {
		return rel, nil
	})
	t.Cleanup(restore)
}

func useDoc(t *testing.T, doc *fakeDoc) {
	t.Helper()
	restore := overrideOpenDoc(func(context.Context, *config.Endpoint) (docExec, error) {
		return doc, nil
	})
	t.Cleanup(restore)
}

func decodeEnvelope(t *testing.T, response string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(response), &doc); err != nil {
		t.Fatalf("response %q is not valid JSON: %v", response, err)
	}
	return doc
}

func wantError(t *testing.T, response, kind string) {
	t.Helper()
	doc := decodeEnvelope(t, response)
	if doc["status"] != "error" || doc["error"] != kind {
		t.Fatalf("response = %s, want error kind %q", response, kind)
	}
}

func runCommand(t *testing.T, cfg *config.Config, raw string) string {
	t.Helper()
	return Execute(context.Background(), cfg, nil, raw)
}
