package query

import (
	"context"
	"sync"

	"idvault/internal/config"
	"idvault/internal/docstore"
	"idvault/internal/relstore"
	"idvault/internal/sqlbuilder"
)

// relExec is the slice of the relational store the handlers run against.
type relExec interface {
	Exec(ctx context.Context, stmt sqlbuilder.Statement) (int64, error)
	ExecReturning(ctx context.Context, stmt sqlbuilder.Statement) ([]any, error)
	Fetch(ctx context.Context, stmt sqlbuilder.Statement) ([]map[string]any, error)
	FetchScalar(ctx context.Context, stmt sqlbuilder.Statement) (any, error)
	Close() error
}

// docExec is the slice of the document store the handlers run against.
type docExec interface {
	CountAllItems(ctx context.Context, account string) (int, error)
	PutItem(ctx context.Context, account, id, payload string) (docstore.Outcome, error)
	GetItem(ctx context.Context, account, id string) (string, docstore.Outcome, error)
	UpdateItem(ctx context.Context, account, id, payload string) (docstore.Outcome, error)
	DeleteItem(ctx context.Context, account, id string) (docstore.Outcome, error)
	CreateAccountMetadata(ctx context.Context, account string) (docstore.Outcome, error)
	SetAccountMetadata(ctx context.Context, account, metadata string) (docstore.Outcome, error)
	GetAccountMetadata(ctx context.Context, account string) (string, docstore.Outcome, error)
	DeleteAccountMetadata(ctx context.Context, account string) (docstore.Outcome, error)
}

// Store openers are package vars so handler tests can swap in stubs without
// a network or a database.
var (
	openerMu sync.Mutex

	openRel = func(ctx context.Context, e *config.Endpoint) (relExec, error) {
		return relstore.Open(ctx, relConfig(e))
	}
	openDoc = func(ctx context.Context, e *config.Endpoint) (docExec, error) {
		return docstore.Open(ctx, docConfig(e))
	}
)

func overrideOpenRel(fn func(context.Context, *config.Endpoint) (relExec, error)) func() {
	openerMu.Lock()
	defer openerMu.Unlock()
	prev := openRel
	openRel = fn
	return func() {
		openerMu.Lock()
		defer openerMu.Unlock()
		openRel = prev
	}
}

func overrideOpenDoc(fn func(context.Context, *config.Endpoint) (docExec, error)) func() {
	openerMu.Lock()
	defer openerMu.Unlock()
	prev := openDoc
	openDoc = fn
	return func() {
		openerMu.Lock()
		defer openerMu.Unlock()
		openDoc = prev
	}
}

func relConfig(e *config.Endpoint) relstore.Config {
	driver := e.DBDriver
	if driver == "" {
		driver = relstore.DriverPostgres
	}
	return relstore.Config{
		Driver:   driver,
		Host:     e.DBHost,
		Port:     e.DBPort,
		Name:     e.DBName,
		User:     e.DBUser,
		Password: e.DBPassword,
		Path:     e.DBPath,
	}
}

func docConfig(e *config.Endpoint) docstore.Config {
	return docstore.Config{
		Region:    e.Region,
		AccessKey: e.AccessKey,
		SecretKey: e.SecretKey,
		TableName: e.TableName,
		Endpoint:  e.Endpoint,
	}
}

// sqlResult is the raw outcome of one statement run, before envelope
// wrapping. Success carries Query=1 plus the data; failure carries the
// error text under QueryError.
type sqlResult map[string]any

func sqlOK(data any) sqlResult {
	return sqlResult{"Query": 1, "QueryData": data}
}

func sqlFail(err error) sqlResult {
	return sqlResult{"QueryError": err.Error()}
}

func (r sqlResult) failed() bool {
	_, ok := r["QueryError"]
	return ok
}

// respond renders a raw statement outcome as its terminal envelope.
func respond(r sqlResult) string {
	if r.failed() {
		msg, _ := r["QueryError"].(string)
		return responseErrorMessage(errKindQuery, msg)
	}
	return responseOK(r)
}

func execStatement(ctx context.Context, db relExec, stmt sqlbuilder.Statement) sqlResult {
	affected, err := db.Exec(ctx, stmt)
	if err != nil {
		return sqlFail(err)
	}
	return sqlOK(affected)
}

func execReturning(ctx context.Context, db relExec, stmt sqlbuilder.Statement) sqlResult {
	keys, err := db.ExecReturning(ctx, stmt)
	if err != nil {
		return sqlFail(err)
	}
	return sqlOK(keys)
}

func fetchStatement(ctx context.Context, db relExec, stmt sqlbuilder.Statement) sqlResult {
	rows, err := db.Fetch(ctx, stmt)
	if err != nil {
		return sqlFail(err)
	}
	return sqlOK(rows)
}

func fetchScalar(ctx context.Context, db relExec, stmt sqlbuilder.Statement) sqlResult {
	value, err := db.FetchScalar(ctx, stmt)
	if err != nil {
		return sqlFail(err)
	}
	return sqlOK(value)
}

// countThenFind composes a count statement with a find statement; the count
// rides along as CountAll. Either statement failing collapses the whole
// operation to a query error.
func countThenFind(ctx context.Context, db relExec, count, find sqlbuilder.Statement) string {
	counted := fetchScalar(ctx, db, count)
	if counted.failed() {
		return errQuery()
	}
	found := fetchStatement(ctx, db, find)
	if found.failed() {
		return errQuery()
	}
	found["CountAll"] = counted["QueryData"]
	return responseOK(found)
}
