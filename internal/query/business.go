package query

import (
	"context"
	"encoding/json"

	"idvault/internal/config"
	"idvault/internal/logging"
	"idvault/internal/sqlbuilder"
)

// businessCall carries one business command through its handler.
type businessCall struct {
	ctx     context.Context
	cfg     *config.Config
	cmd     *Object
	log     *logging.Logger
	account string
}

type businessSQLVerb func(c *businessCall, db relExec) string
type businessDocVerb func(c *businessCall, db docExec) string

// Account tables and their mirror live in the data schema under the account
// name the caller supplied; change-request, status and event verbs receive
// the derived table name the same way.
func (c *businessCall) table() sqlbuilder.Table {
	return sqlbuilder.TenantTable(c.account, "")
}

func (c *businessCall) mirror() sqlbuilder.Table {
	return sqlbuilder.TenantTable(c.account, sqlbuilder.MirrorSuffix)
}

var businessSQLVerbs = map[string]businessSQLVerb{
	"createAccount":                     bizCreateAccount,
	"dropCreateAccount":                 bizDropCreateAccount,
	"updateDataTypes":                   bizUpdateDataTypes,
	"deleteAccount":                     bizDeleteAccount,
	"countAllItems":                     bizCountAllItems,
	"putItem":                           bizPutItem,
	"putItems":                          bizPutItems,
	"getItem":                           bizGetItem,
	"updateItem":                        bizUpdateItem,
	"deleteItem":                        bizDeleteItem,
	"findItems":                         bizFindItems,
	"findCountAllItems":                 bizFindCountAllItems,
	"recreateAccountPseudonymisation":   bizRecreateMirror,
	"putPseudonymisationItem":           bizPutMirrorItem,
	"deletePseudonymisationItem":        bizDeleteMirrorItem,
	"findCountAllPseudonymisationItems": bizFindCountAllMirrorItems,
	"createAccountChangeRequest":        bizCreateChangeRequest,
	"deleteAccountChangeRequest":        bizDeleteTableVerb,
	"dropCreateAccountChangeRequest":    bizDropCreateChangeRequest,
	"getAllAccountCRs":                  bizGetAllUnlimited,
	"getAccountCR":                      bizGetByID,
	"getAccountCRbyStatus":              bizGetByStatus,
	"addAccountCRbyUserId":              bizAddChangeRequest,
	"updateAccountCR":                   bizUpdateChangeRequest,
	"deleteAccountCR":                   bizDeleteChangeRequestRow,
	"countAllAccountCRItems":            bizCountAllItems,
	"findAccountCRItems":                bizFindItems,
	"findCountAllAccountCRItems":        bizFindCountAllItems,
	"createAccountStatus":               bizCreateStatus,
	"deleteAccountStatus":               bizDeleteTableVerb,
	"dropCreateAccountStatus":           bizDropCreateStatus,
	"getAllAccountSTs":                  bizGetAllUnlimited,
	"getAccountSTbyUserId":              bizGetStatusByUser,
	"getAccountSTbyStatus":              bizGetByStatus,
	"addAccountSTbyUserId":              bizAddStatus,
	"updateAccountSTbyUserId":           bizUpdateStatusByUser,
	"deleteAccountSTbyUserId":           bizDeleteStatusByUser,
	"createAccountEvents":               bizCreateEvents,
	"deleteAccountEvents":               bizDeleteTableVerb,
	"dropCreateAccountEvents":           bizDropCreateEvents,
	"addAccountEvent":                   bizAddEvent,
	"updateAccountEvent":                bizUpdateEvent,
	"deleteAccountEventsCondition":      bizDeleteEventsCondition,
	"deleteAccountEvent":                bizDeleteEventByID,
	"deleteAccountEventsByObjectId":     bizDeleteEventsByObjectID,
	"findCountAllAccountEvents":         bizFindCountAllItems,
}

var businessDocVerbs = map[string]businessDocVerb{
	"createAccountMetadata": bizCreateAccountMetadata,
	"setAccountMetadata":    bizSetAccountMetadata,
	"getAccountMetadata":    bizGetAccountMetadata,
	"deleteAccountMetadata": bizDeleteAccountMetadata,
}

func executeBusiness(ctx context.Context, cfg *config.Config, cmd *Object, log *logging.Logger) string {
	verb, ok := cmd.GetString("query")
	if !ok || cfg.Business == nil {
		return errRequest()
	}
	account, ok := cmd.GetString("account")
	if !ok || account == "" {
		return errRequest()
	}
	call := &businessCall{ctx: ctx, cfg: cfg, cmd: cmd, log: log, account: account}

	if handler, ok := businessDocVerbs[verb]; ok {
		db, err := openDoc(ctx, cfg.Business)
		if err != nil {
			log.Errorf("open document store: %v", err)
			return errInternalServer()
		}
		return handler(call, db)
	}
	if handler, ok := businessSQLVerbs[verb]; ok {
		db, err := openRel(ctx, cfg.Business)
		if err != nil {
			log.Errorf("open relational store: %v", err)
			return responseErrorMessage(errKindQuery, err.Error())
		}
		defer db.Close()
		return handler(call, db)
	}
	return errNotImplemented()
}

// columnDefs reads DataTypes.database as the declared column list for
// account table creation.
func (c *businessCall) columnDefs() []sqlbuilder.ColumnDef {
	dt, ok := c.cmd.GetObject("DataTypes")
	if !ok {
		return nil
	}
	list, ok := dt.GetList("database")
	if !ok {
		return nil
	}
	var defs []sqlbuilder.ColumnDef
	for _, v := range list {
		obj, ok := v.(*Object)
		if !ok {
			continue
		}
		name, _ := obj.GetString("uuid")
		typ, _ := obj.GetString("type")
		if name != "" {
			defs = append(defs, sqlbuilder.ColumnDef{Name: name, Type: typ})
		}
	}
	return defs
}

// projectionColumns reads DataTypes.database as a plain column name list for
// get and find projections.
func (c *businessCall) projectionColumns() []string {
	dt, ok := c.cmd.GetObject("DataTypes")
	if !ok {
		return nil
	}
	list, ok := dt.GetList("database")
	if !ok {
		return nil
	}
	var columns []string
	for _, v := range list {
		if s, ok := v.(string); ok {
			columns = append(columns, s)
		}
	}
	return columns
}

// migrationActions reads DataTypes.database as an action-keyed change set.
func (c *businessCall) migrationActions() sqlbuilder.MigrationActions {
	var actions sqlbuilder.MigrationActions
	dt, ok := c.cmd.GetObject("DataTypes")
	if !ok {
		return actions
	}
	spec, ok := dt.GetObject("database")
	if !ok {
		return actions
	}
	for _, kind := range spec.Keys() {
		list, ok := spec.GetList(kind)
		if !ok {
			continue
		}
		for _, v := range list {
			obj, ok := v.(*Object)
			if !ok {
				continue
			}
			var a sqlbuilder.MigrationAction
			a.Name, _ = obj.GetString("uuid")
			a.Type, _ = obj.GetString("type")
			a.From, _ = obj.GetString("from")
			a.To, _ = obj.GetString("to")
			switch kind {
			case "add":
				actions.Add = append(actions.Add, a)
			case "drop":
				actions.Drop = append(actions.Drop, a)
			case "rename":
				actions.Rename = append(actions.Rename, a)
			case "update":
				actions.Update = append(actions.Update, a)
			}
		}
	}
	return actions
}

// dataFields converts the command's data object into ordered column/value
// pairs.
func (c *businessCall) dataFields() []sqlbuilder.Field {
	data, ok := c.cmd.GetObject("data")
	if !ok {
		return nil
	}
	return objectFields(data)
}

func objectFields(data *Object) []sqlbuilder.Field {
	fields := make([]sqlbuilder.Field, 0, data.Len())
	for _, column := range data.Keys() {
		fields = append(fields, sqlbuilder.Field{Column: column, Value: bindable(data.values[column])})
	}
	return fields
}

// explicitID returns the row id to insert explicitly, only when the command
// carries an integer id.
func (c *businessCall) explicitID() *int64 {
	v, ok := c.cmd.Get("ivdId")
	if !ok {
		return nil
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return &i
		}
	}
	return nil
}

// pkValue returns the bound primary key value from the named command field.
func (c *businessCall) pkValue(field string) (any, bool) {
	v, ok := c.cmd.Get(field)
	if !ok || v == nil {
		return nil, false
	}
	return bindable(v), true
}

type fieldSpec struct{ field, column string }

// collectFields copies the listed command fields, in order, into column
// values. touch appends an updated_at server-time marker.
func (c *businessCall) collectFields(specs []fieldSpec, touch bool) []sqlbuilder.Field {
	var fields []sqlbuilder.Field
	for _, s := range specs {
		if v, ok := c.cmd.Get(s.field); ok {
			fields = append(fields, sqlbuilder.Field{Column: s.column, Value: bindable(v)})
		}
	}
	if touch {
		fields = append(fields, sqlbuilder.Field{Column: "updated_at", Value: "now()"})
	}
	return fields
}

func (c *businessCall) condition() (sqlbuilder.Condition, error) {
	return commandCondition(c.cmd)
}

// statusCondition builds the fixed status equality filter the byStatus verbs
// use.
func (c *businessCall) statusCondition() (sqlbuilder.Condition, bool) {
	status, ok := c.cmd.Get("status")
	if !ok {
		return sqlbuilder.Condition{}, false
	}
	node := &sqlbuilder.FilterNode{
		Op:    "=",
		Left:  &sqlbuilder.FilterOperand{Leaf: "#status"},
		Right: &sqlbuilder.FilterOperand{Leaf: ":status"},
	}
	cond, err := sqlbuilder.CompileFilter(node,
		map[string]string{"#status": "status"},
		map[string]any{":status": bindable(status)})
	if err != nil {
		return sqlbuilder.Condition{}, false
	}
	return cond, true
}

func (c *businessCall) findStatement(t sqlbuilder.Table, cond sqlbuilder.Condition, limitOverride *int) sqlbuilder.Statement {
	return sqlbuilder.FindItems(t, c.projectionColumns(), cond,
		commandOrder(c.cmd), commandPagination(c.cmd), limitOverride)
}

// limitAll disables the default page limit for verbs that list everything
// unless the caller paginates explicitly.
func limitAll() *int {
	zero := 0
	return &zero
}

func (c *businessCall) gateRefused() bool {
	if c.cfg.AllowsDestructive() {
		return false
	}
	c.log.Debugf("destructive verb refused for account %s", c.account)
	return true
}

// mirrored runs the primary statement, then the mirror statement only when
// the primary succeeded, and always wraps the combined outcome as ok.
func (c *businessCall) mirrored(db relExec, primary, mirror sqlbuilder.Statement) string {
	result := execStatement(c.ctx, db, primary)
	if !result.failed() {
		result["QueryPseudonymisation"] = map[string]any(execStatement(c.ctx, db, mirror))
	}
	return responseOK(result)
}

func bizCreateAccount(c *businessCall, db relExec) string {
	cols := c.columnDefs()
	return c.mirrored(db,
		sqlbuilder.CreateAccountTable(c.table(), cols, false),
		sqlbuilder.CreateAccountTable(c.mirror(), cols, false))
}

func bizDropCreateAccount(c *businessCall, db relExec) string {
	if c.gateRefused() {
		return errDisabledForSecurity()
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.CreateAccountTable(c.table(), c.columnDefs(), true)))
}

func bizUpdateDataTypes(c *businessCall, db relExec) string {
	actions := c.migrationActions()
	primary, err := sqlbuilder.UpdateDataTypes(c.table(), actions)
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	mirror, err := sqlbuilder.UpdateDataTypes(c.mirror(), actions)
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return c.mirrored(db, primary, mirror)
}

func bizDeleteAccount(c *businessCall, db relExec) string {
	return c.mirrored(db,
		sqlbuilder.DropTable(c.table()),
		sqlbuilder.DropTable(c.mirror()))
}

func bizCountAllItems(c *businessCall, db relExec) string {
	cond, err := c.condition()
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(fetchScalar(c.ctx, db, sqlbuilder.CountAllItems(c.table(), cond)))
}

func bizPutItem(c *businessCall, db relExec) string {
	stmt, err := sqlbuilder.PutItem(c.table(), "", c.explicitID(), c.dataFields())
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execReturning(c.ctx, db, stmt))
}

func bizPutItems(c *businessCall, db relExec) string {
	list, ok := c.cmd.GetList("data")
	if !ok {
		return errUnsupportedService("put items without data")
	}
	items := make([][]sqlbuilder.Field, 0, len(list))
	for _, v := range list {
		obj, ok := v.(*Object)
		if !ok {
			return errUnsupportedService("put items entry is not an object")
		}
		items = append(items, objectFields(obj))
	}
	stmt, err := sqlbuilder.PutItems(c.table(), "", items)
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execReturning(c.ctx, db, stmt))
}

func bizGetItem(c *businessCall, db relExec) string {
	id, ok := c.pkValue("ivdId")
	if !ok {
		return errRequest()
	}
	return respond(fetchStatement(c.ctx, db, sqlbuilder.GetItem(c.table(), "", id, c.projectionColumns())))
}

func bizUpdateItem(c *businessCall, db relExec) string {
	id, ok := c.pkValue("ivdId")
	if !ok {
		return errRequest()
	}
	stmt, err := sqlbuilder.UpdateItem(c.table(), "", id, c.dataFields())
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execStatement(c.ctx, db, stmt))
}

func bizDeleteItem(c *businessCall, db relExec) string {
	id, ok := c.pkValue("ivdId")
	if !ok {
		return errRequest()
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.DeleteItem(c.table(), "", id)))
}

func bizFindItems(c *businessCall, db relExec) string {
	cond, err := c.condition()
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(fetchStatement(c.ctx, db, c.findStatement(c.table(), cond, nil)))
}

func bizFindCountAllItems(c *businessCall, db relExec) string {
	cond, err := c.condition()
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return countThenFind(c.ctx, db,
		sqlbuilder.CountAllItems(c.table(), cond),
		c.findStatement(c.table(), cond, nil))
}

func bizRecreateMirror(c *businessCall, db relExec) string {
	return respond(execStatement(c.ctx, db, sqlbuilder.CreateAccountTable(c.mirror(), c.columnDefs(), true)))
}

func bizPutMirrorItem(c *businessCall, db relExec) string {
	stmt, err := sqlbuilder.PutItem(c.mirror(), "", c.explicitID(), c.dataFields())
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execReturning(c.ctx, db, stmt))
}

func bizDeleteMirrorItem(c *businessCall, db relExec) string {
	id, ok := c.pkValue("ivdId")
	if !ok {
		return errRequest()
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.DeleteItem(c.mirror(), "", id)))
}

func bizFindCountAllMirrorItems(c *businessCall, db relExec) string {
	cond, err := c.condition()
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return countThenFind(c.ctx, db,
		sqlbuilder.CountAllItems(c.mirror(), cond),
		c.findStatement(c.mirror(), cond, nil))
}

func bizCreateChangeRequest(c *businessCall, db relExec) string {
	return respond(execStatement(c.ctx, db, sqlbuilder.CreateChangeRequestTable(c.table(), false)))
}

func bizDropCreateChangeRequest(c *businessCall, db relExec) string {
	if c.gateRefused() {
		return errDisabledForSecurity()
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.CreateChangeRequestTable(c.table(), true)))
}

// bizDeleteTableVerb backs the delete verbs that drop a derived table
// outright: change requests, statuses and events.
func bizDeleteTableVerb(c *businessCall, db relExec) string {
	return respond(execStatement(c.ctx, db, sqlbuilder.DropTable(c.table())))
}

func bizGetAllUnlimited(c *businessCall, db relExec) string {
	cond, err := c.condition()
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(fetchStatement(c.ctx, db, c.findStatement(c.table(), cond, limitAll())))
}

func bizGetByID(c *businessCall, db relExec) string {
	id, ok := c.pkValue("id")
	if !ok {
		return errRequest()
	}
	return respond(fetchStatement(c.ctx, db, sqlbuilder.GetItem(c.table(), "", id, c.projectionColumns())))
}

func bizGetByStatus(c *businessCall, db relExec) string {
	cond, ok := c.statusCondition()
	if !ok {
		return errRequest()
	}
	return respond(fetchStatement(c.ctx, db, c.findStatement(c.table(), cond, limitAll())))
}

func bizAddChangeRequest(c *businessCall, db relExec) string {
	fields := c.collectFields([]fieldSpec{
		{"userId", "people_id"},
		{"data", "data"},
		{"status", "status"},
		{"tag", "tag"},
	}, false)
	stmt, err := sqlbuilder.PutItem(c.table(), "", nil, fields)
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execReturning(c.ctx, db, stmt))
}

// Change requests are an append-only log; updates may touch only the status
// and tag columns.
func bizUpdateChangeRequest(c *businessCall, db relExec) string {
	id, ok := c.pkValue("id")
	if !ok {
		return errRequest()
	}
	fields := c.collectFields([]fieldSpec{
		{"status", "status"},
		{"tag", "tag"},
	}, false)
	stmt, err := sqlbuilder.UpdateItem(c.table(), "", id, fields)
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execStatement(c.ctx, db, stmt))
}

func bizDeleteChangeRequestRow(c *businessCall, db relExec) string {
	c.log.Debugf("change request row deletion refused")
	return errDisabledForSecurity()
}

func bizCreateStatus(c *businessCall, db relExec) string {
	return respond(execStatement(c.ctx, db, sqlbuilder.CreateStatusTable(c.table(), false)))
}

func bizDropCreateStatus(c *businessCall, db relExec) string {
	if c.gateRefused() {
		return errDisabledForSecurity()
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.CreateStatusTable(c.table(), true)))
}

func bizGetStatusByUser(c *businessCall, db relExec) string {
	id, ok := c.pkValue("userId")
	if !ok {
		return errRequest()
	}
	return respond(fetchStatement(c.ctx, db, sqlbuilder.GetItem(c.table(), "people_id", id, c.projectionColumns())))
}

func bizAddStatus(c *businessCall, db relExec) string {
	fields := c.collectFields([]fieldSpec{
		{"userId", "people_id"},
		{"data", "data"},
		{"status", "status"},
		{"tag", "tag"},
	}, true)
	stmt, err := sqlbuilder.PutItem(c.table(), "", nil, fields)
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execReturning(c.ctx, db, stmt))
}

func bizUpdateStatusByUser(c *businessCall, db relExec) string {
	id, ok := c.pkValue("userId")
	if !ok {
		return errRequest()
	}
	fields := c.collectFields([]fieldSpec{
		{"userId", "people_id"},
		{"data", "data"},
		{"status", "status"},
		{"tag", "tag"},
	}, true)
	stmt, err := sqlbuilder.UpdateItem(c.table(), "people_id", id, fields)
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execStatement(c.ctx, db, stmt))
}

func bizDeleteStatusByUser(c *businessCall, db relExec) string {
	id, ok := c.pkValue("userId")
	if !ok {
		return errRequest()
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.DeleteItem(c.table(), "people_id", id)))
}

func bizCreateEvents(c *businessCall, db relExec) string {
	return respond(execStatement(c.ctx, db, sqlbuilder.CreateEventTable(c.table(), false)))
}

func bizDropCreateEvents(c *businessCall, db relExec) string {
	if c.gateRefused() {
		return errDisabledForSecurity()
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.CreateEventTable(c.table(), true)))
}

func bizAddEvent(c *businessCall, db relExec) string {
	fields := c.collectFields([]fieldSpec{
		{"oid", "oid"},
		{"type", "type"},
		{"event_time", "event_time"},
		{"event_action", "event_action"},
		{"tag", "tag"},
		{"metadata", "metadata"},
		{"attributes", "attributes"},
		{"security", "security"},
	}, false)
	stmt, err := sqlbuilder.PutItem(c.table(), "", nil, fields)
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execReturning(c.ctx, db, stmt))
}

func bizUpdateEvent(c *businessCall, db relExec) string {
	id, ok := c.pkValue("id")
	if !ok {
		return errRequest()
	}
	fields := c.collectFields([]fieldSpec{
		{"event_time", "event_time"},
		{"event_action", "event_action"},
		{"tag", "tag"},
		{"attributes", "attributes"},
		{"security", "security"},
	}, true)
	stmt, err := sqlbuilder.UpdateItem(c.table(), "", id, fields)
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execStatement(c.ctx, db, stmt))
}

func bizDeleteEventsCondition(c *businessCall, db relExec) string {
	cond, err := c.condition()
	if err != nil {
		return errUnsupportedService(err.Error())
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.DeleteItems(c.table(), cond)))
}

func bizDeleteEventByID(c *businessCall, db relExec) string {
	id, ok := c.pkValue("id")
	if !ok {
		return errRequest()
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.DeleteItem(c.table(), "", id)))
}

func bizDeleteEventsByObjectID(c *businessCall, db relExec) string {
	v, ok := c.cmd.Get("oid")
	if !ok {
		return errRequest()
	}
	oid, ok := asString(v)
	if !ok {
		return errRequest()
	}
	return respond(execStatement(c.ctx, db, sqlbuilder.DeleteItem(c.table(), "oid", oid)))
}

// metadataPayload renders the command's metadata field as stored text.
func (c *businessCall) metadataPayload() (string, bool) {
	v, ok := c.cmd.Get("metadata")
	if !ok {
		return "", false
	}
	return asJSONText(v)
}

func bizCreateAccountMetadata(c *businessCall, db docExec) string {
	outcome, err := db.CreateAccountMetadata(c.ctx, c.account)
	return metadataCreateEnvelope(c.log, outcome, err)
}

func bizSetAccountMetadata(c *businessCall, db docExec) string {
	payload, ok := c.metadataPayload()
	if !ok {
		return errRequest()
	}
	outcome, err := db.SetAccountMetadata(c.ctx, c.account, payload)
	return metadataSetEnvelope(c.log, outcome, err)
}

func bizGetAccountMetadata(c *businessCall, db docExec) string {
	metadata, outcome, err := db.GetAccountMetadata(c.ctx, c.account)
	return metadataGetEnvelope(c.log, metadata, outcome, err)
}

func bizDeleteAccountMetadata(c *businessCall, db docExec) string {
	outcome, err := db.DeleteAccountMetadata(c.ctx, c.account)
	return metadataDeleteEnvelope(c.log, outcome, err)
}
