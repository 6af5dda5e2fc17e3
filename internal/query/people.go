package query

import (
	"context"
	"encoding/json"

	"idvault/internal/config"
	"idvault/internal/docstore"
	"idvault/internal/logging"
)

// peopleCall carries one people command through its handler.
type peopleCall struct {
	ctx     context.Context
	cmd     *Object
	log     *logging.Logger
	account string
}

type peopleVerb func(c *peopleCall, db docExec) string

var peopleVerbs = map[string]peopleVerb{
	"countAllItems":         pplCountAllItems,
	"putItem":               pplPutItem,
	"getItem":               pplGetItem,
	"updateItem":            pplUpdateItem,
	"deleteItem":            pplDeleteItem,
	"createAccountMetadata": pplCreateAccountMetadata,
	"setAccountMetadata":    pplSetAccountMetadata,
	"getAccountMetadata":    pplGetAccountMetadata,
}

func executePeople(ctx context.Context, cfg *config.Config, cmd *Object, log *logging.Logger) string {
	verb, ok := cmd.GetString("query")
	if !ok || cfg.People == nil {
		return errRequest()
	}
	handler, ok := peopleVerbs[verb]
	if !ok {
		return errNotImplemented()
	}
	account, ok := cmd.GetString("account")
	if !ok || account == "" {
		return errRequest()
	}
	db, err := openDoc(ctx, cfg.People)
	if err != nil {
		log.Errorf("open document store: %v", err)
		return errInternalServer()
	}
	return handler(&peopleCall{ctx: ctx, cmd: cmd, log: log, account: account}, db)
}

// itemID renders the command's record id as the document key text.
func (c *peopleCall) itemID() (string, bool) {
	v, ok := c.cmd.Get("ivdId")
	if !ok {
		return "", false
	}
	return asString(v)
}

// itemPayload renders the command's data field as the stored item text.
func (c *peopleCall) itemPayload() (string, bool) {
	v, ok := c.cmd.Get("data")
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(out), true
}

func pplCountAllItems(c *peopleCall, db docExec) string {
	count, err := db.CountAllItems(c.ctx, c.account)
	if err != nil {
		c.log.Errorf("count items: %v", err)
		return errInternalServer()
	}
	return responseOK(map[string]any{"count": count})
}

func pplPutItem(c *peopleCall, db docExec) string {
	id, ok := c.itemID()
	if !ok {
		return errRequest()
	}
	payload, ok := c.itemPayload()
	if !ok {
		return errRequest()
	}
	outcome, err := db.PutItem(c.ctx, c.account, id, payload)
	switch outcome {
	case docstore.OK:
		return responseCreated(map[string]any{"Created": 1})
	case docstore.ConditionalFailed:
		return errItemAlreadyExists()
	default:
		if err != nil {
			c.log.Errorf("put item: %v", err)
		}
		return errInternalServer()
	}
}

func pplGetItem(c *peopleCall, db docExec) string {
	id, ok := c.itemID()
	if !ok {
		return errRequest()
	}
	payload, outcome, err := db.GetItem(c.ctx, c.account, id)
	switch outcome {
	case docstore.OK:
		return responseOK(map[string]any{"Data": payload})
	case docstore.NotFound:
		return errItemNotFound()
	default:
		if err != nil {
			c.log.Errorf("get item: %v", err)
		}
		return errInternalServer()
	}
}

func pplUpdateItem(c *peopleCall, db docExec) string {
	id, ok := c.itemID()
	if !ok {
		return errRequest()
	}
	payload, ok := c.itemPayload()
	if !ok {
		return errRequest()
	}
	outcome, err := db.UpdateItem(c.ctx, c.account, id, payload)
	switch outcome {
	case docstore.OK:
		return responseOK(map[string]any{"Updated": 1})
	case docstore.ConditionalFailed:
		return errItemNotFound()
	default:
		if err != nil {
			c.log.Errorf("update item: %v", err)
		}
		return errInternalServer()
	}
}

func pplDeleteItem(c *peopleCall, db docExec) string {
	id, ok := c.itemID()
	if !ok {
		return errRequest()
	}
	outcome, err := db.DeleteItem(c.ctx, c.account, id)
	switch outcome {
	case docstore.OK:
		return responseOK(map[string]any{"Deleted": 1})
	case docstore.ConditionalFailed:
		return errItemNotFound()
	default:
		if err != nil {
			c.log.Errorf("delete item: %v", err)
		}
		return errInternalServer()
	}
}

func pplCreateAccountMetadata(c *peopleCall, db docExec) string {
	outcome, err := db.CreateAccountMetadata(c.ctx, c.account)
	return metadataCreateEnvelope(c.log, outcome, err)
}

func pplSetAccountMetadata(c *peopleCall, db docExec) string {
	v, ok := c.cmd.Get("metadata")
	if !ok {
		return errRequest()
	}
	payload, ok := asJSONText(v)
	if !ok {
		return errRequest()
	}
	outcome, err := db.SetAccountMetadata(c.ctx, c.account, payload)
	return metadataSetEnvelope(c.log, outcome, err)
}

func pplGetAccountMetadata(c *peopleCall, db docExec) string {
	metadata, outcome, err := db.GetAccountMetadata(c.ctx, c.account)
	return metadataGetEnvelope(c.log, metadata, outcome, err)
}

// asJSONText keeps text values as-is and serializes anything structured.
func asJSONText(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// The metadata envelopes are shared between the business and people
// services; both keep the same payload keys.

func metadataCreateEnvelope(log *logging.Logger, outcome docstore.Outcome, err error) string {
	switch outcome {
	case docstore.OK:
		return responseCreated(map[string]any{"Metadata Created": 1})
	case docstore.ConditionalFailed:
		return errItemAlreadyExists()
	default:
		if err != nil {
			log.Errorf("create metadata: %v", err)
		}
		return errInternalServer()
	}
}

func metadataSetEnvelope(log *logging.Logger, outcome docstore.Outcome, err error) string {
	switch outcome {
	case docstore.OK:
		return responseOK(map[string]any{"Metadata updated": 1})
	case docstore.ConditionalFailed:
		return errItemNotFound()
	default:
		if err != nil {
			log.Errorf("set metadata: %v", err)
		}
		return errInternalServer()
	}
}

func metadataGetEnvelope(log *logging.Logger, metadata string, outcome docstore.Outcome, err error) string {
	switch outcome {
	case docstore.OK:
		return responseOK(map[string]any{"Metadata": metadata})
	case docstore.NotFound:
		return errItemNotFound()
	default:
		if err != nil {
			log.Errorf("get metadata: %v", err)
		}
		return errInternalServer()
	}
}

func metadataDeleteEnvelope(log *logging.Logger, outcome docstore.Outcome, err error) string {
	switch outcome {
	case docstore.OK:
		return responseOK(map[string]any{"Metadata Deleted": 1})
	case docstore.ConditionalFailed, docstore.NotFound:
		return errItemNotFound()
	default:
		if err != nil {
			log.Errorf("delete metadata: %v", err)
		}
		return errInternalServer()
	}
}
