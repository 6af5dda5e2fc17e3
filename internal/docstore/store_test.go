package docstore

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"idvault/internal/envelope"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeTable is an in-memory table with real conditional-write semantics.
type fakeTable struct {
	items     map[string]map[string]types.AttributeValue
	lastQuery *dynamodb.QueryInput
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: map[string]map[string]types.AttributeValue{}}
}

func itemKey(item map[string]types.AttributeValue) string {
	account := item[attrAccount].(*types.AttributeValueMemberS).Value
	id := item[attrID].(*types.AttributeValueMemberS).Value
	return account + "|" + id
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	key := itemKey(in.Item)
	if in.ConditionExpression != nil && strings.Contains(*in.ConditionExpression, "attribute_not_exists") {
		if _, ok := f.items[key]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	item, ok := f.items[itemKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	key := itemKey(in.Key)
	item, ok := f.items[key]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	item[attrPublic] = in.ExpressionAttributeValues[":public"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeTable) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	key := itemKey(in.Key)
	if _, ok := f.items[key]; !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(f.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = in
	account := in.ExpressionAttributeValues[":account"].(*types.AttributeValueMemberS).Value
	var items []map[string]types.AttributeValue
	for key, item := range f.items {
		if strings.HasPrefix(key, account+"|") {
			items = append(items, item)
		}
	}
	return &dynamodb.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func newTestStore() (*Store, *fakeTable) {
	table := newFakeTable()
	return New(table, "ividentity"), table
}

func TestPutItemConditionalIdempotence(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	outcome, err := store.PutItem(ctx, "acct", "42", `{"name":"ada"}`)
	if err != nil || outcome != OK {
		t.Fatalf("first put: outcome=%v err=%v", outcome, err)
	}
	outcome, _ = store.PutItem(ctx, "acct", "42", `{"name":"ada"}`)
	if outcome != ConditionalFailed {
		t.Fatalf("second put outcome = %v, want ConditionalFailed", outcome)
	}
}

func TestPutGetRoundTripThroughEnvelope(t *testing.T) {
	ctx := context.Background()
	store, table := newTestStore()
	payload := `{"name":"żółć"}`
	if outcome, err := store.PutItem(ctx, "acct", "1", payload); outcome != OK {
		t.Fatalf("put: outcome=%v err=%v", outcome, err)
	}
	stored, ok := itemBody(table.items["acct|1"])
	if !ok {
		t.Fatal("stored item has no body")
	}
	if !strings.HasPrefix(stored, "IVD_F"+envelope.Separator) {
		t.Fatalf("stored body not enveloped: %q", stored)
	}
	got, outcome, err := store.GetItem(ctx, "acct", "1")
	if err != nil || outcome != OK {
		t.Fatalf("get: outcome=%v err=%v", outcome, err)
	}
	if got != payload {
		t.Fatalf("round trip = %q, want %q", got, payload)
	}
}

func TestGetItemMissing(t *testing.T) {
	store, _ := newTestStore()
	_, outcome, err := store.GetItem(context.Background(), "acct", "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if outcome != NotFound {
		t.Fatalf("outcome = %v, want NotFound", outcome)
	}
}

func TestUpdateAndDeleteRequireExistence(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	if outcome, _ := store.UpdateItem(ctx, "acct", "1", "{}"); outcome != ConditionalFailed {
		t.Fatalf("update absent outcome = %v, want ConditionalFailed", outcome)
	}
	if outcome, _ := store.DeleteItem(ctx, "acct", "1"); outcome != ConditionalFailed {
		t.Fatalf("delete absent outcome = %v, want ConditionalFailed", outcome)
	}
	if outcome, err := store.PutItem(ctx, "acct", "1", "{}"); outcome != OK {
		t.Fatalf("put: outcome=%v err=%v", outcome, err)
	}
	if outcome, err := store.UpdateItem(ctx, "acct", "1", `{"v":2}`); outcome != OK {
		t.Fatalf("update: outcome=%v err=%v", outcome, err)
	}
	got, outcome, err := store.GetItem(ctx, "acct", "1")
	if err != nil || outcome != OK {
		t.Fatalf("get: outcome=%v err=%v", outcome, err)
	}
	if got != `{"v":2}` {
		t.Fatalf("updated body = %q", got)
	}
	if outcome, err := store.DeleteItem(ctx, "acct", "1"); outcome != OK {
		t.Fatalf("delete: outcome=%v err=%v", outcome, err)
	}
}

func TestCreateAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	created, err := store.CreateAccount(ctx, "acct")
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	metadata, outcome, err := store.GetAccountMetadata(ctx, "acct")
	if err != nil || outcome != OK {
		t.Fatalf("metadata: outcome=%v err=%v", outcome, err)
	}
	if metadata != "{}" {
		t.Fatalf("metadata = %q, want {}", metadata)
	}
	created, err = store.CreateAccount(ctx, "acct")
	if err != nil || created {
		t.Fatalf("recreate existing: created=%v err=%v", created, err)
	}
}

func TestDeleteAccountRelocatesMetadata(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	if _, err := store.CreateAccount(ctx, "acct"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if outcome, err := store.SetAccountMetadata(ctx, "acct", `{"owner":"ada"}`); outcome != OK {
		t.Fatalf("set metadata: outcome=%v err=%v", outcome, err)
	}
	deleted, err := store.DeleteAccount(ctx, "acct")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	if _, outcome, _ := store.GetAccountMetadata(ctx, "acct"); outcome != NotFound {
		t.Fatalf("metadata outcome after delete = %v, want NotFound", outcome)
	}
	marker, outcome, err := store.GetItem(ctx, "acct", DeleteMarkerID)
	if err != nil || outcome != OK {
		t.Fatalf("marker: outcome=%v err=%v", outcome, err)
	}
	if marker != `{"owner":"ada"}` {
		t.Fatalf("marker body = %q", marker)
	}
	created, err := store.CreateAccount(ctx, "acct")
	if err != nil || created {
		t.Fatalf("create after delete: created=%v err=%v, want refusal", created, err)
	}
}

func TestFindItemsFiltersReservedIds(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	if _, err := store.CreateAccount(ctx, "acct"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if outcome, err := store.PutItem(ctx, "acct", "7", `{"name":"ada"}`); outcome != OK {
		t.Fatalf("put: outcome=%v err=%v", outcome, err)
	}
	text, err := store.FindItems(ctx, "acct", nil)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	var result FindResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Count != 1 || len(result.Items) != 1 {
		t.Fatalf("result = %+v, want one visible item", result)
	}
	entry, ok := result.Items[0].(map[string]any)
	if !ok {
		t.Fatalf("item shape = %T", result.Items[0])
	}
	body, ok := entry["7"].(string)
	if !ok {
		t.Fatalf("item entry = %v", entry)
	}
	if !strings.HasPrefix(body, "IVD_F"+envelope.Separator) {
		t.Fatalf("find body must stay enveloped, got %q", body)
	}
}

func TestFindItemsIDProjection(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore()
	if outcome, err := store.PutItem(ctx, "acct", "9", "{}"); outcome != OK {
		t.Fatalf("put: outcome=%v err=%v", outcome, err)
	}
	text, err := store.FindItems(ctx, "acct", &FindQuery{Projection: "ivid"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	var result FindResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0] != "9" {
		t.Fatalf("id projection items = %v", result.Items)
	}
}

func TestFindQuerySentinelSubstitution(t *testing.T) {
	ctx := context.Background()
	store, table := newTestStore()
	_, err := store.FindItems(ctx, "acct", &FindQuery{
		Filter:     "contains(#iv#, :needle)",
		Projection: "custom, #iv#",
		Values:     map[string]string{":needle": "ada"},
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got := *table.lastQuery.FilterExpression; got != "contains(ivpublic.ivitem, :needle)" {
		t.Fatalf("filter = %q", got)
	}
	if got := *table.lastQuery.ProjectionExpression; got != "custom, ivpublic.ivitem" {
		t.Fatalf("projection = %q", got)
	}
	if _, ok := table.lastQuery.ExpressionAttributeValues[":needle"]; !ok {
		t.Fatal("caller values not merged into query")
	}
}

func TestCountItemsSelectsCount(t *testing.T) {
	ctx := context.Background()
	store, table := newTestTableWithItems(t)
	count, err := store.CountAllItems(ctx, "acct")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if table.lastQuery.Select != types.SelectCount {
		t.Fatalf("count query Select = %v", table.lastQuery.Select)
	}
	if table.lastQuery.ProjectionExpression != nil {
		t.Fatal("count query must not carry a projection")
	}
}

func newTestTableWithItems(t *testing.T) (*Store, *fakeTable) {
	t.Helper()
	store, table := newTestStore()
	ctx := context.Background()
	for _, id := range []string{"1", "2"} {
		if outcome, err := store.PutItem(ctx, "acct", id, "{}"); outcome != OK {
			t.Fatalf("seed %s: outcome=%v err=%v", id, outcome, err)
		}
	}
	return store, table
}
