// Package query routes decoded commands to the business, people and
// relation handlers and renders every outcome as a response envelope.
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"idvault/internal/sqlbuilder"
)

// Object is a JSON object with its key order preserved. Column order in
// generated statements follows the order the caller wrote the fields in, so
// a plain map is not enough here. Numbers stay json.Number end to end to
// avoid float rounding of decimal values.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{values: map[string]any{}}
}

// Set stores a value under key, appending the key on first write.
func (o *Object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string { return o.keys }

// Len returns the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// GetString returns the value under key when it is a JSON string.
func (o *Object) GetString(key string) (string, bool) {
	s, ok := o.values[key].(string)
	return s, ok
}

// GetObject returns the value under key when it is a nested object.
func (o *Object) GetObject(key string) (*Object, bool) {
	obj, ok := o.values[key].(*Object)
	return obj, ok
}

// GetList returns the value under key when it is an array.
func (o *Object) GetList(key string) ([]any, bool) {
	list, ok := o.values[key].([]any)
	return list, ok
}

// MarshalJSON renders the object with its original key order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(o.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParseCommand decodes a command document. The root must be an object;
// nested objects keep key order and numbers keep their exact text.
func ParseCommand(raw []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("decode command: root is not an object")
	}
	obj, err := decodeObject(dec)
	if err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	return obj, nil
}

func decodeObject(dec *json.Decoder) (*Object, error) {
	obj := NewObject()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key %v is not a string", keyTok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	list := []any{}
	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		list = append(list, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return list, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); ok {
		switch delim {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("unexpected token %q", delim)
	}
	return tok, nil
}

// asString renders scalar command values as text.
func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// asInt converts an integer-valued number, or its decimal text form.
func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
	case string:
		if i, err := strconv.ParseInt(t, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// truthy applies loose-boolean semantics to command fields: absent, null,
// false, zero, empty text and empty containers all read as false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case []any:
		return len(t) > 0
	case *Object:
		return t.Len() > 0
	}
	return true
}

// bindable converts a command value into a form the SQL drivers accept.
// Nested structures serialize to their JSON text.
func bindable(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case *Object, []any:
		text, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(text)
	}
	return v
}

// commandPagination extracts the page window. A present but falsy PageSize
// explicitly disables paging; an absent config falls back to the default
// page size downstream.
func commandPagination(cmd *Object) *sqlbuilder.Pagination {
	cfg, ok := cmd.GetObject("PaginationConfig")
	if !ok || cfg.Len() == 0 {
		return nil
	}
	size, ok := cfg.Get("PageSize")
	if !ok {
		return nil
	}
	if !truthy(size) {
		return &sqlbuilder.Pagination{}
	}
	limit, ok := asInt(size)
	if !ok {
		return nil
	}
	page := 0
	if p, ok := cfg.Get("Page"); ok && truthy(p) {
		if n, ok := asInt(p); ok {
			page = int(n)
		}
	}
	return &sqlbuilder.Pagination{PageSize: int(limit), Page: page}
}

// commandOrder extracts ORDER BY terms from OrderByDataTypes, keeping the
// column order the caller wrote.
func commandOrder(cmd *Object) []sqlbuilder.OrderBy {
	spec, ok := cmd.GetObject("OrderByDataTypes")
	if !ok {
		return nil
	}
	var order []sqlbuilder.OrderBy
	for _, column := range spec.Keys() {
		dir, _ := asString(spec.values[column])
		order = append(order, sqlbuilder.OrderBy{Column: column, Direction: dir})
	}
	return order
}

// decodeFilterNode converts a declarative {o,l,r,b} document into a filter
// tree.
func decodeFilterNode(v any) (*sqlbuilder.FilterNode, error) {
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("filter node is not an object")
	}
	node := &sqlbuilder.FilterNode{}
	if op, ok := obj.GetString("o"); ok {
		node.Op = op
	}
	if left, ok := obj.Get("l"); ok {
		operand, err := decodeFilterOperand(left)
		if err != nil {
			return nil, err
		}
		node.Left = operand
	}
	if right, ok := obj.Get("r"); ok {
		operand, err := decodeFilterOperand(right)
		if err != nil {
			return nil, err
		}
		node.Right = operand
	}
	if b, ok := obj.Get("b"); ok {
		node.Bracket = truthy(b)
	}
	return node, nil
}

func decodeFilterOperand(v any) (*sqlbuilder.FilterOperand, error) {
	switch t := v.(type) {
	case string:
		return &sqlbuilder.FilterOperand{Leaf: t}, nil
	case *Object:
		node, err := decodeFilterNode(t)
		if err != nil {
			return nil, err
		}
		return &sqlbuilder.FilterOperand{Node: node}, nil
	}
	return nil, fmt.Errorf("filter operand is neither alias text nor a nested node")
}

// commandCondition compiles the command's filter expression together with
// its attribute alias maps.
func commandCondition(cmd *Object) (sqlbuilder.Condition, error) {
	raw, ok := cmd.Get("FilterExpression")
	if !ok || !truthy(raw) {
		return sqlbuilder.Condition{}, nil
	}
	node, err := decodeFilterNode(raw)
	if err != nil {
		return sqlbuilder.Condition{}, err
	}
	return sqlbuilder.CompileFilter(node, commandNames(cmd), commandValues(cmd))
}

func commandNames(cmd *Object) map[string]string {
	names := map[string]string{}
	if m, ok := cmd.GetObject("ExpressionAttributeNames"); ok {
		for _, key := range m.Keys() {
			if s, ok := asString(m.values[key]); ok {
				names[key] = s
			}
		}
	}
	return names
}

func commandValues(cmd *Object) map[string]any {
	values := map[string]any{}
	if m, ok := cmd.GetObject("ExpressionAttributeValues"); ok {
		for _, key := range m.Keys() {
			values[key] = bindable(m.values[key])
		}
	}
	return values
}
