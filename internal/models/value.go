package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValueKind enumerates the shapes a front-matter value can take.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a front-matter value: a string, a number, a boolean, or an
// ordered list of values. The zero Value is the empty string.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []Value
}

func StringValue(s string) Value     { return Value{kind: KindString, str: s} }
func NumberValue(n float64) Value    { return Value{kind: KindNumber, num: n} }
func BoolValue(b bool) Value         { return Value{kind: KindBool, b: b} }
func ListValue(items ...Value) Value { return Value{kind: KindList, list: items} }

// Kind returns the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string payload if v is a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Number returns the numeric payload if v is a number.
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Bool returns the boolean payload if v is a boolean.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// List returns the items if v is a list.
func (v Value) List() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// Strings flattens v into its string forms: a list yields one entry per
// item, any other kind yields a single entry.
func (v Value) Strings() []string {
	if v.kind != KindList {
		return []string{v.String()}
	}
	out := make([]string, 0, len(v.list))
	for _, item := range v.list {
		out = append(out, item.Strings()...)
	}
	return out
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return v.str
	}
}

// Equal reports whether v and o hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	default:
		return v.str == o.str
	}
}

// MarshalJSON encodes the natural JSON form. NaN and infinities have no JSON
// number form and are encoded as their String text.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		items := v.list
		if items == nil {
			items = []Value{}
		}
		return json.Marshal(items)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON accepts the natural JSON form written by MarshalJSON.
// Objects and null are kept as their raw text.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromJSON(raw, data)
	return nil
}

func fromJSON(raw any, text []byte) Value {
	switch x := raw.(type) {
	case string:
		return StringValue(x)
	case float64:
		return NumberValue(x)
	case bool:
		return BoolValue(x)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			b, _ := json.Marshal(item)
			items[i] = fromJSON(item, b)
		}
		return ListValue(items...)
	case nil:
		return StringValue("")
	default:
		return StringValue(string(text))
	}
}
