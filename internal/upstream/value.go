package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Kind is the type tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one key of an object, in document order.
type Member struct {
	Key   string
	Value Value
}

// Value is a decoded JSON document that keeps object keys in the order the
// back-end sent them. The zero Value is null.
type Value struct {
	kind    Kind
	b       bool
	num     json.Number
	str     string
	items   []Value
	members []Member
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a number Value.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(n, 'f', -1, 64))}
}

// Array returns an array Value holding items.
func Array(items ...Value) Value { return Value{kind: KindArray, items: items} }

// Object returns an object Value with members in the given order.
func Object(members ...Member) Value { return Value{kind: KindObject, members: members} }

var errTrailingData = errors.New("unexpected data after top-level value")

// Parse decodes data into a Value.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errTrailingData
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return Value{kind: KindBool, b: t}, nil
	case json.Number:
		return Value{kind: KindNumber, num: t}, nil
	case string:
		return Value{kind: KindString, str: t}, nil
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindArray, items: items}, nil
		case '{':
			var members []Member
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("object key is %T", keyTok)
				}
				val, err := parseValue(dec)
				if err != nil {
					return Value{}, err
				}
				members = append(members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindObject, members: members}, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Get returns the first member named key of an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether an object carries key, whatever its value.
func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// Members returns the members of an object, or nil.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.members
}

// Items returns the elements of an array, or nil.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Str returns the string of a string Value.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Bool returns the boolean of a bool Value.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Int returns the number as an int when it is integral ("3" and "3.0" both
// qualify, "3.5" does not).
func (v Value) Int() (int, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	if n, err := v.num.Int64(); err == nil {
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	}
	f, err := v.num.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// Truthy mirrors loose JSON truthiness: null, false, 0, "" and empty
// containers are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		f, err := v.num.Float64()
		return err == nil && f != 0
	case KindString:
		return v.str != ""
	case KindArray:
		return len(v.items) > 0
	case KindObject:
		return len(v.members) > 0
	default:
		return false
	}
}

// Text renders the Value for display: strings verbatim, numbers and
// booleans as literals, null as "" and containers as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return v.num.String()
	case KindString:
		return v.str
	default:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Interface converts the Value to the generic encoding/json representation
// (map[string]any, []any, float64, string, bool, nil).
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		f, _ := v.num.Float64()
		return f
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, len(v.items))
		for i, it := range v.items {
			out[i] = it.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.members))
		for _, m := range v.members {
			if _, dup := out[m.Key]; !dup {
				out[m.Key] = m.Value.Interface()
			}
		}
		return out
	default:
		return nil
	}
}

// Unwrap re-parses a string Value that itself holds a JSON object or array.
// Some back-ends double-encode their payloads. Anything else is returned
// unchanged.
func (v Value) Unwrap() Value {
	if v.kind != KindString {
		return v
	}
	s := strings.TrimSpace(v.str)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return v
	}
	inner, err := Parse([]byte(s))
	if err != nil {
		return v
	}
	return inner
}
