package persistence

import (
	"bytes"
	"encoding/json"
	"strings"
)

// EncodeValue serializes v as compact JSON without HTML escaping.
func EncodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeValue decodes a JSON document into T.
func DecodeValue[T any](data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// EncodeField converts a context value to its stored form: strings are
// kept verbatim, everything else is JSON. A string that would itself read
// back as JSON ("null", "1.50", "[1]") is stored quoted so DecodeField
// returns it unchanged.
func EncodeField(v any) (string, error) {
	if s, ok := v.(string); ok {
		if t := strings.TrimSpace(s); t == "" || !json.Valid([]byte(t)) {
			return s, nil
		}
	}
	b, err := EncodeValue(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeField reverses EncodeField. A stored value that is not valid JSON
// (a plain string, or malformed legacy data) is returned unchanged.
func DecodeField(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return raw
	}
	return v
}

// EncodeFields applies EncodeField to every entry of fields.
func EncodeFields(fields map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		s, err := EncodeField(v)
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

// DecodeFields applies DecodeField to every entry of raw. It never fails.
func DecodeFields(raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = DecodeField(v)
	}
	return out
}
