package persistence

import (
	"reflect"
	"testing"
)

func TestEncodeField_StringsVerbatimOthersJSON(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{name: "string", in: "vectors", want: "vectors"},
		{name: "int", in: 7, want: "7"},
		{name: "nil", in: nil, want: "null"},
		{name: "map", in: map[string]any{"created": false}, want: `{"created":false}`},
		{name: "no html escaping", in: []string{"<a&b>"}, want: `["<a&b>"]`},
		{name: "json-like string quoted", in: "null", want: `"null"`},
		{name: "numeric string quoted", in: "1.50", want: `"1.50"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeField(tc.in)
			if err != nil {
				t.Fatalf("EncodeField failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestDecodeField_FallsBackToRawString(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want any
	}{
		{name: "plain string", raw: "linear algebra", want: "linear algebra"},
		{name: "broken json", raw: `{"created": fal`, want: `{"created": fal`},
		{name: "empty", raw: "", want: ""},
		{name: "number", raw: "7", want: float64(7)},
		{name: "object", raw: `{"created":false,"reason":"stub"}`, want: map[string]any{"created": false, "reason": "stub"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeField(tc.raw)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %#v, got %#v", tc.want, got)
			}
		})
	}
}

func TestField_StringsRoundTrip(t *testing.T) {
	for _, in := range []string{"graphs", "null", "1.50", "true", `"quoted"`, "[1,2]", " 7 ", ""} {
		stored, err := EncodeField(in)
		if err != nil {
			t.Fatalf("EncodeField(%q) failed: %v", in, err)
		}
		if got := DecodeField(stored); got != in {
			t.Fatalf("round trip of %q: stored %q, read back %#v", in, stored, got)
		}
	}
}

func TestDecodeValue_RoundTrip(t *testing.T) {
	type sample struct {
		Msg string `json:"msg"`
		N   int    `json:"n"`
	}

	data, err := EncodeValue(sample{Msg: "hi", N: 3})
	if err != nil {
		t.Fatalf("EncodeValue failed: %v", err)
	}
	got, err := DecodeValue[sample](data)
	if err != nil {
		t.Fatalf("DecodeValue failed: %v", err)
	}
	if got.Msg != "hi" || got.N != 3 {
		t.Fatalf("unexpected decoded value: %+v", got)
	}
}
