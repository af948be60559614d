package types

import (
	"encoding/json"
	"testing"
)

func TestJSONMarshalInline(t *testing.T) {
	type payload struct {
		Value JSON `json:"value"`
	}

	raw, err := MarshalJSONValue(map[string]any{"theme": "dark"})
	if err != nil {
		t.Fatalf("marshal value: %v", err)
	}
	out, err := json.Marshal(payload{Value: raw})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if string(out) != `{"value":{"theme":"dark"}}` {
		t.Fatalf("unexpected payload %s", out)
	}

	var back payload
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if string(back.Value) != string(raw) {
		t.Fatalf("expected %s, got %s", raw, back.Value)
	}

	empty, err := json.Marshal(payload{})
	if err != nil {
		t.Fatalf("marshal empty: %v", err)
	}
	if string(empty) != `{"value":null}` {
		t.Fatalf("unexpected empty payload %s", empty)
	}
}

func TestJSONScanAndValue(t *testing.T) {
	var j JSON
	if err := j.Scan([]byte(`"dark"`)); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	var s string
	if err := j.Decode(&s); err != nil || s != "dark" {
		t.Fatalf("decode got %q err=%v", s, err)
	}

	if err := j.Scan(`42`); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	v, err := j.Value()
	if err != nil || v != "42" {
		t.Fatalf("value got %v err=%v", v, err)
	}

	if err := j.Scan(nil); err != nil || j != nil {
		t.Fatalf("scan nil should clear, got %v err=%v", j, err)
	}
	if v, _ := j.Value(); v != nil {
		t.Fatalf("empty payload should be NULL, got %v", v)
	}
	if err := j.Scan(3.14); err == nil {
		t.Fatal("expected unsupported scan type to fail")
	}
}
