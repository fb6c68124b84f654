package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecodePayloadStructured(t *testing.T) {
	p := DecodePayload(`{"amount": 12.50, "piggy_id": "PIG001", "reached": true, "tags": ["a", null], "meta": {"n": 1}}`)

	amount, ok := p.Amount()
	if !ok || !amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("Amount() = %v, %v", amount, ok)
	}
	if p["piggy_id"].Kind != KindString || p["piggy_id"].Str != "PIG001" {
		t.Errorf("piggy_id = %+v", p["piggy_id"])
	}
	if p["reached"].Kind != KindBool || !p["reached"].Bool {
		t.Errorf("reached = %+v", p["reached"])
	}
	tags := p["tags"]
	if tags.Kind != KindList || len(tags.List) != 2 || tags.List[1].Kind != KindNull {
		t.Errorf("tags = %+v", tags)
	}
	if p["meta"].Kind != KindMap || p["meta"].Map["n"].Kind != KindNumber {
		t.Errorf("meta = %+v", p["meta"])
	}
	if p.IsRaw() {
		t.Error("structured payload reported as raw")
	}
}

func TestDecodePayloadMalformed(t *testing.T) {
	for _, stored := range []string{`{"amount": 1`, `[1, 2]`, `not json`} {
		p := DecodePayload(stored)
		if !p.IsRaw() {
			t.Fatalf("DecodePayload(%q) = %+v, want raw fallback", stored, p)
		}
		if p[RawPayloadKey].Str != stored {
			t.Errorf("raw value = %q, want %q", p[RawPayloadKey].Str, stored)
		}
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal raw payload: %v", err)
		}
		var back map[string]string
		if err := json.Unmarshal(data, &back); err != nil || back["raw"] != stored {
			t.Errorf("marshalled raw payload = %s", data)
		}
	}
}

func TestDecodePayloadEmpty(t *testing.T) {
	if p := DecodePayload("  "); len(p) != 0 {
		t.Errorf("DecodePayload(blank) = %+v, want empty", p)
	}
	if got := (Payload{}).Encode(); got != "{}" {
		t.Errorf("Encode() = %q, want {}", got)
	}
}

func TestPayloadEncodeKeepsNumbersExact(t *testing.T) {
	p := Payload{
		"amount":   Number(decimal.RequireFromString("0.10")),
		"p2p_id":   String("P2P001"),
		"count":    Int(3),
		"reached":  Bool(false),
		"nothing":  Null(),
		"children": List(String("x")),
	}
	back := DecodePayload(p.Encode())
	amount, ok := back.Amount()
	if !ok || amount.String() != "0.1" {
		t.Errorf("amount after round trip = %v", amount)
	}
	if back["count"].Number.IntPart() != 3 {
		t.Errorf("count = %+v", back["count"])
	}
	if len(back.Keys()) != len(p) {
		t.Errorf("Keys() = %v", back.Keys())
	}
}

func TestValueMarshalByKind(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"zero value", Value{}, "null"},
		{"number without trailing zeros", Number(decimal.RequireFromString("12.50")), "12.5"},
		{"raw is a string", Raw("{broken"), `"{broken"`},
		{"nested map", Map(map[string]Value{"ok": Bool(true)}), `{"ok":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.value)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}
