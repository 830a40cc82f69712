package search

import (
	"encoding/json"
	"testing"
)

func TestAttributeValueMarshalsBareScalar(t *testing.T) {
	attrs := map[string]AttributeValue{
		"color":    StringValue("red"),
		"weight":   NumberValue(0.25),
		"wireless": BoolValue(true),
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"color":"red","weight":0.25,"wireless":true}`
	if string(raw) != want {
		t.Errorf("marshalled = %s, want %s", raw, want)
	}
}

func TestAttributeValueUnmarshalInfersKind(t *testing.T) {
	var attrs map[string]AttributeValue
	if err := json.Unmarshal([]byte(`{"color":"red","weight":0.25,"wireless":true}`), &attrs); err != nil {
		t.Fatal(err)
	}
	if attrs["color"] != StringValue("red") {
		t.Errorf("color = %+v", attrs["color"])
	}
	if attrs["weight"] != NumberValue(0.25) {
		t.Errorf("weight = %+v", attrs["weight"])
	}
	if attrs["wireless"] != BoolValue(true) {
		t.Errorf("wireless = %+v", attrs["wireless"])
	}
}

func TestAttributeValueRejectsStructured(t *testing.T) {
	var v AttributeValue
	if err := json.Unmarshal([]byte(`{"nested": 1}`), &v); err == nil {
		t.Error("structured attribute values must be rejected")
	}
	if err := json.Unmarshal([]byte(`[1, 2]`), &v); err == nil {
		t.Error("array attribute values must be rejected")
	}
}

func TestAttributeValueDisplay(t *testing.T) {
	tests := []struct {
		value AttributeValue
		want  string
	}{
		{StringValue("Red"), "Red"},
		{NumberValue(0.25), "0.25"},
		{NumberValue(3), "3"},
		{BoolValue(true), "true"},
	}
	for _, tt := range tests {
		if got := tt.value.Display(); got != tt.want {
			t.Errorf("Display(%+v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
