package host

import (
	"math"
	"testing"
)

func TestValue(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		kind  ValueKind
		str   string
	}{
		{"long", Long(42), KindLong, "long(42)"},
		{"min long", Long(math.MinInt64), KindLong, "long(-9223372036854775808)"},
		{"ref", Object(7), KindRef, "ref(7)"},
		{"null", Object(Null), KindRef, "null"},
		{"zero value", Value{}, 0, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.value.Kind, tt.kind)
			}
			if got := tt.value.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
		})
	}
}

func TestRef_IsNull(t *testing.T) {
	if !Null.IsNull() {
		t.Error("Null should be null")
	}
	if Ref(1).IsNull() {
		t.Error("Ref(1) should not be null")
	}
}

func TestValueKind_String(t *testing.T) {
	if KindLong.String() != "long" || KindRef.String() != "ref" {
		t.Error("unexpected kind names")
	}
	if ValueKind(9).String() != "kind(9)" {
		t.Errorf("got %q", ValueKind(9).String())
	}
}
