package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidCRS, "frame %q uses degrees", "EPSG:4326")
	want := `INVALID_CRS: frame "EPSG:4326" uses degrees`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("no path")
	err := Wrap(ErrCodeTopologyUnreachable, cause, "trunk validation")
	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause via errors.Is")
	}
	if got := err.Error(); got != "TOPOLOGY_UNREACHABLE_BUILDING: trunk validation: no path" {
		t.Errorf("Error() = %q", got)
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeSparseStreets, "too few edges")
	if !Is(err, ErrCodeSparseStreets) {
		t.Error("Is() should match the code")
	}
	if Is(err, ErrCodeInvalidCRS) {
		t.Error("Is() should not match a different code")
	}
	wrapped := fmt.Errorf("stage failed: %w", err)
	if !Is(wrapped, ErrCodeSparseStreets) {
		t.Error("Is() should unwrap chained errors")
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeInternal, "boom")); got != ErrCodeInternal {
		t.Errorf("GetCode() = %q, want %q", got, ErrCodeInternal)
	}
	if got := GetCode(stderrors.New("plain")); got != "" {
		t.Errorf("GetCode() = %q, want empty", got)
	}
}

func TestDetail(t *testing.T) {
	err := New(ErrCodeTopologyUnreachable, "3 buildings unreachable").
		WithDetail("buildings", []string{"b1", "b2", "b3"}).
		WithDetail("trunk_edges", 42)
	d := GetDetail(fmt.Errorf("wrapped: %w", err))
	if d == nil {
		t.Fatal("GetDetail() = nil")
	}
	if d["trunk_edges"] != 42 {
		t.Errorf("detail trunk_edges = %v, want 42", d["trunk_edges"])
	}
}

func TestTaxonomyPredicates(t *testing.T) {
	tests := []struct {
		code   Code
		config bool
		data   bool
		topo   bool
	}{
		{ErrCodeInvalidMode, true, false, false},
		{ErrCodeSparseStreets, false, true, false},
		{ErrCodeTopologyDisconnected, false, false, true},
		{ErrCodeInternal, false, false, false},
	}
	for _, tt := range tests {
		err := New(tt.code, "x")
		if got := IsConfiguration(err); got != tt.config {
			t.Errorf("IsConfiguration(%s) = %v, want %v", tt.code, got, tt.config)
		}
		if got := IsDataQuality(err); got != tt.data {
			t.Errorf("IsDataQuality(%s) = %v, want %v", tt.code, got, tt.data)
		}
		if got := IsTopology(err); got != tt.topo {
			t.Errorf("IsTopology(%s) = %v, want %v", tt.code, got, tt.topo)
		}
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeNoBuildings, "no buildings loaded")); got != "no buildings loaded" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(stderrors.New("plain")); got != "plain" {
		t.Errorf("UserMessage() = %q", got)
	}
}
