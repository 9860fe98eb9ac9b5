package cost

import (
	"errors"
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-12 }

func TestEstimate(t *testing.T) {
	t.Parallel()

	tbl, err := NewTable([]PriceEntry{
		{Model: "cheap", InputPerMillion: 0.5, OutputPerMillion: 1.5},
	}, PriceEntry{InputPerMillion: 1, OutputPerMillion: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		model   string
		in, out int
		want    float64
	}{
		{"cheap", 1_000_000, 0, 0.5},
		{"cheap", 0, 1_000_000, 1.5},
		{"cheap", 2000, 1000, 2000.0/1e6*0.5 + 1000.0/1e6*1.5},
		{"unknown", 1_000_000, 1_000_000, 3},
		{"cheap", 0, 0, 0},
	}
	for _, tc := range tests {
		if got := tbl.Estimate(tc.model, tc.in, tc.out); !approx(got, tc.want) {
			t.Errorf("Estimate(%q, %d, %d) = %v, want %v", tc.model, tc.in, tc.out, got, tc.want)
		}
	}
}

func TestNewTable_Rejects(t *testing.T) {
	t.Parallel()

	if _, err := NewTable([]PriceEntry{{Model: ""}}, PriceEntry{}); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := NewTable([]PriceEntry{{Model: "m", InputPerMillion: -1}}, PriceEntry{}); err == nil {
		t.Error("expected error for negative price")
	}
	if _, err := NewTable(nil, PriceEntry{OutputPerMillion: -1}); err == nil {
		t.Error("expected error for negative fallback")
	}
}

func TestTable_LookupAndModels(t *testing.T) {
	t.Parallel()

	tbl, err := NewTable([]PriceEntry{
		{Model: "b", InputPerMillion: 1},
		{Model: "a", InputPerMillion: 2},
		{Model: "b", InputPerMillion: 3},
	}, PriceEntry{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e, ok := tbl.Lookup("b"); !ok || e.InputPerMillion != 3 {
		t.Errorf("Lookup(b) = %+v, %v; later entries must win", e, ok)
	}
	if _, ok := tbl.Lookup("c"); ok {
		t.Error("Lookup(c) should miss")
	}
	if got := tbl.Models(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Models() = %v", got)
	}
	if p := tbl.Price("c"); p.Model != "c" {
		t.Errorf("fallback price should carry the requested model, got %q", p.Model)
	}
}

// The default table is process-wide, so these steps run in order in one test.
func TestDefaultTable(t *testing.T) {
	if err := Configure([]PriceEntry{{Model: "custom/model", InputPerMillion: 4, OutputPerMillion: 8}}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Configure([]PriceEntry{{Model: "", InputPerMillion: 1}}, nil); err == nil {
		t.Error("expected invalid override to be rejected")
	}

	if got := Estimate("custom/model", 1_000_000, 1_000_000); !approx(got, 12) {
		t.Errorf("Estimate(custom/model) = %v, want 12", got)
	}
	if got := Estimate("openai/gpt-4o-mini", 1_000_000, 0); !approx(got, 0.15) {
		t.Errorf("Estimate(gpt-4o-mini) = %v, want 0.15", got)
	}
	if got := Estimate("no/such-model", 1_000_000, 0); !approx(got, DefaultFallback.InputPerMillion) {
		t.Errorf("unknown model should use the fallback, got %v", got)
	}
	if Default() != Default() {
		t.Error("Default() must return the same table")
	}

	if err := Configure(nil, nil); !errors.Is(err, ErrAlreadyConfigured) {
		t.Errorf("expected ErrAlreadyConfigured, got %v", err)
	}
}

func TestBuiltin_ReturnsCopy(t *testing.T) {
	t.Parallel()
	a := Builtin()
	if len(a) == 0 {
		t.Fatal("empty builtin list")
	}
	a[0].InputPerMillion = -1
	if Builtin()[0].InputPerMillion < 0 {
		t.Error("mutating the result changed the builtin list")
	}
}

func TestEstimate_Monotonic(t *testing.T) {
	t.Parallel()

	tbl, err := NewTable([]PriceEntry{
		{Model: "priced", InputPerMillion: 0.15, OutputPerMillion: 0.6},
	}, PriceEntry{InputPerMillion: 1, OutputPerMillion: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, model := range []string{"priced", "unknown/model"} {
		prev := tbl.Estimate(model, 0, 100)
		for in := 1; in <= 1_000_000; in *= 7 {
			got := tbl.Estimate(model, in, 100)
			if got < prev {
				t.Errorf("%s: Estimate(in=%d) = %v, below previous %v", model, in, got, prev)
			}
			prev = got
		}

		prev = tbl.Estimate(model, 100, 0)
		for out := 1; out <= 1_000_000; out *= 7 {
			got := tbl.Estimate(model, 100, out)
			if got < prev {
				t.Errorf("%s: Estimate(out=%d) = %v, below previous %v", model, out, got, prev)
			}
			prev = got
		}
	}
}
