package pricing

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		plan  string
		seats int
		want  float64
		err   error
	}{
		{name: "ai pro", plan: "Catalyst AI Pro", seats: 75, want: 1875},
		{name: "ai pro case insensitive", plan: "catalyst ai pro", seats: 75, want: 1875},
		{name: "starter", plan: "Catalyst Starter", seats: 10, want: 150},
		{name: "enterprise upper bound", plan: "Catalyst Enterprise", seats: 10000, want: 400000},
		{name: "unknown plan", plan: "Catalyst Ultra", seats: 100, err: ErrUnknownPlan},
		{name: "empty plan", plan: "", seats: 100, err: ErrUnknownPlan},
		{name: "below min seats", plan: "Catalyst AI Pro", seats: 9, err: ErrSeatBounds},
		{name: "above max seats", plan: "Catalyst AI Pro", seats: 2001, err: ErrSeatBounds},
		{name: "zero seats", plan: "Catalyst Starter", seats: 0, err: ErrSeatBounds},
		{name: "negative seats", plan: "Catalyst Starter", seats: -5, err: ErrSeatBounds},
	}

	for _, tt := range tests {
		got, err := Validate(tt.plan, tt.seats)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Fatalf("%s: Validate(%q, %d) err = %v, want %v", tt.name, tt.plan, tt.seats, err, tt.err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: Validate(%q, %d) unexpected error: %v", tt.name, tt.plan, tt.seats, err)
		}
		if got != tt.want {
			t.Fatalf("%s: Validate(%q, %d) = %v, want %v", tt.name, tt.plan, tt.seats, got, tt.want)
		}
	}
}

func TestTotalFor(t *testing.T) {
	monthly, err := TotalFor("Catalyst AI Pro", 75, "monthly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if monthly != 1875 {
		t.Fatalf("monthly total = %v, want 1875", monthly)
	}

	yearly, err := TotalFor("Catalyst AI Pro", 75, "yearly")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if yearly != 1875*12 {
		t.Fatalf("yearly total = %v, want %v", yearly, 1875*12)
	}

	if _, err := TotalFor("Catalyst AI Pro", 75, "weekly"); !errors.Is(err, ErrInvalidCycle) {
		t.Fatalf("expected ErrInvalidCycle, got %v", err)
	}
}

func TestWithinEpsilon(t *testing.T) {
	if !WithinEpsilon(1875, 1875.009) {
		t.Fatalf("expected amounts within epsilon to match")
	}
	if WithinEpsilon(1875, 1874) {
		t.Fatalf("expected tampered amount to mismatch")
	}
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup("  CATALYST STARTER  "); !ok {
		t.Fatalf("expected trimmed case-insensitive lookup to succeed")
	}
	if _, ok := Lookup("nope"); ok {
		t.Fatalf("expected unknown plan lookup to fail")
	}
}
