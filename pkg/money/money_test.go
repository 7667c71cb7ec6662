package money

import (
	"encoding/json"
	"testing"
)

func TestNewRounding(t *testing.T) {
	a, err := New("10.123456")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, want := a.String(), "10.1235"; got != want {
		t.Errorf("rounded = %s, want %s", got, want)
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New("not-a-number"); err == nil {
		t.Fatal("expected error for malformed literal")
	}
}

func TestAddSub(t *testing.T) {
	a := MustNew("100.0000")
	b := MustNew("25.5000")

	if got, want := a.Add(b).String(), "125.5000"; got != want {
		t.Errorf("Add = %s, want %s", got, want)
	}
	if got, want := a.Sub(b).String(), "74.5000"; got != want {
		t.Errorf("Sub = %s, want %s", got, want)
	}
}

func TestNegAndIsNegative(t *testing.T) {
	a := MustNew("50.0000")
	neg := a.Neg()
	if !neg.IsNegative() {
		t.Error("expected negated amount to be negative")
	}
	if got, want := neg.String(), "-50.0000"; got != want {
		t.Errorf("Neg = %s, want %s", got, want)
	}
}

func TestCmpAndGreaterThanOrEqual(t *testing.T) {
	a := MustNew("10.0000")
	b := MustNew("10.0000")
	c := MustNew("9.9999")

	if a.Cmp(b) != 0 {
		t.Error("expected equal amounts to compare equal")
	}
	if !a.GreaterThanOrEqual(b) {
		t.Error("expected a >= b for equal amounts")
	}
	if !a.GreaterThanOrEqual(c) {
		t.Error("expected a >= c")
	}
	if c.GreaterThanOrEqual(a) {
		t.Error("expected c < a")
	}
}

func TestIsZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Error("Zero.IsZero() should be true")
	}
	if MustNew("0.0001").IsZero() {
		t.Error("0.0001 should not be zero")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	a := MustNew("42.1000")

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(data), `"42.1000"`; got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}

	var b Amount
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if b.Cmp(a) != 0 {
		t.Errorf("round trip mismatch: got %s, want %s", b, a)
	}
}

func TestJSONUnmarshalNumber(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte(`19.99`), &a); err != nil {
		t.Fatalf("Unmarshal numeric literal: %v", err)
	}
	if got, want := a.String(), "19.9900"; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestJSONUnmarshalInvalid(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte(`{"not":"money"}`), &a); err == nil {
		t.Fatal("expected error unmarshalling object into Amount")
	}
}
