package types

import "testing"

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{0.4, 0},
		{0.5, 1},
		{0.5000001, 1},
		{1.49, 1},
		{1.5, 2},
		{2.5, 3},
		{4499.5, 4500},
		{4500.0, 4500},
		{4500.4999, 4500},
		{-0.4, 0},
		{-0.5, -1},
		{-1.49, -1},
		{-2.5, -3},
		{-4499.5, -4500},
	}
	for _, c := range cases {
		if got := RoundHalfUp(c.in); got != c.want {
			t.Errorf("RoundHalfUp(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestMoneyString(t *testing.T) {
	m := Money{Amount: 18000, Currency: "EUR"}
	if got := m.String(); got != "180.00 EUR" {
		t.Errorf("String() = %q", got)
	}
	m = Money{Amount: 4505, Currency: "EUR"}
	if got := m.String(); got != "45.05 EUR" {
		t.Errorf("String() = %q", got)
	}
	m = Money{Amount: -150, Currency: "EUR"}
	if got := m.String(); got != "-1.50 EUR" {
		t.Errorf("String() = %q", got)
	}
}
