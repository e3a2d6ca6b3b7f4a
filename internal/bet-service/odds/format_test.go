package odds

import "testing"

func TestFormatting(t *testing.T) {
	cases := []struct {
		odds       float64
		multiplier string
		american   string
	}{
		{2.5, "2.50x", "+150"},
		{1.5, "1.50x", "-200"},
		{2.0, "2.00x", "+100"},
		{1.1, "1.10x", "-1000"},
		{10, "10.00x", "+900"},
	}
	for _, tc := range cases {
		if got := FormatMultiplier(tc.odds); got != tc.multiplier {
			t.Errorf("FormatMultiplier(%v) = %q, want %q", tc.odds, got, tc.multiplier)
		}
		if got := FormatAmerican(tc.odds); got != tc.american {
			t.Errorf("FormatAmerican(%v) = %q, want %q", tc.odds, got, tc.american)
		}
	}
	if ToAmerican(1) != 0 {
		t.Fatal("odds of 1 have no american form")
	}
}
