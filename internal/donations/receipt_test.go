package donations

import "testing"

func TestFormatINR(t *testing.T) {
	cases := []struct {
		paise int64
		want  string
	}{
		{0, "₹0.00"},
		{50, "₹0.50"},
		{100, "₹1.00"},
		{123456, "₹1,234.56"},
		{125000000, "₹12,50,000.00"},
		{100000000000, "₹1,00,00,00,000.00"},
		{-5000, "-₹50.00"},
	}
	for _, tc := range cases {
		if got := FormatINR(tc.paise); got != tc.want {
			t.Fatalf("FormatINR(%d) = %q, want %q", tc.paise, got, tc.want)
		}
	}
}
