package regions

import (
	"testing"

	"github.com/sevatrack/sevatrack/internal/authz"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		raw  string
		want authz.Level
		ok   bool
	}{
		{"state", authz.LevelState, true},
		{"district", authz.LevelDistrict, true},
		{"area", authz.LevelArea, true},
		{"unit", authz.LevelUnit, true},
		{"STATE", "", false},
		{"village", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.raw)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseLevel(%q): unexpected error %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("ParseLevel(%q) = %q, want %q", tc.raw, got, tc.want)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ParseLevel(%q): expected error", tc.raw)
		}
	}
}
