package escalation

import "testing"

func TestNormalizedEditDistance(t *testing.T) {
	cases := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "restart the router", "restart the router", 0},
		{"whitespace only", "restart  the router", " restart the\trouter ", 0},
		{"fully different", "abc", "xyz", 1},
		{"both empty", "", "", 0},
		{"one empty", "", "abcd", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizedEditDistance(tc.a, tc.b)
			if got != tc.want {
				t.Fatalf("NormalizedEditDistance(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestNormalizedEditDistanceBounded(t *testing.T) {
	got := NormalizedEditDistance("please restart your device", "have you tried turning it off and on again")
	if got <= 0 || got > 1 {
		t.Fatalf("distance %v out of (0, 1]", got)
	}
}

func TestSameAnswer(t *testing.T) {
	if !SameAnswer("hello  world", "hello world") {
		t.Fatal("whitespace variants should compare equal")
	}
	if SameAnswer("hello world", "hello there") {
		t.Fatal("different answers should not compare equal")
	}
}
