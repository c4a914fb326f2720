package escalation

import (
	"strings"
	"unicode"
)

// NormalizedEditDistance returns the Levenshtein distance between the two
// strings divided by the length of the longer one, in [0, 1]. Whitespace is
// collapsed first so formatting-only edits count as zero.
func NormalizedEditDistance(a, b string) float64 {
	a = normalizeWhitespace(a)
	b = normalizeWhitespace(b)
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}
	return float64(levenshtein(ra, rb)) / float64(longest)
}

// SameAnswer reports whether two answers are identical after whitespace
// normalization. Used to decide whether AI provenance survives delivery.
func SameAnswer(a, b string) bool {
	return normalizeWhitespace(a) == normalizeWhitespace(b)
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// levenshtein computes edit distance with a two-row DP table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
