// Package strings holds small string-slice helpers used by the scoring
// components.
package strings

import "strings"

// DedupeAndTrim trims each value, drops blanks and keeps the first occurrence
// of each remaining value. Comparison is case-sensitive, so "Naivas" and
// "NAIVAS" are distinct merchants.
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// CountDistinct is len(DedupeAndTrim(values)) without building the slice.
func CountDistinct(values []string) int {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			seen[v] = true
		}
	}
	return len(seen)
}
