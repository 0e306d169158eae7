package memstore

import "strings"

func toLower(s string) string { return strings.ToLower(s) }

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}
