package filter

import (
	"strings"
)

// Matching rules below approximate caseIgnoreMatch, caseIgnoreOrderingMatch
// and caseIgnoreSubstringsMatch. No schema is consulted.

func matchEquality(value, assertion string) bool {
	return strings.EqualFold(value, assertion)
}

func matchSubstring(value string, sf *SubstringFilter) bool {
	v := strings.ToLower(value)
	pos := 0

	if len(sf.Initial) > 0 {
		initial := strings.ToLower(string(sf.Initial))
		if !strings.HasPrefix(v, initial) {
			return false
		}
		pos = len(initial)
	}

	for _, a := range sf.Any {
		if len(a) == 0 {
			continue
		}
		sub := strings.ToLower(string(a))
		idx := strings.Index(v[pos:], sub)
		if idx < 0 {
			return false
		}
		pos += idx + len(sub)
	}

	if len(sf.Final) > 0 {
		return strings.HasSuffix(v[pos:], strings.ToLower(string(sf.Final)))
	}
	return true
}

func compareOrdering(value, assertion string) int {
	return strings.Compare(strings.ToLower(value), strings.ToLower(assertion))
}

// matchApprox compares values after lower-casing and collapsing whitespace.
func matchApprox(value, assertion string) bool {
	return normalizeForApprox(value) == normalizeForApprox(assertion)
}

func normalizeForApprox(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}
