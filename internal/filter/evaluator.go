package filter

import (
	"strings"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// Matches reports whether entry matches f. A nil filter or entry never matches.
func Matches(f *Filter, entry *ldap.Entry) bool {
	if f == nil || entry == nil {
		return false
	}

	switch f.Type {
	case FilterAnd:
		// An empty AND is absolute true (RFC 4526).
		for _, child := range f.Children {
			if !Matches(child, entry) {
				return false
			}
		}
		return true
	case FilterOr:
		for _, child := range f.Children {
			if Matches(child, entry) {
				return true
			}
		}
		return false
	case FilterNot:
		if f.Child == nil {
			return false
		}
		return !Matches(f.Child, entry)
	case FilterPresent:
		if isObjectClass(f.Attribute) {
			return true
		}
		return len(entry.GetAttribute(f.Attribute)) > 0
	case FilterEquality:
		return anyValue(entry, f.Attribute, func(v string) bool {
			return matchEquality(v, string(f.Value))
		})
	case FilterSubstring:
		if f.Substring == nil {
			return false
		}
		return anyValue(entry, f.Substring.Attribute, func(v string) bool {
			return matchSubstring(v, f.Substring)
		})
	case FilterGreaterOrEqual:
		return anyValue(entry, f.Attribute, func(v string) bool {
			return compareOrdering(v, string(f.Value)) >= 0
		})
	case FilterLessOrEqual:
		return anyValue(entry, f.Attribute, func(v string) bool {
			return compareOrdering(v, string(f.Value)) <= 0
		})
	case FilterApproxMatch:
		return anyValue(entry, f.Attribute, func(v string) bool {
			return matchApprox(v, string(f.Value))
		})
	default:
		return false
	}
}

func anyValue(entry *ldap.Entry, attr string, match func(string) bool) bool {
	for _, v := range entry.GetAttribute(attr) {
		if match(v) {
			return true
		}
	}
	return false
}

// Every entry has an object class, so (objectClass=*) always matches even
// when the stored entry omits the attribute.
func isObjectClass(attr string) bool {
	return strings.EqualFold(attr, "objectClass") || attr == "2.5.4.0"
}
