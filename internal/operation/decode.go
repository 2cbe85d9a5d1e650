package operation

import (
	"fmt"
	"strings"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// Decoders for raw client values. Tests swap them to count calls.
var (
	decodeDN     = dn.Parse
	decodeRDN    = dn.ParseRDN
	decodeFilter = filter.Parse
)

// decodeFailed records a decode error as the operation outcome.
func (b *Base) decodeFailed(code ldap.ResultCode, format string, args ...interface{}) {
	b.SetResultCode(code)
	b.AppendErrorMessage(fmt.Sprintf(format, args...))
}

// decodeAttributes validates attribute descriptions and merges repeated types
// into a map keyed by the lower-cased type.
func decodeAttributes(attrs []ldap.Attribute) (map[string][]string, error) {
	out := make(map[string][]string, len(attrs))
	for _, a := range attrs {
		if err := ldap.ValidateAttributeType(a.Type); err != nil {
			return nil, err
		}
		key := strings.ToLower(a.Type)
		out[key] = append(out[key], a.StringValues()...)
	}
	return out, nil
}

// decodeModifications validates each change of a modify request.
func decodeModifications(mods []ldap.Modification) ([]ldap.Modification, error) {
	out := make([]ldap.Modification, 0, len(mods))
	for i, m := range mods {
		if !m.Operation.Valid() {
			return nil, fmt.Errorf("modification %d: invalid operation %d", i, int(m.Operation))
		}
		if err := ldap.ValidateAttributeType(m.Attribute.Type); err != nil {
			return nil, fmt.Errorf("modification %d: %w", i, err)
		}
		if m.Operation == ldap.ModifyOperationIncrement && len(m.Attribute.Values) != 1 {
			return nil, fmt.Errorf("modification %d: increment of %s requires exactly one value", i, m.Attribute.Type)
		}
		out = append(out, m)
	}
	return out, nil
}

// decodeAttributeList validates a search attribute selection. The special
// selectors "*", "+" and "1.1" are accepted as they are.
func decodeAttributeList(attrs []string) ([]string, error) {
	out := make([]string, 0, len(attrs))
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		switch a {
		case "*", "+", "1.1":
		default:
			if err := ldap.ValidateAttributeType(a); err != nil {
				return nil, err
			}
		}
		key := strings.ToLower(a)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out, nil
}
