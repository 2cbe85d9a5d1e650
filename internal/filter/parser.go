package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// Parser errors
var (
	ErrEmptyFilter      = errors.New("empty filter")
	ErrInvalidFilter    = errors.New("invalid filter syntax")
	ErrUnbalancedParens = errors.New("unbalanced parentheses")
	ErrMissingAttribute = errors.New("missing attribute name")
	ErrInvalidEscape    = errors.New("invalid escape sequence")
	ErrUnsupported      = errors.New("unsupported filter type")
)

// Parse parses an LDAP filter string into a Filter structure.
// Supports RFC 4515 filter syntax:
//   - (attr=value)     - equality
//   - (attr=*)         - presence
//   - (attr=*val*)     - substring
//   - (attr>=value)    - greater or equal
//   - (attr<=value)    - less or equal
//   - (attr~=value)    - approximate match
//   - (&(f1)(f2)...)   - AND
//   - (|(f1)(f2)...)   - OR
//   - (!(filter))      - NOT
//
// A bare item without parentheses such as "uid=alice" is accepted.
// Extensible match is rejected with ErrUnsupported.
func Parse(filterStr string) (*Filter, error) {
	filterStr = strings.TrimSpace(filterStr)
	if filterStr == "" {
		return nil, ErrEmptyFilter
	}
	if !strings.HasPrefix(filterStr, "(") {
		if strings.ContainsAny(filterStr, "()") {
			return nil, ErrInvalidFilter
		}
		filterStr = "(" + filterStr + ")"
	}

	end, err := closingParen(filterStr)
	if err != nil {
		return nil, err
	}
	if end != len(filterStr)-1 {
		return nil, fmt.Errorf("%w: trailing data after filter", ErrInvalidFilter)
	}
	return parseFilter(filterStr)
}

// closingParen returns the index of the parenthesis closing s[0].
// Escaped values never contain raw parentheses, so plain counting is enough.
func closingParen(s string) (int, error) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return -1, ErrUnbalancedParens
}

func parseFilter(s string) (*Filter, error) {
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return nil, ErrEmptyFilter
	}

	switch inner[0] {
	case '&':
		children, err := parseFilterList(inner[1:])
		if err != nil {
			return nil, err
		}
		return NewAndFilter(children...), nil
	case '|':
		children, err := parseFilterList(inner[1:])
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, fmt.Errorf("%w: empty OR", ErrInvalidFilter)
		}
		return NewOrFilter(children...), nil
	case '!':
		children, err := parseFilterList(inner[1:])
		if err != nil {
			return nil, err
		}
		if len(children) != 1 {
			return nil, fmt.Errorf("%w: NOT takes exactly one filter", ErrInvalidFilter)
		}
		return NewNotFilter(children[0]), nil
	case '(':
		return nil, ErrInvalidFilter
	default:
		return parseSimpleFilter(inner)
	}
}

func parseFilterList(s string) ([]*Filter, error) {
	var filters []*Filter
	s = strings.TrimSpace(s)

	for len(s) > 0 {
		if s[0] != '(' {
			return nil, ErrInvalidFilter
		}
		end, err := closingParen(s)
		if err != nil {
			return nil, err
		}
		f, err := parseFilter(s[:end+1])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
		s = strings.TrimSpace(s[end+1:])
	}

	return filters, nil
}

func parseSimpleFilter(s string) (*Filter, error) {
	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return nil, ErrInvalidFilter
	}

	attr := s[:idx]
	raw := s[idx+1:]
	op := byte('=')
	if idx > 0 {
		switch s[idx-1] {
		case '>', '<', '~', ':':
			op = s[idx-1]
			attr = s[:idx-1]
		}
	}
	if op == ':' {
		return nil, ErrUnsupported
	}

	attr = strings.TrimSpace(attr)
	if attr == "" {
		return nil, ErrMissingAttribute
	}
	if err := ldap.ValidateAttributeType(attr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	if op == '=' {
		if raw == "*" {
			return NewPresentFilter(attr), nil
		}
		if strings.Contains(raw, "*") {
			return parseSubstringFilter(attr, raw)
		}
	}

	value, err := unescape(raw)
	if err != nil {
		return nil, err
	}

	switch op {
	case '>':
		return NewGreaterOrEqualFilter(attr, value), nil
	case '<':
		return NewLessOrEqualFilter(attr, value), nil
	case '~':
		return NewApproxMatchFilter(attr, value), nil
	default:
		return NewEqualityFilter(attr, value), nil
	}
}

func parseSubstringFilter(attr, raw string) (*Filter, error) {
	parts := strings.Split(raw, "*")
	sf := &SubstringFilter{Attribute: attr}

	for i, part := range parts {
		if part == "" {
			continue
		}
		value, err := unescape(part)
		if err != nil {
			return nil, err
		}
		switch i {
		case 0:
			sf.Initial = value
		case len(parts) - 1:
			sf.Final = value
		default:
			sf.Any = append(sf.Any, value)
		}
	}

	return NewSubstringFilter(sf), nil
}

// unescape decodes RFC 4515 "\XX" hex escapes.
func unescape(s string) ([]byte, error) {
	if !strings.Contains(s, `\`) {
		return []byte(s), nil
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			out = append(out, s[i])
			continue
		}
		if i+2 >= len(s) {
			return nil, ErrInvalidEscape
		}
		hi, ok1 := fromHex(s[i+1])
		lo, ok2 := fromHex(s[i+2])
		if !ok1 || !ok2 {
			return nil, ErrInvalidEscape
		}
		out = append(out, hi<<4|lo)
		i += 2
	}
	return out, nil
}

func fromHex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
