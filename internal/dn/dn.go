// Package dn provides distinguished name handling for the lifecycle engine.
package dn

import (
	"errors"
	"fmt"
	"strings"

	ldapv3 "github.com/go-ldap/ldap/v3"
)

var (
	// ErrInvalidDN is returned when a DN cannot be parsed.
	ErrInvalidDN = errors.New("dn: invalid DN syntax")
	// ErrInvalidRDN is returned when a value is not exactly one RDN.
	ErrInvalidRDN = errors.New("dn: invalid RDN syntax")
)

// DN is a parsed distinguished name. The zero value and Root() both
// represent the root DSE (the empty DN).
type DN struct {
	rdns []*ldapv3.RelativeDN
}

// RDN is a parsed relative distinguished name.
type RDN struct {
	rdn *ldapv3.RelativeDN
}

// AVA is a single attribute type/value pair of an RDN.
type AVA struct {
	Type  string
	Value string
}

// Root returns the empty DN.
func Root() *DN {
	return &DN{}
}

// Parse parses an RFC 4514 string into a DN. The empty string (or only
// whitespace) is the root DN.
func Parse(s string) (*DN, error) {
	if strings.TrimSpace(s) == "" {
		return Root(), nil
	}
	parsed, err := ldapv3.ParseDN(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidDN, s, err)
	}
	for _, r := range parsed.RDNs {
		if !validRDN(r) {
			return nil, fmt.Errorf("%w: %q: empty RDN component", ErrInvalidDN, s)
		}
	}
	return &DN{rdns: parsed.RDNs}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) *DN {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseRDN parses a string that must contain exactly one RDN.
func ParseRDN(s string) (*RDN, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty RDN", ErrInvalidRDN)
	}
	parsed, err := ldapv3.ParseDN(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRDN, s, err)
	}
	if len(parsed.RDNs) != 1 || !validRDN(parsed.RDNs[0]) {
		return nil, fmt.Errorf("%w: %q: expected a single RDN", ErrInvalidRDN, s)
	}
	return &RDN{rdn: parsed.RDNs[0]}, nil
}

func validRDN(r *ldapv3.RelativeDN) bool {
	if r == nil || len(r.Attributes) == 0 {
		return false
	}
	for _, a := range r.Attributes {
		if strings.TrimSpace(a.Type) == "" {
			return false
		}
	}
	return true
}

// IsRoot reports whether d is the empty DN.
func (d *DN) IsRoot() bool {
	return d == nil || len(d.rdns) == 0
}

// NumRDNs returns the number of RDN components.
func (d *DN) NumRDNs() int {
	if d == nil {
		return 0
	}
	return len(d.rdns)
}

// RDN returns the leftmost RDN, or nil for the root DN.
func (d *DN) RDN() *RDN {
	if d.IsRoot() {
		return nil
	}
	return &RDN{rdn: d.rdns[0]}
}

// Parent returns the immediate parent. A DN with a single RDN and the root
// DN have no parent; nil is returned for both.
func (d *DN) Parent() *DN {
	if d.NumRDNs() <= 1 {
		return nil
	}
	return &DN{rdns: d.rdns[1:]}
}

// ParentInSuffix returns the parent DN unless d is itself a naming context
// (isSuffix reports true) or has no parent.
func (d *DN) ParentInSuffix(isSuffix func(*DN) bool) *DN {
	if isSuffix != nil && isSuffix(d) {
		return nil
	}
	return d.Parent()
}

// Child returns the DN formed by prefixing rdn to d.
func (d *DN) Child(rdn *RDN) *DN {
	rdns := make([]*ldapv3.RelativeDN, 0, d.NumRDNs()+1)
	rdns = append(rdns, rdn.rdn)
	if d != nil {
		rdns = append(rdns, d.rdns...)
	}
	return &DN{rdns: rdns}
}

// Equal reports whether two DNs are equal, comparing attribute types and
// values case-insensitively.
func (d *DN) Equal(other *DN) bool {
	if d.IsRoot() || other.IsRoot() {
		return d.IsRoot() && other.IsRoot()
	}
	return d.ldap().EqualFold(other.ldap())
}

// IsDescendantOf reports whether d lies strictly below ancestor. Every
// non-root DN is a descendant of the root DN.
func (d *DN) IsDescendantOf(ancestor *DN) bool {
	if d.IsRoot() {
		return false
	}
	if ancestor.IsRoot() {
		return true
	}
	return ancestor.ldap().AncestorOfFold(d.ldap())
}

// IsWithin reports whether d equals base or is a descendant of it.
func (d *DN) IsWithin(base *DN) bool {
	return d.Equal(base) || d.IsDescendantOf(base)
}

// String renders the DN in RFC 4514 form preserving the original case.
func (d *DN) String() string {
	if d.IsRoot() {
		return ""
	}
	parts := make([]string, len(d.rdns))
	for i, r := range d.rdns {
		parts[i] = (&RDN{rdn: r}).String()
	}
	return strings.Join(parts, ",")
}

// Normalized renders the DN lower-cased, suitable as a map or store key.
func (d *DN) Normalized() string {
	return strings.ToLower(d.String())
}

func (d *DN) ldap() *ldapv3.DN {
	return &ldapv3.DN{RDNs: d.rdns}
}

// AVAs returns the attribute type/value pairs of the RDN.
func (r *RDN) AVAs() []AVA {
	avas := make([]AVA, len(r.rdn.Attributes))
	for i, a := range r.rdn.Attributes {
		avas[i] = AVA{Type: a.Type, Value: a.Value}
	}
	return avas
}

// String renders the RDN in RFC 4514 form. Attribute types keep their case
// and multi-valued RDNs keep their order.
func (r *RDN) String() string {
	parts := make([]string, len(r.rdn.Attributes))
	for i, a := range r.rdn.Attributes {
		parts[i] = a.Type + "=" + EscapeValue(a.Value)
	}
	return strings.Join(parts, "+")
}

// EscapeValue escapes an attribute value for use in a DN string (RFC 4514
// section 2.4).
func EscapeValue(v string) string {
	return ldapv3.EscapeDN(v)
}
