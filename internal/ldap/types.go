// Package ldap defines the LDAP protocol data model consumed by the
// operation lifecycle engine.
package ldap

import (
	"errors"
	"strings"
)

// MaxMessageID is the maximum valid message ID per RFC 4511
// MessageID ::= INTEGER (0 .. maxInt)
// maxInt INTEGER ::= 2147483647 -- (2^^31 - 1)
const MaxMessageID = 2147483647

// MinMessageID is the minimum valid message ID
const MinMessageID = 0

// Well-known control OIDs understood by the lifecycle engine.
const (
	// OIDProxiedAuthV2 is the proxied authorization v2 control (RFC 4370).
	OIDProxiedAuthV2 = "2.16.840.1.113730.3.4.18"
	// OIDPersistentSearch is the persistent search control (draft-ietf-ldapext-psearch).
	OIDPersistentSearch = "2.16.840.1.113730.3.4.3"
	// OIDEntryChangeNotification is the entry change notification control.
	OIDEntryChangeNotification = "2.16.840.1.113730.3.4.7"
	// OIDManageDsaIT is the ManageDsaIT control (RFC 3296).
	OIDManageDsaIT = "2.16.840.1.113730.3.4.2"
)

// Control represents an LDAP control as defined in RFC 4511 Section 4.1.11
// Control ::= SEQUENCE {
//
//	controlType             LDAPOID,
//	criticality             BOOLEAN DEFAULT FALSE,
//	controlValue            OCTET STRING OPTIONAL
//
// }
type Control struct {
	// OID is the control type OID
	OID string
	// Criticality indicates whether the control is critical
	Criticality bool
	// Value is the optional control value
	Value []byte
}

// FindControl returns the first control with the given OID, or nil.
func FindControl(controls []Control, oid string) *Control {
	for i := range controls {
		if controls[i].OID == oid {
			return &controls[i]
		}
	}
	return nil
}

// Attribute represents an LDAP attribute with its values as supplied by
// the client.
type Attribute struct {
	// Type is the attribute type name
	Type string
	// Values contains the attribute values
	Values [][]byte
}

// StringValues returns the attribute values as strings.
func (a Attribute) StringValues() []string {
	values := make([]string, len(a.Values))
	for i, v := range a.Values {
		values[i] = string(v)
	}
	return values
}

// NewAttribute creates an Attribute from string values.
func NewAttribute(attrType string, values ...string) Attribute {
	attr := Attribute{Type: attrType, Values: make([][]byte, len(values))}
	for i, v := range values {
		attr.Values[i] = []byte(v)
	}
	return attr
}

// Errors for request validation.
var (
	// ErrEmptyAttributeType is returned when an attribute has no type.
	ErrEmptyAttributeType = errors.New("ldap: attribute type cannot be empty")
	// ErrInvalidAttributeType is returned when an attribute type contains
	// characters that are not allowed in an attribute description.
	ErrInvalidAttributeType = errors.New("ldap: invalid attribute type")
)

// ValidateAttributeType checks an attribute description: a descriptor
// (letter followed by letters, digits or hyphens) or a numeric OID,
// optionally followed by ";options".
func ValidateAttributeType(attrType string) error {
	if attrType == "" {
		return ErrEmptyAttributeType
	}
	base := attrType
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = base[:i]
	}
	if base == "" {
		return ErrInvalidAttributeType
	}
	if base[0] >= '0' && base[0] <= '9' {
		for _, c := range base {
			if (c < '0' || c > '9') && c != '.' {
				return ErrInvalidAttributeType
			}
		}
		return nil
	}
	for i, c := range base {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '-'):
		default:
			return ErrInvalidAttributeType
		}
	}
	return nil
}
