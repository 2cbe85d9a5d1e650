package ldap

import (
	"sort"
	"strings"
)

// Entry represents an LDAP entry with multi-valued attributes.
// Attribute names are stored lower-cased; values keep their original form.
type Entry struct {
	// DN is the distinguished name of the entry.
	DN string `json:"dn"`

	// Attributes contains the entry's attribute values.
	// Key is the attribute name, value is a slice of string values.
	Attributes map[string][]string `json:"attributes"`
}

// NewEntry creates a new Entry with the given DN.
func NewEntry(dn string) *Entry {
	return &Entry{
		DN:         dn,
		Attributes: make(map[string][]string),
	}
}

// GetAttribute returns the values for the given attribute name.
// Returns nil if the attribute does not exist.
func (e *Entry) GetAttribute(name string) []string {
	if e.Attributes == nil {
		return nil
	}
	return e.Attributes[strings.ToLower(name)]
}

// GetFirstAttribute returns the first value for the given attribute name.
func (e *Entry) GetFirstAttribute(name string) string {
	values := e.GetAttribute(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// HasAttribute returns true if the entry has the given attribute.
func (e *Entry) HasAttribute(name string) bool {
	return len(e.GetAttribute(name)) > 0
}

// SetAttribute sets the values for the given attribute name.
func (e *Entry) SetAttribute(name string, values ...string) {
	if e.Attributes == nil {
		e.Attributes = make(map[string][]string)
	}
	e.Attributes[strings.ToLower(name)] = values
}

// AddAttributeValue adds a value to the given attribute unless it is
// already present (values compare case-insensitively).
func (e *Entry) AddAttributeValue(name string, value string) bool {
	if e.Attributes == nil {
		e.Attributes = make(map[string][]string)
	}
	name = strings.ToLower(name)
	for _, v := range e.Attributes[name] {
		if strings.EqualFold(v, value) {
			return false
		}
	}
	e.Attributes[name] = append(e.Attributes[name], value)
	return true
}

// DeleteAttribute removes an attribute from the entry.
func (e *Entry) DeleteAttribute(name string) {
	if e.Attributes == nil {
		return
	}
	delete(e.Attributes, strings.ToLower(name))
}

// DeleteAttributeValue removes a specific value from an attribute and
// reports whether it was present. An attribute left without values is removed.
func (e *Entry) DeleteAttributeValue(name string, value string) bool {
	if e.Attributes == nil {
		return false
	}
	name = strings.ToLower(name)
	values := e.Attributes[name]

	kept := make([]string, 0, len(values))
	for _, v := range values {
		if !strings.EqualFold(v, value) {
			kept = append(kept, v)
		}
	}
	if len(kept) == len(values) {
		return false
	}

	if len(kept) == 0 {
		delete(e.Attributes, name)
	} else {
		e.Attributes[name] = kept
	}
	return true
}

// Clone creates a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}

	clone := &Entry{
		DN:         e.DN,
		Attributes: make(map[string][]string, len(e.Attributes)),
	}
	for k, v := range e.Attributes {
		values := make([]string, len(v))
		copy(values, v)
		clone.Attributes[k] = values
	}
	return clone
}

// AttributeNames returns the attribute names of the entry in sorted order.
func (e *Entry) AttributeNames() []string {
	names := make([]string, 0, len(e.Attributes))
	for name := range e.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Project returns a copy of the entry restricted to the requested attribute
// names. An empty list or "*" returns all user attributes; "+" is accepted
// and ignored because operational attributes are stored inline.
func (e *Entry) Project(attrs []string, typesOnly bool) *Entry {
	all := len(attrs) == 0
	wanted := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		switch a {
		case "*":
			all = true
		case "+", "1.1":
		default:
			wanted[strings.ToLower(a)] = true
		}
	}

	out := NewEntry(e.DN)
	for name, values := range e.Attributes {
		if !all && !wanted[name] {
			continue
		}
		if typesOnly {
			out.Attributes[name] = nil
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		out.Attributes[name] = copied
	}
	return out
}
