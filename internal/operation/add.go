package operation

import (
	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// AddOperation adds an entry.
type AddOperation struct {
	Base

	rawEntryDN string
	entryDN    *dn.DN

	rawAttributes []ldap.Attribute
	attributes    map[string][]string
}

// NewAddOperation creates an add operation from a decoded request.
func NewAddOperation(conn Connection, operationID, messageID int64, controls []ldap.Control, req *ldap.AddRequest) *AddOperation {
	op := &AddOperation{
		rawEntryDN:    req.Entry,
		rawAttributes: req.Attributes,
	}
	op.init(op, KindAdd, conn, operationID, messageID, controls)
	return op
}

// RawEntryDN returns the entry DN as sent by the client.
func (op *AddOperation) RawEntryDN() string { return op.rawEntryDN }

// SetRawEntryDN replaces the raw entry DN and drops the decoded one.
func (op *AddOperation) SetRawEntryDN(raw string) {
	op.rawEntryDN = raw
	op.entryDN = nil
}

// EntryDN decodes the entry DN on first use. On failure it records
// invalidDNSyntax on the operation and returns nil.
func (op *AddOperation) EntryDN() *dn.DN {
	if op.entryDN == nil {
		d, err := decodeDN(op.rawEntryDN)
		if err != nil {
			op.decodeFailed(ldap.ResultInvalidDNSyntax, "cannot decode entry DN %q: %v", op.rawEntryDN, err)
			return nil
		}
		op.entryDN = d
	}
	return op.entryDN
}

// SetEntryDN sets the decoded entry DN and its raw form. A nil d is the
// root DN.
func (op *AddOperation) SetEntryDN(d *dn.DN) {
	op.entryDN = d
	op.rawEntryDN = d.String()
}

// RawAttributes returns the attributes as sent by the client.
func (op *AddOperation) RawAttributes() []ldap.Attribute { return op.rawAttributes }

// SetRawAttributes replaces the raw attributes and drops the decoded ones.
func (op *AddOperation) SetRawAttributes(attrs []ldap.Attribute) {
	op.rawAttributes = attrs
	op.attributes = nil
}

// Attributes decodes the attribute list on first use, keyed by lower-cased
// type. On failure it records invalidAttributeSyntax and returns nil.
func (op *AddOperation) Attributes() map[string][]string {
	if op.attributes == nil {
		attrs, err := decodeAttributes(op.rawAttributes)
		if err != nil {
			op.decodeFailed(ldap.ResultInvalidAttributeSyntax, "cannot decode attributes of %q: %v", op.rawEntryDN, err)
			return nil
		}
		op.attributes = attrs
	}
	return op.attributes
}

// Entry builds the entry to add, or nil if the DN or attributes do not decode.
func (op *AddOperation) Entry() *ldap.Entry {
	d := op.EntryDN()
	if d == nil {
		return nil
	}
	attrs := op.Attributes()
	if attrs == nil {
		return nil
	}
	entry := ldap.NewEntry(d.String())
	for name, values := range attrs {
		entry.SetAttribute(name, append([]string(nil), values...)...)
	}
	return entry
}
