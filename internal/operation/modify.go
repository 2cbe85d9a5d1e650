package operation

import (
	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// ModifyOperation changes the attributes of an entry.
type ModifyOperation struct {
	Base

	rawEntryDN string
	entryDN    *dn.DN

	rawModifications []ldap.Modification
	modifications    []ldap.Modification
}

// NewModifyOperation creates a modify operation from a decoded request.
func NewModifyOperation(conn Connection, operationID, messageID int64, controls []ldap.Control, req *ldap.ModifyRequest) *ModifyOperation {
	op := &ModifyOperation{
		rawEntryDN:       req.Object,
		rawModifications: req.Changes,
	}
	op.init(op, KindModify, conn, operationID, messageID, controls)
	return op
}

// RawEntryDN returns the target DN as sent by the client.
func (op *ModifyOperation) RawEntryDN() string { return op.rawEntryDN }

// SetRawEntryDN replaces the raw target DN and drops the decoded one.
func (op *ModifyOperation) SetRawEntryDN(raw string) {
	op.rawEntryDN = raw
	op.entryDN = nil
}

// EntryDN decodes the target DN on first use; nil after a recorded failure.
func (op *ModifyOperation) EntryDN() *dn.DN {
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

// RawModifications returns the changes as sent by the client.
func (op *ModifyOperation) RawModifications() []ldap.Modification { return op.rawModifications }

// SetRawModifications replaces the raw changes and drops the decoded ones.
func (op *ModifyOperation) SetRawModifications(mods []ldap.Modification) {
	op.rawModifications = mods
	op.modifications = nil
}

// Modifications validates the changes on first use; nil after a recorded
// failure.
func (op *ModifyOperation) Modifications() []ldap.Modification {
	if op.modifications == nil {
		mods, err := decodeModifications(op.rawModifications)
		if err != nil {
			op.decodeFailed(ldap.ResultProtocolError, "cannot decode modifications of %q: %v", op.rawEntryDN, err)
			return nil
		}
		op.modifications = mods
	}
	return op.modifications
}

// AddModification appends a change. Pre-operation plugins use it to extend
// the request.
func (op *ModifyOperation) AddModification(m ldap.Modification) {
	op.rawModifications = append(op.rawModifications, m)
	if op.modifications != nil {
		op.modifications = append(op.modifications, m)
	}
}
