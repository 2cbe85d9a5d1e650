package operation

import (
	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// ModifyDNOperation renames or moves an entry.
type ModifyDNOperation struct {
	Base

	rawEntryDN string
	entryDN    *dn.DN

	rawNewRDN string
	newRDN    *dn.RDN

	rawNewSuperior *string
	newSuperior    *dn.DN

	deleteOldRDN bool
}

// NewModifyDNOperation creates a modify DN operation from a decoded request.
func NewModifyDNOperation(conn Connection, operationID, messageID int64, controls []ldap.Control, req *ldap.ModifyDNRequest) *ModifyDNOperation {
	op := &ModifyDNOperation{
		rawEntryDN:     req.Entry,
		rawNewRDN:      req.NewRDN,
		rawNewSuperior: req.NewSuperior,
		deleteOldRDN:   req.DeleteOldRDN,
	}
	op.init(op, KindModifyDN, conn, operationID, messageID, controls)
	return op
}

// RawEntryDN returns the DN of the entry to rename as sent by the client.
func (op *ModifyDNOperation) RawEntryDN() string { return op.rawEntryDN }

// SetRawEntryDN replaces the raw entry DN and drops the decoded one.
func (op *ModifyDNOperation) SetRawEntryDN(raw string) {
	op.rawEntryDN = raw
	op.entryDN = nil
}

// EntryDN decodes the entry DN on first use; nil after a recorded failure.
func (op *ModifyDNOperation) EntryDN() *dn.DN {
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

// RawNewRDN returns the new RDN as sent by the client.
func (op *ModifyDNOperation) RawNewRDN() string { return op.rawNewRDN }

// SetRawNewRDN replaces the raw new RDN and drops the decoded one.
func (op *ModifyDNOperation) SetRawNewRDN(raw string) {
	op.rawNewRDN = raw
	op.newRDN = nil
}

// NewRDN decodes the new RDN on first use; nil after a recorded failure.
func (op *ModifyDNOperation) NewRDN() *dn.RDN {
	if op.newRDN == nil {
		r, err := decodeRDN(op.rawNewRDN)
		if err != nil {
			op.decodeFailed(ldap.ResultInvalidDNSyntax, "cannot decode new RDN %q: %v", op.rawNewRDN, err)
			return nil
		}
		op.newRDN = r
	}
	return op.newRDN
}

// RawNewSuperior returns the new superior as sent by the client, or nil.
func (op *ModifyDNOperation) RawNewSuperior() *string { return op.rawNewSuperior }

// SetRawNewSuperior replaces the raw new superior and drops the decoded one.
func (op *ModifyDNOperation) SetRawNewSuperior(raw *string) {
	op.rawNewSuperior = raw
	op.newSuperior = nil
}

// NewSuperior decodes the new superior on first use. It returns nil when the
// request has none or when decoding failed (the failure is recorded).
func (op *ModifyDNOperation) NewSuperior() *dn.DN {
	if op.rawNewSuperior == nil {
		return nil
	}
	if op.newSuperior == nil {
		d, err := decodeDN(*op.rawNewSuperior)
		if err != nil {
			op.decodeFailed(ldap.ResultInvalidDNSyntax, "cannot decode new superior %q: %v", *op.rawNewSuperior, err)
			return nil
		}
		op.newSuperior = d
	}
	return op.newSuperior
}

// DeleteOldRDN reports whether the old RDN values are removed.
func (op *ModifyDNOperation) DeleteOldRDN() bool { return op.deleteOldRDN }

// NewDN returns the DN the entry will have after the rename, or nil if any
// component does not decode.
func (op *ModifyDNOperation) NewDN() *dn.DN {
	entryDN := op.EntryDN()
	rdn := op.NewRDN()
	if entryDN == nil || rdn == nil {
		return nil
	}
	parent := entryDN.Parent()
	if op.rawNewSuperior != nil {
		if parent = op.NewSuperior(); parent == nil {
			return nil
		}
	}
	return parent.Child(rdn)
}
