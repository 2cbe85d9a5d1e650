package backend

import (
	"github.com/dgraph-io/badger/v3"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// add stores a new entry. The parent must exist unless the entry is one of
// the backend's suffixes. RDN values are added to the entry when missing.
func (b *Backend) add(op *operation.AddOperation) error {
	if err := op.CheckCanceled(); err != nil {
		return err
	}

	d := op.EntryDN()
	entry := op.Entry()
	if d == nil || entry == nil {
		// Decoding failed and set the outcome.
		return nil
	}

	stored := entry.Clone()
	stored.DN = d.String()
	stripOperational(stored)
	if !stored.HasAttribute("objectClass") {
		return b.record(op, &operation.SubOperation{Entry: stored},
			ldap.NewResultError(ldap.ResultObjectClassViolation, "entry %s has no objectClass", d))
	}
	for _, ava := range d.RDN().AVAs() {
		stored.AddAttributeValue(ava.Type, ava.Value)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	sub := &operation.SubOperation{}
	err := b.store.db.Update(func(txn *badger.Txn) error {
		norm := d.Normalized()
		found, err := exists(txn, norm)
		if err != nil {
			return err
		}
		if found {
			return ldap.NewResultError(ldap.ResultEntryAlreadyExists, "entry %s already exists", d)
		}

		if !b.isSuffix(d) {
			parent := d.Parent()
			ok, err := exists(txn, parent.Normalized())
			if err != nil {
				return err
			}
			if !ok {
				return b.noSuchObject(txn, d, "entry %s cannot be added because its parent %s does not exist", d, parent)
			}
		}

		if err := op.CheckCanceled(); err != nil {
			return err
		}
		cn, err := b.store.nextChangeNumber()
		if err != nil {
			return err
		}
		setOperational(stored, changeAdd, op.AuthorizationDN(), b.now())
		if err := putEntry(txn, norm, b.parentKey(d), stored); err != nil {
			return err
		}

		sub.Entry = stored.Clone()
		sub.ChangeNumber = cn
		return nil
	})
	return b.record(op, sub, err)
}
