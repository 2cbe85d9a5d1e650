package backend

import (
	"errors"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// modifyDN renames or moves a leaf entry within the backend.
func (b *Backend) modifyDN(op *operation.ModifyDNOperation) error {
	if err := op.CheckCanceled(); err != nil {
		return err
	}

	d := op.EntryDN()
	newDN := op.NewDN()
	if d == nil || newDN == nil {
		return nil
	}

	sub := &operation.SubOperation{PreviousDN: d.String()}
	if b.isSuffix(d) {
		return b.record(op, sub, ldap.NewResultError(ldap.ResultUnwillingToPerform, "suffix %s cannot be renamed", d))
	}
	if newDN.IsDescendantOf(d) {
		return b.record(op, sub, ldap.NewResultError(ldap.ResultUnwillingToPerform, "entry %s cannot be moved below itself", d))
	}
	if !b.serves(newDN) || b.isSuffix(newDN) {
		return b.record(op, sub, ldap.NewResultError(ldap.ResultAffectsMultipleDSAs, "%s is outside the entries held by backend %s", newDN, b.name))
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	err := b.store.db.Update(func(txn *badger.Txn) error {
		norm := d.Normalized()
		current, err := getEntry(txn, norm)
		if errors.Is(err, errNotFound) {
			return b.noSuchObject(txn, d, "entry %s does not exist", d)
		}
		if err != nil {
			return err
		}
		if hasChildren(txn, norm) {
			return ldap.NewResultError(ldap.ResultNotAllowedOnNonLeaf, "entry %s has subordinates and cannot be renamed", d)
		}

		newNorm := newDN.Normalized()
		if newNorm != norm {
			found, err := exists(txn, newNorm)
			if err != nil {
				return err
			}
			if found {
				return ldap.NewResultError(ldap.ResultEntryAlreadyExists, "entry %s already exists", newDN)
			}
		}
		parent := newDN.Parent()
		if ok, err := exists(txn, parent.Normalized()); err != nil {
			return err
		} else if !ok {
			return b.noSuchObject(txn, newDN, "new superior %s does not exist", parent)
		}

		entry := current.Clone()
		entry.DN = newDN.String()
		if op.DeleteOldRDN() {
			newValues := make(map[string]bool)
			for _, ava := range newDN.RDN().AVAs() {
				newValues[lowerPair(ava.Type, ava.Value)] = true
			}
			for _, ava := range d.RDN().AVAs() {
				if !newValues[lowerPair(ava.Type, ava.Value)] {
					entry.DeleteAttributeValue(ava.Type, ava.Value)
				}
			}
		}
		for _, ava := range newDN.RDN().AVAs() {
			entry.AddAttributeValue(ava.Type, ava.Value)
		}
		if !entry.HasAttribute("objectClass") {
			return ldap.NewResultError(ldap.ResultObjectClassViolation, "entry %s would have no objectClass", newDN)
		}

		if err := op.CheckCanceled(); err != nil {
			return err
		}
		cn, err := b.store.nextChangeNumber()
		if err != nil {
			return err
		}
		setOperational(entry, changeModify, op.AuthorizationDN(), b.now())
		if err := deleteEntry(txn, norm, b.parentKey(d)); err != nil {
			return err
		}
		if err := putEntry(txn, newNorm, b.parentKey(newDN), entry); err != nil {
			return err
		}

		sub.Entry = entry.Clone()
		sub.PreviousEntry = current
		sub.ChangeNumber = cn
		return nil
	})
	return b.record(op, sub, err)
}

func lowerPair(attr, value string) string {
	return strings.ToLower(attr) + "=" + strings.ToLower(value)
}
