package backend

import (
	"errors"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v3"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// modify applies the modifications atomically: either all of them are
// stored or none.
func (b *Backend) modify(op *operation.ModifyOperation) error {
	if err := op.CheckCanceled(); err != nil {
		return err
	}

	d := op.EntryDN()
	mods := op.Modifications()
	if d == nil || mods == nil {
		return nil
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	sub := &operation.SubOperation{}
	err := b.store.db.Update(func(txn *badger.Txn) error {
		norm := d.Normalized()
		current, err := getEntry(txn, norm)
		if errors.Is(err, errNotFound) {
			return b.noSuchObject(txn, d, "entry %s does not exist", d)
		}
		if err != nil {
			return err
		}

		entry := current.Clone()
		for _, m := range mods {
			if err := applyModification(entry, m); err != nil {
				return err
			}
		}
		if err := checkRDN(entry, d); err != nil {
			return err
		}
		if !entry.HasAttribute("objectClass") {
			return ldap.NewResultError(ldap.ResultObjectClassViolation, "entry %s would have no objectClass", d)
		}

		if err := op.CheckCanceled(); err != nil {
			return err
		}
		cn, err := b.store.nextChangeNumber()
		if err != nil {
			return err
		}
		setOperational(entry, changeModify, op.AuthorizationDN(), b.now())
		if err := putEntry(txn, norm, b.parentKey(d), entry); err != nil {
			return err
		}

		sub.Entry = entry.Clone()
		sub.PreviousEntry = current
		sub.ChangeNumber = cn
		return nil
	})
	return b.record(op, sub, err)
}

func applyModification(entry *ldap.Entry, m ldap.Modification) error {
	name := m.Attribute.Type
	values := m.Attribute.StringValues()
	if IsOperational(name) {
		return ldap.NewResultError(ldap.ResultConstraintViolation, "attribute %s is not user-modifiable", name)
	}

	switch m.Operation {
	case ldap.ModifyOperationAdd:
		for _, v := range values {
			if !entry.AddAttributeValue(name, v) {
				return ldap.NewResultError(ldap.ResultAttributeOrValueExists, "attribute %s already has value %s", name, v)
			}
		}
	case ldap.ModifyOperationDelete:
		if len(values) == 0 {
			if !entry.HasAttribute(name) {
				return ldap.NewResultError(ldap.ResultNoSuchAttribute, "entry %s has no attribute %s", entry.DN, name)
			}
			entry.DeleteAttribute(name)
			return nil
		}
		for _, v := range values {
			if !entry.DeleteAttributeValue(name, v) {
				return ldap.NewResultError(ldap.ResultNoSuchAttribute, "attribute %s has no value %s", name, v)
			}
		}
	case ldap.ModifyOperationReplace:
		if len(values) == 0 {
			entry.DeleteAttribute(name)
		} else {
			entry.SetAttribute(name, values...)
		}
	case ldap.ModifyOperationIncrement:
		return increment(entry, name, values)
	default:
		return ldap.NewResultError(ldap.ResultProtocolError, "unknown modification type %d", m.Operation)
	}
	return nil
}

// increment adds the single increment value to every value of name (RFC 4525).
func increment(entry *ldap.Entry, name string, values []string) error {
	if len(values) != 1 {
		return ldap.NewResultError(ldap.ResultProtocolError, "increment of %s needs exactly one value", name)
	}
	delta, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return ldap.NewResultError(ldap.ResultInvalidAttributeSyntax, "increment value %q of %s is not an integer", values[0], name)
	}

	current := entry.GetAttribute(name)
	if len(current) == 0 {
		return ldap.NewResultError(ldap.ResultNoSuchAttribute, "entry %s has no attribute %s to increment", entry.DN, name)
	}
	updated := make([]string, len(current))
	for i, v := range current {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return ldap.NewResultError(ldap.ResultConstraintViolation, "value %q of %s is not an integer", v, name)
		}
		updated[i] = strconv.FormatInt(n+delta, 10)
	}
	entry.SetAttribute(name, updated...)
	return nil
}

// checkRDN verifies the entry still holds the values of its RDN.
func checkRDN(entry *ldap.Entry, d *dn.DN) error {
	for _, ava := range d.RDN().AVAs() {
		found := false
		for _, v := range entry.GetAttribute(ava.Type) {
			if strings.EqualFold(v, ava.Value) {
				found = true
				break
			}
		}
		if !found {
			return ldap.NewResultError(ldap.ResultNotAllowedOnRDN, "the RDN value %s=%s of %s cannot be removed", ava.Type, ava.Value, d)
		}
	}
	return nil
}
