package backend

import (
	"errors"

	"github.com/dgraph-io/badger/v3"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// bind verifies a simple bind against the entry's userPassword values.
// Unknown entries and wrong passwords are indistinguishable to the client.
func (b *Backend) bind(op *operation.BindOperation) error {
	if op.AuthMethod() != ldap.AuthMethodSimple {
		return b.record(op, &operation.SubOperation{},
			ldap.NewResultError(ldap.ResultAuthMethodNotSupported, "backend %s only supports simple binds", b.name))
	}

	d := op.BindDN()
	if d == nil {
		return nil
	}

	var entry *ldap.Entry
	err := b.store.db.View(func(txn *badger.Txn) error {
		var err error
		entry, err = getEntry(txn, d.Normalized())
		return err
	})
	switch {
	case errors.Is(err, errNotFound):
		b.logger.Debug("bind to unknown entry", "dn", d.String())
		return b.record(op, &operation.SubOperation{}, invalidCredentials())
	case err != nil:
		return b.record(op, &operation.SubOperation{}, err)
	}

	password := string(op.SimplePassword())
	for _, stored := range entry.GetAttribute(PasswordAttribute) {
		if VerifyPassword(password, stored) == nil {
			op.SetAuthenticatedDN(entry.DN)
			return b.record(op, &operation.SubOperation{}, nil)
		}
	}
	return b.record(op, &operation.SubOperation{}, invalidCredentials())
}

func invalidCredentials() error {
	return ldap.NewResultError(ldap.ResultInvalidCredentials, "invalid credentials")
}
