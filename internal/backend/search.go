package backend

import (
	"errors"

	"github.com/dgraph-io/badger/v3"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// cancelCheckInterval is how many candidates are examined between two
// cancellation checks.
const cancelCheckInterval = 64

// search collects the matching entries in one read transaction and streams
// them afterwards, so no transaction stays open while the client reads.
func (b *Backend) search(op *operation.SearchOperation) error {
	if err := op.CheckCanceled(); err != nil {
		return err
	}

	base := op.BaseDN()
	f := op.Filter()
	attrs := op.Attributes()
	if base == nil || f == nil || attrs == nil {
		return nil
	}

	var matches []*ldap.Entry
	err := b.store.db.View(func(txn *badger.Txn) error {
		baseEntry, err := getEntry(txn, base.Normalized())
		if errors.Is(err, errNotFound) {
			return b.noSuchObject(txn, base, "entry %s does not exist", base)
		}
		if err != nil {
			return err
		}

		if op.Scope() == ldap.ScopeBaseObject {
			if filter.Matches(f, baseEntry) {
				matches = append(matches, baseEntry)
			}
			return nil
		}

		examined := 0
		var scanErr error
		err = scan(txn, func(e *ldap.Entry) bool {
			examined++
			if examined%cancelCheckInterval == 0 {
				if scanErr = op.CheckCanceled(); scanErr != nil {
					return false
				}
			}
			d, err := dn.Parse(e.DN)
			if err != nil {
				b.logger.Warn("skipping entry with invalid DN", "dn", e.DN, "error", err)
				return true
			}
			if inScope(d, base, op.Scope()) && filter.Matches(f, e) {
				matches = append(matches, e)
			}
			return true
		})
		if err != nil {
			return err
		}
		return scanErr
	})
	if err != nil {
		return b.record(op, &operation.SubOperation{}, err)
	}

	for i, e := range matches {
		if i%cancelCheckInterval == 0 {
			if err := op.CheckCanceled(); err != nil {
				return err
			}
		}
		if !op.ReturnEntry(e.Project(attrs, op.TypesOnly()), nil) {
			// The search recorded why it stopped.
			op.Context().AddSubOperation(&operation.SubOperation{Parent: op, Backend: b.name, Code: op.ResultCode()})
			return nil
		}
	}
	return b.record(op, &operation.SubOperation{}, nil)
}

func inScope(d, base *dn.DN, scope ldap.SearchScope) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return d.Equal(base)
	case ldap.ScopeSingleLevel:
		parent := d.Parent()
		return parent != nil && parent.Equal(base)
	case ldap.ScopeWholeSubtree:
		return d.IsWithin(base)
	default:
		return false
	}
}
