package psearch

import (
	"errors"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// ErrSearchEnded is returned by a listener whose search can no longer
// receive entries.
var ErrSearchEnded = errors.New("psearch: search ended")

// Listener forwards committed changes to one persistent search.
type Listener struct {
	op      *operation.SearchOperation
	control *Control
	base    *dn.DN
	filter  *filter.Filter
	logger  logging.Logger
}

func newListener(op *operation.SearchOperation, control *Control, logger logging.Logger) *Listener {
	return &Listener{
		op:      op,
		control: control,
		base:    op.BaseDN(),
		filter:  op.Filter(),
		logger:  logger.WithFields("op_id", op.OperationID(), "msg_id", op.MessageID()),
	}
}

// Search returns the persistent search the listener feeds.
func (l *Listener) Search() *operation.SearchOperation { return l.op }

// ProcessAdd implements operation.PersistentSearchObserver.
func (l *Listener) ProcessAdd(sub *operation.SubOperation) error {
	return l.process(sub, ChangeAdd)
}

// ProcessModify implements operation.PersistentSearchObserver.
func (l *Listener) ProcessModify(sub *operation.SubOperation) error {
	return l.process(sub, ChangeModify)
}

// ProcessModifyDN implements operation.PersistentSearchObserver.
func (l *Listener) ProcessModifyDN(sub *operation.SubOperation) error {
	return l.process(sub, ChangeModDN)
}

func (l *Listener) process(sub *operation.SubOperation, change ChangeType) error {
	if !l.control.Wants(change) || sub.Entry == nil {
		return nil
	}
	if !l.op.IsPersistent() {
		return ErrSearchEnded
	}

	d, err := dn.Parse(sub.Entry.DN)
	if err != nil {
		return err
	}
	if !inScope(d, l.base, l.op.Scope()) || !filter.Matches(l.filter, sub.Entry) {
		return nil
	}

	var controls []ldap.Control
	if l.control.ReturnECs {
		ecn := &EntryChangeNotification{ChangeType: change, ChangeNumber: sub.ChangeNumber}
		if change == ChangeModDN {
			ecn.PreviousDN = sub.PreviousDN
		}
		controls = append(controls, ecn.LDAPControl())
	}

	l.logger.Debug("returning change", "change", change.String(), "dn", sub.Entry.DN)
	if !l.op.ReturnEntry(sub.Entry.Project(l.op.Attributes(), l.op.TypesOnly()), controls) {
		return ErrSearchEnded
	}
	return nil
}

func inScope(d, base *dn.DN, scope ldap.SearchScope) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return d.Equal(base)
	case ldap.ScopeSingleLevel:
		parent := d.Parent()
		return parent != nil && parent.Equal(base)
	default:
		return d.IsWithin(base)
	}
}
