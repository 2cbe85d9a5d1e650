package psearch

import (
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

type persistentWorkflow struct {
	inner    operation.Workflow
	registry *Registry
}

// Wrap returns a workflow that runs inner and turns searches carrying the
// persistent search control into persistent searches. Every other request
// goes to inner unchanged.
func Wrap(inner operation.Workflow, registry *Registry) operation.Workflow {
	return &persistentWorkflow{inner: inner, registry: registry}
}

func (w *persistentWorkflow) Execute(op operation.Operation) error {
	search, ok := op.(*operation.SearchOperation)
	if !ok {
		return w.inner.Execute(op)
	}

	control, err := FindControl(op.RequestControls())
	if err != nil {
		return ldap.NewResultError(ldap.ResultProtocolError, "cannot decode the persistent search control: %v", err)
	}
	if control == nil {
		return w.inner.Execute(op)
	}

	if control.ChangesOnly {
		op.SetResultCode(ldap.ResultSuccess)
	} else {
		if err := w.inner.Execute(op); err != nil {
			return err
		}
		if op.ResultCode() != ldap.ResultSuccess {
			return nil
		}
	}

	l := newListener(search, control, w.registry.logger)
	search.MakePersistent(func() { w.registry.Deregister(l) })
	w.registry.Register(l)
	l.logger.Debug("persistent search registered", "base", search.RawBaseDN(), "changes", control.ChangeTypes.String())
	return nil
}
