package operation

import (
	"fmt"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// notifyPersistentSearches forwards every successful sub-operation of a
// committed change to the registered persistent searches.
func (e *Engine) notifyPersistentSearches(op Operation) {
	if e.psearch == nil || !op.base().workflowExecuted {
		return
	}
	switch op.Kind() {
	case KindAdd, KindModify, KindModifyDN:
	default:
		return
	}

	for _, sub := range op.Context().SubOperations() {
		if sub.Code != ldap.ResultSuccess {
			continue
		}
		for _, o := range e.psearch.Observers() {
			e.notifyObserver(o, sub)
		}
	}
}

// notifyObserver delivers one change. An observer that fails or panics is
// removed; the change itself stands.
func (e *Engine) notifyObserver(o PersistentSearchObserver, sub *SubOperation) {
	log := sub.Parent.base().opLogger()
	defer func() {
		if r := recover(); r != nil {
			log.Error("persistent search panicked, deregistering", "panic", fmt.Sprint(r))
			e.psearch.Deregister(o)
		}
	}()

	var err error
	switch sub.Kind() {
	case KindAdd:
		err = o.ProcessAdd(sub)
	case KindModify:
		err = o.ProcessModify(sub)
	case KindModifyDN:
		err = o.ProcessModifyDN(sub)
	}
	if err != nil {
		log.Error("persistent search failed, deregistering", "error", err)
		e.psearch.Deregister(o)
	}
}
