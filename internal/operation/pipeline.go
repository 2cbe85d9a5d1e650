package operation

import (
	"errors"
	"fmt"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// Error messages recorded by the pipeline.
const (
	msgPreParseDisconnect = "canceled by pre-parse plugin disconnect"
	msgAddRootDSE         = "cannot add the root DSE"
)

var errWorkflowPanic = errors.New("operation: workflow panicked")

// outcome tells the driver what to do after a step.
type outcome int

const (
	// proceed runs the next step.
	proceed outcome = iota
	// finalize skips the remaining steps and runs the finalizer.
	finalize
	// done ends processing; the step already did all the work.
	done
)

type step func(e *Engine, op Operation) outcome

// pipeline is the sequence of steps followed by the finalizer that every
// path through the steps, other than done, rejoins.
type pipeline struct {
	steps    []step
	finalize func(e *Engine, op Operation)
}

var (
	standardPipeline = pipeline{
		steps: []step{
			(*Engine).initialize,
			(*Engine).earlyCancel,
			(*Engine).preParse,
			(*Engine).logRequest,
			(*Engine).cancelRecheck,
			(*Engine).decode,
			(*Engine).dispatch,
		},
		finalize: (*Engine).triage,
	}

	bindPipeline = pipeline{
		steps: []step{
			(*Engine).initialize,
			(*Engine).resetIdentity,
			(*Engine).preParse,
			(*Engine).logRequest,
			(*Engine).decode,
			(*Engine).dispatchBind,
		},
		finalize: (*Engine).finishBind,
	}
)

func (e *Engine) drive(p pipeline, op Operation) {
	for _, s := range p.steps {
		switch s(e, op) {
		case proceed:
			continue
		case done:
			return
		}
		break
	}
	p.finalize(e, op)
}

func (e *Engine) run(op Operation) { e.drive(standardPipeline, op) }

func (e *Engine) runBind(op *BindOperation) { e.drive(bindPipeline, op) }

func (e *Engine) initialize(op Operation) outcome {
	op.start()
	return proceed
}

// earlyCancel ends an operation that was cancelled before it started. Nothing
// is logged on this path.
func (e *Engine) earlyCancel(op Operation) outcome {
	b := op.base()
	if b.cancel.current() == CancelCanceled {
		b.stop()
		b.finish()
		return done
	}
	req := b.cancel.pending()
	if req == nil {
		return proceed
	}
	if b.cancel.publish(CancelCanceled) {
		op.SetResultCode(ldap.ResultCanceled)
		op.AppendErrorMessage(req.Reason)
		b.stop()
		if req.NotifyOriginalRequestor || e.config.NotifyAbandonedOperations {
			e.respond(op)
		}
		b.finish()
		return done
	}
	b.stop()
	b.finish()
	return done
}

func (e *Engine) preParse(op Operation) outcome {
	b := op.base()
	switch e.plugins.PreParse(op) {
	case PreParseTerminate:
		b.cancel.publish(CancelCanceled)
		op.SetResultCode(ldap.ResultCanceled)
		op.AppendErrorMessage(msgPreParseDisconnect)
		b.stop()
		e.logSink.LogRequest(op)
		e.logSink.LogResponse(op)
		b.dispatchPostResponse()
		b.finish()
		return done
	case PreParseRespondNow, PreParseSkipCore:
		e.logSink.LogRequest(op)
		return finalize
	default:
		return proceed
	}
}

func (e *Engine) logRequest(op Operation) outcome {
	e.logSink.LogRequest(op)
	return proceed
}

func (e *Engine) cancelRecheck(op Operation) outcome {
	if op.base().cancel.pending() != nil {
		return finalize
	}
	return proceed
}

// decode forces the identifying fields of the request. A failed accessor has
// already recorded the outcome on op.
func (e *Engine) decode(op Operation) outcome {
	ok := true
	switch o := op.(type) {
	case *AddOperation:
		ok = o.EntryDN() != nil
	case *ModifyOperation:
		ok = o.EntryDN() != nil
	case *ModifyDNOperation:
		ok = o.EntryDN() != nil
	case *SearchOperation:
		ok = o.BaseDN() != nil && o.Filter() != nil
	case *BindOperation:
		ok = o.BindDN() != nil
	}
	if !ok {
		return finalize
	}
	return proceed
}

// targetDN returns the decoded DN that selects the workflow.
func targetDN(op Operation) *dn.DN {
	switch o := op.(type) {
	case *AddOperation:
		return o.EntryDN()
	case *ModifyOperation:
		return o.EntryDN()
	case *ModifyDNOperation:
		return o.EntryDN()
	case *SearchOperation:
		return o.BaseDN()
	case *BindOperation:
		return o.BindDN()
	default:
		return nil
	}
}

func networkGroup(op Operation) NetworkGroup {
	if conn := op.Connection(); conn != nil {
		return conn.NetworkGroup()
	}
	return nil
}

func (e *Engine) dispatch(op Operation) outcome {
	if op.base().cancel.pending() != nil {
		return finalize
	}

	target := targetDN(op)
	ng := networkGroup(op)
	var wf Workflow
	if ng != nil {
		wf = ng.WorkflowCandidate(target)
	}
	if wf == nil {
		noWorkflow(op, ng, target)
		return finalize
	}

	e.executeWorkflow(wf, op)
	return finalize
}

// noWorkflow records the outcome of a request no workflow serves.
func noWorkflow(op Operation, ng NetworkGroup, target *dn.DN) {
	if op.Kind() != KindAdd {
		op.SetResultCode(ldap.ResultNoSuchObject)
		op.AppendErrorMessage(fmt.Sprintf("entry %s does not exist: no backend serves its suffix", target))
		return
	}

	isSuffix := func(d *dn.DN) bool { return ng != nil && ng.IsNamingContext(d) }
	switch {
	case isSuffix(target):
		// A suffix always has a workflow; nothing to report.
	case target.IsRoot():
		op.SetResultCode(ldap.ResultUnwillingToPerform)
		op.AppendErrorMessage(msgAddRootDSE)
	case target.ParentInSuffix(isSuffix) == nil:
		op.SetResultCode(ldap.ResultNoSuchObject)
		op.AppendErrorMessage(fmt.Sprintf("entry %s cannot be added because it has no parent and is not a suffix", target))
	default:
		op.SetResultCode(ldap.ResultNoSuchObject)
		op.AppendErrorMessage(fmt.Sprintf("entry %s cannot be added because no backend serves its suffix", target))
	}
}

// executeWorkflow runs wf and converts its error into the outcome. A workflow
// that stopped on ErrCanceled leaves the outcome to the cancel triage.
func (e *Engine) executeWorkflow(wf Workflow, op Operation) {
	b := op.base()
	b.workflowExecuted = true

	err := e.callWorkflow(wf, op)
	switch {
	case err == nil:
	case errors.Is(err, ErrCanceled):
	default:
		op.SetResponseData(err)
	}
}

func (e *Engine) callWorkflow(wf Workflow, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			op.base().opLogger().Error("workflow panicked", "panic", r)
			err = fmt.Errorf("%w: %v", errWorkflowPanic, r)
		}
	}()
	return wf.Execute(op)
}

// triage decides, in order, whether the operation was torn down, is to be
// cancelled now, or is too late to cancel and completes normally.
func (e *Engine) triage(op Operation) {
	b := op.base()

	if b.cancel.current() == CancelCanceled {
		b.stop()
		e.logSink.LogResponse(op)
		b.finish()
		return
	}

	if req := b.cancel.pending(); req != nil {
		if !b.cancel.publish(CancelCanceled) {
			// Lost to a disconnect.
			b.stop()
			e.logSink.LogResponse(op)
			b.finish()
			return
		}
		op.SetResultCode(ldap.ResultCanceled)
		op.AppendErrorMessage(req.Reason)
		b.stop()
		search, isSearch := op.(*SearchOperation)
		if isSearch {
			search.endPersistence()
		}
		if req.NotifyOriginalRequestor || e.config.NotifyAbandonedOperations {
			e.respond(op)
		} else if isSearch {
			search.responseSent.Store(true)
		}
		e.logSink.LogResponse(op)
		b.dispatchPostResponse()
		b.finish()
		return
	}

	if !b.cancel.publish(CancelTooLate) {
		b.stop()
		e.logSink.LogResponse(op)
		b.finish()
		return
	}
	b.stop()

	if s, ok := op.(*SearchOperation); ok {
		// A persistent search is answered when it ends. A cancel that ended
		// it after TOO_LATE was published has already answered.
		if !s.IsPersistent() {
			s.SendSearchResultDone()
			b.finish()
		}
		return
	}

	e.respond(op)
	e.logSink.LogResponse(op)
	e.notifyPersistentSearches(op)
	b.dispatchPostResponse()
	b.finish()
}

// respond sends the final response once.
func (e *Engine) respond(op Operation) {
	if s, ok := op.(*SearchOperation); ok {
		s.sendDone()
		return
	}
	op.base().sendResponse()
}

// resetIdentity drops the connection's identity: a bind in progress leaves the
// client unauthenticated until it succeeds.
func (e *Engine) resetIdentity(op Operation) outcome {
	if conn := op.Connection(); conn != nil {
		conn.SetAuthenticatedDN("")
	}
	return proceed
}

func (e *Engine) dispatchBind(op Operation) outcome {
	bind := op.(*BindOperation)
	if bind.IsAnonymous() {
		op.SetResultCode(ldap.ResultSuccess)
		return finalize
	}

	var wf Workflow
	if ng := networkGroup(op); ng != nil {
		wf = ng.WorkflowCandidate(bind.BindDN())
	}
	if wf == nil {
		op.SetResultCode(ldap.ResultInvalidCredentials)
		op.AppendErrorMessage(fmt.Sprintf("no backend serves bind DN %s", bind.BindDN()))
		return finalize
	}

	e.executeWorkflow(wf, op)
	return finalize
}

// finishBind completes a bind. Binds are never cancelled, so there is no
// triage; a successful bind takes effect before the client sees the response.
func (e *Engine) finishBind(op Operation) {
	bind := op.(*BindOperation)
	bind.stop()
	if op.ResultCode() == ldap.ResultSuccess {
		if conn := op.Connection(); conn != nil {
			conn.SetAuthenticatedDN(bind.AuthenticatedDN())
		}
	}
	bind.sendResponse()
	e.logSink.LogResponse(op)
	bind.dispatchPostResponse()
	bind.finish()
}
