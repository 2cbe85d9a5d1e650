// Package operation implements the lifecycle of LDAP client operations.
//
// An operation is created by the connection layer from a decoded request and
// handed to an Engine, which runs it on the calling goroutine through a fixed
// sequence of steps:
//
//	init -> early cancel -> pre-parse plugins -> log request ->
//	cancel recheck -> decode -> workflow dispatch -> triage
//
// Any step may jump to the triage, which is the single place where the
// response is sent. The triage looks at the cancellation state in this
// order:
//
//   - the connection was torn down: log the response and stop
//   - a cancel request is pending: the operation ends with canceled
//   - otherwise it is too late to cancel: send the response, notify
//     persistent searches and run the post-response plugins
//
// Bind operations follow a shorter pipeline without cancel checkpoints.
//
// # Cancellation
//
// Cancel requests come from other goroutines:
//
//	result := engine.Cancel(op, &operation.CancelRequest{
//	    Reason:                  "abandoned by client",
//	    NotifyOriginalRequestor: false,
//	})
//
// Cancel stores the request and polls until the running operation publishes
// a result or the wait timeout expires, in which case CancelCannotCancel is
// returned and the operation carries on.
//
// # Workflows
//
// A Workflow performs the backend work. It records the outcome on the
// operation, either directly or by returning a *ldap.ResultError, and appends
// one SubOperation per backend it touched to op.Context(). Long-running
// workflows poll op.CheckCanceled() and return ErrCanceled when it fires.
//
// # Raw and decoded values
//
// Request fields keep the client's raw form and decode lazily. A field that
// fails to decode records the result code and message on the operation and
// its accessor returns nil; setting the raw value drops the decoded one.
package operation
