package operation

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// Default bounds of the wait performed by Cancel.
const (
	DefaultCancelWaitTimeout  = 5 * time.Second
	DefaultCancelPollInterval = 50 * time.Millisecond
)

// ErrCanceled is returned by CheckCanceled once a cancel request is pending.
// Workflows return it (possibly wrapped) to stop early; the engine does not
// turn it into an operations error.
var ErrCanceled = errors.New("operation: canceled")

// CancelRequest asks a running operation to stop.
type CancelRequest struct {
	// Reason is appended to the diagnostic message of the cancelled operation.
	Reason string
	// NotifyOriginalRequestor sends a CANCELED response to the client that
	// issued the operation (Cancel extended operation). Abandon leaves it unset.
	NotifyOriginalRequestor bool
}

// CancelResult is the answer to a cancel request.
type CancelResult int32

const (
	// CancelPending means no terminal answer has been published yet.
	CancelPending CancelResult = iota
	CancelCanceled
	CancelCannotCancel
	CancelTooLate
)

// String returns the name of the cancel result.
func (c CancelResult) String() string {
	switch c {
	case CancelPending:
		return "pending"
	case CancelCanceled:
		return "canceled"
	case CancelCannotCancel:
		return "cannotCancel"
	case CancelTooLate:
		return "tooLate"
	default:
		return "unknown"
	}
}

// ResultCode maps the cancel result to the code of a Cancel extended response.
func (c CancelResult) ResultCode() ldap.ResultCode {
	switch c {
	case CancelCanceled:
		return ldap.ResultCanceled
	case CancelTooLate:
		return ldap.ResultTooLate
	case CancelCannotCancel:
		return ldap.ResultCannotCancel
	default:
		return ldap.ResultUndefined
	}
}

// cancellation is the request/result pair shared between the goroutine
// running the operation and any canceller.
type cancellation struct {
	request atomic.Pointer[CancelRequest]
	result  atomic.Int32
}

func (c *cancellation) current() CancelResult {
	return CancelResult(c.result.Load())
}

// publish stores a terminal result unless one is already stored.
func (c *cancellation) publish(r CancelResult) bool {
	return c.result.CompareAndSwap(int32(CancelPending), int32(r))
}

// pending returns the stored request while no terminal result exists.
func (c *cancellation) pending() *CancelRequest {
	if c.current() != CancelPending {
		return nil
	}
	return c.request.Load()
}

// store records req; the first request wins.
func (c *cancellation) store(req *CancelRequest) {
	if req == nil {
		req = &CancelRequest{}
	}
	c.request.CompareAndSwap(nil, req)
}

// wait stores req and polls for a terminal result. When none appears within
// timeout it reports CancelCannotCancel without storing it; the operation
// may still finish normally afterwards.
func (c *cancellation) wait(req *CancelRequest, timeout, poll time.Duration) CancelResult {
	c.store(req)

	if r := c.current(); r != CancelPending {
		return r
	}
	if timeout <= 0 {
		return CancelCannotCancel
	}
	if poll <= 0 || poll > timeout {
		poll = timeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if r := c.current(); r != CancelPending {
				return r
			}
		case <-deadline.C:
			if r := c.current(); r != CancelPending {
				return r
			}
			return CancelCannotCancel
		}
	}
}
