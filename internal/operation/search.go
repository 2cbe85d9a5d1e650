package operation

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// SearchOperation searches the directory and streams matching entries.
type SearchOperation struct {
	Base

	rawBaseDN string
	baseDN    *dn.DN

	rawFilter string
	filter    *filter.Filter

	rawAttributes []string
	attributes    []string

	scope        ldap.SearchScope
	derefAliases ldap.DerefAliases
	typesOnly    bool

	sizeLimit           int
	timeLimit           time.Duration
	timeLimitExpiration time.Time

	entriesSent            atomic.Int64
	referencesSent         atomic.Int64
	clientRejectsReferrals atomic.Bool
	responseSent           atomic.Bool

	persistent atomic.Pointer[persistentHandle]
}

type persistentHandle struct {
	deregister func()
}

// NewSearchOperation creates a search operation. Its size and time limits are
// the smaller of the request's and the connection's, where a value <= 0 on
// either side means unlimited.
func NewSearchOperation(conn Connection, operationID, messageID int64, controls []ldap.Control, req *ldap.SearchRequest) *SearchOperation {
	op := &SearchOperation{
		rawBaseDN:     req.BaseObject,
		rawFilter:     req.Filter,
		rawAttributes: req.Attributes,
		scope:         req.Scope,
		derefAliases:  req.DerefAliases,
		typesOnly:     req.TypesOnly,
	}
	op.init(op, KindSearch, conn, operationID, messageID, controls)

	connSize, connTime := 0, time.Duration(0)
	if conn != nil {
		connSize, connTime = conn.SizeLimit(), conn.TimeLimit()
	}
	op.sizeLimit = minLimit(req.SizeLimit, connSize)
	op.timeLimit = time.Duration(minLimit(int64(req.TimeLimit)*int64(time.Second), int64(connTime)))
	return op
}

func minLimit[T int | int64](request, connection T) T {
	switch {
	case request <= 0 && connection <= 0:
		return 0
	case request <= 0:
		return connection
	case connection <= 0:
		return request
	case request < connection:
		return request
	default:
		return connection
	}
}

// RawBaseDN returns the base DN as sent by the client.
func (op *SearchOperation) RawBaseDN() string { return op.rawBaseDN }

// SetRawBaseDN replaces the raw base DN and drops the decoded one.
func (op *SearchOperation) SetRawBaseDN(raw string) {
	op.rawBaseDN = raw
	op.baseDN = nil
}

// BaseDN decodes the base DN on first use; nil after a recorded failure.
func (op *SearchOperation) BaseDN() *dn.DN {
	if op.baseDN == nil {
		d, err := decodeDN(op.rawBaseDN)
		if err != nil {
			op.decodeFailed(ldap.ResultInvalidDNSyntax, "cannot decode base DN %q: %v", op.rawBaseDN, err)
			return nil
		}
		op.baseDN = d
	}
	return op.baseDN
}

// RawFilter returns the filter as sent by the client.
func (op *SearchOperation) RawFilter() string { return op.rawFilter }

// SetRawFilter replaces the raw filter and drops the decoded one.
func (op *SearchOperation) SetRawFilter(raw string) {
	op.rawFilter = raw
	op.filter = nil
}

// Filter decodes the filter on first use; nil after a recorded failure.
func (op *SearchOperation) Filter() *filter.Filter {
	if op.filter == nil {
		f, err := decodeFilter(op.rawFilter)
		if err != nil {
			op.decodeFailed(ldap.ResultProtocolError, "cannot decode filter %q: %v", op.rawFilter, err)
			return nil
		}
		op.filter = f
	}
	return op.filter
}

// RawAttributes returns the requested attributes as sent by the client.
func (op *SearchOperation) RawAttributes() []string { return op.rawAttributes }

// SetRawAttributes replaces the requested attributes.
func (op *SearchOperation) SetRawAttributes(attrs []string) {
	op.rawAttributes = attrs
	op.attributes = nil
}

// Attributes validates the requested attributes on first use; nil after a
// recorded failure. An empty request yields an empty, non-nil list.
func (op *SearchOperation) Attributes() []string {
	if op.attributes == nil {
		attrs, err := decodeAttributeList(op.rawAttributes)
		if err != nil {
			op.decodeFailed(ldap.ResultProtocolError, "invalid requested attribute: %v", err)
			return nil
		}
		op.attributes = attrs
	}
	return op.attributes
}

// Scope returns the search scope.
func (op *SearchOperation) Scope() ldap.SearchScope { return op.scope }

// DerefAliases returns the alias dereferencing policy.
func (op *SearchOperation) DerefAliases() ldap.DerefAliases { return op.derefAliases }

// TypesOnly reports whether only attribute types are returned.
func (op *SearchOperation) TypesOnly() bool { return op.typesOnly }

// SizeLimit returns the effective size limit; 0 means unlimited.
func (op *SearchOperation) SizeLimit() int { return op.sizeLimit }

// TimeLimit returns the effective time limit; 0 means unlimited.
func (op *SearchOperation) TimeLimit() time.Duration { return op.timeLimit }

// EntriesSent returns the number of entries sent to the client.
func (op *SearchOperation) EntriesSent() int64 { return op.entriesSent.Load() }

// ReferencesSent returns the number of references sent to the client.
func (op *SearchOperation) ReferencesSent() int64 { return op.referencesSent.Load() }

func (op *SearchOperation) start() {
	op.Base.start()
	if op.timeLimit > 0 {
		op.timeLimitExpiration = op.startTime.Add(op.timeLimit)
	}
}

func (op *SearchOperation) timeLimitExceeded() bool {
	return op.timeLimit > 0 && !op.timeLimitExpiration.IsZero() && !time.Now().Before(op.timeLimitExpiration)
}

// ReturnEntry sends one matching entry to the client. It returns false when
// the search must stop: the operation was cancelled, a limit was reached, a
// plugin ended the search, or the client could not be written to.
func (op *SearchOperation) ReturnEntry(entry *ldap.Entry, controls []ldap.Control) bool {
	if op.cancel.request.Load() != nil {
		op.SetResultCode(ldap.ResultCanceled)
		return false
	}
	if op.sizeLimit > 0 && op.entriesSent.Load() >= int64(op.sizeLimit) {
		op.SetResultCode(ldap.ResultSizeLimitExceeded)
		op.AppendErrorMessage(fmt.Sprintf("this search operation has sent the maximum of %d entries to the client", op.sizeLimit))
		return false
	}
	if op.timeLimitExceeded() {
		op.SetResultCode(ldap.ResultTimeLimitExceeded)
		op.AppendErrorMessage(fmt.Sprintf("the maximum time limit of %s for processing this search operation has expired", op.timeLimit))
		return false
	}

	decision := op.plugins().SearchEntry(op, entry, controls)
	if decision.Terminate {
		op.SetResultCode(ldap.ResultCanceled)
		op.AppendErrorMessage(fmt.Sprintf("canceled by a search entry plugin that disconnected the client while returning entry %s", entry.DN))
		return false
	}

	if decision.Send {
		if err := op.conn.SendSearchEntry(op, entry, controls); err != nil {
			op.logger().Error("failed to send search entry", "conn_id", op.conn.ID(), "op_id", op.operationID, "dn", entry.DN, "error", err)
			return false
		}
		op.logSink().LogSearchEntry(op, entry)
		op.entriesSent.Add(1)
	}

	return decision.Continue
}

// ReturnReference sends a continuation reference to the client. Clients that
// reject referrals silently stop receiving them.
func (op *SearchOperation) ReturnReference(urls []string) bool {
	if op.cancel.request.Load() != nil {
		op.SetResultCode(ldap.ResultCanceled)
		return false
	}
	if op.timeLimitExceeded() {
		op.SetResultCode(ldap.ResultTimeLimitExceeded)
		op.AppendErrorMessage(fmt.Sprintf("the maximum time limit of %s for processing this search operation has expired", op.timeLimit))
		return false
	}
	if op.clientRejectsReferrals.Load() {
		return true
	}

	decision := op.plugins().SearchReference(op, urls)
	if decision.Terminate {
		op.SetResultCode(ldap.ResultCanceled)
		op.AppendErrorMessage(fmt.Sprintf("canceled by a search reference plugin that disconnected the client while returning reference %v", urls))
		return false
	}

	if decision.Send {
		accepted, err := op.conn.SendSearchReference(op, urls)
		if err != nil {
			op.logger().Error("failed to send search reference", "conn_id", op.conn.ID(), "op_id", op.operationID, "error", err)
			return false
		}
		if accepted {
			op.logSink().LogSearchReference(op, urls)
			op.referencesSent.Add(1)
		} else {
			op.clientRejectsReferrals.Store(true)
		}
	}

	return decision.Continue
}

// sendDone sends the search result done message at most once.
func (op *SearchOperation) sendDone() bool {
	if !op.responseSent.CompareAndSwap(false, true) {
		return false
	}
	op.sendResponse()
	return true
}

// SendSearchResultDone sends the final response, logs it and runs the
// post-response plugins, at most once. The engine calls it for normal
// searches; persistent searches call it when they end.
func (op *SearchOperation) SendSearchResultDone() {
	if !op.sendDone() {
		return
	}
	op.logSink().LogResponse(op)
	op.dispatchPostResponse()
	op.finish()
}

// MakePersistent turns the search into a persistent search. The done
// response is held back and the limits are lifted; deregister is called
// once when the search is cancelled.
func (op *SearchOperation) MakePersistent(deregister func()) {
	op.sizeLimit = 0
	op.timeLimit = 0
	op.timeLimitExpiration = time.Time{}
	op.persistent.Store(&persistentHandle{deregister: deregister})
}

// IsPersistent reports whether the search is (still) a persistent search.
func (op *SearchOperation) IsPersistent() bool {
	return op.persistent.Load() != nil
}

// endPersistence deregisters a persistent search. It reports false when the
// search was not, or is no longer, persistent.
func (op *SearchOperation) endPersistence() bool {
	h := op.persistent.Swap(nil)
	if h == nil {
		return false
	}
	if h.deregister != nil {
		h.deregister()
	}
	return true
}

// cancelWithin ends a live persistent search directly: the initial phase is
// over, so nobody else would publish a cancel result.
func (op *SearchOperation) cancelWithin(req *CancelRequest, timeout, poll time.Duration) CancelResult {
	if !op.endPersistence() {
		return op.Base.cancelWithin(req, timeout, poll)
	}
	op.cancel.store(req)
	if op.cancel.current() != CancelTooLate {
		return op.Base.cancelWithin(req, timeout, poll)
	}

	req = op.cancel.request.Load()
	op.SetResultCode(ldap.ResultCanceled)
	op.AppendErrorMessage(req.Reason)
	op.stop()
	if req.NotifyOriginalRequestor || op.notifyAbandoned() {
		op.SendSearchResultDone()
	} else if op.responseSent.CompareAndSwap(false, true) {
		op.logSink().LogResponse(op)
		op.dispatchPostResponse()
		op.finish()
	}
	return CancelCanceled
}

// Cancel implements Operation.
func (op *SearchOperation) Cancel(req *CancelRequest) CancelResult {
	return op.cancelWithin(req, DefaultCancelWaitTimeout, DefaultCancelPollInterval)
}
