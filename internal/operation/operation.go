package operation

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// Operation is one client request. The set of implementations is closed:
// *AddOperation, *BindOperation, *ModifyOperation, *ModifyDNOperation and
// *SearchOperation.
type Operation interface {
	Kind() Kind
	OperationID() int64
	MessageID() int64
	Connection() Connection
	RequestControls() []ldap.Control

	ResultCode() ldap.ResultCode
	SetResultCode(code ldap.ResultCode)
	ErrorMessage() string
	AppendErrorMessage(msg string)
	MatchedDN() string
	Referrals() []string
	ResponseControls() []ldap.Control
	AddResponseControl(c ldap.Control)
	SetResponseData(err error)

	AuthorizationDN() string
	Context() *OpContext
	ProcessingTime() time.Duration

	CancelRequest() *CancelRequest
	CancelResult() CancelResult
	CheckCanceled() error
	// Cancel asks the operation to stop and waits for its answer with the
	// default bounds.
	Cancel(req *CancelRequest) CancelResult

	base() *Base
	start()
	cancelWithin(req *CancelRequest, timeout, poll time.Duration) CancelResult
}

// Base holds the state shared by every operation kind.
type Base struct {
	ResultState

	kind            Kind
	conn            Connection
	operationID     int64
	messageID       int64
	requestControls []ldap.Control

	authzMu         sync.Mutex
	authorizationDN *string

	internal        bool
	synchronization bool

	startTime time.Time
	stopTime  time.Time

	cancel           cancellation
	ctx              OpContext
	workflowExecuted bool

	// owner is the operation embedding this Base.
	owner Operation
	// engine is set by the first of Run, Reject or Cancel. The canceller
	// and the running goroutine may both reach it.
	engine atomic.Pointer[Engine]
	// finished guards the Finisher notification.
	finished atomic.Bool
}

func (b *Base) init(owner Operation, kind Kind, conn Connection, operationID, messageID int64, controls []ldap.Control) {
	b.owner = owner
	b.kind = kind
	b.conn = conn
	b.operationID = operationID
	b.messageID = messageID
	b.requestControls = append([]ldap.Control(nil), controls...)
	b.code = ldap.ResultUndefined
}

func (b *Base) base() *Base { return b }

// Kind returns the operation kind.
func (b *Base) Kind() Kind { return b.kind }

// OperationID returns the per-connection operation identifier.
func (b *Base) OperationID() int64 { return b.operationID }

// MessageID returns the LDAP message ID of the request.
func (b *Base) MessageID() int64 { return b.messageID }

// Connection returns the client connection.
func (b *Base) Connection() Connection { return b.conn }

// RequestControls returns the request controls. Only pre-parse plugins may
// change them, through SetRequestControls.
func (b *Base) RequestControls() []ldap.Control { return b.requestControls }

// SetRequestControls replaces the request controls.
func (b *Base) SetRequestControls(controls []ldap.Control) {
	b.requestControls = controls
}

// AuthorizationDN returns the identity the operation runs as: the value set
// by proxied authorization, or the connection's authenticated DN.
func (b *Base) AuthorizationDN() string {
	b.authzMu.Lock()
	override := b.authorizationDN
	b.authzMu.Unlock()
	if override != nil {
		return *override
	}
	if b.conn == nil {
		return ""
	}
	return b.conn.AuthenticatedDN()
}

// SetAuthorizationDN overrides the authorization identity.
func (b *Base) SetAuthorizationDN(dn string) {
	b.authzMu.Lock()
	defer b.authzMu.Unlock()
	b.authorizationDN = &dn
}

// IsInternal reports whether the operation was issued by the server itself.
func (b *Base) IsInternal() bool { return b.internal }

// SetInternal marks the operation as internal.
func (b *Base) SetInternal(v bool) { b.internal = v }

// IsSynchronization reports whether the operation replays a replicated change.
func (b *Base) IsSynchronization() bool { return b.synchronization }

// SetSynchronization marks the operation as a synchronization operation.
func (b *Base) SetSynchronization(v bool) { b.synchronization = v }

// Context returns the per-operation context shared with workflows.
func (b *Base) Context() *OpContext { return &b.ctx }

// WorkflowExecuted reports whether a workflow ran for this operation.
func (b *Base) WorkflowExecuted() bool { return b.workflowExecuted }

// StartTime returns when processing started.
func (b *Base) StartTime() time.Time { return b.startTime }

// StopTime returns when processing stopped; zero while running.
func (b *Base) StopTime() time.Time { return b.stopTime }

// ProcessingTime is StopTime - StartTime, or zero until processing stopped.
func (b *Base) ProcessingTime() time.Duration {
	if b.stopTime.IsZero() {
		return 0
	}
	return b.stopTime.Sub(b.startTime)
}

func (b *Base) start() {
	b.reset()
	b.startTime = time.Now()
	b.stopTime = time.Time{}
}

func (b *Base) stop() {
	b.stopTime = time.Now()
}

// CancelRequest returns the cancel request, if one was made.
func (b *Base) CancelRequest() *CancelRequest { return b.cancel.request.Load() }

// CancelResult returns the published cancel result.
func (b *Base) CancelResult() CancelResult { return b.cancel.current() }

// CheckCanceled returns ErrCanceled when a cancel request is waiting to be
// honoured. Long-running workflows call it between units of work.
func (b *Base) CheckCanceled() error {
	if b.cancel.pending() != nil {
		return ErrCanceled
	}
	return nil
}

// Cancel implements Operation.
func (b *Base) Cancel(req *CancelRequest) CancelResult {
	return b.cancelWithin(req, DefaultCancelWaitTimeout, DefaultCancelPollInterval)
}

func (b *Base) cancelWithin(req *CancelRequest, timeout, poll time.Duration) CancelResult {
	return b.cancel.wait(req, timeout, poll)
}

// DisconnectClient marks the operation cancelled and closes the connection.
// The running pipeline then stops without sending a response.
func (b *Base) DisconnectClient(reason string, notify bool, message string) {
	b.cancel.publish(CancelCanceled)
	if b.conn != nil {
		b.conn.Disconnect(reason, notify, message)
	}
}

// OpContext carries per-operation data between the pipeline and workflows:
// the sub-operations produced by workflow execution and free-form attachments.
type OpContext struct {
	mu            sync.Mutex
	subOperations []*SubOperation
	attachments   map[string]interface{}
}

// AddSubOperation records a sub-operation produced by a workflow.
func (c *OpContext) AddSubOperation(s *SubOperation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subOperations = append(c.subOperations, s)
}

// SubOperations returns the recorded sub-operations in order.
func (c *OpContext) SubOperations() []*SubOperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*SubOperation(nil), c.subOperations...)
}

// Attachment returns the value stored under key. Keys are case-sensitive.
func (c *OpContext) Attachment(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.attachments[key]
	return v, ok
}

// SetAttachment stores value under key and returns the previous value.
func (c *OpContext) SetAttachment(key string, value interface{}) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attachments == nil {
		c.attachments = make(map[string]interface{})
	}
	prev := c.attachments[key]
	c.attachments[key] = value
	return prev
}

// RemoveAttachment deletes key and returns its value.
func (c *OpContext) RemoveAttachment(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.attachments[key]
	delete(c.attachments, key)
	return prev
}

// SubOperation is the part of an operation one backend executed. It carries
// the backend-specific state post-response plugins and persistent searches
// need.
type SubOperation struct {
	Parent  Operation
	Backend string

	Code    ldap.ResultCode
	Message string

	// Entry is the entry after the change.
	Entry *ldap.Entry
	// PreviousEntry is the entry before a modify or modify DN.
	PreviousEntry *ldap.Entry
	// PreviousDN is set for modify DN.
	PreviousDN   string
	ChangeNumber int64
}

// Kind returns the parent's kind.
func (s *SubOperation) Kind() Kind { return s.Parent.Kind() }

// OperationID returns the parent's operation ID.
func (s *SubOperation) OperationID() int64 { return s.Parent.OperationID() }

// MessageID returns the parent's message ID.
func (s *SubOperation) MessageID() int64 { return s.Parent.MessageID() }

// ResultCode returns the sub-operation's own result.
func (s *SubOperation) ResultCode() ldap.ResultCode { return s.Code }
