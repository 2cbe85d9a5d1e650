package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// Connection errors
var (
	// ErrConnectionClosed is returned when the connection is closed
	ErrConnectionClosed = errors.New("server: connection closed")
	// ErrUnsupportedRequest is returned for requests the engine cannot run
	ErrUnsupportedRequest = errors.New("server: unsupported request")
	// ErrMessageIDInUse is returned when a message ID is reused while the
	// first request is still outstanding
	ErrMessageIDInUse = errors.New("server: message ID in use")
)

// Reasons recorded on operations cancelled by the connection.
const (
	reasonAbandoned    = "abandoned by the client"
	reasonBind         = "canceled by a bind request on the same connection"
	reasonDisconnected = "the client connection was closed"
)

// Sink writes protocol messages to the client. Encoding and transport
// belong to the implementation.
type Sink interface {
	WriteResult(messageID int64, kind operation.Kind, result ldap.LDAPResult, controls []ldap.Control) error
	WriteEntry(messageID int64, entry *ldap.Entry, controls []ldap.Control) error
	WriteReference(messageID int64, urls []string) error
	Close(reason string, notify bool, message string) error
}

// Submitter runs operations, usually on a work queue. A submitter that
// refuses an operation answers it itself.
type Submitter interface {
	Submit(op operation.Operation) error
}

// Connection is one client connection as the engine sees it: identity,
// limits, routing and the operations still waiting for an answer.
type Connection struct {
	id        int64
	requestID string
	startTime time.Time

	server *Server
	sink   Sink
	logger logging.Logger

	nextOperationID atomic.Int64
	pending         *pendingOperations

	mu     sync.RWMutex
	authDN string
	closed bool
}

func newConnection(id int64, s *Server, sink Sink) *Connection {
	requestID := logging.GenerateRequestID()
	return &Connection{
		id:        id,
		requestID: requestID,
		startTime: time.Now(),
		server:    s,
		sink:      sink,
		logger:    s.logger.WithRequestID(requestID).WithFields("conn_id", id),
		pending:   newPendingOperations(),
	}
}

// ID implements operation.Connection.
func (c *Connection) ID() int64 { return c.id }

// RequestID returns the identifier used to correlate the connection's log
// lines.
func (c *Connection) RequestID() string { return c.requestID }

// AuthenticatedDN implements operation.Connection.
func (c *Connection) AuthenticatedDN() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authDN
}

// SetAuthenticatedDN implements operation.Connection.
func (c *Connection) SetAuthenticatedDN(dn string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authDN = dn
}

func (c *Connection) SizeLimit() int                       { return c.server.options.SizeLimit }
func (c *Connection) TimeLimit() time.Duration             { return c.server.options.TimeLimit }
func (c *Connection) NetworkGroup() operation.NetworkGroup { return c.server.group }

// IsClosed reports whether the connection has been closed.
func (c *Connection) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Outstanding returns the number of operations that have not been answered.
func (c *Connection) Outstanding() int {
	return c.pending.count()
}

// Handle turns a decoded request into an operation and processes it.
func (c *Connection) Handle(messageID int64, controls []ldap.Control, request interface{}) error {
	id := c.nextOperationID.Add(1)

	var op operation.Operation
	switch r := request.(type) {
	case *ldap.AddRequest:
		op = operation.NewAddOperation(c, id, messageID, controls, r)
	case *ldap.BindRequest:
		op = operation.NewBindOperation(c, id, messageID, controls, r)
	case *ldap.ModifyRequest:
		op = operation.NewModifyOperation(c, id, messageID, controls, r)
	case *ldap.ModifyDNRequest:
		op = operation.NewModifyDNOperation(c, id, messageID, controls, r)
	case *ldap.SearchRequest:
		op = operation.NewSearchOperation(c, id, messageID, controls, r)
	default:
		return ErrUnsupportedRequest
	}
	return c.Process(op)
}

// Process runs op for this connection. A bind first cancels every other
// outstanding operation and waits for the outcome.
func (c *Connection) Process(op operation.Operation) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	if !c.pending.add(op) {
		c.server.engine.Reject(op, ldap.NewResultError(ldap.ResultProtocolError,
			"message ID %d is already in use by an outstanding request", op.MessageID()))
		return ErrMessageIDInUse
	}

	if op.Kind() == operation.KindBind {
		c.cancelAll(c.pending.snapshot(op), reasonBind)
	}

	if c.server.queue != nil {
		if err := c.server.queue.Submit(op); err != nil {
			c.pending.remove(op)
			return err
		}
		return nil
	}
	c.server.engine.Run(op)
	return nil
}

// Abandon cancels the outstanding operation with the given message ID
// without telling the client (RFC 4511 section 4.11).
func (c *Connection) Abandon(messageID int64) (operation.CancelResult, error) {
	return c.cancel(messageID, &operation.CancelRequest{Reason: reasonAbandoned})
}

// CancelOperation cancels the outstanding operation with the given message
// ID and lets it answer with CANCELED (RFC 3909). The returned error is a
// noSuchOperation result when nothing matches.
func (c *Connection) CancelOperation(messageID int64, reason string) (operation.CancelResult, error) {
	return c.cancel(messageID, &operation.CancelRequest{Reason: reason, NotifyOriginalRequestor: true})
}

func (c *Connection) cancel(messageID int64, req *operation.CancelRequest) (operation.CancelResult, error) {
	op := c.pending.get(messageID)
	if op == nil {
		return operation.CancelPending, ldap.NewResultError(ldap.ResultNoSuchOperation,
			"there is no outstanding operation with message ID %d", messageID)
	}

	result := c.server.engine.Cancel(op, req)
	if result == operation.CancelCanceled {
		c.pending.remove(op)
	}
	c.logger.Debug("cancel request processed", "msg_id", messageID, "reason", req.Reason, "result", result.String())
	return result, nil
}

// cancelAll cancels ops concurrently and waits for all of them.
func (c *Connection) cancelAll(ops []operation.Operation, reason string) {
	var g errgroup.Group
	for _, op := range ops {
		g.Go(func() error {
			if c.server.engine.Cancel(op, &operation.CancelRequest{Reason: reason}) == operation.CancelCanceled {
				c.pending.remove(op)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// SendResponse implements operation.Connection.
func (c *Connection) SendResponse(op operation.Operation) error {
	c.pending.remove(op)
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	result := ldap.LDAPResult{
		ResultCode:        op.ResultCode(),
		MatchedDN:         op.MatchedDN(),
		DiagnosticMessage: op.ErrorMessage(),
		Referral:          op.Referrals(),
	}
	return c.sink.WriteResult(op.MessageID(), op.Kind(), result, op.ResponseControls())
}

// OperationFinished implements operation.Finisher. The message ID becomes
// free for reuse.
func (c *Connection) OperationFinished(op operation.Operation) {
	c.pending.remove(op)
}

// SendSearchEntry implements operation.Connection.
func (c *Connection) SendSearchEntry(op *operation.SearchOperation, entry *ldap.Entry, controls []ldap.Control) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	return c.sink.WriteEntry(op.MessageID(), entry, controls)
}

// SendSearchReference implements operation.Connection. Clients configured
// to reject referrals never see references.
func (c *Connection) SendSearchReference(op *operation.SearchOperation, urls []string) (bool, error) {
	if c.server.options.RejectReferrals {
		return false, nil
	}
	if c.IsClosed() {
		return false, ErrConnectionClosed
	}
	if err := c.sink.WriteReference(op.MessageID(), urls); err != nil {
		return false, err
	}
	return true, nil
}

// Disconnect implements operation.Connection. Outstanding operations are
// cancelled in the background; the caller may be one of them.
func (c *Connection) Disconnect(reason string, notify bool, message string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	ops := c.pending.drain()
	if len(ops) > 0 {
		go c.cancelAll(ops, reasonDisconnected)
	}

	if err := c.sink.Close(reason, notify, message); err != nil {
		c.logger.Warn("error closing connection", "error", err)
	}
	c.server.forget(c)
	c.logger.Info("connection closed",
		"reason", reason,
		"outstanding", len(ops),
		"duration_ms", time.Since(c.startTime).Milliseconds())
}
