package operation

import (
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// Connection is the client connection an operation belongs to. Implementations
// synchronize themselves; the Send methods may be called from several
// goroutines for persistent searches.
type Connection interface {
	ID() int64
	// AuthenticatedDN is the identity established by the last successful bind.
	AuthenticatedDN() string
	SetAuthenticatedDN(dn string)
	// SizeLimit and TimeLimit are the connection's search limits; values <= 0
	// mean unlimited.
	SizeLimit() int
	TimeLimit() time.Duration
	NetworkGroup() NetworkGroup

	SendResponse(op Operation) error
	SendSearchEntry(op *SearchOperation, entry *ldap.Entry, controls []ldap.Control) error
	// SendSearchReference reports false when the client cannot accept
	// referrals; no further references are offered to it.
	SendSearchReference(op *SearchOperation, urls []string) (bool, error)
	Disconnect(reason string, notify bool, message string)
}

// Finisher is implemented by connections that track outstanding operations.
// OperationFinished is called once per operation, after it has sent all it
// will send, including when it finished without answering the client.
type Finisher interface {
	OperationFinished(op Operation)
}

// NetworkGroup routes requests to workflows.
type NetworkGroup interface {
	// WorkflowCandidate returns the workflow serving d, or nil.
	WorkflowCandidate(d *dn.DN) Workflow
	// IsNamingContext reports whether d is a configured suffix.
	IsNamingContext(d *dn.DN) bool
}

// Workflow executes an operation against a backend. It records its outcome on
// op and appends one SubOperation per backend it touched.
type Workflow interface {
	Execute(op Operation) error
}

// PreParseResult is the outcome of the pre-parse plugins.
type PreParseResult int

const (
	PreParseContinue PreParseResult = iota
	// PreParseTerminate means a plugin disconnected the client.
	PreParseTerminate
	// PreParseRespondNow sends the result the plugin set without core processing.
	PreParseRespondNow
	// PreParseSkipCore is handled like PreParseRespondNow.
	PreParseSkipCore
)

// StreamDecision is what search-entry and search-reference plugins decide
// about one streamed item.
type StreamDecision struct {
	Send      bool
	Continue  bool
	Terminate bool
}

// SendAndContinue is the decision of a plugin that does not interfere.
var SendAndContinue = StreamDecision{Send: true, Continue: true}

// PluginRunner invokes the plugins registered for each extension point.
// Implementations must be safe for concurrent use.
type PluginRunner interface {
	PreParse(op Operation) PreParseResult
	PostResponse(s Subject)
	SearchEntry(op *SearchOperation, entry *ldap.Entry, controls []ldap.Control) StreamDecision
	SearchReference(op *SearchOperation, urls []string) StreamDecision
}

// LogSink records the access log.
type LogSink interface {
	LogRequest(op Operation)
	LogResponse(op Operation)
	LogSearchEntry(op *SearchOperation, entry *ldap.Entry)
	LogSearchReference(op *SearchOperation, urls []string)
}

// PersistentSearchObserver receives committed changes. A returned error or a
// panic removes the observer from its registry.
type PersistentSearchObserver interface {
	ProcessAdd(sub *SubOperation) error
	ProcessModify(sub *SubOperation) error
	ProcessModifyDN(sub *SubOperation) error
}

// PersistentSearchRegistry holds the active persistent searches.
type PersistentSearchRegistry interface {
	Observers() []PersistentSearchObserver
	Deregister(o PersistentSearchObserver)
}

// Subject is what post-response plugins receive: the operation itself when no
// workflow ran, otherwise each sub-operation the workflow recorded.
type Subject interface {
	Kind() Kind
	OperationID() int64
	MessageID() int64
	ResultCode() ldap.ResultCode
}

type noPlugins struct{}

func (noPlugins) PreParse(Operation) PreParseResult { return PreParseContinue }
func (noPlugins) PostResponse(Subject)              {}
func (noPlugins) SearchEntry(*SearchOperation, *ldap.Entry, []ldap.Control) StreamDecision {
	return SendAndContinue
}
func (noPlugins) SearchReference(*SearchOperation, []string) StreamDecision {
	return SendAndContinue
}

type noLog struct{}

func (noLog) LogRequest(Operation)                          {}
func (noLog) LogResponse(Operation)                         {}
func (noLog) LogSearchEntry(*SearchOperation, *ldap.Entry)  {}
func (noLog) LogSearchReference(*SearchOperation, []string) {}
