package operation

import (
	"errors"
	"sync"
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// fakeConn records everything the engine sends to the client.
type fakeConn struct {
	mu sync.Mutex

	id        int64
	authDN    string
	authSets  []string
	sizeLimit int
	timeLimit time.Duration
	ng        NetworkGroup

	responses   []ldap.LDAPResult
	entries     []*ldap.Entry
	references  [][]string
	rejectRefs  bool
	sendErr     error
	disconnects []string
	finished    []int64
}

func newFakeConn(ng NetworkGroup) *fakeConn {
	return &fakeConn{id: 7, ng: ng}
}

func (c *fakeConn) ID() int64 { return c.id }

func (c *fakeConn) AuthenticatedDN() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authDN
}

func (c *fakeConn) SetAuthenticatedDN(dn string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authDN = dn
	c.authSets = append(c.authSets, dn)
}

func (c *fakeConn) SizeLimit() int             { return c.sizeLimit }
func (c *fakeConn) TimeLimit() time.Duration   { return c.timeLimit }
func (c *fakeConn) NetworkGroup() NetworkGroup { return c.ng }

func (c *fakeConn) SendResponse(op Operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, op.base().Result())
	return nil
}

func (c *fakeConn) SendSearchEntry(op *SearchOperation, entry *ldap.Entry, controls []ldap.Control) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.entries = append(c.entries, entry)
	return nil
}

func (c *fakeConn) SendSearchReference(op *SearchOperation, urls []string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejectRefs {
		return false, nil
	}
	c.references = append(c.references, urls)
	return true, nil
}

func (c *fakeConn) Disconnect(reason string, notify bool, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects = append(c.disconnects, reason)
}

func (c *fakeConn) OperationFinished(op Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = append(c.finished, op.OperationID())
}

func (c *fakeConn) finishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.finished)
}

func (c *fakeConn) responseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.responses)
}

func (c *fakeConn) lastResponse() ldap.LDAPResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responses[len(c.responses)-1]
}

// fakeNetworkGroup routes by longest suffix. A suffix mapped to nil is a
// naming context without a workflow.
type fakeNetworkGroup struct {
	suffixes  []*dn.DN
	workflows []Workflow
}

func (g *fakeNetworkGroup) add(suffix string, wf Workflow) *fakeNetworkGroup {
	g.suffixes = append(g.suffixes, dn.MustParse(suffix))
	g.workflows = append(g.workflows, wf)
	return g
}

func (g *fakeNetworkGroup) WorkflowCandidate(d *dn.DN) Workflow {
	var best Workflow
	depth := -1
	for i, s := range g.suffixes {
		if d.IsWithin(s) && s.NumRDNs() > depth {
			best, depth = g.workflows[i], s.NumRDNs()
		}
	}
	return best
}

func (g *fakeNetworkGroup) IsNamingContext(d *dn.DN) bool {
	for _, s := range g.suffixes {
		if d.Equal(s) {
			return true
		}
	}
	return false
}

type workflowFunc func(op Operation) error

func (f workflowFunc) Execute(op Operation) error { return f(op) }

// succeed is a workflow that records one successful sub-operation.
var succeed = workflowFunc(func(op Operation) error {
	op.SetResultCode(ldap.ResultSuccess)
	op.Context().AddSubOperation(&SubOperation{Parent: op, Backend: "userRoot", Code: ldap.ResultSuccess})
	return nil
})

// recordingLog records the order of access log events.
type recordingLog struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingLog) record(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingLog) LogRequest(op Operation)  { l.record("request") }
func (l *recordingLog) LogResponse(op Operation) { l.record("response") }

func (l *recordingLog) LogSearchEntry(op *SearchOperation, entry *ldap.Entry) {
	l.record("entry")
}

func (l *recordingLog) LogSearchReference(op *SearchOperation, urls []string) {
	l.record("reference")
}

func (l *recordingLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// recordingPlugins returns configurable decisions and records post-response
// subjects.
type recordingPlugins struct {
	mu sync.Mutex

	preParse  func(op Operation) PreParseResult
	entry     func(op *SearchOperation, entry *ldap.Entry) StreamDecision
	post      []Subject
	preParsed int
}

func (p *recordingPlugins) PreParse(op Operation) PreParseResult {
	p.mu.Lock()
	p.preParsed++
	p.mu.Unlock()
	if p.preParse == nil {
		return PreParseContinue
	}
	return p.preParse(op)
}

func (p *recordingPlugins) PostResponse(s Subject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.post = append(p.post, s)
}

func (p *recordingPlugins) SearchEntry(op *SearchOperation, entry *ldap.Entry, controls []ldap.Control) StreamDecision {
	if p.entry == nil {
		return SendAndContinue
	}
	return p.entry(op, entry)
}

func (p *recordingPlugins) SearchReference(op *SearchOperation, urls []string) StreamDecision {
	return SendAndContinue
}

func (p *recordingPlugins) postSubjects() []Subject {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Subject(nil), p.post...)
}

// fakeRegistry is a persistent search registry.
type fakeRegistry struct {
	mu           sync.Mutex
	observers    []PersistentSearchObserver
	deregistered []PersistentSearchObserver
}

func (r *fakeRegistry) Observers() []PersistentSearchObserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PersistentSearchObserver(nil), r.observers...)
}

func (r *fakeRegistry) Deregister(o PersistentSearchObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.observers {
		if existing == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			break
		}
	}
	r.deregistered = append(r.deregistered, o)
}

// fakeObserver counts notifications and fails on demand.
type fakeObserver struct {
	calls   int
	kinds   []Kind
	err     error
	panicky bool
}

func (o *fakeObserver) process(sub *SubOperation) error {
	o.calls++
	o.kinds = append(o.kinds, sub.Kind())
	if o.panicky {
		panic("observer exploded")
	}
	return o.err
}

func (o *fakeObserver) ProcessAdd(sub *SubOperation) error      { return o.process(sub) }
func (o *fakeObserver) ProcessModify(sub *SubOperation) error   { return o.process(sub) }
func (o *fakeObserver) ProcessModifyDN(sub *SubOperation) error { return o.process(sub) }

var errObserver = errors.New("observer failed")

// harness wires an engine to recording collaborators.
type harness struct {
	engine   *Engine
	conn     *fakeConn
	ng       *fakeNetworkGroup
	log      *recordingLog
	plugins  *recordingPlugins
	registry *fakeRegistry
}

func newHarness(configure ...func(*EngineConfig)) *harness {
	h := &harness{
		ng:       &fakeNetworkGroup{},
		log:      &recordingLog{},
		plugins:  &recordingPlugins{},
		registry: &fakeRegistry{},
	}
	h.conn = newFakeConn(h.ng)

	cfg := NewEngineConfig()
	cfg.Plugins = h.plugins
	cfg.LogSink = h.log
	cfg.PersistentSearches = h.registry
	for _, c := range configure {
		c(cfg)
	}
	h.engine = NewEngine(cfg)
	return h
}

func shortCancelWait(cfg *EngineConfig) {
	cfg.CancelWaitTimeout = 100 * time.Millisecond
	cfg.CancelPollInterval = 5 * time.Millisecond
}

func (h *harness) add(entryDN string, attrs ...ldap.Attribute) *AddOperation {
	return NewAddOperation(h.conn, 1, 2, nil, &ldap.AddRequest{Entry: entryDN, Attributes: attrs})
}

func (h *harness) modify(entryDN string) *ModifyOperation {
	return NewModifyOperation(h.conn, 1, 2, nil, &ldap.ModifyRequest{
		Object: entryDN,
		Changes: []ldap.Modification{
			{Operation: ldap.ModifyOperationReplace, Attribute: ldap.NewAttribute("description", "x")},
		},
	})
}

func (h *harness) search(baseDN, filter string) *SearchOperation {
	return NewSearchOperation(h.conn, 1, 2, nil, &ldap.SearchRequest{
		BaseObject: baseDN,
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     filter,
	})
}
