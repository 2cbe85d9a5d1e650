package server

import (
	"sync"

	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// pendingOperations tracks the operations of a connection that have been
// accepted but not yet answered, keyed by message ID. Abandon and cancel
// requests find their target here.
type pendingOperations struct {
	mu  sync.RWMutex
	ops map[int64]operation.Operation
}

func newPendingOperations() *pendingOperations {
	return &pendingOperations{ops: make(map[int64]operation.Operation)}
}

// add registers op. It reports false if another operation with the same
// message ID is still outstanding.
func (p *pendingOperations) add(op operation.Operation) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.ops[op.MessageID()]; exists {
		return false
	}
	p.ops[op.MessageID()] = op
	return true
}

// get returns the outstanding operation with the given message ID, or nil.
func (p *pendingOperations) get(messageID int64) operation.Operation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ops[messageID]
}

// remove forgets op. An operation that reused the message ID after op
// finished is left alone.
func (p *pendingOperations) remove(op operation.Operation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ops[op.MessageID()] == op {
		delete(p.ops, op.MessageID())
	}
}

// snapshot returns the outstanding operations other than except.
func (p *pendingOperations) snapshot(except operation.Operation) []operation.Operation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]operation.Operation, 0, len(p.ops))
	for _, op := range p.ops {
		if op != except {
			out = append(out, op)
		}
	}
	return out
}

// drain removes and returns every outstanding operation.
func (p *pendingOperations) drain() []operation.Operation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]operation.Operation, 0, len(p.ops))
	for _, op := range p.ops {
		out = append(out, op)
	}
	p.ops = make(map[int64]operation.Operation)
	return out
}

func (p *pendingOperations) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ops)
}
