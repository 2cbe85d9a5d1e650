package psearch

import (
	"sync"

	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// Registry holds the live persistent searches of a server. It implements
// operation.PersistentSearchRegistry.
type Registry struct {
	mu        sync.RWMutex
	listeners map[operation.PersistentSearchObserver]struct{}
	logger    logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		listeners: make(map[operation.PersistentSearchObserver]struct{}),
		logger:    logger.Named("psearch"),
	}
}

// Register adds a listener.
func (r *Registry) Register(o operation.PersistentSearchObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[o] = struct{}{}
}

// Observers returns a snapshot of the registered listeners.
func (r *Registry) Observers() []operation.PersistentSearchObserver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]operation.PersistentSearchObserver, 0, len(r.listeners))
	for o := range r.listeners {
		out = append(out, o)
	}
	return out
}

// Deregister removes a listener. Removing an unknown listener is a no-op.
func (r *Registry) Deregister(o operation.PersistentSearchObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, o)
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
