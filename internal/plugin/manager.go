package plugin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// Manager errors.
var (
	// ErrDuplicatePlugin is returned when a plugin name is already registered.
	ErrDuplicatePlugin = errors.New("plugin: duplicate plugin name")
	// ErrNoHooks is returned when a plugin implements no extension point.
	ErrNoHooks = errors.New("plugin: plugin implements no hook")
)

var allKinds = []operation.Kind{
	operation.KindAdd,
	operation.KindBind,
	operation.KindModify,
	operation.KindModifyDN,
	operation.KindSearch,
}

type registration struct {
	plugin Plugin
	kinds  map[operation.Kind]bool
}

func (r *registration) handles(k operation.Kind) bool {
	return r.kinds[k]
}

// Manager invokes registered plugins in registration order. It implements
// operation.PluginRunner.
type Manager struct {
	mu            sync.RWMutex
	registrations []*registration
	logger        logging.Logger
}

// NewManager creates an empty plugin manager.
func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{logger: logger.Named("plugin")}
}

// Register adds p for the given operation kinds, or for all kinds when none
// are given.
func (m *Manager) Register(p Plugin, kinds ...operation.Kind) error {
	switch p.(type) {
	case PreParsePlugin, PostResponsePlugin, SearchEntryPlugin, SearchReferencePlugin:
	default:
		return fmt.Errorf("%w: %s", ErrNoHooks, p.Name())
	}
	if len(kinds) == 0 {
		kinds = allKinds
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.registrations {
		if r.plugin.Name() == p.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.Name())
		}
	}

	reg := &registration{plugin: p, kinds: make(map[operation.Kind]bool, len(kinds))}
	for _, k := range kinds {
		reg.kinds[k] = true
	}
	m.registrations = append(m.registrations, reg)
	return nil
}

// Unregister removes the named plugin. It reports whether it was registered.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.registrations {
		if r.plugin.Name() == name {
			m.registrations = append(m.registrations[:i:i], m.registrations[i+1:]...)
			return true
		}
	}
	return false
}

// Names returns the registered plugin names in invocation order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.registrations))
	for i, r := range m.registrations {
		names[i] = r.plugin.Name()
	}
	return names
}

func (m *Manager) snapshot(k operation.Kind) []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]Plugin, 0, len(m.registrations))
	for _, r := range m.registrations {
		if r.handles(k) {
			plugins = append(plugins, r.plugin)
		}
	}
	return plugins
}

// PreParse runs the pre-parse plugins until one does not continue. A plugin
// that panics fails the operation with operationsError.
func (m *Manager) PreParse(op operation.Operation) operation.PreParseResult {
	for _, p := range m.snapshot(op.Kind()) {
		pp, ok := p.(PreParsePlugin)
		if !ok {
			continue
		}
		if result := m.preParse(pp, op); result != operation.PreParseContinue {
			return result
		}
	}
	return operation.PreParseContinue
}

func (m *Manager) preParse(p PreParsePlugin, op operation.Operation) (result operation.PreParseResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("pre-parse plugin panicked", "plugin", p.Name(), "op_id", op.OperationID(), "panic", fmt.Sprint(r))
			op.SetResultCode(ldap.ResultOperationsError)
			op.AppendErrorMessage(fmt.Sprintf("pre-parse plugin %s failed", p.Name()))
			result = operation.PreParseRespondNow
		}
	}()
	return p.PreParse(op)
}

// PostResponse runs every post-response plugin. Panics are logged and do not
// stop the remaining plugins.
func (m *Manager) PostResponse(s operation.Subject) {
	for _, p := range m.snapshot(s.Kind()) {
		if pr, ok := p.(PostResponsePlugin); ok {
			m.postResponse(pr, s)
		}
	}
}

func (m *Manager) postResponse(p PostResponsePlugin, s operation.Subject) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("post-response plugin panicked", "plugin", p.Name(), "op_id", s.OperationID(), "panic", fmt.Sprint(r))
		}
	}()
	p.PostResponse(s)
}

// SearchEntry combines the decisions of the search entry plugins: the entry
// is sent only if every plugin agrees, and the first plugin that terminates
// or stops the search wins.
func (m *Manager) SearchEntry(op *operation.SearchOperation, entry *ldap.Entry, controls []ldap.Control) operation.StreamDecision {
	decision := operation.SendAndContinue
	for _, p := range m.snapshot(operation.KindSearch) {
		sp, ok := p.(SearchEntryPlugin)
		if !ok {
			continue
		}
		d := sp.SearchEntry(op, entry, controls)
		if d.Terminate {
			return d
		}
		decision.Send = decision.Send && d.Send
		if !d.Continue {
			decision.Continue = false
			break
		}
	}
	return decision
}

// SearchReference combines the decisions of the search reference plugins
// like SearchEntry.
func (m *Manager) SearchReference(op *operation.SearchOperation, urls []string) operation.StreamDecision {
	decision := operation.SendAndContinue
	for _, p := range m.snapshot(operation.KindSearch) {
		sp, ok := p.(SearchReferencePlugin)
		if !ok {
			continue
		}
		d := sp.SearchReference(op, urls)
		if d.Terminate {
			return d
		}
		decision.Send = decision.Send && d.Send
		if !d.Continue {
			decision.Continue = false
			break
		}
	}
	return decision
}
