// Package psearch implements persistent searches (draft-ietf-ldapext-psearch).
//
// A search that carries the persistent search control first runs like any
// other search, unless the client asked for changes only. Instead of
// completing, it then stays open and receives every committed add, modify
// and modify DN that falls within its base, scope and filter, optionally
// with an entry change notification control attached.
//
// # Wiring
//
// Wrap a backend workflow and give the same registry to the engine:
//
//	registry := psearch.NewRegistry(logger)
//	group.Register("dc=example,dc=com", psearch.Wrap(backend, registry))
//
//	cfg := operation.NewEngineConfig()
//	cfg.PersistentSearches = registry
//	engine := operation.NewEngine(cfg)
//
// The engine notifies the registered listeners after each successful write.
// A persistent search ends when it is abandoned or cancelled, or when its
// connection goes away; the listener is deregistered at that point.
package psearch
