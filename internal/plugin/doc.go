// Package plugin provides the plugin manager used by the operation engine and
// the built-in plugins.
//
// A plugin implements Name and any of the hook interfaces (PreParsePlugin,
// PostResponsePlugin, SearchEntryPlugin, SearchReferencePlugin). The Manager
// calls each hook in registration order, restricted to the operation kinds
// the plugin was registered for:
//
//	mgr := plugin.NewManager(logger)
//	mgr.Register(plugin.NewRateLimiter(cfg.Plugins.RateLimit))
//	mgr.Register(plugin.NewAudit(logger), operation.KindAdd, operation.KindModify)
//
//	engine := operation.NewEngine(&operation.EngineConfig{Plugins: mgr})
package plugin
