package plugin

import (
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// Plugin is the common interface of all plugins. A plugin takes part in
// every extension point whose hook interface it implements.
type Plugin interface {
	// Name identifies the plugin; it must be unique within a Manager.
	Name() string
}

// PreParsePlugin runs before the request is decoded.
type PreParsePlugin interface {
	Plugin
	PreParse(op operation.Operation) operation.PreParseResult
}

// PostResponsePlugin runs after the response was sent.
type PostResponsePlugin interface {
	Plugin
	PostResponse(s operation.Subject)
}

// SearchEntryPlugin sees every entry before it is returned.
type SearchEntryPlugin interface {
	Plugin
	SearchEntry(op *operation.SearchOperation, entry *ldap.Entry, controls []ldap.Control) operation.StreamDecision
}

// SearchReferencePlugin sees every continuation reference before it is
// returned.
type SearchReferencePlugin interface {
	Plugin
	SearchReference(op *operation.SearchOperation, urls []string) operation.StreamDecision
}
