// Package workflow routes operations to the workflows that execute them.
//
// # Network Groups
//
// A NetworkGroup maps naming contexts (suffixes) to workflows. The engine
// asks the connection's group for the candidate of each request's target DN:
//
//	group := workflow.NewNetworkGroup("default", nil)
//	group.Register("dc=example,dc=com", backend)
//	group.Register("ou=archive,dc=example,dc=com", archive)
//
// The deepest registered suffix containing the target wins, so requests below
// ou=archive go to archive and everything else below dc=example,dc=com goes
// to backend. DNs outside every suffix have no candidate.
//
// # Root DSE
//
// The empty DN is served by the group's RootDSE workflow. It answers
// base-scope searches with the server's naming contexts, supported controls
// and vendor information, and refuses every other request with
// unwillingToPerform.
package workflow
