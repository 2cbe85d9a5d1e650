// Package ldap defines the LDAP protocol data model consumed by the
// operation lifecycle engine.
//
// Wire encoding is handled by the protocol layer; this package only carries
// the decoded request payloads, result codes, controls and entries.
//
// # Requests
//
// Request structs hold the raw values sent by the client. Nothing is
// validated here: DNs, filters and attribute lists stay in their raw form
// until an operation decodes them on first use.
//
//	req := &ldap.AddRequest{
//	    Entry: "uid=alice,ou=users,dc=example,dc=com",
//	    Attributes: []ldap.Attribute{
//	        ldap.NewAttribute("objectClass", "inetOrgPerson"),
//	        ldap.NewAttribute("cn", "Alice"),
//	    },
//	}
//
// # Result Codes
//
// ResultCode covers RFC 4511 plus the cancel codes from RFC 3909. The
// pseudo code ResultUndefined marks operations without an outcome yet:
//
//	if !code.IsDefined() {
//	    // still running
//	}
//
// # Errors
//
// ResultError carries a full outcome (code, matched DN, referrals, message)
// so that a failure can be applied to an operation in a single call:
//
//	return ldap.NewResultError(ldap.ResultNoSuchObject, "entry %s does not exist", dn).
//	    WithMatchedDN(parent)
package ldap
