// Package filter parses RFC 4515 search filters and evaluates them against
// entries.
//
// Search operations keep the client's filter string in raw form and call
// Parse on first use. The parsed tree is matched with Matches, which uses
// case-insensitive string matching and consults no schema:
//
//	f, err := filter.Parse("(&(objectClass=person)(cn=Jo*))")
//	if err != nil {
//	    return ldap.WrapResultError(ldap.ResultProtocolError, err)
//	}
//	if filter.Matches(f, entry) {
//	    // return the entry
//	}
//
// Filter.String renders a parsed filter back in escaped string form, which
// is what the access log records.
package filter
