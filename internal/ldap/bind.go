package ldap

// AuthMethod represents the authentication method used in a BindRequest
type AuthMethod int

const (
	// AuthMethodSimple indicates simple (password) authentication
	AuthMethodSimple AuthMethod = iota
	// AuthMethodSASL indicates SASL authentication
	AuthMethodSASL
)

// String returns the string representation of the authentication method
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimple:
		return "simple"
	case AuthMethodSASL:
		return "sasl"
	default:
		return "unknown"
	}
}

// SASLCredentials represents SASL authentication credentials
// SaslCredentials ::= SEQUENCE {
//
//	mechanism               LDAPString,
//	credentials             OCTET STRING OPTIONAL
//
// }
type SASLCredentials struct {
	// Mechanism is the SASL mechanism name (e.g., "PLAIN", "GSSAPI")
	Mechanism string
	// Credentials contains the optional SASL credentials
	Credentials []byte
}

// BindRequest represents an LDAP Bind Request
// BindRequest ::= [APPLICATION 0] SEQUENCE {
//
//	version                 INTEGER (1 .. 127),
//	name                    LDAPDN,
//	authentication          AuthenticationChoice
//
// }
type BindRequest struct {
	// Version is the LDAP protocol version (should be 3)
	Version int
	// Name is the DN of the user to authenticate
	Name string
	// AuthMethod indicates simple or SASL authentication
	AuthMethod AuthMethod
	// SimplePassword contains the password for simple authentication
	SimplePassword []byte
	// SASLCredentials contains the SASL credentials
	SASLCredentials *SASLCredentials
}

// IsAnonymous returns true if this is an anonymous bind request.
// An anonymous bind has an empty name and empty password.
func (r *BindRequest) IsAnonymous() bool {
	return r.AuthMethod == AuthMethodSimple && r.Name == "" && len(r.SimplePassword) == 0
}
