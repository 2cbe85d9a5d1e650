package operation

import (
	"time"

	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// BindOperation authenticates the client. Binds change the connection's
// identity and are never cancelled.
type BindOperation struct {
	Base

	rawBindDN string
	bindDN    *dn.DN

	version         int
	authMethod      ldap.AuthMethod
	simplePassword  []byte
	saslCredentials *ldap.SASLCredentials

	authenticatedDN *string
}

// NewBindOperation creates a bind operation from a decoded request.
func NewBindOperation(conn Connection, operationID, messageID int64, controls []ldap.Control, req *ldap.BindRequest) *BindOperation {
	op := &BindOperation{
		rawBindDN:       req.Name,
		version:         req.Version,
		authMethod:      req.AuthMethod,
		simplePassword:  req.SimplePassword,
		saslCredentials: req.SASLCredentials,
	}
	op.init(op, KindBind, conn, operationID, messageID, controls)
	return op
}

// RawBindDN returns the bind DN as sent by the client.
func (op *BindOperation) RawBindDN() string { return op.rawBindDN }

// SetRawBindDN replaces the raw bind DN and drops the decoded one.
func (op *BindOperation) SetRawBindDN(raw string) {
	op.rawBindDN = raw
	op.bindDN = nil
}

// BindDN decodes the bind DN on first use. A DN that does not decode is an
// authentication failure: invalidCredentials is recorded and nil returned.
func (op *BindOperation) BindDN() *dn.DN {
	if op.bindDN == nil {
		d, err := decodeDN(op.rawBindDN)
		if err != nil {
			op.decodeFailed(ldap.ResultInvalidCredentials, "cannot decode bind DN %q: %v", op.rawBindDN, err)
			return nil
		}
		op.bindDN = d
	}
	return op.bindDN
}

// Version returns the protocol version of the request.
func (op *BindOperation) Version() int { return op.version }

// AuthMethod returns the authentication method.
func (op *BindOperation) AuthMethod() ldap.AuthMethod { return op.authMethod }

// SimplePassword returns the simple bind password.
func (op *BindOperation) SimplePassword() []byte { return op.simplePassword }

// SASLCredentials returns the SASL credentials, or nil for simple binds.
func (op *BindOperation) SASLCredentials() *ldap.SASLCredentials { return op.saslCredentials }

// IsAnonymous reports whether this is an anonymous simple bind.
func (op *BindOperation) IsAnonymous() bool {
	return op.authMethod == ldap.AuthMethodSimple && op.rawBindDN == "" && len(op.simplePassword) == 0
}

// AuthenticatedDN is the identity the connection takes on success. It
// defaults to the bind DN; workflows override it when the bind DN maps to
// another entry.
func (op *BindOperation) AuthenticatedDN() string {
	if op.authenticatedDN != nil {
		return *op.authenticatedDN
	}
	if op.bindDN != nil {
		return op.bindDN.String()
	}
	return op.rawBindDN
}

// SetAuthenticatedDN overrides the identity established on success.
func (op *BindOperation) SetAuthenticatedDN(dn string) {
	op.authenticatedDN = &dn
}

// Cancel always refuses: a bind cannot be unwound.
func (op *BindOperation) Cancel(*CancelRequest) CancelResult {
	return CancelCannotCancel
}

func (op *BindOperation) cancelWithin(*CancelRequest, time.Duration, time.Duration) CancelResult {
	return CancelCannotCancel
}
