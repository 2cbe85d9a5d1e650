package ldap

import (
	"errors"
	"fmt"
	"strings"
)

// LDAPResult represents the common result structure used in most LDAP responses.
// Per RFC 4511 Section 4.1.9:
// LDAPResult ::= SEQUENCE {
//
//	resultCode         ENUMERATED { ... },
//	matchedDN          LDAPDN,
//	diagnosticMessage  LDAPString,
//	referral           [3] Referral OPTIONAL
//
// }
type LDAPResult struct {
	// ResultCode indicates the outcome of the operation
	ResultCode ResultCode
	// MatchedDN contains the DN of the last entry matched during processing
	MatchedDN string
	// DiagnosticMessage contains additional diagnostic information
	DiagnosticMessage string
	// Referral contains URIs to other servers (optional)
	Referral []string
}

// ResultError is an error carrying a complete LDAP outcome. Workflows and
// decoders return it so that the failure can be copied onto an operation
// in one step.
type ResultError struct {
	Code      ResultCode
	MatchedDN string
	Referrals []string
	Message   string
	Err       error
}

// NewResultError creates a ResultError with a formatted message.
func NewResultError(code ResultCode, format string, args ...interface{}) *ResultError {
	return &ResultError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapResultError creates a ResultError wrapping err; the message is err's text.
func WrapResultError(code ResultCode, err error) *ResultError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ResultError{Code: code, Message: msg, Err: err}
}

// WithMatchedDN sets the matched DN and returns the error for chaining.
func (e *ResultError) WithMatchedDN(dn string) *ResultError {
	e.MatchedDN = dn
	return e
}

// WithReferrals sets the referral URLs and returns the error for chaining.
func (e *ResultError) WithReferrals(urls ...string) *ResultError {
	e.Referrals = append([]string(nil), urls...)
	return e
}

// Error implements the error interface.
func (e *ResultError) Error() string {
	var b strings.Builder
	b.WriteString("ldap: ")
	b.WriteString(e.Code.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ResultError) Unwrap() error {
	return e.Err
}

// AsResultError extracts a ResultError from err's chain.
func AsResultError(err error) (*ResultError, bool) {
	var re *ResultError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
