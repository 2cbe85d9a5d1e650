package operation

import (
	"sync"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// errorMessageSeparator joins successive diagnostic messages.
const errorMessageSeparator = "  "

// ResultState is the mutable outcome of an operation. It starts with
// ldap.ResultUndefined and is safe for concurrent use, since persistent
// searches stream entries from other operations' goroutines.
type ResultState struct {
	mu               sync.Mutex
	code             ldap.ResultCode
	errorMessage     string
	matchedDN        string
	referrals        []string
	responseControls []ldap.Control
}

func (r *ResultState) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = ldap.ResultUndefined
}

// ResultCode returns the current result code.
func (r *ResultState) ResultCode() ldap.ResultCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code
}

// SetResultCode overwrites the result code.
func (r *ResultState) SetResultCode(code ldap.ResultCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = code
}

// ErrorMessage returns the accumulated diagnostic message.
func (r *ResultState) ErrorMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errorMessage
}

// AppendErrorMessage adds msg to the diagnostic message, separated from any
// previous text by two spaces. An empty msg is ignored.
func (r *ResultState) AppendErrorMessage(msg string) {
	if msg == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errorMessage == "" {
		r.errorMessage = msg
		return
	}
	r.errorMessage += errorMessageSeparator + msg
}

// SetErrorMessage replaces the diagnostic message.
func (r *ResultState) SetErrorMessage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorMessage = msg
}

// MatchedDN returns the matched DN, if any.
func (r *ResultState) MatchedDN() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchedDN
}

// SetMatchedDN sets the matched DN.
func (r *ResultState) SetMatchedDN(dn string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchedDN = dn
}

// Referrals returns a copy of the referral URLs.
func (r *ResultState) Referrals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.referrals...)
}

// SetReferrals replaces the referral URLs.
func (r *ResultState) SetReferrals(urls []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.referrals = append([]string(nil), urls...)
}

// ResponseControls returns the response controls in the order they were added.
func (r *ResultState) ResponseControls() []ldap.Control {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ldap.Control(nil), r.responseControls...)
}

// AddResponseControl appends a response control. Controls must not be added
// once post-operation plugins have run.
func (r *ResultState) AddResponseControl(c ldap.Control) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responseControls = append(r.responseControls, c)
}

// SetResponseData copies the outcome carried by err onto the result state.
// A *ldap.ResultError anywhere in err's chain provides code, matched DN,
// referrals and message; any other error becomes operationsError.
func (r *ResultState) SetResponseData(err error) {
	if err == nil {
		return
	}
	re, ok := ldap.AsResultError(err)
	if !ok {
		r.SetResultCode(ldap.ResultOperationsError)
		r.AppendErrorMessage(err.Error())
		return
	}

	r.mu.Lock()
	r.code = re.Code
	if re.MatchedDN != "" {
		r.matchedDN = re.MatchedDN
	}
	if len(re.Referrals) > 0 {
		r.referrals = append([]string(nil), re.Referrals...)
	}
	r.mu.Unlock()

	r.AppendErrorMessage(re.Message)
}

// Result returns a snapshot suitable for encoding the response.
func (r *ResultState) Result() ldap.LDAPResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ldap.LDAPResult{
		ResultCode:        r.code,
		MatchedDN:         r.matchedDN,
		DiagnosticMessage: r.errorMessage,
		Referral:          append([]string(nil), r.referrals...),
	}
}
