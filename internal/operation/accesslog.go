package operation

import (
	"strings"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
)

// AccessLog is a LogSink writing one structured line per request, response,
// search entry and search reference.
type AccessLog struct {
	logger logging.Logger
}

// NewAccessLog creates an access log writing to logger.
func NewAccessLog(logger logging.Logger) *AccessLog {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AccessLog{logger: logger.Named("access")}
}

// LogRequest writes the request line.
func (l *AccessLog) LogRequest(op Operation) {
	kv := append(operationFields(op), requestFields(op)...)
	l.logger.Info("operation request", kv...)
}

// LogResponse writes the response line with the outcome and elapsed time.
func (l *AccessLog) LogResponse(op Operation) {
	kv := append(operationFields(op),
		"result", int(op.ResultCode()),
		"result_name", op.ResultCode().String(),
		"etime_ms", op.ProcessingTime().Milliseconds(),
	)
	if msg := op.ErrorMessage(); msg != "" {
		kv = append(kv, "message", msg)
	}
	if matched := op.MatchedDN(); matched != "" {
		kv = append(kv, "matched_dn", matched)
	}
	if refs := op.Referrals(); len(refs) > 0 {
		kv = append(kv, "referrals", strings.Join(refs, " "))
	}
	switch o := op.(type) {
	case *SearchOperation:
		kv = append(kv, "entries", o.EntriesSent(), "references", o.ReferencesSent())
	case *BindOperation:
		if op.ResultCode() == ldap.ResultSuccess {
			kv = append(kv, "authc_dn", o.AuthenticatedDN())
		}
	}
	l.logger.Info("operation response", kv...)
}

// LogSearchEntry writes a line per returned entry.
func (l *AccessLog) LogSearchEntry(op *SearchOperation, entry *ldap.Entry) {
	l.logger.Debug("search entry", append(operationFields(op), "dn", entry.DN)...)
}

// LogSearchReference writes a line per returned reference.
func (l *AccessLog) LogSearchReference(op *SearchOperation, urls []string) {
	l.logger.Debug("search reference", append(operationFields(op), "urls", strings.Join(urls, " "))...)
}

func operationFields(op Operation) []interface{} {
	var connID int64
	if conn := op.Connection(); conn != nil {
		connID = conn.ID()
	}
	return []interface{}{
		"conn_id", connID,
		"op_id", op.OperationID(),
		"msg_id", op.MessageID(),
		"op", op.Kind().String(),
	}
}

// requestFields are the raw request elements: what the client sent, decoded
// or not.
func requestFields(op Operation) []interface{} {
	switch o := op.(type) {
	case *AddOperation:
		return []interface{}{"dn", o.RawEntryDN()}
	case *BindOperation:
		return []interface{}{"dn", o.RawBindDN(), "method", o.AuthMethod().String(), "version", o.Version()}
	case *ModifyOperation:
		return []interface{}{"dn", o.RawEntryDN()}
	case *ModifyDNOperation:
		kv := []interface{}{"dn", o.RawEntryDN(), "newrdn", o.RawNewRDN(), "deleteoldrdn", o.DeleteOldRDN()}
		if sup := o.RawNewSuperior(); sup != nil {
			kv = append(kv, "newsuperior", *sup)
		}
		return kv
	case *SearchOperation:
		return []interface{}{
			"base", o.RawBaseDN(),
			"scope", o.Scope().String(),
			"filter", o.RawFilter(),
			"attrs", strings.Join(o.RawAttributes(), ","),
		}
	default:
		return nil
	}
}
