package plugin

import (
	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// Audit writes one line per completed change. Searches and binds are not
// audited.
type Audit struct {
	logger logging.Logger
}

// NewAudit creates an audit plugin writing to logger.
func NewAudit(logger logging.Logger) *Audit {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Audit{logger: logger.Named("audit")}
}

// Name implements Plugin.
func (a *Audit) Name() string { return "audit" }

// PostResponse implements PostResponsePlugin.
func (a *Audit) PostResponse(s operation.Subject) {
	switch s.Kind() {
	case operation.KindAdd, operation.KindModify, operation.KindModifyDN:
	default:
		return
	}

	kv := []interface{}{
		"op", s.Kind().String(),
		"op_id", s.OperationID(),
		"msg_id", s.MessageID(),
		"result", s.ResultCode().String(),
	}
	switch v := s.(type) {
	case *operation.SubOperation:
		kv = append(kv, "backend", v.Backend, "change_number", v.ChangeNumber)
		if v.Entry != nil {
			kv = append(kv, "dn", v.Entry.DN)
		}
		if v.PreviousDN != "" {
			kv = append(kv, "previous_dn", v.PreviousDN)
		}
		if authz := v.Parent.AuthorizationDN(); authz != "" {
			kv = append(kv, "authz_dn", authz)
		}
	case operation.Operation:
		if authz := v.AuthorizationDN(); authz != "" {
			kv = append(kv, "authz_dn", authz)
		}
	}
	a.logger.Info("change", kv...)
}
