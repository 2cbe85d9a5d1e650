package backend

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/KilimcininKorOglu/obacore/internal/config"
	"github.com/KilimcininKorOglu/obacore/internal/dn"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/logging"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// Backend errors.
var (
	// ErrStorage wraps failures of the underlying store.
	ErrStorage = errors.New("backend: storage error")
	// ErrNoBaseDN is returned when a backend is configured without suffixes.
	ErrNoBaseDN = errors.New("backend: no base DN configured")
)

// Config holds the backend configuration.
type Config struct {
	// Name identifies the backend in sub-operations and logs.
	Name     string
	BaseDNs  []string
	InMemory bool
	DataDir  string
}

// NewConfig returns the default configuration: an in-memory backend named
// userRoot.
func NewConfig() *Config {
	return &Config{
		Name:     "userRoot",
		InMemory: true,
	}
}

// ApplySettings copies the file configuration into c.
func (c *Config) ApplySettings(s config.BackendConfig) {
	c.BaseDNs = append([]string(nil), s.BaseDNs...)
	c.InMemory = s.InMemory
	c.DataDir = s.DataDir
}

// Backend is a local directory backend stored in badger. It is the workflow
// for its base DNs.
type Backend struct {
	name     string
	suffixes []*dn.DN
	store    *store
	logger   logging.Logger

	// writeMu serializes write transactions.
	writeMu sync.Mutex
	now     func() time.Time
}

// New opens a backend.
func New(cfg *Config, logger logging.Logger) (*Backend, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(cfg.BaseDNs) == 0 {
		return nil, ErrNoBaseDN
	}

	suffixes := make([]*dn.DN, 0, len(cfg.BaseDNs))
	for _, s := range cfg.BaseDNs {
		d, err := dn.Parse(s)
		if err != nil {
			return nil, err
		}
		if d.IsRoot() {
			return nil, fmt.Errorf("%w: empty DN", ErrNoBaseDN)
		}
		suffixes = append(suffixes, d)
	}

	logger = logger.Named("backend").WithFields("backend", cfg.Name)
	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("backend opened", "base_dns", cfg.BaseDNs, "in_memory", cfg.InMemory)
	return &Backend{
		name:     cfg.Name,
		suffixes: suffixes,
		store:    st,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Name returns the backend name.
func (b *Backend) Name() string { return b.name }

// BaseDNs returns the suffixes served by the backend.
func (b *Backend) BaseDNs() []string {
	out := make([]string, len(b.suffixes))
	for i, s := range b.suffixes {
		out[i] = s.String()
	}
	return out
}

// Close releases the store.
func (b *Backend) Close() error {
	return b.store.close()
}

// Get returns a copy of the entry stored at d.
func (b *Backend) Get(d *dn.DN) (*ldap.Entry, error) {
	var entry *ldap.Entry
	err := b.store.db.View(func(txn *badger.Txn) error {
		var err error
		entry, err = getEntry(txn, d.Normalized())
		return err
	})
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	return entry, err
}

// Execute implements operation.Workflow.
func (b *Backend) Execute(op operation.Operation) error {
	switch o := op.(type) {
	case *operation.AddOperation:
		return b.add(o)
	case *operation.BindOperation:
		return b.bind(o)
	case *operation.ModifyOperation:
		return b.modify(o)
	case *operation.ModifyDNOperation:
		return b.modifyDN(o)
	case *operation.SearchOperation:
		return b.search(o)
	default:
		return ldap.NewResultError(ldap.ResultUnwillingToPerform, "backend %s does not support %s operations", b.name, op.Kind())
	}
}

func (b *Backend) isSuffix(d *dn.DN) bool {
	for _, s := range b.suffixes {
		if s.Equal(d) {
			return true
		}
	}
	return false
}

func (b *Backend) serves(d *dn.DN) bool {
	for _, s := range b.suffixes {
		if d.IsWithin(s) {
			return true
		}
	}
	return false
}

// parentKey is the child-index parent of d: empty for suffix entries.
func (b *Backend) parentKey(d *dn.DN) string {
	if b.isSuffix(d) {
		return ""
	}
	return d.Parent().Normalized()
}

// noSuchObject reports a missing entry together with its closest existing
// ancestor inside the backend.
func (b *Backend) noSuchObject(txn *badger.Txn, d *dn.DN, format string, args ...interface{}) error {
	err := ldap.NewResultError(ldap.ResultNoSuchObject, format, args...)
	for p := d.Parent(); p != nil && b.serves(p); p = p.Parent() {
		if ok, _ := exists(txn, p.Normalized()); ok {
			return err.WithMatchedDN(p.String())
		}
	}
	return err
}

// record appends the sub-operation describing this backend's part in op and
// sets op's result on success. Cancellation leaves no trace.
func (b *Backend) record(op operation.Operation, sub *operation.SubOperation, err error) error {
	if errors.Is(err, operation.ErrCanceled) {
		return err
	}

	sub.Parent = op
	sub.Backend = b.name
	var re *ldap.ResultError
	switch {
	case err == nil:
		sub.Code = ldap.ResultSuccess
		op.SetResultCode(ldap.ResultSuccess)
	case errors.As(err, &re):
		sub.Code = re.Code
		sub.Message = re.Message
	default:
		sub.Code = ldap.ResultOperationsError
		sub.Message = err.Error()
		b.logger.Error("operation failed", "op", op.Kind().String(), "op_id", op.OperationID(), "error", err)
	}
	op.Context().AddSubOperation(sub)
	return err
}
