package workflow

import (
	"sort"

	"github.com/KilimcininKorOglu/obacore/internal/filter"
	"github.com/KilimcininKorOglu/obacore/internal/ldap"
	"github.com/KilimcininKorOglu/obacore/internal/operation"
)

// DefaultVendorName is the vendorName published in the root DSE.
const DefaultVendorName = "obacore"

// DefaultVendorVersion can be overridden at build time.
var DefaultVendorVersion = "dev"

// RootDSEConfig holds the static part of the root DSE.
type RootDSEConfig struct {
	VendorName        string
	VendorVersion     string
	SupportedControls []string
	SupportedFeatures []string
}

// NewRootDSEConfig creates a RootDSEConfig advertising the controls the
// engine understands.
func NewRootDSEConfig() *RootDSEConfig {
	return &RootDSEConfig{
		VendorName:    DefaultVendorName,
		VendorVersion: DefaultVendorVersion,
		SupportedControls: []string{
			ldap.OIDPersistentSearch,
			ldap.OIDEntryChangeNotification,
		},
	}
}

// WithSupportedControls sets the supported control OIDs.
func (c *RootDSEConfig) WithSupportedControls(oids ...string) *RootDSEConfig {
	c.SupportedControls = oids
	return c
}

// WithSupportedFeatures sets the supported feature OIDs.
func (c *RootDSEConfig) WithSupportedFeatures(oids ...string) *RootDSEConfig {
	c.SupportedFeatures = oids
	return c
}

// RootDSE is the workflow serving the empty DN. Only base-scope searches are
// answered; every other request is refused.
type RootDSE struct {
	config   *RootDSEConfig
	contexts func() []string
}

// NewRootDSE creates the root DSE workflow. contexts supplies the current
// naming contexts on every search.
func NewRootDSE(cfg *RootDSEConfig, contexts func() []string) *RootDSE {
	if cfg == nil {
		cfg = NewRootDSEConfig()
	}
	return &RootDSE{config: cfg, contexts: contexts}
}

// Entry builds the root DSE entry.
func (r *RootDSE) Entry() *ldap.Entry {
	e := ldap.NewEntry("")
	e.SetAttribute("objectClass", "top", "rootDSE")
	e.SetAttribute("supportedLDAPVersion", "3")

	if r.contexts != nil {
		if nc := r.contexts(); len(nc) > 0 {
			e.SetAttribute("namingContexts", nc...)
		}
	}
	if len(r.config.SupportedControls) > 0 {
		e.SetAttribute("supportedControl", sorted(r.config.SupportedControls)...)
	}
	if len(r.config.SupportedFeatures) > 0 {
		e.SetAttribute("supportedFeatures", sorted(r.config.SupportedFeatures)...)
	}
	if r.config.VendorName != "" {
		e.SetAttribute("vendorName", r.config.VendorName)
	}
	if r.config.VendorVersion != "" {
		e.SetAttribute("vendorVersion", r.config.VendorVersion)
	}
	return e
}

func sorted(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

// Execute implements operation.Workflow.
func (r *RootDSE) Execute(op operation.Operation) error {
	search, ok := op.(*operation.SearchOperation)
	if !ok {
		return ldap.NewResultError(ldap.ResultUnwillingToPerform, "the root DSE cannot be the target of a %s operation", op.Kind())
	}
	if search.Scope() != ldap.ScopeBaseObject {
		return ldap.NewResultError(ldap.ResultUnwillingToPerform, "only base-scope searches of the root DSE are supported")
	}

	search.Context().AddSubOperation(&operation.SubOperation{
		Parent:  op,
		Backend: "rootDSE",
		Code:    ldap.ResultSuccess,
	})

	entry := r.Entry()
	if f := search.Filter(); f != nil && !filter.Matches(f, entry) {
		op.SetResultCode(ldap.ResultSuccess)
		return nil
	}
	if !search.ReturnEntry(entry.Project(search.Attributes(), search.TypesOnly()), nil) {
		return nil
	}
	op.SetResultCode(ldap.ResultSuccess)
	return nil
}
