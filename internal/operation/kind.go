package operation

// Kind identifies the request type an operation carries.
type Kind int

const (
	KindAdd Kind = iota + 1
	KindBind
	KindModify
	KindModifyDN
	KindSearch
)

// String returns the lower-case LDAP name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindBind:
		return "bind"
	case KindModify:
		return "modify"
	case KindModifyDN:
		return "modifyDN"
	case KindSearch:
		return "search"
	default:
		return "unknown"
	}
}
