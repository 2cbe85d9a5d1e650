package psearch

import (
	"errors"
	"fmt"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// ChangeType is a bit in the changeTypes mask of the persistent search
// control. The same values are used as the changeType of an entry change
// notification.
type ChangeType int

// Change types (draft-ietf-ldapext-psearch).
const (
	ChangeAdd    ChangeType = 1
	ChangeDelete ChangeType = 2
	ChangeModify ChangeType = 4
	ChangeModDN  ChangeType = 8

	// AllChanges selects every change type.
	AllChanges = ChangeAdd | ChangeDelete | ChangeModify | ChangeModDN
)

// ErrMalformedControl is returned when a control value cannot be decoded.
var ErrMalformedControl = errors.New("psearch: malformed control value")

// String returns the change types in the mask joined by "|".
func (c ChangeType) String() string {
	var names []string
	for _, t := range []struct {
		bit  ChangeType
		name string
	}{
		{ChangeAdd, "add"},
		{ChangeDelete, "delete"},
		{ChangeModify, "modify"},
		{ChangeModDN, "modDN"},
	} {
		if c&t.bit != 0 {
			names = append(names, t.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Control is a decoded persistent search request control.
//
//	PersistentSearch ::= SEQUENCE {
//	    changeTypes INTEGER,
//	    changesOnly BOOLEAN,
//	    returnECs   BOOLEAN
//	}
type Control struct {
	ChangeTypes ChangeType
	// ChangesOnly skips the initial search phase.
	ChangesOnly bool
	// ReturnECs attaches an entry change notification to every change.
	ReturnECs   bool
	Criticality bool
}

// Wants reports whether changes of type t are requested.
func (c *Control) Wants(t ChangeType) bool {
	return c.ChangeTypes&t != 0
}

// ParseControl decodes a persistent search control. It returns nil for
// controls with a different OID.
func ParseControl(ctrl ldap.Control) (*Control, error) {
	if ctrl.OID != ldap.OIDPersistentSearch {
		return nil, nil
	}

	p, err := ber.DecodePacketErr(ctrl.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedControl, err)
	}
	if p.Tag != ber.TagSequence || len(p.Children) != 3 {
		return nil, fmt.Errorf("%w: expected a sequence of three elements", ErrMalformedControl)
	}

	changeTypes, ok := p.Children[0].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("%w: changeTypes is not an integer", ErrMalformedControl)
	}
	if changeTypes <= 0 || changeTypes > int64(AllChanges) {
		return nil, fmt.Errorf("%w: invalid changeTypes %d", ErrMalformedControl, changeTypes)
	}
	changesOnly, ok := p.Children[1].Value.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: changesOnly is not a boolean", ErrMalformedControl)
	}
	returnECs, ok := p.Children[2].Value.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: returnECs is not a boolean", ErrMalformedControl)
	}

	return &Control{
		ChangeTypes: ChangeType(changeTypes),
		ChangesOnly: changesOnly,
		ReturnECs:   returnECs,
		Criticality: ctrl.Criticality,
	}, nil
}

// FindControl returns the decoded persistent search control in controls,
// or nil if there is none.
func FindControl(controls []ldap.Control) (*Control, error) {
	ctrl := ldap.FindControl(controls, ldap.OIDPersistentSearch)
	if ctrl == nil {
		return nil, nil
	}
	return ParseControl(*ctrl)
}

// Encode returns the BER encoding of the control value.
func (c *Control) Encode() []byte {
	seq := ber.NewSequence("Persistent Search")
	seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(c.ChangeTypes), "changeTypes"))
	seq.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, c.ChangesOnly, "changesOnly"))
	seq.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, c.ReturnECs, "returnECs"))
	return seq.Bytes()
}

// LDAPControl wraps the control for a request.
func (c *Control) LDAPControl() ldap.Control {
	return ldap.Control{OID: ldap.OIDPersistentSearch, Criticality: c.Criticality, Value: c.Encode()}
}

// EntryChangeNotification describes the change that caused an entry to be
// returned.
//
//	EntryChangeNotification ::= SEQUENCE {
//	    changeType   ENUMERATED,
//	    previousDN   LDAPDN OPTIONAL,
//	    changeNumber INTEGER OPTIONAL
//	}
type EntryChangeNotification struct {
	ChangeType ChangeType
	// PreviousDN is only set for modDN changes.
	PreviousDN string
	// ChangeNumber is omitted when zero.
	ChangeNumber int64
}

// Encode returns the BER encoding of the notification.
func (n *EntryChangeNotification) Encode() []byte {
	seq := ber.NewSequence("Entry Change Notification")
	seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(n.ChangeType), "changeType"))
	if n.ChangeType == ChangeModDN && n.PreviousDN != "" {
		seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, n.PreviousDN, "previousDN"))
	}
	if n.ChangeNumber > 0 {
		seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, n.ChangeNumber, "changeNumber"))
	}
	return seq.Bytes()
}

// LDAPControl wraps the notification as a non-critical response control.
func (n *EntryChangeNotification) LDAPControl() ldap.Control {
	return ldap.Control{OID: ldap.OIDEntryChangeNotification, Value: n.Encode()}
}

// ParseEntryChangeNotification decodes an entry change notification value.
func ParseEntryChangeNotification(value []byte) (*EntryChangeNotification, error) {
	p, err := ber.DecodePacketErr(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedControl, err)
	}
	if p.Tag != ber.TagSequence || len(p.Children) == 0 {
		return nil, fmt.Errorf("%w: expected a non-empty sequence", ErrMalformedControl)
	}

	changeType, ok := p.Children[0].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("%w: changeType is not an enumeration", ErrMalformedControl)
	}
	n := &EntryChangeNotification{ChangeType: ChangeType(changeType)}

	for _, child := range p.Children[1:] {
		switch child.Tag {
		case ber.TagOctetString:
			n.PreviousDN = child.Data.String()
		case ber.TagInteger:
			v, ok := child.Value.(int64)
			if !ok {
				return nil, fmt.Errorf("%w: changeNumber is not an integer", ErrMalformedControl)
			}
			n.ChangeNumber = v
		default:
			return nil, fmt.Errorf("%w: unexpected tag %d", ErrMalformedControl, child.Tag)
		}
	}
	return n, nil
}
