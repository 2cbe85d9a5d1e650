package backend

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// Operational attributes maintained by the backend (RFC 4512, RFC 4530).
const (
	AttrCreateTimestamp = "createTimestamp"
	AttrModifyTimestamp = "modifyTimestamp"
	AttrCreatorsName    = "creatorsName"
	AttrModifiersName   = "modifiersName"
	AttrEntryDN         = "entryDN"
	AttrEntryUUID       = "entryUUID"
)

// noUserModification lists the attributes clients cannot set.
var noUserModification = map[string]bool{
	strings.ToLower(AttrCreateTimestamp): true,
	strings.ToLower(AttrModifyTimestamp): true,
	strings.ToLower(AttrCreatorsName):    true,
	strings.ToLower(AttrModifiersName):   true,
	strings.ToLower(AttrEntryDN):         true,
	strings.ToLower(AttrEntryUUID):       true,
}

// IsOperational reports whether attr is maintained by the backend.
func IsOperational(attr string) bool {
	return noUserModification[strings.ToLower(attr)]
}

type change int

const (
	changeAdd change = iota
	changeModify
)

// setOperational stamps entry for an add or a modification made by
// authzDN at now. Adds also get a fresh entryUUID.
func setOperational(entry *ldap.Entry, c change, authzDN string, now time.Time) {
	ts := FormatTimestamp(now)

	if c == changeAdd {
		entry.SetAttribute(AttrCreateTimestamp, ts)
		entry.SetAttribute(AttrCreatorsName, authzDN)
		entry.SetAttribute(AttrEntryUUID, uuid.NewString())
	}
	entry.SetAttribute(AttrModifyTimestamp, ts)
	entry.SetAttribute(AttrModifiersName, authzDN)
	entry.SetAttribute(AttrEntryDN, entry.DN)
}

// stripOperational removes client-supplied operational attributes.
func stripOperational(entry *ldap.Entry) {
	for name := range entry.Attributes {
		if noUserModification[name] {
			delete(entry.Attributes, name)
		}
	}
}

// FormatTimestamp formats t as GeneralizedTime (YYYYMMDDHHmmssZ).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("20060102150405Z")
}

// ParseTimestamp parses a GeneralizedTime string. It returns the zero time
// when s is malformed.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse("20060102150405Z", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
