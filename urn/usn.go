package urn

import (
	"regexp"
	"strings"

	"github.com/upnpkit/upnpkit/upnperr"
)

// usnPattern matches uuid:<uuid>[::((upnp:rootdevice)|(urn:...))].
var usnPattern = regexp.MustCompile(`(?i)^uuid:([^:]+)(::((upnp:rootdevice)|(urn:.+)))?$`)

// USN is the parsed form of a Unique Service Name: a bare uuid, a
// root-device marker, or a uuid::urn composite. UUID is always lowercased
// per the protocol; the URN scheme fields preserve case.
type USN struct {
	UUID   string
	IsRoot bool
	URN    *URN // nil unless this is a uuid::urn composite
}

// ParseUSN parses s as a USN.
func ParseUSN(s string) (USN, error) {
	m := usnPattern.FindStringSubmatch(s)
	if m == nil {
		return USN{}, upnperr.NewParseError("usn", s, nil)
	}

	usn := USN{
		UUID:   strings.ToLower(m[1]),
		IsRoot: m[4] != "",
	}

	if m[5] != "" {
		u, err := Parse(m[5])
		if err != nil {
			return USN{}, upnperr.NewParseError("usn", s, err)
		}
		usn.URN = &u
	}

	return usn, nil
}

// String renders the canonical form: uuid:<uuid>, uuid:<uuid>::upnp:rootdevice,
// or uuid:<uuid>::<urn>.
func (u USN) String() string {
	switch {
	case u.IsRoot:
		return "uuid:" + u.UUID + "::upnp:rootdevice"
	case u.URN != nil:
		return "uuid:" + u.UUID + "::" + u.URN.String()
	default:
		return "uuid:" + u.UUID
	}
}

// Equal reports whether two USNs have the same canonical string form.
func (u USN) Equal(other USN) bool {
	return u.String() == other.String()
}
