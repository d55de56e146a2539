// Package urn parses and renders the structured identifiers UPnP uses for
// device and service types (URN) and for concrete advertisements (USN).
package urn

import (
	"regexp"

	"github.com/upnpkit/upnpkit/upnperr"
)

// urnPattern matches urn:<domain>:<kind>:<type>:<version>, kind restricted
// to device|service. All five fields are required to be non-empty.
var urnPattern = regexp.MustCompile(`(?i)^urn:([^:]+):(device|service):([^:]+):([^:]+)$`)

// schemasUpnpOrg is the well-known domain used by the standard UPnP
// schemas; anything else is a vendor extension.
const schemasUpnpOrg = "schemas-upnp-org"

// URN is the parsed form of a device or service type identifier. It is a
// value type: equality and hashing operate on the canonical string form.
type URN struct {
	Domain  string
	Kind    string // "device" or "service"
	Type    string
	Version string
}

// Parse parses s as a URN, failing with a *upnperr.ParseError if it does
// not match the grammar or if kind is neither "device" nor "service".
func Parse(s string) (URN, error) {
	m := urnPattern.FindStringSubmatch(s)
	if m == nil {
		return URN{}, upnperr.NewParseError("urn", s, nil)
	}

	return URN{
		Domain:  m[1],
		Kind:    m[2],
		Type:    m[3],
		Version: m[4],
	}, nil
}

// MustParse is like Parse but panics on error; for tests and constants.
func MustParse(s string) URN {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// IsVendor reports whether the URN's domain is not the standard UPnP
// schema domain.
func (u URN) IsVendor() bool {
	return u.Domain != schemasUpnpOrg
}

// String renders the canonical form urn:<domain>:<kind>:<type>:<version>.
func (u URN) String() string {
	return "urn:" + u.Domain + ":" + u.Kind + ":" + u.Type + ":" + u.Version
}

// Equal reports whether two URNs have the same canonical string form.
func (u URN) Equal(other URN) bool {
	return u.String() == other.String()
}
