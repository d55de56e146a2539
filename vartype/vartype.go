// Package vartype implements the UPnP primitive type system: marshalling
// between the wire (string) representation of a state variable value and a
// host Go value, plus allowed-value constraints.
package vartype

import (
	"strconv"
	"strings"

	"github.com/upnpkit/upnpkit/upnperr"
)

// Kind classifies a wire type name into the handful of host representations
// UPnP primitives map to.
type Kind int

const (
	// KindString is the fallback for any wire type name not recognized
	// as integer, float, or boolean: it passes through unchanged.
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
)

// Type is a UPnP state-variable data type: a wire name (e.g. "ui4", "string",
// "boolean") bound to a Kind that governs host-value coercion.
type Type struct {
	Name string
	Kind Kind
}

// integerNames and floatNames list every wire type name UPnP specifies for
// each numeric Kind; anything else (including "boolean", handled
// separately) stays KindString.
var integerNames = map[string]bool{
	"ui1": true, "ui2": true, "ui4": true, "ui8": true,
	"i1": true, "i2": true, "i4": true, "i8": true, "int": true,
}

var floatNames = map[string]bool{
	"r4": true, "r8": true, "number": true, "fixed.14.4": true, "float": true,
}

// Lookup resolves a wire type name (as found in a SCPD <dataType> element)
// to its Type. Unknown names resolve to KindString pass-through, per the
// "everything else -> string" rule.
func Lookup(name string) Type {
	switch {
	case integerNames[name]:
		return Type{Name: name, Kind: KindInt}
	case floatNames[name]:
		return Type{Name: name, Kind: KindFloat}
	case name == "boolean":
		return Type{Name: name, Kind: KindBool}
	default:
		return Type{Name: name, Kind: KindString}
	}
}

// ToWire converts a host Go value to its wire string representation.
func (t Type) ToWire(v any) (string, error) {
	switch t.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return "", upnperr.NewParseError("state variable value", t.Name, nil)
		}
		if b {
			return "1", nil
		}
		return "0", nil
	case KindInt:
		switch n := v.(type) {
		case int:
			return strconv.Itoa(n), nil
		case int64:
			return strconv.FormatInt(n, 10), nil
		case string:
			return n, nil
		default:
			return "", upnperr.NewParseError("state variable value", t.Name, nil)
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64), nil
		case string:
			return n, nil
		default:
			return "", upnperr.NewParseError("state variable value", t.Name, nil)
		}
	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return "", upnperr.NewParseError("state variable value", t.Name, nil)
	}
}

// FromWire converts a wire string to the host Go representation: bool,
// int64, float64, or string depending on Kind.
func (t Type) FromWire(s string) (any, error) {
	switch t.Kind {
	case KindBool:
		trimmed := strings.TrimSpace(s)
		return trimmed == "1" || trimmed == "true" || trimmed == "yes", nil
	case KindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, upnperr.NewParseError("state variable value", s, err)
		}
		return n, nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, upnperr.NewParseError("state variable value", s, err)
		}
		return f, nil
	default:
		return s, nil
	}
}

// AllowedValues constrains a state variable to an enumerated set of wire
// strings (SCPD <allowedValueList>).
type AllowedValues struct {
	Values []string
}

// Allows reports whether wire is one of the allowed values.
func (a AllowedValues) Allows(wire string) bool {
	for _, v := range a.Values {
		if v == wire {
			return true
		}
	}
	return false
}

// AllowedRange constrains a numeric state variable to a min/max/step
// (SCPD <allowedValueRange>). Step is optional (zero means unspecified).
type AllowedRange struct {
	Minimum float64
	Maximum float64
	Step    float64
}

// Contains reports whether v falls within [Minimum, Maximum].
func (r AllowedRange) Contains(v float64) bool {
	return v >= r.Minimum && v <= r.Maximum
}
