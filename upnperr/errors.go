// Package upnperr defines the typed error kinds shared by every subsystem
// in upnpkit, per the error handling policy: protocol-ingress paths log and
// drop these, user-initiated paths propagate them.
package upnperr

import "fmt"

// ParseError reports a malformed SSDP message, URN, USN, or XML description.
type ParseError struct {
	What string // what failed to parse ("urn", "usn", "ssdp message", "device description", ...)
	Text string // the offending text, truncated by the caller if large
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s %q: %v", e.What, e.Text, e.Err)
	}
	return fmt.Sprintf("parse %s %q", e.What, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError builds a ParseError, wrapping an optional underlying cause.
func NewParseError(what, text string, err error) *ParseError {
	return &ParseError{What: what, Text: text, Err: err}
}

// TransportError reports a socket, HTTP, or other I/O-level failure.
// On discovery-side fetches these are logged and dropped; on user-initiated
// calls (SOAP Call, GENA Subscribe) they are returned to the caller.
type TransportError struct {
	Op  string // "bind", "join-group", "GET", "POST", "SUBSCRIBE", ...
	URL string
	Err error
}

func (e *TransportError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError builds a TransportError.
func NewTransportError(op, url string, err error) *TransportError {
	return &TransportError{Op: op, URL: url, Err: err}
}

// ProtocolError reports a SOAP fault or a GENA 4xx/5xx response. It carries
// a numeric code and a human description, surfaced to the caller typed so
// callers can branch on Code with errors.As.
type ProtocolError struct {
	Source      string // "soap" or "gena"
	Code        int
	Description string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Source, e.Code, e.Description)
}

// NewSOAPError builds a ProtocolError for a SOAP fault.
func NewSOAPError(code int, description string) *ProtocolError {
	return &ProtocolError{Source: "soap", Code: code, Description: description}
}

// NewGENAError builds a ProtocolError for a GENA SUBSCRIBE/UNSUBSCRIBE/RENEW failure.
func NewGENAError(code int, description string) *ProtocolError {
	return &ProtocolError{Source: "gena", Code: code, Description: description}
}

// StateError reports use of a closed session, an expired subscription, or
// an unstarted server.
type StateError struct {
	Subject string // "gena session", "subscription", "ssdp server", ...
	Reason  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Reason)
}

// NewStateError builds a StateError.
func NewStateError(subject, reason string) *StateError {
	return &StateError{Subject: subject, Reason: reason}
}
