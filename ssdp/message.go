// Package ssdp implements the Simple Service Discovery Protocol: the
// HTTP-over-UDP multicast message codec, the multicast endpoint, and the
// server façade that classifies inbound traffic and drives M-SEARCH.
package ssdp

import (
	"strconv"
	"strings"

	"github.com/upnpkit/upnpkit/upnperr"
	"github.com/upnpkit/upnpkit/urn"
)

// DefaultMulticastHost is the well-known SSDP multicast group and port,
// used as the default HOST header on outbound requests.
const DefaultMulticastHost = "239.255.255.250:1900"

// Headers is a header-name-to-value mapping. Names are stored uppercased;
// for duplicate headers the last value wins.
type Headers map[string]string

// Get returns the header value for name (case-insensitive), or "" if absent.
func (h Headers) Get(name string) string {
	return h[strings.ToUpper(name)]
}

// Set stores value under the uppercased name.
func (h Headers) Set(name, value string) {
	h[strings.ToUpper(name)] = value
}

// Message is a parsed or to-be-serialized SSDP message: either a request
// (NOTIFY or M-SEARCH) or a response to M-SEARCH.
type Message struct {
	IsResponse bool
	Method     string // request only: "NOTIFY" or "M-SEARCH"
	Version    string // "HTTP/1.1"
	Status     int    // response only: status code, e.g. 200
	Reason     string // response only: reason phrase, e.g. "OK"
	Headers    Headers
}

// NewRequest builds an outbound request message with the default
// multicast HOST header set unless the caller already set one.
func NewRequest(method string, headers Headers) Message {
	if headers == nil {
		headers = Headers{}
	}
	if headers.Get("HOST") == "" {
		headers.Set("HOST", DefaultMulticastHost)
	}
	return Message{Method: method, Version: "HTTP/1.1", Headers: headers}
}

// NewResponse builds an outbound response message with status 200 OK.
func NewResponse(headers Headers) Message {
	if headers == nil {
		headers = Headers{}
	}
	return Message{IsResponse: true, Version: "HTTP/1.1", Status: 200, Reason: "OK", Headers: headers}
}

// Parse decodes raw into a Message. The first line determines request vs.
// response: it is a response iff it begins with the HTTP version token.
// Lines are split on CRLF, tolerating bare LF. Remaining lines are
// "Name: value" header lines; the name is uppercased and the value trimmed.
func Parse(raw string) (Message, error) {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return Message{}, upnperr.NewParseError("ssdp message", raw, nil)
	}

	msg := Message{Headers: Headers{}}

	startLine := strings.Fields(lines[0])
	if len(startLine) == 0 {
		return Message{}, upnperr.NewParseError("ssdp start line", lines[0], nil)
	}

	if strings.HasPrefix(strings.ToUpper(startLine[0]), "HTTP/") {
		msg.IsResponse = true
		msg.Version = startLine[0]
		msg.Status = 200
		msg.Reason = "OK"
		if len(startLine) >= 2 {
			if code, err := strconv.Atoi(startLine[1]); err == nil {
				msg.Status = code
			}
			parts := strings.SplitN(strings.TrimSpace(lines[0]), " ", 3)
			if len(parts) == 3 {
				msg.Reason = strings.TrimSpace(parts[2])
			}
		}
	} else {
		if len(startLine) < 3 {
			return Message{}, upnperr.NewParseError("ssdp start line", lines[0], nil)
		}
		msg.Method = startLine[0]
		msg.Version = startLine[2]
	}

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			return Message{}, upnperr.NewParseError("ssdp header", line, nil)
		}
		name := strings.ToUpper(strings.TrimSpace(line[:i]))
		value := strings.TrimSpace(line[i+1:])
		msg.Headers[name] = value
	}

	return msg, nil
}

// Serialize renders the message back to wire form: start line, headers as
// "Name: value" CRLF lines, terminated by an empty CRLF line. No body.
func (m Message) Serialize() string {
	var b strings.Builder

	if m.IsResponse {
		version := m.Version
		if version == "" {
			version = "HTTP/1.1"
		}
		status := m.Status
		if status == 0 {
			status = 200
		}
		reason := m.Reason
		if reason == "" {
			reason = "OK"
		}
		b.WriteString(version)
		b.WriteString(" ")
		b.WriteString(strconv.Itoa(status))
		b.WriteString(" ")
		b.WriteString(reason)
		b.WriteString("\r\n")
	} else {
		version := m.Version
		if version == "" {
			version = "HTTP/1.1"
		}
		b.WriteString(m.Method)
		b.WriteString(" * ")
		b.WriteString(version)
		b.WriteString("\r\n")
	}

	for name, value := range m.Headers {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	return b.String()
}

// Host parses the HOST header as host:port, defaulting the port to 1900
// when absent. Returns ok=false when HOST is not present.
func (m Message) Host() (host string, port int, ok bool) {
	h := m.Headers.Get("HOST")
	if h == "" {
		return "", 0, false
	}
	i := strings.LastIndexByte(h, ':')
	if i < 0 {
		return h, 1900, true
	}
	p, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return h[:i], 1900, true
	}
	return h[:i], p, true
}

// MaxAge parses the integer max-age=N from CACHE-CONTROL. ok is false when
// the header is absent or malformed.
func (m Message) MaxAge() (age int, ok bool) {
	cc := m.Headers.Get("CACHE-CONTROL")
	if cc == "" {
		return 0, false
	}
	i := strings.Index(cc, "max-age=")
	if i < 0 {
		return 0, false
	}
	rest := cc[i+len("max-age="):]
	end := strings.IndexAny(rest, ", ")
	if end >= 0 {
		rest = rest[:end]
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Location returns the LOCATION header.
func (m Message) Location() string { return m.Headers.Get("LOCATION") }

// NTS returns the NTS header (ssdp:alive or ssdp:byebye).
func (m Message) NTS() string { return m.Headers.Get("NTS") }

// MAN returns the MAN header.
func (m Message) MAN() string { return m.Headers.Get("MAN") }

// MX parses the MX header as an integer; ok is false when absent or malformed.
func (m Message) MX() (mx int, ok bool) {
	v := m.Headers.Get("MX")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// USN parses the USN header.
func (m Message) USN() (urn.USN, bool, error) {
	v := m.Headers.Get("USN")
	if v == "" {
		return urn.USN{}, false, nil
	}
	u, err := urn.ParseUSN(v)
	if err != nil {
		return urn.USN{}, true, err
	}
	return u, true, nil
}

// typeOrURN implements the shared NT/ST accessor rule: a value starting
// with "urn:" parses as a URN, otherwise it is returned as a raw string.
type typeOrURN struct {
	URN *urn.URN
	Raw string
}

func parseTypeOrURN(v string) (typeOrURN, error) {
	if v == "" {
		return typeOrURN{}, nil
	}
	if strings.HasPrefix(v, "urn:") {
		u, err := urn.Parse(v)
		if err != nil {
			return typeOrURN{}, err
		}
		return typeOrURN{URN: &u}, nil
	}
	return typeOrURN{Raw: v}, nil
}

// NT returns the NT header, parsed as a URN when it begins with "urn:".
func (m Message) NT() (typeOrURN, error) {
	return parseTypeOrURN(m.Headers.Get("NT"))
}

// ST returns the ST header, parsed as a URN when it begins with "urn:".
func (m Message) ST() (typeOrURN, error) {
	return parseTypeOrURN(m.Headers.Get("ST"))
}
