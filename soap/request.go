// Package soap implements the SOAP 1.1 envelope codec and HTTP client used
// for UPnP action invocation (§4.7): request body construction, response
// and fault parsing, and typed argument marshalling against a service's
// state-variable schema.
package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const (
	envelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	encodingNS = "http://schemas.xmlsoap.org/soap/encoding/"
)

// Request is one SOAP action invocation: the control URL to POST to, the
// service type URN that namespaces the action element, the action name,
// and its already wire-coerced "in" arguments in call order.
type Request struct {
	ControlURL  string
	ServiceType string
	Action      string
	Args        []Arg
}

// Arg is one wire-coerced argument name/value pair.
type Arg struct {
	Name  string
	Value string
}

// Headers returns the Content-Type and SOAPAction headers required on the
// POST (§4.7).
func (r Request) Headers() map[string]string {
	return map[string]string{
		"Content-Type": `text/xml; charset="utf-8"`,
		"SOAPAction":   fmt.Sprintf("%q", r.ServiceType+"#"+r.Action),
	}
}

// Body renders the SOAP envelope: s:Envelope/s:Body/<u:action xmlns:u="...">
// with each in argument as an unqualified child element carrying its text
// value (§4.7, testable property 6).
func (r Request) Body() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0"?>`)
	buf.WriteString(`<s:Envelope xmlns:s="` + envelopeNS + `" s:encodingStyle="` + encodingNS + `">`)
	buf.WriteString(`<s:Body>`)
	buf.WriteString(`<u:` + r.Action + ` xmlns:u="` + escapeAttr(r.ServiceType) + `">`)

	for _, a := range r.Args {
		buf.WriteString("<" + a.Name + ">")
		if err := xml.EscapeText(&buf, []byte(a.Value)); err != nil {
			return nil, err
		}
		buf.WriteString("</" + a.Name + ">")
	}

	buf.WriteString(`</u:` + r.Action + `>`)
	buf.WriteString(`</s:Body>`)
	buf.WriteString(`</s:Envelope>`)

	return buf.Bytes(), nil
}

func escapeAttr(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
