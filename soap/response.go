package soap

import (
	"encoding/xml"

	"github.com/upnpkit/upnpkit/upnperr"
)

// rawElement recursively captures an XML element's name, text, and
// children, used to walk the dynamically-named <actionResponse> element
// (its tag name is "<Action>Response" and its children are the out
// arguments, each a simple name/text pair).
type rawElement struct {
	XMLName  xml.Name
	Value    string       `xml:",chardata"`
	Children []rawElement `xml:",any"`
}

type rawFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
	Detail      struct {
		UPnPError struct {
			ErrorCode        int    `xml:"errorCode"`
			ErrorDescription string `xml:"errorDescription"`
		} `xml:"UPnPError"`
	} `xml:"detail"`
}

type rawEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault    *rawFault    `xml:"Fault"`
		Response []rawElement `xml:",any"`
	} `xml:"Body"`
}

// Response is the parsed result of a successful action call: out argument
// name -> wire value.
type Response map[string]string

// ParseResponse parses a 200-status SOAP response body into its out
// arguments.
func ParseResponse(body []byte) (Response, error) {
	var env rawEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, upnperr.NewParseError("soap response", string(body), err)
	}
	if len(env.Body.Response) == 0 {
		return Response{}, nil
	}

	out := Response{}
	for _, child := range env.Body.Response[0].Children {
		out[child.XMLName.Local] = child.Value
	}
	return out, nil
}

// ParseFault parses a 500-status SOAP response body into a typed
// ProtocolError carrying the UPnPError code and description (§4.7,
// testable property 7).
func ParseFault(body []byte) (*upnperr.ProtocolError, error) {
	var env rawEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, upnperr.NewParseError("soap fault", string(body), err)
	}
	if env.Body.Fault == nil {
		return nil, upnperr.NewParseError("soap fault", string(body), nil)
	}

	f := env.Body.Fault
	return upnperr.NewSOAPError(f.Detail.UPnPError.ErrorCode, f.Detail.UPnPError.ErrorDescription), nil
}
