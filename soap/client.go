package soap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/upnpkit/upnpkit/device"
	"github.com/upnpkit/upnpkit/upnperr"
)

// Client issues SOAP action calls over HTTP. A single Client may be shared
// across services and control points; it holds no per-call state.
type Client struct {
	HTTP *http.Client
}

// NewClient builds a Client with the given HTTP client, defaulting to
// http.DefaultClient's zero-value equivalent when nil.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{HTTP: httpClient}
}

// Call invokes action on svc with args keyed by in-argument name, marshals
// each through its related state variable's UPnP type, rejects unknown
// argument names before sending, and unmarshals the out arguments back to
// host values the same way (§4.7 Typed invocation).
func (c *Client) Call(ctx context.Context, svc *device.Service, actionName string, args map[string]any) (map[string]any, error) {
	action, ok := svc.Action(actionName)
	if !ok {
		return nil, upnperr.NewStateError("soap call", fmt.Sprintf("unknown action %q", actionName))
	}

	inArgs := action.InArgs()
	known := make(map[string]bool, len(inArgs))
	for _, a := range inArgs {
		known[a.Name] = true
	}
	for name := range args {
		if !known[name] {
			return nil, upnperr.NewStateError("soap call", fmt.Sprintf("unknown argument %q for action %q", name, actionName))
		}
	}

	wireArgs := make([]Arg, 0, len(inArgs))
	for _, a := range inArgs {
		v, present := args[a.Name]
		if !present {
			continue
		}
		sv, ok := svc.Variable(a.RelatedStateVariable)
		if !ok {
			return nil, upnperr.NewStateError("soap call", fmt.Sprintf("action %q argument %q has no related state variable", actionName, a.Name))
		}
		wire, err := sv.Type.ToWire(v)
		if err != nil {
			return nil, upnperr.NewParseError(fmt.Sprintf("soap argument %q", a.Name), sv.Type.Name, err)
		}
		wireArgs = append(wireArgs, Arg{Name: a.Name, Value: wire})
	}

	req := Request{
		ControlURL:  svc.ControlURL,
		ServiceType: svc.Type,
		Action:      actionName,
		Args:        wireArgs,
	}

	result, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(result))
	for _, a := range action.OutArgs() {
		wire, present := result[a.Name]
		if !present {
			continue
		}
		sv, ok := svc.Variable(a.RelatedStateVariable)
		if !ok {
			out[a.Name] = wire
			continue
		}
		v, err := sv.Type.FromWire(wire)
		if err != nil {
			return nil, err
		}
		out[a.Name] = v
	}
	return out, nil
}

// send POSTs req and parses either a Response or a Fault, per §4.7: HTTP
// 500 signals a fault body; any other non-200 status is a transport error.
func (c *Client) send(ctx context.Context, req Request) (Response, error) {
	body, err := req.Body()
	if err != nil {
		return nil, upnperr.NewParseError("soap request", req.Action, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.ControlURL, bytes.NewReader(body))
	if err != nil {
		return nil, upnperr.NewTransportError("POST", req.ControlURL, err)
	}
	for k, v := range req.Headers() {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, upnperr.NewTransportError("POST", req.ControlURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upnperr.NewTransportError("POST", req.ControlURL, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return ParseResponse(respBody)
	case http.StatusInternalServerError:
		fault, ferr := ParseFault(respBody)
		if ferr != nil {
			return nil, ferr
		}
		return nil, fault
	default:
		return nil, upnperr.NewTransportError("POST", req.ControlURL, errors.Errorf("unexpected status %s", resp.Status))
	}
}
