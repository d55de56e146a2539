package device

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/upnpkit/upnpkit/upnperr"
)

// defaultFetchTimeout is the HTTP GET timeout for description and SCPD
// fetches (§5 Timeouts: "HTTP GET default 10 s").
const defaultFetchTimeout = 10 * time.Second

// httpGet issues a GET against url with the configured timeout and returns
// the response body, mapping non-200 statuses and transport failures to a
// TransportError.
func httpGet(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, upnperr.NewTransportError("GET", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, upnperr.NewTransportError("GET", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, upnperr.NewTransportError("GET", url, errors.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upnperr.NewTransportError("GET", url, err)
	}
	return body, nil
}

func fetchDeviceDescription(ctx context.Context, client *http.Client, location string) (rawRoot, error) {
	body, err := httpGet(ctx, client, location)
	if err != nil {
		return rawRoot{}, err
	}
	var root rawRoot
	if err := xml.Unmarshal(body, &root); err != nil {
		return rawRoot{}, upnperr.NewParseError("device description", location, err)
	}
	if root.Device.UDN == "" {
		return rawRoot{}, upnperr.NewParseError("device description", location, errors.New("missing UDN"))
	}
	return root, nil
}

func fetchSCPD(ctx context.Context, client *http.Client, scpdURL string) (rawSCPD, error) {
	body, err := httpGet(ctx, client, scpdURL)
	if err != nil {
		return rawSCPD{}, err
	}
	var scpd rawSCPD
	if err := xml.Unmarshal(body, &scpd); err != nil {
		return rawSCPD{}, upnperr.NewParseError("scpd description", scpdURL, err)
	}
	return scpd, nil
}
