//go:build !windows

package ssdp

// newSearchEndpoint opens a fresh ephemeral endpoint (no multicast group
// join) and sends every probe on it. On most platforms a plain
// non-blocking datagram endpoint handles M-SEARCH responses fine.
func newSearchEndpoint(opts EndpointOptions, probes []Message, mx int) (*Endpoint, error) {
	ep, err := OpenEphemeral(opts)
	if err != nil {
		return nil, err
	}

	for _, probe := range probes {
		if err := ep.Send(probe); err != nil {
			ep.log.WithError(err).Warn("failed to send m-search probe")
		}
	}

	return ep, nil
}
