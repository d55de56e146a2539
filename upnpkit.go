// Package upnpkit wires the SSDP discovery layer, device/service tree, SOAP
// invocation, and GENA subscriptions into a single control-point runtime
// (§2 System Overview): UDP datagrams flow through the SSDP server façade
// into the device registry, which fetches descriptions and builds the
// device/service tree; actions flow back out through SOAP; subscriptions
// flow through GENA.
package upnpkit

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/upnpkit/upnpkit/device"
	"github.com/upnpkit/upnpkit/gena"
	"github.com/upnpkit/upnpkit/soap"
	"github.com/upnpkit/upnpkit/ssdp"
)

// Options configures a ControlPoint. Every field is optional; zero values
// fall back to the per-component defaults documented on Endpoint, Registry,
// and CallbackServer (§9 Configuration: recognized options per
// construction site, everything else defaults).
type Options struct {
	MulticastAddress string // default ssdp.DefaultMulticastHost
	TTL              int    // default 4
	HTTPClient       *http.Client
	Log              *logrus.Entry
}

// ControlPoint is the top-level facade: one SSDP server, one device
// registry, one SOAP client, and one shared GENA callback server.
type ControlPoint struct {
	SSDP    *ssdp.Server
	Devices *device.Registry
	SOAP    *soap.Client
	GENA    *gena.CallbackServer

	log     *logrus.Entry
	started bool
}

// New constructs a ControlPoint and wires the registry to the SSDP server's
// classified message stream. Nothing is started until Start is called.
func New(opts Options) *ControlPoint {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger().WithField("component", "upnpkit")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	ssdpServer := ssdp.NewServer(ssdp.EndpointOptions{
		MulticastAddress: opts.MulticastAddress,
		TTL:              opts.TTL,
		Log:              opts.Log.WithField("subsystem", "ssdp"),
	})

	registry := device.NewRegistry(device.RegistryOptions{
		HTTPClient: opts.HTTPClient,
		Log:        opts.Log.WithField("subsystem", "device"),
	})
	registry.Attach(ssdpServer)

	return &ControlPoint{
		SSDP:    ssdpServer,
		Devices: registry,
		SOAP:    soap.NewClient(opts.HTTPClient),
		GENA:    gena.NewCallbackServer(opts.Log.WithField("subsystem", "gena")),
		log:     opts.Log,
	}
}

// Start brings up the SSDP listener and the GENA callback server.
// Idempotent.
func (cp *ControlPoint) Start() error {
	if cp.started {
		return nil
	}
	if err := cp.SSDP.Start(); err != nil {
		return err
	}
	if err := cp.GENA.Start(); err != nil {
		_ = cp.SSDP.Stop()
		return err
	}
	cp.started = true
	return nil
}

// Stop tears down the SSDP listener and GENA callback server.
func (cp *ControlPoint) Stop(ctx context.Context) error {
	if !cp.started {
		return nil
	}
	cp.started = false

	err1 := cp.SSDP.Stop()
	err2 := cp.GENA.Stop(ctx)
	if err1 != nil {
		return err1
	}
	return err2
}

// Discover runs one M-SEARCH round for the given search targets, streaming
// responses into the device registry via the ephemeral endpoint's own Recv
// events (§4.4, §4.5). It blocks until the 2*mx second window closes.
func (cp *ControlPoint) Discover(ctx context.Context, targets []string, mx int) error {
	ep, err := cp.SSDP.Search(ctx, targets, mx)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	sub := ep.Recv.Subscribe(func(r ssdp.Recv) {
		cp.Devices.Handle(ctx, r.Message, r.Addr)
	})
	ep.Disconnected.Subscribe(func(struct{}) {
		select {
		case <-done:
		default:
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Duration(2*clampMX(mx)+1) * time.Second):
	}
	ep.Recv.Unsubscribe(sub)
	return nil
}

func clampMX(mx int) int {
	if mx <= 0 {
		return 1
	}
	if mx > 5 {
		return 5
	}
	return mx
}

// NewGENASession constructs a GENA session bound to the control point's
// shared callback server, using httpClient (a fresh client when nil). The
// session is not opened; the caller calls Open on it before subscribing.
func (cp *ControlPoint) NewGENASession(httpClient *http.Client) *gena.Session {
	return gena.NewSession(cp.GENA, httpClient, cp.log.WithField("subsystem", "gena-session"))
}
