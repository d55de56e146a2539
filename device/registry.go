package device

import (
	"context"
	"net"
	"net/http"
	"sync"
	"weak"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/upnpkit/upnpkit/event"
	"github.com/upnpkit/upnpkit/ssdp"
	"github.com/upnpkit/upnpkit/urn"
)

// Registry reconciles inbound SSDP advertisements into a live set of
// devices (§4.5). Root devices are held strongly; sub-devices are indexed
// weakly, so dropping a root transitively frees its sub-devices once no
// other strong reference remains (§9 Open Question: weak sub-device
// indexing with strong ownership only through the parent).
type Registry struct {
	log    *logrus.Entry
	client *http.Client

	New event.Emitter[*Device]

	mu           sync.RWMutex
	roots        map[string]*Device
	subIndex     map[string]weak.Pointer[Device]
	pending      map[string]bool   // location -> fetch in flight
	lastConfigID map[string]string // uuid -> last-fetched CONFIGID.UPNP.ORG
}

// RegistryOptions configures a Registry. HTTPClient defaults to a plain
// &http.Client{} with no timeout of its own if nil (fetchDeviceDescription
// and fetchSCPD bound each call with a defaultFetchTimeout context, so the
// client itself need not set one, but callers may supply a hardened client
// with connection pooling/TLS settings of their own).
type RegistryOptions struct {
	HTTPClient *http.Client
	Log        *logrus.Entry
}

// NewRegistry constructs an empty Registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger().WithField("component", "device-registry")
	}
	return &Registry{
		log:          opts.Log,
		client:       opts.HTTPClient,
		roots:        map[string]*Device{},
		subIndex:     map[string]weak.Pointer[Device]{},
		pending:      map[string]bool{},
		lastConfigID: map[string]string{},
	}
}

// Attach subscribes the registry to an SSDP server's classified message
// stream, driving Handle for every NOTIFY and M-SEARCH response observed.
func (r *Registry) Attach(server *ssdp.Server) event.Subscription {
	return server.Message.Subscribe(func(c ssdp.Classified) {
		if c.Message.Method == "M-SEARCH" {
			return // requests from other control points, not advertisements
		}
		r.Handle(context.Background(), c.Message, c.Recv.Addr)
	})
}

// Handle applies one inbound advertisement to the registry (§4.5): unknown
// uuids trigger a deduped description fetch; known ones are delivered
// straight to the existing device.
func (r *Registry) Handle(ctx context.Context, msg ssdp.Message, addr net.Addr) {
	usn, present, err := msg.USN()
	if !present || err != nil {
		return
	}

	loc := msg.Location()
	srcAddr := ""
	if addr != nil {
		srcAddr = sourceAddr(addr)
	}

	if d, ok := r.Get(usn.UUID); ok {
		configID := msg.Headers.Get("CONFIGID.UPNP.ORG")
		d.onMessage(msg)
		if d.IsRoot() && (msg.IsResponse || msg.NTS() == "ssdp:alive") {
			r.maybeRefetch(ctx, d, loc, srcAddr, configID)
		}
		return
	}

	if loc == "" {
		return // no description to fetch; cannot construct a new device
	}
	r.fetchAndStore(ctx, loc, srcAddr, msg)
}

// maybeRefetch implements the recommended merge policy from §9: refetch
// only when CONFIGID.UPNP.ORG differs from the value seen on the last
// fetch for this root device.
func (r *Registry) maybeRefetch(ctx context.Context, d *Device, loc, addr, configID string) {
	if configID == "" {
		return
	}

	r.mu.Lock()
	if r.lastConfigID[d.UUID] == configID {
		r.mu.Unlock()
		return
	}
	if r.pending[loc] {
		r.mu.Unlock()
		return
	}
	r.pending[loc] = true
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.pending, loc)
			r.mu.Unlock()
		}()
		root, err := fetchDeviceDescription(ctx, r.client, loc)
		if err != nil {
			r.log.WithError(err).WithField("location", loc).Debug("refetch failed")
			return
		}
		fresh := newDevice(loc, addr, nil, root.Device)
		r.mergeInto(d, fresh)
		r.buildSCPD(ctx, d)

		r.mu.Lock()
		r.lastConfigID[d.UUID] = configID
		r.mu.Unlock()
	}()
}

// mergeInto copies the friendly name, type and metadata of fresh onto
// existing, leaving lifecycle state, children and the service table
// untouched. Children and services are not rebuilt on refetch; buildSCPD
// afterwards reloads the SCPD of existing's current services only.
func (r *Registry) mergeInto(existing, fresh *Device) {
	existing.mu.Lock()
	defer existing.mu.Unlock()
	existing.FriendlyName = fresh.FriendlyName
	existing.Type = fresh.Type
	for k, v := range fresh.Metadata {
		existing.Metadata[k] = v
	}
}

// fetchAndStore fetches and parses a new root device's description,
// enforcing at-most-one-fetch-per-location (§4.5), then stores it and
// emits New for the root and every newly surfaced sub-device.
func (r *Registry) fetchAndStore(ctx context.Context, loc, addr string, originating ssdp.Message) {
	r.mu.Lock()
	if r.pending[loc] {
		r.mu.Unlock()
		return
	}
	r.pending[loc] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, loc)
		r.mu.Unlock()
	}()

	root, err := fetchDeviceDescription(ctx, r.client, loc)
	if err != nil {
		r.log.WithError(err).WithField("location", loc).Debug("description fetch failed")
		return
	}

	d := newDevice(loc, addr, nil, root.Device)
	if d.UUID == "" {
		return
	}

	r.buildSCPD(ctx, d)

	r.mu.Lock()
	r.roots[d.UUID] = d
	r.indexSubDevices(d)
	r.lastConfigID[d.UUID] = originating.Headers.Get("CONFIGID.UPNP.ORG")
	r.mu.Unlock()

	r.emitNew(d)

	d.onMessage(originating)
}

// buildSCPD concurrently fetches every service's SCPD document across d and
// its sub-devices, using an errgroup so the whole subtree's schemas load in
// parallel rather than one fetch at a time.
func (r *Registry) buildSCPD(ctx context.Context, d *Device) {
	g, gctx := errgroup.WithContext(ctx)
	r.walkServices(d, func(s *Service) {
		g.Go(func() error {
			scpd, err := fetchSCPD(gctx, r.client, s.SCPDURL)
			if err != nil {
				r.log.WithError(err).WithField("scpd", s.SCPDURL).Debug("scpd fetch failed")
				return nil // ingress path: swallow, never propagate (§7)
			}
			s.loadSCPD(scpd)
			return nil
		})
	})
	_ = g.Wait()
}

func (r *Registry) walkServices(d *Device, fn func(*Service)) {
	for _, s := range d.Services() {
		fn(s)
	}
	for _, c := range d.Children() {
		r.walkServices(c, fn)
	}
}

// indexSubDevices records a weak entry for d and every descendant; callers
// must hold r.mu.
func (r *Registry) indexSubDevices(d *Device) {
	if !d.IsRoot() {
		r.subIndex[d.UUID] = weak.Make(d)
	}
	for _, c := range d.children {
		r.indexSubDevices(c)
	}
}

func (r *Registry) emitNew(d *Device) {
	r.New.Emit(d)
	for _, c := range d.Children() {
		r.emitNew(c)
	}
}

// Get looks up a device by uuid, checking root devices first and then the
// weak sub-device index.
func (r *Registry) Get(uuid string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.roots[uuid]; ok {
		return d, true
	}
	if wp, ok := r.subIndex[uuid]; ok {
		if d := wp.Value(); d != nil {
			return d, true
		}
	}
	return nil, false
}

// ByIP returns every device (root or sub-device reachable through a root's
// Children chain, as walked by All) whose Address matches ip.
func (r *Registry) ByIP(ip string) []*Device {
	var out []*Device
	for _, d := range r.All() {
		if d.Address == ip {
			out = append(out, d)
		}
	}
	return out
}

// ByURN returns every device whose Type matches t.
func (r *Registry) ByURN(t urn.URN) []*Device {
	var out []*Device
	for _, d := range r.All() {
		if d.Type != nil && d.Type.Equal(t) {
			out = append(out, d)
		}
	}
	return out
}

// Roots returns a snapshot of the top-level devices.
func (r *Registry) Roots() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.roots))
	for _, d := range r.roots {
		out = append(out, d)
	}
	return out
}

// All iterates every device, root and sub-device, currently reachable.
func (r *Registry) All() []*Device {
	var out []*Device
	var walk func(*Device)
	walk = func(d *Device) {
		out = append(out, d)
		for _, c := range d.Children() {
			walk(c)
		}
	}
	for _, d := range r.Roots() {
		walk(d)
	}
	return out
}

// Len returns the number of reachable devices (roots plus live sub-devices).
func (r *Registry) Len() int { return len(r.All()) }

// Contains reports whether uuid names a currently reachable device.
func (r *Registry) Contains(uuid string) bool {
	_, ok := r.Get(uuid)
	return ok
}
