// Package device implements the UPnP device/service tree: description
// parsing, the two-phase service construction, per-device liveness state
// machines, and the registry that reconciles SSDP advertisements into a
// live set of devices.
package device

import (
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/upnpkit/upnpkit/event"
	"github.com/upnpkit/upnpkit/ssdp"
	"github.com/upnpkit/upnpkit/urn"
)

// defaultMaxAge is the device down-timer when a NOTIFY carries no
// CACHE-CONTROL max-age (§5 Timeouts).
const defaultMaxAge = 900 * time.Second

// State is a Device's liveness: up means a future down timer is armed.
type State string

const (
	Down State = "down"
	Up   State = "up"
)

// Device models one entry of the UPnP device tree, root or sub-device
// (§3 Data Model). Construction happens through the registry, which parses
// the description XML and recursively builds the deviceList.
type Device struct {
	UUID         string
	Address      string // source IP of the activating advertisement
	Location     string
	FriendlyName string
	Type         *urn.URN
	Metadata     map[string]string
	Parent       *Device

	state *event.State[State]

	mu        sync.Mutex
	children  []*Device // in description (deviceList) order
	services  map[string]*Service
	urnsSeen  map[string]bool
	downTimer *time.Timer
	configID  string
}

func newDevice(loc string, addr string, parent *Device, r rawDevice) *Device {
	d := &Device{
		Location:     loc,
		Address:      addr,
		FriendlyName: r.FriendlyName,
		Metadata:     map[string]string{},
		Parent:       parent,
		state:        event.NewState(Down),
		services:     map[string]*Service{},
		urnsSeen:     map[string]bool{},
	}

	if u, err := urn.Parse(r.DeviceType); err == nil {
		d.Type = &u
	}

	d.UUID = normalizeUDN(r.UDN)

	for _, el := range r.Any {
		name := el.XMLName.Local
		if skippedDeviceFields[name] {
			continue
		}
		d.Metadata[name] = strings.TrimSpace(el.Value)
	}

	for _, rs := range r.ServiceList {
		svc := newService(d, rs)
		d.services[svc.ID] = svc
	}

	for _, rc := range r.DeviceList {
		child := newDevice(loc, addr, d, rc)
		d.children = append(d.children, child)
	}

	return d
}

// normalizeUDN strips the "uuid:" prefix and lowercases, per §4.6.
func normalizeUDN(udn string) string {
	s := strings.TrimSpace(udn)
	s = strings.TrimPrefix(s, "uuid:")
	return strings.ToLower(s)
}

// resolveAgainstLocation resolves ref against the device's description
// location, used by services for their control/event/SCPD URLs.
func (d *Device) resolveAgainstLocation(ref string) string {
	base, err := url.Parse(d.Location)
	if err != nil || ref == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// IsRoot reports whether the device has no parent.
func (d *Device) IsRoot() bool { return d.Parent == nil }

// Children returns a snapshot of the device's ordered sub-devices.
func (d *Device) Children() []*Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Device, len(d.children))
	copy(out, d.children)
	return out
}

// Service looks up a service by id.
func (d *Device) Service(id string) (*Service, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.services[id]
	return s, ok
}

// Services returns a snapshot of the device's service table.
func (d *Device) Services() []*Service {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Service, 0, len(d.services))
	for _, s := range d.services {
		out = append(out, s)
	}
	return out
}

// FindAction locates an action by name across every service on this device
// (and, if recursive is true, its sub-devices), returning the owning
// service alongside it. This is a convenience lookup, not part of the core
// tree invariants: callers that know the service id should prefer
// Service(id).Action(name).
func (d *Device) FindAction(name string, recursive bool) (*Service, Action, bool) {
	for _, s := range d.Services() {
		if a, ok := s.Action(name); ok {
			return s, a, true
		}
	}
	if recursive {
		for _, c := range d.Children() {
			if s, a, ok := c.FindAction(name, true); ok {
				return s, a, true
			}
		}
	}
	return nil, Action{}, false
}

// FindService locates the first service whose type URN equals t, searching
// sub-devices when recursive is true.
func (d *Device) FindService(t urn.URN, recursive bool) (*Service, bool) {
	for _, s := range d.Services() {
		if su, err := urn.Parse(s.Type); err == nil && su.Equal(t) {
			return s, true
		}
	}
	if recursive {
		for _, c := range d.Children() {
			if s, ok := c.FindService(t, true); ok {
				return s, true
			}
		}
	}
	return nil, false
}

// State returns the device's current liveness state.
func (d *Device) State() State { return d.state.Current() }

// OnStateChange registers fn to be notified on every liveness transition.
func (d *Device) OnStateChange(fn func(event.Transition[State])) event.Subscription {
	return d.state.OnTransition(fn)
}

// URNsSeen returns a snapshot of every URN string observed in advertisements
// for this device (NT/ST/USN contributions).
func (d *Device) URNsSeen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.urnsSeen))
	for u := range d.urnsSeen {
		out = append(out, u)
	}
	return out
}

// ConfigID returns the last-seen CONFIGID.UPNP.ORG value, or "" if the
// device has never advertised one. Used by the registry to decide whether a
// root device's description should be refetched (§9 Open Question).
func (d *Device) ConfigID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configID
}

// up transitions the device to Up and arms (or re-arms) its down timer at
// maxAge; the timer calls down on its own if not cancelled and re-armed
// first by a subsequent advertisement.
func (d *Device) up(maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}

	d.mu.Lock()
	if d.downTimer != nil {
		d.downTimer.Stop()
	}
	d.downTimer = time.AfterFunc(maxAge, d.down)
	d.mu.Unlock()

	d.state.Set(Up)
}

// down transitions the device (and cascades to its services) to Down,
// cancelling any armed timer.
func (d *Device) down() {
	d.mu.Lock()
	if d.downTimer != nil {
		d.downTimer.Stop()
		d.downTimer = nil
	}
	services := make([]*Service, 0, len(d.services))
	for _, s := range d.services {
		services = append(services, s)
	}
	d.mu.Unlock()

	for _, s := range services {
		s.down()
	}
	d.state.Set(Down)
}

// onMessage applies an inbound SSDP advertisement to this device per the
// §4.6 state machine: response advertisements and NOTIFY ssdp:alive call
// up; NOTIFY ssdp:byebye calls down; USN contributions update the
// URNs-seen set.
func (d *Device) onMessage(msg ssdp.Message) {
	if usn, present, err := msg.USN(); present && err == nil {
		if usn.URN != nil {
			d.mu.Lock()
			d.urnsSeen[usn.URN.String()] = true
			d.mu.Unlock()
		}
	}

	if cc := msg.Headers.Get("CONFIGID.UPNP.ORG"); cc != "" {
		d.mu.Lock()
		d.configID = cc
		d.mu.Unlock()
	}

	nts := msg.NTS()
	isByebye := nts == "ssdp:byebye"
	isAlive := msg.IsResponse || nts == "ssdp:alive"

	switch {
	case isByebye:
		d.down()
	case isAlive:
		maxAge := defaultMaxAge
		if age, ok := msg.MaxAge(); ok {
			maxAge = time.Duration(age) * time.Second
		}
		d.up(maxAge)
	}
}

// sourceAddr extracts the bare IP from a net.Addr, used to populate Address.
func sourceAddr(addr net.Addr) string {
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
