package device

import (
	"sync"

	"github.com/upnpkit/upnpkit/event"
)

// ServiceState is a Service's lifecycle: discoverable means the service
// entry exists (control/event URLs known) but its SCPD has not finished
// loading; up means the action/state tables are populated; down means the
// owning device went down.
type ServiceState string

const (
	ServiceDiscoverable ServiceState = "discoverable"
	ServiceUp           ServiceState = "up"
	ServiceDown         ServiceState = "down"
)

// Service is one entry of a Device's service table, keyed by its service id.
// Construction is two-phase (§4.6): the Service exists and is discoverable
// as soon as its <service> element is parsed, before its SCPD document has
// been fetched; Up fires only once the action and state-variable tables
// have loaded successfully.
type Service struct {
	Device *Device

	ID          string
	Type        string // service type URN, kept as the raw string (vendor types needn't be schemas-upnp-org)
	ControlURL  string
	EventSubURL string
	SCPDURL     string

	state *event.State[ServiceState]

	mu        sync.Mutex
	actions   map[string]Action
	variables map[string]*StateVariable
}

func newService(owner *Device, r rawService) *Service {
	return &Service{
		Device:      owner,
		ID:          r.ServiceID,
		Type:        r.ServiceType,
		ControlURL:  owner.resolveAgainstLocation(r.ControlURL),
		EventSubURL: owner.resolveAgainstLocation(r.EventSubURL),
		SCPDURL:     owner.resolveAgainstLocation(r.SCPDURL),
		state:       event.NewState(ServiceDiscoverable),
		actions:     map[string]Action{},
		variables:   map[string]*StateVariable{},
	}
}

// State returns the service's current lifecycle state.
func (s *Service) State() ServiceState { return s.state.Current() }

// OnStateChange registers fn to be notified on every lifecycle transition.
func (s *Service) OnStateChange(fn func(event.Transition[ServiceState])) event.Subscription {
	return s.state.OnTransition(fn)
}

// loadSCPD populates the action and state-variable tables from a parsed
// SCPD document and transitions the service to up. Called by the registry
// after fetching SCPDURL.
func (s *Service) loadSCPD(scpd rawSCPD) {
	s.mu.Lock()
	for _, ra := range scpd.ActionList {
		s.actions[ra.Name] = newAction(ra)
	}
	for _, rv := range scpd.ServiceStateTable {
		sv := newStateVariable(rv)
		sv.Service = s
		s.variables[rv.Name] = sv
	}
	s.mu.Unlock()

	s.state.Set(ServiceUp)
}

// down cascades a device-level down transition onto the service.
func (s *Service) down() {
	s.state.Set(ServiceDown)
}

// Action looks up an action by name.
func (s *Service) Action(name string) (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[name]
	return a, ok
}

// Actions returns a snapshot of all actions.
func (s *Service) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Action, 0, len(s.actions))
	for _, a := range s.actions {
		out = append(out, a)
	}
	return out
}

// Variable looks up a state variable by name. The returned pointer is
// shared and long-lived: its subscription state persists across calls.
func (s *Service) Variable(name string) (*StateVariable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variables[name]
	return v, ok
}

// Variables returns a snapshot of all state variables.
func (s *Service) Variables() []*StateVariable {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*StateVariable, 0, len(s.variables))
	for _, v := range s.variables {
		out = append(out, v)
	}
	return out
}
