package device

import (
	"context"
	"strings"
	"sync"

	"github.com/upnpkit/upnpkit/event"
	"github.com/upnpkit/upnpkit/gena"
	"github.com/upnpkit/upnpkit/upnperr"
	"github.com/upnpkit/upnpkit/vartype"
)

// Direction is an argument's data-flow direction relative to the device.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Argument is one entry in an Action's ordered argument list.
type Argument struct {
	Name                  string
	Direction             Direction
	IsReturnValue         bool
	RelatedStateVariable string
}

// Action is a single operation exposed by a Service's SCPD, with an ordered
// argument list. Every argument's RelatedStateVariable must name an entry
// in the owning Service's Variables table.
type Action struct {
	Name      string
	Arguments []Argument
}

// InArgs returns the subset of Arguments with Direction in.
func (a Action) InArgs() []Argument {
	var out []Argument
	for _, arg := range a.Arguments {
		if arg.Direction == DirectionIn {
			out = append(out, arg)
		}
	}
	return out
}

// OutArgs returns the subset of Arguments with Direction out.
func (a Action) OutArgs() []Argument {
	var out []Argument
	for _, arg := range a.Arguments {
		if arg.Direction == DirectionOut {
			out = append(out, arg)
		}
	}
	return out
}

// StateVariable describes one entry of a service's state table: its UPnP
// wire type, default value, optional allowed-value constraint, and the
// eventing flags that govern whether it may carry a GENA subscription. A
// variable may carry an active GENA subscription reference (§3); Subscribe
// opens one scoped to this variable and demultiplexes the owning
// subscription's NOTIFY batches into this variable's own update stream.
type StateVariable struct {
	Name         string
	Type         vartype.Type
	Default      string
	SendEvents   bool
	Multicast    bool
	Allowed      *vartype.AllowedValues
	AllowedRange *vartype.AllowedRange

	Service *Service // owning service, set when the variable is installed into its table

	mu        sync.Mutex
	sub       *gena.Subscription
	autoRenew *gena.AutoRenewer
	updates   event.Emitter[string]
}

// Subscription returns the variable's active GENA subscription, or nil if
// it is not currently subscribed (§3, §9 Subscription<->StateVariable).
func (sv *StateVariable) Subscription() *gena.Subscription {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return sv.sub
}

// Subscribe opens a GENA subscription against the owning service's event
// URL scoped to this variable alone, arms auto-renew, and begins
// demultiplexing the subscription's update batches into OnUpdate (§2 "State
// variable binding"). It is an error to Subscribe a variable that already
// carries a live subscription.
func (sv *StateVariable) Subscribe(ctx context.Context, session *gena.Session, timeoutSeconds int) error {
	if sv.Service == nil {
		return upnperr.NewStateError("state variable subscribe", "not attached to a service")
	}

	sv.mu.Lock()
	if sv.sub != nil && !sv.sub.Expired() {
		sv.mu.Unlock()
		return upnperr.NewStateError("state variable subscribe", "already subscribed")
	}
	sv.mu.Unlock()

	sub, err := session.Subscribe(ctx, sv.Service.EventSubURL, timeoutSeconds, []string{sv.Name})
	if err != nil {
		return err
	}

	sub.OnUpdate.Subscribe(func(u gena.Update) {
		if v, ok := u.Values[sv.Name]; ok {
			sv.updates.Emit(v)
		}
	})
	sub.OnExpired.Subscribe(func(struct{}) {
		sv.mu.Lock()
		sv.sub = nil
		sv.autoRenew = nil
		sv.mu.Unlock()
	})

	autoRenew := gena.StartAutoRenew(session, sub, nil)

	sv.mu.Lock()
	sv.sub = sub
	sv.autoRenew = autoRenew
	sv.mu.Unlock()

	return nil
}

// Unsubscribe tears down the variable's active subscription, stopping
// auto-renew first. A no-op if the variable is not currently subscribed.
func (sv *StateVariable) Unsubscribe(ctx context.Context, session *gena.Session) error {
	sv.mu.Lock()
	sub := sv.sub
	autoRenew := sv.autoRenew
	sv.sub = nil
	sv.autoRenew = nil
	sv.mu.Unlock()

	if sub == nil {
		return nil
	}
	if autoRenew != nil {
		autoRenew.Stop()
	}
	return session.Unsubscribe(ctx, sub)
}

// OnUpdate registers fn to be called with this variable's new wire value
// each time an accepted NOTIFY on its subscription changes it.
func (sv *StateVariable) OnUpdate(fn func(string)) event.Subscription {
	return sv.updates.Subscribe(fn)
}

func newAction(r rawAction) Action {
	a := Action{Name: r.Name}
	for _, ra := range r.Arguments {
		dir := Direction(strings.ToLower(ra.Direction))
		if dir != DirectionOut {
			dir = DirectionIn
		}
		a.Arguments = append(a.Arguments, Argument{
			Name:                  ra.Name,
			Direction:             dir,
			IsReturnValue:         ra.RetVal != nil,
			RelatedStateVariable: ra.RelatedStateVariable,
		})
	}
	return a
}

func newStateVariable(r rawStateVariable) *StateVariable {
	sv := &StateVariable{
		Name:       r.Name,
		Type:       vartype.Lookup(r.DataType),
		Default:    r.DefaultValue,
		SendEvents: strings.EqualFold(r.SendEvents, "yes"),
		Multicast:  strings.EqualFold(r.Multicast, "yes"),
	}
	if len(r.AllowedValues) > 0 {
		sv.Allowed = &vartype.AllowedValues{Values: r.AllowedValues}
	}
	if r.AllowedMinimum != "" || r.AllowedMaximum != "" {
		rng := &vartype.AllowedRange{}
		numeric := sv.Type
		if numeric.Kind != vartype.KindInt && numeric.Kind != vartype.KindFloat {
			numeric = vartype.Lookup("r8")
		}
		if v, err := numeric.FromWire(r.AllowedMinimum); err == nil {
			rng.Minimum = toFloat(v)
		}
		if v, err := numeric.FromWire(r.AllowedMaximum); err == nil {
			rng.Maximum = toFloat(v)
		}
		if r.AllowedStep != "" {
			if v, err := numeric.FromWire(r.AllowedStep); err == nil {
				rng.Step = toFloat(v)
			}
		}
		sv.AllowedRange = rng
	}
	return sv
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
