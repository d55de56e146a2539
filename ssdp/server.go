package ssdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/upnpkit/upnpkit/event"
	"github.com/upnpkit/upnpkit/upnperr"
)

// Classified is one inbound message as the server façade delivers it: every
// message is emitted on Server.Message and, in addition, on exactly one of
// Notify, Response or SearchRequest (on none of them for an unrecognized
// method). It carries no kind tag of its own.
type Classified struct {
	Message Message
	Recv    Recv
}

// Server owns the primary multicast Endpoint and classifies inbound traffic.
// It is the top-level SSDP façade: start/stop the listening endpoint, send
// advertisements on it, and drive M-SEARCH rounds on throwaway endpoints.
type Server struct {
	opts EndpointOptions
	log  *logrus.Entry

	Message       event.Emitter[Classified] // every inbound message, regardless of kind
	Notify        event.Emitter[Classified] // NOTIFY requests
	Response      event.Emitter[Classified] // M-SEARCH responses
	SearchRequest event.Emitter[Classified] // M-SEARCH requests (from other control points)

	mu       sync.Mutex
	endpoint *Endpoint
	sub      event.Subscription
}

// NewServer constructs a Server bound to the given endpoint options. It does
// not open any socket until Start is called.
func NewServer(opts EndpointOptions) *Server {
	opts = opts.withDefaults()
	return &Server{opts: opts, log: opts.Log}
}

// Start binds the primary multicast endpoint and begins classifying inbound
// messages. Idempotent: a second call while already started is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endpoint != nil {
		return nil
	}

	ep, err := OpenMulticast(s.opts)
	if err != nil {
		return err
	}
	s.endpoint = ep
	s.sub = ep.Recv.Subscribe(s.classify)
	return nil
}

// Stop closes the primary endpoint. Idempotent.
func (s *Server) Stop() error {
	s.mu.Lock()
	ep := s.endpoint
	s.endpoint = nil
	s.mu.Unlock()

	if ep == nil {
		return nil
	}
	ep.Recv.Unsubscribe(s.sub)
	return ep.Close()
}

func (s *Server) classify(r Recv) {
	c := Classified{Message: r.Message, Recv: r}
	s.Message.Emit(c)

	switch {
	case r.Message.IsResponse:
		s.Response.Emit(c)
	case r.Message.Method == "NOTIFY":
		s.Notify.Emit(c)
	case r.Message.Method == "M-SEARCH":
		s.SearchRequest.Emit(c)
	default:
		s.log.WithField("method", r.Message.Method).Warn("ssdp message of unrecognized method")
	}
}

// Send broadcasts msg on the primary multicast endpoint. Fails with a
// StateError if the server has not been started.
func (s *Server) Send(msg Message) error {
	s.mu.Lock()
	ep := s.endpoint
	s.mu.Unlock()

	if ep == nil {
		return upnperr.NewStateError("ssdp server", "not started")
	}
	return ep.Send(msg)
}

// Search opens an ephemeral endpoint (or the Windows blocking-socket
// fallback), sends one M-SEARCH per entry in stList with the given mx, and
// arranges for the endpoint to close after 2*mx seconds. The returned
// Endpoint streams responses on its Recv emitter and signals completion via
// Disconnected; callers that want classified Response events should
// subscribe to it directly, since Search results are not routed through the
// server's own Notify/Response/SearchRequest emitters (those cover the primary
// endpoint only).
func (s *Server) Search(ctx context.Context, stList []string, mx int) (*Endpoint, error) {
	if mx <= 0 {
		mx = 1
	}
	if mx > 5 {
		mx = 5
	}

	probes := make([]Message, 0, len(stList))
	for _, st := range stList {
		probes = append(probes, NewRequest("M-SEARCH", Headers{
			"MAN": `"ssdp:discover"`,
			"MX":  fmt.Sprintf("%d", mx),
			"ST":  st,
		}))
	}

	ep, err := newSearchEndpoint(s.opts, probes, mx)
	if err != nil {
		return nil, err
	}

	ep.CloseAfter(ctx, time.Duration(2*mx)*time.Second)
	return ep, nil
}
