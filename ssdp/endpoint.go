package ssdp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/upnpkit/upnpkit/event"
	"github.com/upnpkit/upnpkit/upnperr"
)

// retransmitCount is how many times every outbound datagram is sent
// back-to-back, to counter UDP loss on the multicast group.
const retransmitCount = 5

const readBufferSize = 8192

// Recv is delivered for every inbound datagram that parses as a Message.
type Recv struct {
	Message Message
	Addr    *net.UDPAddr
}

// Endpoint owns one UDP socket used to speak SSDP: either the primary
// multicast-joined socket, or an ephemeral one used for M-SEARCH.
type Endpoint struct {
	multicastAddr *net.UDPAddr
	ttl           int
	log           *logrus.Entry

	Connected    event.Emitter[struct{}]
	Recv         event.Emitter[Recv]
	Disconnected event.Emitter[struct{}]

	mu      sync.Mutex
	conn    *net.UDPConn
	pktConn *ipv4.PacketConn
	closed  bool
}

// EndpointOptions configures a newly opened Endpoint.
type EndpointOptions struct {
	// MulticastAddress is the multicast group to join and to send to.
	// Defaults to 239.255.255.250:1900.
	MulticastAddress string
	TTL              int // default 4
	Log              *logrus.Entry
}

func (o EndpointOptions) withDefaults() EndpointOptions {
	if o.MulticastAddress == "" {
		o.MulticastAddress = DefaultMulticastHost
	}
	if o.TTL == 0 {
		o.TTL = 4
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger().WithField("component", "ssdp")
	}
	return o
}

// OpenMulticast binds 0.0.0.0:<port> with net.ListenUDP, joins the
// multicast group, and sets the multicast TTL. No SO_REUSEADDR or
// SO_REUSEPORT option is set on the socket. It immediately begins
// delivering Recv events on a background goroutine until Close is called.
func OpenMulticast(opts EndpointOptions) (*Endpoint, error) {
	opts = opts.withDefaults()

	groupAddr, err := net.ResolveUDPAddr("udp4", opts.MulticastAddress)
	if err != nil {
		return nil, upnperr.NewTransportError("resolve", opts.MulticastAddress, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: groupAddr.Port})
	if err != nil {
		return nil, upnperr.NewTransportError("bind", opts.MulticastAddress, err)
	}

	pktConn := ipv4.NewPacketConn(conn)
	if iface, ierr := primaryMulticastInterface(); ierr == nil {
		_ = pktConn.JoinGroup(iface, &net.UDPAddr{IP: groupAddr.IP})
	} else if err := pktConn.JoinGroup(nil, &net.UDPAddr{IP: groupAddr.IP}); err != nil {
		conn.Close()
		return nil, upnperr.NewTransportError("join-group", opts.MulticastAddress, err)
	}
	_ = pktConn.SetMulticastTTL(opts.TTL)

	ep := &Endpoint{
		multicastAddr: groupAddr,
		ttl:           opts.TTL,
		log:           opts.Log,
		conn:          conn,
		pktConn:       pktConn,
	}

	go ep.readLoop()
	ep.log.WithField("addr", opts.MulticastAddress).Info("ssdp endpoint connected")
	ep.Connected.Emit(struct{}{})

	return ep, nil
}

// OpenEphemeral opens a socket that does not join the multicast group (used
// for M-SEARCH probes): only TTL is configured, and the kernel assigns an
// ephemeral local port.
func OpenEphemeral(opts EndpointOptions) (*Endpoint, error) {
	opts = opts.withDefaults()

	groupAddr, err := net.ResolveUDPAddr("udp4", opts.MulticastAddress)
	if err != nil {
		return nil, upnperr.NewTransportError("resolve", opts.MulticastAddress, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, upnperr.NewTransportError("bind", "ephemeral", err)
	}

	pktConn := ipv4.NewPacketConn(conn)
	_ = pktConn.SetMulticastTTL(opts.TTL)

	ep := &Endpoint{
		multicastAddr: groupAddr,
		ttl:           opts.TTL,
		log:           opts.Log,
		conn:          conn,
		pktConn:       pktConn,
	}

	go ep.readLoop()
	ep.log.Info("ssdp ephemeral endpoint connected")
	ep.Connected.Emit(struct{}{})

	return ep, nil
}

func primaryMulticastInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		return &iface, nil
	}
	return nil, upnperr.NewTransportError("interfaces", "", nil)
}

func (e *Endpoint) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		e.mu.Lock()
		conn := e.conn
		e.mu.Unlock()
		if conn == nil {
			return
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			e.mu.Lock()
			closed := e.closed
			e.mu.Unlock()
			if !closed {
				e.log.WithError(err).Debug("ssdp read error, closing endpoint")
			}
			e.emitDisconnected()
			return
		}

		msg, perr := Parse(string(buf[:n]))
		if perr != nil {
			e.log.WithError(perr).WithField("from", addr.String()).Warn("dropping malformed ssdp message")
			continue
		}

		e.Recv.Emit(Recv{Message: msg, Addr: addr})
	}
}

func (e *Endpoint) emitDisconnected() {
	e.mu.Lock()
	already := e.closed
	e.closed = true
	e.mu.Unlock()
	if !already {
		e.log.Info("ssdp endpoint disconnected")
		e.Disconnected.Emit(struct{}{})
	}
}

// Send transmits msg to the multicast group, retransmitting it
// retransmitCount times back-to-back to counter UDP loss.
func (e *Endpoint) Send(msg Message) error {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return upnperr.NewStateError("ssdp endpoint", "not started")
	}

	data := []byte(msg.Serialize())
	for i := 0; i < retransmitCount; i++ {
		if _, err := conn.WriteToUDP(data, e.multicastAddr); err != nil {
			return upnperr.NewTransportError("send", e.multicastAddr.String(), err)
		}
	}
	return nil
}

// Close shuts down the socket. Idempotent.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	conn := e.conn
	already := e.closed
	e.closed = true
	e.conn = nil
	e.mu.Unlock()

	if conn == nil || already {
		return nil
	}
	err := conn.Close()
	e.Disconnected.Emit(struct{}{})
	return err
}

// CloseAfter schedules Close to run once ctx is done or after d elapses,
// whichever comes first; used to bound the lifetime of an M-SEARCH
// ephemeral endpoint.
func (e *Endpoint) CloseAfter(ctx context.Context, d time.Duration) {
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		_ = e.Close()
	}()
}
