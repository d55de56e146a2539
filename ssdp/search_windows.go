//go:build windows

package ssdp

import (
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/upnpkit/upnpkit/upnperr"
)

// newSearchEndpoint implements the Windows fallback: Windows' multicast
// datagram endpoints are unreliable for receiving unicast M-SEARCH
// responses, so a blocking socket is driven from a worker goroutine
// instead: it sends every probe, then reads responses until a timeout
// equal to mx elapses, delivering the same connected/recv/disconnected
// events a normal Endpoint would.
func newSearchEndpoint(opts EndpointOptions, probes []Message, mx int) (*Endpoint, error) {
	opts = opts.withDefaults()

	groupAddr, err := net.ResolveUDPAddr("udp4", opts.MulticastAddress)
	if err != nil {
		return nil, upnperr.NewTransportError("resolve", opts.MulticastAddress, err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, upnperr.NewTransportError("bind", "ephemeral", err)
	}
	_ = ipv4.NewPacketConn(conn).SetMulticastTTL(opts.TTL)

	ep := &Endpoint{
		multicastAddr: groupAddr,
		ttl:           opts.TTL,
		log:           opts.Log,
		conn:          conn,
	}

	if mx <= 0 {
		mx = 1
	}

	go ep.windowsSearchLoop(probes, time.Duration(mx)*time.Second)

	return ep, nil
}

func (e *Endpoint) windowsSearchLoop(probes []Message, timeout time.Duration) {
	e.log.Info("ssdp windows fallback search connected")
	e.Connected.Emit(struct{}{})

	for _, probe := range probes {
		data := []byte(probe.Serialize())
		for i := 0; i < retransmitCount; i++ {
			if _, err := e.conn.WriteToUDP(data, e.multicastAddr); err != nil {
				e.log.WithError(err).Warn("failed to send m-search probe")
				break
			}
		}
	}

	_ = e.conn.SetReadDeadline(time.Now().Add(timeout))

	buf := make([]byte, readBufferSize)
	for {
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			break // deadline reached
		}

		msg, perr := Parse(string(buf[:n]))
		if perr != nil {
			e.log.WithError(perr).WithField("from", addr.String()).Warn("dropping malformed ssdp message")
			continue
		}
		e.Recv.Emit(Recv{Message: msg, Addr: addr})
	}

	_ = e.Close()
}
