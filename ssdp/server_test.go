package ssdp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerSendFailsBeforeStart(t *testing.T) {
	s := NewServer(EndpointOptions{})
	err := s.Send(NewRequest("NOTIFY", Headers{"NTS": "ssdp:alive"}))
	assert.Error(t, err)
}

func TestServerClassifiesByMethod(t *testing.T) {
	s := NewServer(EndpointOptions{})

	var gotMessage, gotNotify, gotResponse, gotSearch int
	s.Message.Subscribe(func(Classified) { gotMessage++ })
	s.Notify.Subscribe(func(Classified) { gotNotify++ })
	s.Response.Subscribe(func(Classified) { gotResponse++ })
	s.SearchRequest.Subscribe(func(Classified) { gotSearch++ })

	s.classify(Recv{Message: Message{Method: "NOTIFY"}})
	s.classify(Recv{Message: Message{Method: "M-SEARCH"}})
	s.classify(Recv{Message: Message{IsResponse: true}})

	assert.Equal(t, 3, gotMessage)
	assert.Equal(t, 1, gotNotify)
	assert.Equal(t, 1, gotResponse)
	assert.Equal(t, 1, gotSearch)
}

func TestServerStartStopIdempotent(t *testing.T) {
	s := NewServer(EndpointOptions{MulticastAddress: "239.255.255.250:19877"})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start()) // no-op, already started

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop()) // no-op, already stopped
}

func TestServerSearchClosesAfterWindow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	s := NewServer(EndpointOptions{})
	ep, err := s.Search(ctx, []string{"ssdp:all"}, 1)
	require.NoError(t, err)

	done := make(chan struct{})
	ep.Disconnected.Subscribe(func(struct{}) { close(done) })

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("search endpoint never disconnected")
	}
}
