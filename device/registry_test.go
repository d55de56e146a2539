package device

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnpkit/upnpkit/ssdp"
	"github.com/upnpkit/upnpkit/urn"
)

func TestRegistryDedupesDescriptionFetch(t *testing.T) {
	var descriptionHits int32

	mux := http.NewServeMux()
	mux.HandleFunc("/desc.xml", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&descriptionHits, 1)
		time.Sleep(50 * time.Millisecond) // simulate latency so concurrent arrivals overlap
		w.Write([]byte(sampleDescription))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	reg := NewRegistry(RegistryOptions{})

	var newCount int32
	reg.New.Subscribe(func(*Device) { atomic.AddInt32(&newCount, 1) })

	msg := ssdp.NewRequest("NOTIFY", ssdp.Headers{
		"NTS":      "ssdp:alive",
		"LOCATION": srv.URL + "/desc.xml",
		"USN":      "uuid:4d696e69-0000-0000-0000-ace1d0665a11::upnp:rootdevice",
	})
	addr := &net.UDPAddr{IP: net.ParseIP("192.168.1.50")}

	for i := 0; i < 10; i++ {
		go reg.Handle(context.Background(), msg, addr)
	}

	require.Eventually(t, func() bool { return reg.Len() >= 2 }, 2*time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 1, atomic.LoadInt32(&descriptionHits), "exactly one GET should have been issued for ten NOTIFYs racing the same location")
	assert.Equal(t, 2, reg.Len(), "root plus one sub-device")

	d, ok := reg.Get("4d696e69-0000-0000-0000-ace1d0665a11")
	require.True(t, ok)
	assert.Equal(t, "192.168.1.50", d.Address)
	assert.Equal(t, Up, d.State())
}

func TestRegistryByURNAndByIP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/desc.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleDescription))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	reg := NewRegistry(RegistryOptions{})
	msg := ssdp.NewRequest("NOTIFY", ssdp.Headers{
		"NTS":      "ssdp:alive",
		"LOCATION": srv.URL + "/desc.xml",
		"USN":      "uuid:4d696e69-0000-0000-0000-ace1d0665a11::upnp:rootdevice",
	})
	addr := &net.UDPAddr{IP: net.ParseIP("10.0.0.5")}
	reg.Handle(context.Background(), msg, addr)

	require.Eventually(t, func() bool { return reg.Len() >= 2 }, time.Second, 10*time.Millisecond)

	byIP := reg.ByIP("10.0.0.5")
	assert.Len(t, byIP, 2) // root and sub-device both carry the activating address

	gw, err := urn.Parse("urn:schemas-upnp-org:device:InternetGatewayDevice:1")
	require.NoError(t, err)
	byURN := reg.ByURN(gw)
	assert.Len(t, byURN, 1)
}
