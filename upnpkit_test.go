package upnpkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlPointStartStopIdempotent(t *testing.T) {
	cp := New(Options{MulticastAddress: "239.255.255.250:19878"})

	require.NoError(t, cp.Start())
	require.NoError(t, cp.Start()) // no-op

	assert.True(t, cp.GENA.Started())
	assert.NotEmpty(t, cp.GENA.Addr())

	require.NoError(t, cp.Stop(context.Background()))
	require.NoError(t, cp.Stop(context.Background())) // no-op
}

func TestControlPointDiscoverReturnsAfterWindow(t *testing.T) {
	cp := New(Options{})
	require.NoError(t, cp.Start())
	defer cp.Stop(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	// No real devices on the test network; Discover should still return
	// cleanly once its 2*mx second window elapses.
	require.NoError(t, cp.Discover(ctx, []string{"ssdp:all"}, 1))
	assert.Equal(t, 0, cp.Devices.Len())
}
