package gena

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackServerRoutesKnownAndUnknownPaths(t *testing.T) {
	srv := NewCallbackServer(nil)
	require.NoError(t, srv.Start())
	defer srv.Stop(context.Background())

	sub := newTestSubscription()
	var received Update
	sub.OnUpdate.Subscribe(func(u Update) { received = u })

	path := srv.register(sub)

	url := srv.CallbackURL(path)
	req, err := http.NewRequest("NOTIFY", url, bytes.NewReader([]byte(propchangeBody)))
	require.NoError(t, err)
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("NTS", "upnp:propchange")
	req.Header.Set("SEQ", "0")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.Eventually(t, func() bool { return received.Values != nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "42", received.Values["Volume"])

	// Unknown callback path: still answered 200.
	unknownReq, err := http.NewRequest("NOTIFY", srv.CallbackURL("does-not-exist"), nil)
	require.NoError(t, err)
	unknownReq.Header.Set("NT", "upnp:event")
	unknownReq.Header.Set("NTS", "upnp:propchange")
	unknownReq.Header.Set("SEQ", "0")

	resp2, err := http.DefaultClient.Do(unknownReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	resp2.Body.Close()
}
