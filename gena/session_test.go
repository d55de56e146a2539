package gena

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnpkit/upnpkit/upnperr"
)

func TestSessionSubscribeRenewUnsubscribe(t *testing.T) {
	var subscribeCount, renewCount, unsubscribeCount int

	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "SUBSCRIBE" && r.Header.Get("SID") == "":
			subscribeCount++
			w.Header().Set("SID", "uuid:11111111-1111-1111-1111-111111111111")
			w.Header().Set("TIMEOUT", "Second-2")
			w.Header().Set("ACCEPTED-STATEVAR", "Volume,Mute")
			w.WriteHeader(http.StatusOK)
		case r.Method == "SUBSCRIBE":
			renewCount++
			w.Header().Set("SID", "uuid:11111111-1111-1111-1111-111111111111")
			w.Header().Set("TIMEOUT", "Second-2")
			w.WriteHeader(http.StatusOK)
		case r.Method == "UNSUBSCRIBE":
			unsubscribeCount++
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer device.Close()

	srv := NewCallbackServer(nil)
	sess := NewSession(srv, nil, nil)
	require.NoError(t, sess.Open())
	defer srv.Stop(context.Background())

	sub, err := sess.Subscribe(context.Background(), device.URL, 2, []string{"Volume", "Mute"})
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", sub.ID)
	assert.Equal(t, []string{"Volume", "Mute"}, sub.Variables())
	assert.Equal(t, 1, subscribeCount)

	require.NoError(t, sess.Renew(context.Background(), sub, 2))
	assert.Equal(t, 1, renewCount)

	require.NoError(t, sess.Unsubscribe(context.Background(), sub))
	assert.Equal(t, 1, unsubscribeCount)
	assert.True(t, sub.Expired())

	require.NoError(t, sess.Unsubscribe(context.Background(), sub)) // no-op after expiry
	assert.Equal(t, 1, unsubscribeCount)
}

func TestSessionSubscribeMapsErrorStatuses(t *testing.T) {
	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer device.Close()

	srv := NewCallbackServer(nil)
	sess := NewSession(srv, nil, nil)
	require.NoError(t, sess.Open())
	defer srv.Stop(context.Background())

	_, err := sess.Subscribe(context.Background(), device.URL, 60, []string{"Volume"})
	var perr *upnperr.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusPreconditionFailed, perr.Code)
}

func TestAutoRenewReschedulesOnSuccess(t *testing.T) {
	var renewCount int
	device := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("SID", "uuid:22222222-2222-2222-2222-222222222222")
		w.Header().Set("TIMEOUT", "Second-1")
		if r.Header.Get("SID") != "" {
			renewCount++
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer device.Close()

	srv := NewCallbackServer(nil)
	sess := NewSession(srv, nil, nil)
	require.NoError(t, sess.Open())
	defer srv.Stop(context.Background())

	sub, err := sess.Subscribe(context.Background(), device.URL, 1, []string{"Volume"})
	require.NoError(t, err)

	ar := StartAutoRenew(sess, sub, nil)
	defer ar.Stop()

	require.Eventually(t, func() bool { return renewCount >= 2 }, 2*time.Second, 20*time.Millisecond)
}
