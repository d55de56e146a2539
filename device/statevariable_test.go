package device

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upnpkit/upnpkit/gena"
)

func TestStateVariableSubscribeDeliversPerVariableUpdates(t *testing.T) {
	var callbackURL string

	devServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "SUBSCRIBE":
			callbackURL = r.Header.Get("CALLBACK")
			w.Header().Set("SID", "uuid:33333333-3333-3333-3333-333333333333")
			w.Header().Set("TIMEOUT", "Second-60")
			w.Header().Set("ACCEPTED-STATEVAR", "Volume")
			w.WriteHeader(http.StatusOK)
		case "UNSUBSCRIBE":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer devServer.Close()

	srv := gena.NewCallbackServer(nil)
	sess := gena.NewSession(srv, nil, nil)
	require.NoError(t, sess.Open())
	defer srv.Stop(context.Background())

	d := parseSample(t)
	svc := d.Services()[0]
	svc.loadSCPD(rawSCPD{ServiceStateTable: []rawStateVariable{{Name: "Volume", DataType: "ui4"}}})
	svc.EventSubURL = devServer.URL

	sv, ok := svc.Variable("Volume")
	require.True(t, ok)
	assert.Nil(t, sv.Subscription())

	require.NoError(t, sv.Subscribe(context.Background(), sess, 60))
	require.NotNil(t, sv.Subscription())
	assert.Equal(t, "33333333-3333-3333-3333-333333333333", sv.Subscription().ID)

	var got []string
	sv.OnUpdate(func(v string) { got = append(got, v) })

	notifyURL := callbackURL[1 : len(callbackURL)-1] // strip CALLBACK's surrounding angle brackets
	body := `<?xml version="1.0"?><e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">` +
		`<e:property><Volume>42</Volume></e:property></e:propertyset>`
	req, err := http.NewRequest("NOTIFY", notifyURL, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("NTS", "upnp:propchange")
	req.Header.Set("SEQ", "0")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Eventually(t, func() bool { return len(got) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "42", got[0])

	require.NoError(t, sv.Unsubscribe(context.Background(), sess))
	assert.Nil(t, sv.Subscription())
}

func TestStateVariableSubscribeRequiresService(t *testing.T) {
	sv := &StateVariable{Name: "Orphan"}
	err := sv.Subscribe(context.Background(), nil, 60)
	assert.Error(t, err)
}
