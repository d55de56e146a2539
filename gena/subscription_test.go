package gena

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notifyRequest(t *testing.T, seq int, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest("NOTIFY", "/cb", strings.NewReader(body))
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("NTS", "upnp:propchange")
	req.Header.Set("SEQ", strconv.Itoa(seq))
	return req
}

const propchangeBody = `<?xml version="1.0"?>
<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
  <e:property><Volume>42</Volume></e:property>
</e:propertyset>`

func newTestSubscription() *Subscription {
	return newSubscription("http://device/evt", nil, logrus.StandardLogger().WithField("test", "gena"))
}

func TestSubscriptionAcceptsSeqZeroThenIncreasing(t *testing.T) {
	sub := newTestSubscription()

	var updates []int
	sub.OnUpdate.Subscribe(func(u Update) { updates = append(updates, u.Seq) })

	sub.handleNotify(notifyRequest(t, 0, propchangeBody))
	sub.handleNotify(notifyRequest(t, 1, propchangeBody))
	sub.handleNotify(notifyRequest(t, 2, propchangeBody))
	sub.handleNotify(notifyRequest(t, 5, propchangeBody))
	sub.handleNotify(notifyRequest(t, 3, propchangeBody)) // out of order after 5, dropped
	sub.handleNotify(notifyRequest(t, 0, propchangeBody)) // reset

	assert.Equal(t, []int{0, 1, 2, 5, 0}, updates)
	assert.Equal(t, "42", sub.Values()["Volume"])
}

func TestSubscriptionExpiresOnce(t *testing.T) {
	sub := newTestSubscription()
	sub.applyGrant("abc", 1, "")

	var expiredCount int
	sub.OnExpired.Subscribe(func(struct{}) { expiredCount++ })

	require.False(t, sub.Expired())
	time.Sleep(1300 * time.Millisecond)

	assert.True(t, sub.Expired())
	assert.Equal(t, 1, expiredCount)
}
