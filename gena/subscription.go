package gena

import (
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/upnpkit/upnpkit/event"
)

// SubState is a Subscription's lifecycle: valid or the terminal expired.
type SubState string

const (
	SubValid   SubState = "valid"
	SubExpired SubState = "expired"
)

// Update is delivered whenever an accepted NOTIFY updates a subscription's
// state-variable values.
type Update struct {
	Values map[string]string
	Seq    int
}

// Subscription is one active GENA event subscription (§3, §4.8). It holds
// its owning Session by reference, not ownership: the session may outlive
// or be closed independently, matching the cyclic-reference guidance in
// §9 (Subscription holds its owning session by handle).
type Subscription struct {
	ID       string // SID, without the "uuid:" prefix
	EventURL string
	Session  *Session

	log *logrus.Entry

	OnUpdate  event.Emitter[Update]
	OnExpired event.Emitter[struct{}]

	mu            sync.Mutex
	state         *event.State[SubState]
	timeout       time.Duration
	variables     []string
	lastSeq       int
	values        map[string]string
	expiryTimer   *time.Timer
	callbackPath  string
}

func newSubscription(eventURL string, session *Session, log *logrus.Entry) *Subscription {
	return &Subscription{
		EventURL: eventURL,
		Session:  session,
		log:      log,
		state:    event.NewState(SubValid),
		values:   map[string]string{},
		lastSeq:  -1,
	}
}

// State returns the subscription's current lifecycle state.
func (s *Subscription) State() SubState { return s.state.Current() }

// Expired reports whether the subscription has transitioned to SubExpired.
func (s *Subscription) Expired() bool { return s.state.Current() == SubExpired }

// Timeout returns the most recently granted timeout.
func (s *Subscription) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

// Variables returns the ACCEPTED-STATEVAR list from the last SUBSCRIBE/RENEW.
func (s *Subscription) Variables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.variables))
	copy(out, s.variables)
	return out
}

// Values returns a snapshot of the last-known per-variable values.
func (s *Subscription) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// applyGrant records a SUBSCRIBE/RENEW response's headers and (re)arms the
// expiry timer. Called by Session after a successful request.
func (s *Subscription) applyGrant(sid string, timeoutSeconds int, acceptedVars string) {
	s.mu.Lock()
	s.ID = sid
	s.timeout = time.Duration(timeoutSeconds) * time.Second
	if acceptedVars != "" {
		s.variables = strings.Split(acceptedVars, ",")
	}
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
	}
	s.expiryTimer = time.AfterFunc(s.timeout, s.expire)
	s.mu.Unlock()
}

// expire transitions the subscription to expired and emits OnExpired. It is
// the terminal state: once expired, a subscription never re-enters valid
// (§3 invariant).
func (s *Subscription) expire() {
	s.mu.Lock()
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}
	s.mu.Unlock()

	s.state.Set(SubExpired)
	s.OnExpired.Emit(struct{}{})
}

// propertyset mirrors the GENA NOTIFY body grammar: a sequence of
// <property><name>value</name></property> pairs under
// urn:schemas-upnp-org:event-1-0.
type propertyset struct {
	XMLName    xml.Name `xml:"propertyset"`
	Properties []struct {
		Any []struct {
			XMLName xml.Name
			Value   string `xml:",chardata"`
		} `xml:",any"`
	} `xml:"property"`
}

// handleNotify applies one inbound NOTIFY to the subscription per §4.8:
// verify NT/NTS, apply the SEQ accept-or-drop rule, parse the property body,
// and emit OnUpdate on acceptance.
func (s *Subscription) handleNotify(r *http.Request) {
	if r.Header.Get("NT") != "upnp:event" || r.Header.Get("NTS") != "upnp:propchange" {
		s.log.WithField("sid", s.ID).Warn("notify with unexpected NT/NTS, dropping")
		return
	}

	seq, err := strconv.Atoi(r.Header.Get("SEQ"))
	if err != nil {
		s.log.WithField("sid", s.ID).Warn("notify with non-integer SEQ, dropping")
		return
	}

	s.mu.Lock()
	accept := seq == 0 || seq > s.lastSeq
	if accept {
		s.lastSeq = seq
	}
	s.mu.Unlock()

	if !accept {
		s.log.WithFields(logrus.Fields{"sid": s.ID, "seq": seq}).Debug("dropping out-of-order notify")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return
	}

	var ps propertyset
	if err := xml.Unmarshal(body, &ps); err != nil {
		s.log.WithField("sid", s.ID).WithError(err).Warn("malformed notify body, dropping")
		return
	}

	values := map[string]string{}
	for _, prop := range ps.Properties {
		for _, any := range prop.Any {
			values[any.XMLName.Local] = any.Value
		}
	}

	s.mu.Lock()
	for k, v := range values {
		s.values[k] = v
	}
	s.mu.Unlock()

	s.OnUpdate.Emit(Update{Values: values, Seq: seq})
}
