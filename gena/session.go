package gena

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/upnpkit/upnpkit/upnperr"
)

// Session holds a shared CallbackServer, an HTTP client used to issue
// SUBSCRIBE/RENEW/UNSUBSCRIBE, and the set of subscriptions it has opened,
// keyed by SID (§4.8, §9 Scoped resources). Each subscription registers its
// own callback path on the CallbackServer; the session has no single
// callback id of its own. Open ensures the callback server is running;
// Close unsubscribes everything best-effort and concurrently, then releases
// the client's idle connections, mirroring a scoped-resource acquisition
// even on error exits.
type Session struct {
	log    *logrus.Entry
	server *CallbackServer
	client *http.Client

	callbackPath string

	mu            sync.Mutex
	subscriptions map[string]*Subscription
	opened        bool
}

// NewSession constructs a Session bound to server. Open must be called
// before Subscribe.
func NewSession(server *CallbackServer, httpClient *http.Client, log *logrus.Entry) *Session {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = logrus.StandardLogger().WithField("component", "gena-session")
	}
	return &Session{
		log:           log,
		server:        server,
		client:        httpClient,
		subscriptions: map[string]*Subscription{},
	}
}

// Open ensures the shared callback server is running and marks the session
// ready to subscribe.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}
	if err := s.server.Start(); err != nil {
		return err
	}
	s.opened = true
	return nil
}

// request issues one GENA HTTP-extension-method call and maps the response
// status to the error table in §4.8.
func (s *Session) request(ctx context.Context, method, eventURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, eventURL, nil)
	if err != nil {
		return nil, upnperr.NewTransportError(method, eventURL, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, upnperr.NewTransportError(method, eventURL, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp, nil
	case resp.StatusCode == http.StatusBadRequest:
		resp.Body.Close()
		return nil, upnperr.NewGENAError(400, "incompatible header fields")
	case resp.StatusCode == http.StatusPreconditionFailed:
		resp.Body.Close()
		return nil, upnperr.NewGENAError(412, "precondition failed")
	case method == "SUBSCRIBE" && resp.StatusCode >= 500 && resp.StatusCode < 600:
		resp.Body.Close()
		return nil, upnperr.NewGENAError(resp.StatusCode, "unable to accept renewal")
	default:
		resp.Body.Close()
		return nil, upnperr.NewGENAError(resp.StatusCode, "unknown error")
	}
}

// Subscribe issues a SUBSCRIBE for eventURL requesting notifications for
// variables, with the given timeout in seconds (0 or less is replaced by
// 1800 before the request is sent).
func (s *Session) Subscribe(ctx context.Context, eventURL string, timeoutSeconds int, variables []string) (*Subscription, error) {
	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return nil, upnperr.NewStateError("gena session", "not opened")
	}
	s.mu.Unlock()

	sub := newSubscription(eventURL, s, s.log)
	sub.callbackPath = s.server.register(sub)

	if timeoutSeconds <= 0 {
		timeoutSeconds = 1800
	}

	resp, err := s.request(ctx, "SUBSCRIBE", eventURL, map[string]string{
		"NT":       "upnp:event",
		"CALLBACK": "<" + s.server.CallbackURL(sub.callbackPath) + ">",
		"TIMEOUT":  fmt.Sprintf("Second-%d", timeoutSeconds),
		"STATEVAR": strings.Join(variables, ","),
	})
	if err != nil {
		s.server.unregister(sub.callbackPath)
		return nil, err
	}
	defer resp.Body.Close()

	sid, timeout := parseGrant(resp.Header)
	sub.applyGrant(sid, timeout, resp.Header.Get("ACCEPTED-STATEVAR"))

	s.mu.Lock()
	s.subscriptions[sub.ID] = sub
	s.mu.Unlock()

	return sub, nil
}

// Renew issues a SUBSCRIBE-as-renewal for sub with a new timeout (defaults
// to sub's current grant if timeoutSeconds is 0), cancelling and re-arming
// its expiry timer on success.
func (s *Session) Renew(ctx context.Context, sub *Subscription, timeoutSeconds int) error {
	if sub.Expired() {
		return upnperr.NewStateError("gena subscription", "expired")
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = int(sub.Timeout().Seconds())
	}

	resp, err := s.request(ctx, "SUBSCRIBE", sub.EventURL, map[string]string{
		"SID":     "uuid:" + sub.ID,
		"TIMEOUT": fmt.Sprintf("Second-%d", timeoutSeconds),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, timeout := parseGrant(resp.Header)
	sub.applyGrant(sub.ID, timeout, resp.Header.Get("ACCEPTED-STATEVAR"))
	return nil
}

// Unsubscribe issues an UNSUBSCRIBE for sub. A no-op returning successfully
// if sub has already expired (§8 testable property 9).
func (s *Session) Unsubscribe(ctx context.Context, sub *Subscription) error {
	if sub.Expired() {
		return nil
	}

	resp, err := s.request(ctx, "UNSUBSCRIBE", sub.EventURL, map[string]string{
		"SID": "uuid:" + sub.ID,
	})
	if err != nil {
		return err
	}
	resp.Body.Close()

	sub.expire()
	s.server.unregister(sub.callbackPath)

	s.mu.Lock()
	delete(s.subscriptions, sub.ID)
	s.mu.Unlock()

	return nil
}

// Close marks the session closed, unsubscribes every active subscription
// best-effort and concurrently, then closes the HTTP client's idle
// connections. Errors from individual unsubscribes are logged, not
// returned, matching the ingress-tolerant policy for background cleanup (§7).
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		subs = append(subs, sub)
	}
	s.opened = false
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			if err := s.Unsubscribe(gctx, sub); err != nil {
				s.log.WithError(err).WithField("sid", sub.ID).Debug("unsubscribe on close failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	s.client.CloseIdleConnections()
}

func parseGrant(h http.Header) (sid string, timeoutSeconds int) {
	sid = strings.TrimPrefix(h.Get("SID"), "uuid:")
	timeout := strings.TrimPrefix(h.Get("TIMEOUT"), "Second-")
	n, err := strconv.Atoi(timeout)
	if err != nil {
		n = 1800
	}
	return sid, n
}
