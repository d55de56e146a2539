// Package gena implements the GENA event-subscription manager: the
// callback HTTP server that receives NOTIFY requests, the session that
// issues SUBSCRIBE/RENEW/UNSUBSCRIBE, and the per-subscription state
// machine with sequencing and auto-renewal (§4.8).
package gena

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CallbackServer is the process-wide HTTP endpoint that receives inbound
// NOTIFY requests and dispatches them by path to the owning Subscription.
// §4.8 calls for a single instance shared by every GENA session; callers
// construct one CallbackServer and pass it to every Session they open.
type CallbackServer struct {
	log *logrus.Entry

	mu            sync.RWMutex
	subscriptions map[string]*Subscription // callback path (no leading slash) -> subscription

	httpServer *http.Server
	listener   net.Listener
}

// NewCallbackServer constructs an unstarted CallbackServer.
func NewCallbackServer(log *logrus.Entry) *CallbackServer {
	if log == nil {
		log = logrus.StandardLogger().WithField("component", "gena")
	}
	s := &CallbackServer{log: log, subscriptions: map[string]*Subscription{}}
	s.httpServer = &http.Server{Handler: http.HandlerFunc(s.serveHTTP)}
	return s
}

// Start binds an arbitrary free port and begins serving, if not already
// running. Idempotent.
func (s *CallbackServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Warn("gena callback server stopped")
		}
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("gena callback server started")
	return nil
}

// Started reports whether the server is currently listening.
func (s *CallbackServer) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener != nil
}

// Addr returns the bound address, or "" if not started.
func (s *CallbackServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and HTTP server.
func (s *CallbackServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	if ln == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// register adds sub under a freshly generated callback path and returns it.
func (s *CallbackServer) register(sub *Subscription) string {
	path := generateCallbackID()
	s.mu.Lock()
	for s.subscriptions[path] != nil {
		path = generateCallbackID()
	}
	s.subscriptions[path] = sub
	s.mu.Unlock()
	return path
}

// unregister removes the subscription owning path.
func (s *CallbackServer) unregister(path string) {
	s.mu.Lock()
	delete(s.subscriptions, path)
	s.mu.Unlock()
}

// CallbackURL renders the full http://host:port/<path> callback URL for a
// registered path.
func (s *CallbackServer) CallbackURL(path string) string {
	return "http://" + s.Addr() + "/" + path
}

func (s *CallbackServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "NOTIFY" {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cb := r.URL.Path
	if len(cb) > 0 && cb[0] == '/' {
		cb = cb[1:]
	}

	s.mu.RLock()
	sub := s.subscriptions[cb]
	s.mu.RUnlock()

	if sub == nil {
		s.log.WithField("callback", cb).Warn("received notify for unknown callback")
		w.WriteHeader(http.StatusOK)
		return
	}

	sub.handleNotify(r)
	w.WriteHeader(http.StatusOK)
}

func generateCallbackID() string {
	return uuid.New().String()
}
