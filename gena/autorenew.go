package gena

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AutoRenewer bridges a Subscription to the state-variable layer's
// auto-renew policy (§4.8): when a variable subscribes with timeout T>0, a
// renewal is scheduled at floor(0.8*T) seconds, and rescheduled at the same
// fraction of whatever timeout the next successful renewal grants. A failed
// renewal is logged and does not reschedule further (matching the
// background-timer tolerance policy in §7); callers that want to keep
// trying should re-subscribe once the subscription has fully expired.
type AutoRenewer struct {
	session *Session
	sub     *Subscription
	log     *logrus.Entry

	mu     sync.Mutex
	timer  *time.Timer
	cancel bool
}

// StartAutoRenew begins scheduling renewals for sub against session.
func StartAutoRenew(session *Session, sub *Subscription, log *logrus.Entry) *AutoRenewer {
	if log == nil {
		log = logrus.StandardLogger().WithField("component", "gena-autorenew")
	}
	ar := &AutoRenewer{session: session, sub: sub, log: log}
	ar.schedule(sub.Timeout())

	sub.OnExpired.Subscribe(func(struct{}) { ar.Stop() })
	return ar
}

func (ar *AutoRenewer) schedule(timeout time.Duration) {
	delay := time.Duration(float64(timeout) * 0.8)
	if delay <= 0 {
		return
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()
	if ar.cancel {
		return
	}
	ar.timer = time.AfterFunc(delay, ar.renew)
}

func (ar *AutoRenewer) renew() {
	if ar.sub.Expired() {
		return
	}

	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	if err := ar.session.Renew(ctx, ar.sub, 0); err != nil {
		ar.log.WithError(err).WithField("sid", ar.sub.ID).Warn("gena auto-renew failed")
		return
	}

	ar.schedule(ar.sub.Timeout())
}

// Stop cancels any pending scheduled renewal.
func (ar *AutoRenewer) Stop() {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	ar.cancel = true
	if ar.timer != nil {
		ar.timer.Stop()
	}
}
