package filesystem

import "sync/atomic"

// Observer receives retry events. The metrics package implements it; the
// interface lives here so filesystem does not import metrics.
type Observer interface {
	// op is "stat", "open", "readdir" or "write".
	ObserveRetryAttempt(op string)
	ObserveRetrySuccess(op string)
	ObserveRetryFailure(op string)
	ObserveRetryDuration(op string, durationSeconds float64)
	ObserveTransientError(op string)
}

type observerHolder struct{ Observer }

var currentObserver atomic.Pointer[observerHolder]

// SetObserver installs o for all later filesystem calls. A nil o restores the
// no-op observer.
func SetObserver(o Observer) {
	if o == nil {
		currentObserver.Store(nil)
		return
	}
	currentObserver.Store(&observerHolder{o})
}

func observe() Observer {
	if h := currentObserver.Load(); h != nil {
		return h.Observer
	}
	return nopObserver{}
}

type nopObserver struct{}

func (nopObserver) ObserveRetryAttempt(string)           {}
func (nopObserver) ObserveRetrySuccess(string)           {}
func (nopObserver) ObserveRetryFailure(string)           {}
func (nopObserver) ObserveRetryDuration(string, float64) {}
func (nopObserver) ObserveTransientError(string)         {}
