package room

import "time"

// Scheduler runs delayed and periodic callbacks. Callbacks must end up on the
// session goroutine; the returned func cancels further runs.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
	Every(d time.Duration, fn func()) (cancel func())
}

// loopScheduler backs Scheduler with real timers and posts each callback into
// the session inbox.
type loopScheduler struct {
	post func(fn func())
}

func (s loopScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, func() { s.post(fn) })
	return func() { t.Stop() }
}

func (s loopScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	stop := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.post(fn)
			case <-stop:
				return
			}
		}
	}()
	var stopped bool
	return func() {
		if !stopped {
			stopped = true
			close(stop)
		}
	}
}
