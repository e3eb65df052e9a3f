package main

import (
	"sync"
	"time"
)

// countdown runs a cancellable once-per-second countdown. At most one
// countdown goroutine exists per instance: start synchronously stops and
// joins any prior run before launching the next, so two expirations can
// never race against the same session.
type countdown struct {
	mu        sync.Mutex
	remaining int
	active    bool
	done      chan struct{}
}

// start begins counting down from seconds. onTimeout is invoked exactly
// once if the countdown reaches zero without being stopped first.
func (t *countdown) start(seconds int, onTimeout func()) {
	t.stop()

	t.mu.Lock()
	t.remaining = seconds
	t.active = true
	done := make(chan struct{})
	t.done = done
	t.mu.Unlock()

	go t.run(done, onTimeout)
}

func (t *countdown) run(done chan struct{}, onTimeout func()) {
	defer close(done)

	for {
		time.Sleep(time.Second)

		t.mu.Lock()
		if !t.active {
			t.mu.Unlock()
			return
		}

		t.remaining--
		if t.remaining > 0 {
			t.mu.Unlock()
			continue
		}

		// Consume the active flag before firing, so a concurrent stop
		// cannot race this run into a second invocation.
		t.active = false
		t.mu.Unlock()

		if onTimeout != nil {
			onTimeout()
		}
		return
	}
}

// stop cancels the countdown and joins its goroutine. If the countdown
// already expired, or never started, stop is a no-op. After stop returns,
// onTimeout will not fire for the cancelled run.
func (t *countdown) stop() {
	t.mu.Lock()
	t.active = false
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (t *countdown) remainingSeconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remaining
}
