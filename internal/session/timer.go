package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Timer errors.
var (
	ErrTimerRunning    = errors.New("countdown already running")
	ErrInvalidDuration = errors.New("countdown duration must be positive")
)

// TickSource yields a 1-second tick channel and its stop function.
type TickSource func() (<-chan time.Time, func())

// SecondTicks is the production TickSource.
func SecondTicks() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// Timer is the single countdown clock of a session. OnTick receives the
// remaining seconds after each decrement; OnExpire fires once when the
// remaining time reaches zero, after the final tick.
type Timer struct {
	source   TickSource
	onTick   func(remaining int)
	onExpire func()

	mu        sync.Mutex
	remaining int
	running   bool
	stop      chan struct{}
	done      chan struct{}
}

// NewTimer creates a stopped Timer.
func NewTimer(source TickSource, onTick func(int), onExpire func()) *Timer {
	if source == nil {
		source = SecondTicks
	}
	return &Timer{source: source, onTick: onTick, onExpire: onExpire}
}

// Start begins counting down from seconds.
func (t *Timer) Start(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, seconds)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrTimerRunning
	}

	t.remaining = seconds
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	ticks, stopTicks := t.source()
	go t.run(ticks, stopTicks, t.stop, t.done)
	return nil
}

// Cancel stops the countdown; no event is delivered after it returns.
// It must not be called from inside OnTick or OnExpire.
func (t *Timer) Cancel() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stop)
	done := t.done
	t.mu.Unlock()

	<-done
}

// Remaining returns the seconds left on the clock.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Running reports whether a countdown is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) run(ticks <-chan time.Time, stopTicks func(), stop, done chan struct{}) {
	defer close(done)
	defer stopTicks()

	for {
		select {
		case <-stop:
			return
		case <-ticks:
		}

		t.mu.Lock()
		select {
		case <-stop:
			t.mu.Unlock()
			return
		default:
		}
		t.remaining--
		remaining := t.remaining
		expired := remaining <= 0
		if expired {
			t.running = false
		}
		t.mu.Unlock()

		if t.onTick != nil {
			t.onTick(remaining)
		}
		if expired {
			if t.onExpire != nil {
				t.onExpire()
			}
			return
		}
	}
}

// FormatClock renders seconds as HH:MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
