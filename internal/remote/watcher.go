package remote

import (
	"sync"
	"time"
)

// Watcher coalesces bursts of remote change notifications into a single
// delayed reaction. Each relevant notification cancels the pending timer
// and schedules a fresh one, so apply runs once per quiet period.
type Watcher struct {
	mu       sync.Mutex
	timer    *time.Timer
	delay    time.Duration
	relevant func(key string) bool
	apply    func()
	stopped  bool
}

// NewWatcher builds a Watcher that calls apply once no relevant key has
// changed for delay.
func NewWatcher(delay time.Duration, relevant func(key string) bool, apply func()) *Watcher {
	return &Watcher{delay: delay, relevant: relevant, apply: apply}
}

// Notify reports a batch of changed keys. Irrelevant batches are ignored;
// relevant ones reset the debounce window.
func (w *Watcher) Notify(keys []string) {
	hit := false
	for _, k := range keys {
		if w.relevant(k) {
			hit = true
			break
		}
	}
	if !hit {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.apply)
}

// Stop cancels any pending reaction. Further notifications are ignored.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
