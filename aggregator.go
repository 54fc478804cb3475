package portbus

import (
	"sync"
	"time"
)

// aggregator is the per-request counter-and-buffer that waits for exactly N
// expected replies before handing the collected results to done. Results
// keep insertion order, which is reply-arrival order: with multiple targets
// the "first" unicast result is whichever target answered first.
//
// Completion is one-shot; late replies after a forced completion (timeout)
// are no-ops.
type aggregator struct {
	mu        sync.Mutex
	remaining int
	results   []any
	done      func(results []any)
	finished  bool
	timer     *time.Timer
}

func newAggregator(expected int, done func(results []any)) *aggregator {
	return &aggregator{
		remaining: expected,
		results:   make([]any, 0, expected),
		done:      done,
	}
}

// add is the reducer: it appends the value when valid, decrements the
// remaining count, and completes the request at zero.
func (a *aggregator) add(result any, valid bool) {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	if valid {
		a.results = append(a.results, result)
	}
	a.remaining--
	if a.remaining > 0 {
		a.mu.Unlock()
		return
	}
	a.finishLocked()
}

// startTimer arms a force-completion deadline. On expiry the request
// completes with whatever was collected so far.
func (a *aggregator) startTimer(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}
	a.timer = time.AfterFunc(d, a.expire)
}

func (a *aggregator) expire() {
	a.mu.Lock()
	if a.finished {
		a.mu.Unlock()
		return
	}
	a.finishLocked()
}

// finishLocked completes the aggregator and releases the lock before
// invoking done, so the completion callback may re-enter the router.
func (a *aggregator) finishLocked() {
	a.finished = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	results := a.results
	done := a.done
	a.mu.Unlock()
	done(results)
}
