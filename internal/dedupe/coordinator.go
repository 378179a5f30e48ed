// Package dedupe suppresses duplicate concurrent identical requests by
// sharing one in-flight outcome.
package dedupe

import (
	"fmt"
	"sync"
)

// call is one in-flight invocation. done is closed when the call settles.
type call struct {
	done chan struct{}
	val  any
	err  error
}

// Coordinator tracks in-flight operations by deterministic key. A second
// caller with an identical key while the first is still running receives the
// same eventual result (success or failure) instead of triggering a second
// real call.
//
// The coordinator is injected, not a package singleton, so tests can use a
// fresh instance per case and multiple engines don't cross-contaminate.
//
// Known limitation: there is no true cancellation. Removing a key does not
// stop the underlying call; it only stops new joiners from waiting on it.
type Coordinator struct {
	mu       sync.Mutex
	inflight map[string]*call
}

// New creates an empty coordinator.
func New() *Coordinator {
	return &Coordinator{inflight: make(map[string]*call)}
}

// Do executes fn under key, or joins an identical in-flight call. joined
// reports whether this caller shared another caller's outcome. The map entry
// is removed when the call settles, success or failure, so no key is ever
// left perpetually in-flight.
func (c *Coordinator) Do(key string, fn func() (any, error)) (val any, joined bool, err error) {
	c.mu.Lock()
	if existing, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-existing.done
		return existing.val, true, existing.err
	}

	entry := &call{done: make(chan struct{})}
	c.inflight[key] = entry
	c.mu.Unlock()

	defer func() {
		// A panic in fn must still settle the call: joiners get an error
		// instead of an empty outcome. The panic then resumes in the first
		// caller only.
		r := recover()
		if r != nil {
			entry.err = fmt.Errorf("in-flight call for key %q panicked: %v", key, r)
		}
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		close(entry.done)
		if r != nil {
			panic(r)
		}
	}()

	entry.val, entry.err = fn()
	return entry.val, false, entry.err
}

// InFlight reports whether key currently has an in-flight call.
func (c *Coordinator) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}

// Len returns the number of in-flight calls.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Forget removes key without waiting for its call to settle. New callers
// will start a fresh call; the abandoned call still completes on its own.
func (c *Coordinator) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}
