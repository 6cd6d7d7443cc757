// Package runguard keeps at most one check run per user in flight.
package runguard

import "sync"

// Guard is a process-local set of users with a run in progress. It is not
// persisted: after a restart every user is free again.
type Guard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func New() *Guard {
	return &Guard{running: make(map[string]struct{})}
}

// TryAcquire marks key as running. It returns false when a run for key is
// already in flight; the caller must then skip silently.
func (g *Guard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.running[key]; busy {
		return false
	}
	g.running[key] = struct{}{}
	return true
}

// Release clears the running mark. Call it exactly once per successful
// TryAcquire, on every exit path.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, key)
}

// Active returns how many runs are in flight.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.running)
}
