package proxy

import (
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed proxy is skipped.
const DefaultCooldown = 5 * time.Minute

// Rotator hands out proxy servers round-robin, one per browser session,
// skipping proxies that recently failed to start a session.
type Rotator struct {
	proxies  []string
	index    int
	cooldown time.Duration
	now      func() time.Time
	mu       sync.Mutex
	failed   map[string]time.Time
}

// NewRotator creates a Rotator. Blank entries are dropped.
func NewRotator(proxies []string, cooldown time.Duration) *Rotator {
	var clean []string
	for _, p := range proxies {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Rotator{
		proxies:  clean,
		cooldown: cooldown,
		now:      time.Now,
		failed:   make(map[string]time.Time),
	}
}

// Len returns the number of configured proxies.
func (r *Rotator) Len() int {
	if r == nil {
		return 0
	}
	return len(r.proxies)
}

// Next returns the next healthy proxy, or "" when none are configured.
// When every proxy is cooling down the least recently failed one is used.
func (r *Rotator) Next() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.proxies) == 0 {
		return ""
	}

	oldest := ""
	var oldestAt time.Time
	for range r.proxies {
		p := r.proxies[r.index]
		r.index = (r.index + 1) % len(r.proxies)

		failedAt, ok := r.failed[p]
		if !ok {
			return p
		}
		if r.now().Sub(failedAt) >= r.cooldown {
			delete(r.failed, p)
			return p
		}
		if oldest == "" || failedAt.Before(oldestAt) {
			oldest, oldestAt = p, failedAt
		}
	}
	return oldest
}

// MarkFailed puts a proxy into cool-down.
func (r *Rotator) MarkFailed(p string) {
	if r == nil || p == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[p] = r.now()
}

// MarkHealthy clears the failure status of a proxy
func (r *Rotator) MarkHealthy(p string) {
	if r == nil || p == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failed, p)
}
