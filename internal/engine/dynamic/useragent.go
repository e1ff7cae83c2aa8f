package dynamic

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// DefaultUserAgents are current desktop browser strings across platforms.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
}

// UserAgentPool picks a user agent per session, never repeating the
// previous pick when more than one is available.
type UserAgentPool struct {
	agents []string
	last   int
	intn   func(n int) int
	mu     sync.Mutex
}

// NewUserAgentPool creates a pool; an empty list falls back to DefaultUserAgents.
func NewUserAgentPool(agents []string) *UserAgentPool {
	var clean []string
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			clean = append(clean, a)
		}
	}
	if len(clean) == 0 {
		clean = DefaultUserAgents
	}
	return &UserAgentPool{agents: clean, last: -1, intn: rand.IntN}
}

// Next returns the user agent for the next session.
func (p *UserAgentPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.agents) == 1 {
		p.last = 0
		return p.agents[0]
	}
	i := p.intn(len(p.agents))
	if i == p.last {
		i = (i + 1 + p.intn(len(p.agents)-1)) % len(p.agents)
	}
	p.last = i
	return p.agents[i]
}

// platformOf maps a user agent to the navigator.platform family it implies.
func platformOf(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Win32"
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	default:
		return "Linux x86_64"
	}
}
