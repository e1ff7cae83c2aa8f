package replay

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"
	"github.com/law-makers/psibatch/internal/engine"
	"github.com/law-makers/psibatch/pkg/models"
	"github.com/rs/zerolog/log"
)

// Session evaluates the page scripts inside an embedded JavaScript VM
// loaded with a dump.
type Session struct {
	target   string
	finalURL string
	vm       *goja.Runtime
	mu       sync.Mutex
	closed   bool
}

var _ engine.Session = (*Session)(nil)

func newRuntime() *goja.Runtime {
	vm := goja.New()
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("console", map[string]interface{}{
		"log":   func(goja.FunctionCall) goja.Value { return goja.Undefined() },
		"error": func(goja.FunctionCall) goja.Value { return goja.Undefined() },
	})
	return vm
}

// Load evaluates a dump script.
func Load(path string) (*Session, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}

	vm := newRuntime()
	if _, err := vm.RunScript(path, string(src)); err != nil {
		return nil, fmt.Errorf("evaluate dump %s: %w", path, err)
	}

	s := &Session{vm: vm}
	s.target = globalString(vm, TargetGlobal)
	s.finalURL = globalString(vm, FinalURLGlobal)
	if s.target == "" {
		return nil, fmt.Errorf("dump %s does not name its target", path)
	}
	return s, nil
}

func globalString(vm *goja.Runtime, name string) string {
	v := vm.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func (s *Session) eval(ctx context.Context, script string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", engine.ErrSessionClosed
	}
	v, err := s.vm.RunString(script)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Target returns the URL the dump was captured for.
func (s *Session) Target() string { return s.target }

// Probe reports which payloads the dump contains.
func (s *Session) Probe(ctx context.Context) (models.Availability, error) {
	res, err := s.eval(ctx, engine.ProbeScript)
	if err != nil {
		return models.AvailNone, err
	}
	return engine.DecodeProbe(res)
}

// ReadPayload returns the serialized payload for d.
func (s *Session) ReadPayload(ctx context.Context, d models.Device) ([]byte, error) {
	res, err := s.eval(ctx, engine.PayloadScript(d))
	if err != nil {
		return nil, err
	}
	if res == "" {
		return nil, engine.ErrNoPayload
	}
	return []byte(res), nil
}

// FinalURL returns the recorded final URL.
func (s *Session) FinalURL(ctx context.Context) (string, error) {
	return s.finalURL, ctx.Err()
}

// Close releases the VM.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.vm = nil
	return nil
}

// Opener serves sessions from a set of dump files keyed by target URL.
type Opener struct {
	paths map[string]string
	mu    sync.Mutex
	open  int
}

// NewOpener indexes dumps by the target URL recorded in each. Unreadable
// dumps are skipped with a warning; the returned targets keep file order.
func NewOpener(paths []string) (*Opener, []string, error) {
	o := &Opener{paths: make(map[string]string)}
	var targets []string
	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Skipping unreadable dump")
			continue
		}
		if _, dup := o.paths[s.target]; dup {
			log.Warn().Str("path", p).Str("url", s.target).Msg("Skipping duplicate dump")
			continue
		}
		o.paths[s.target] = p
		targets = append(targets, s.target)
	}
	if len(targets) == 0 {
		return nil, nil, fmt.Errorf("no usable dumps among %d files", len(paths))
	}
	return o, targets, nil
}

// Open loads the dump recorded for target.
func (o *Opener) Open(ctx context.Context, target string) (engine.Session, error) {
	path, ok := o.paths[target]
	if !ok {
		return nil, engine.NewEngineError(engine.ErrCodeNavigation, "no dump recorded for url", nil).WithDetail("url", target)
	}
	s, err := Load(path)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeNavigation, "failed to load dump", err)
	}
	o.mu.Lock()
	o.open++
	o.mu.Unlock()
	return &trackedSession{Session: s, opener: o}, nil
}

// OpenSessions returns the number of sessions not yet closed.
func (o *Opener) OpenSessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

type trackedSession struct {
	*Session
	opener *Opener
	once   sync.Once
}

func (t *trackedSession) Close() error {
	t.once.Do(func() {
		t.opener.mu.Lock()
		t.opener.open--
		t.opener.mu.Unlock()
	})
	return t.Session.Close()
}
