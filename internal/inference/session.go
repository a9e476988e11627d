package inference

import (
	"context"
	"fmt"
	"sync"

	"archivist/internal/services"
)

// State tracks where a model is in its residency lifecycle.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateUnloading
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateUnloading:
		return "unloading"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Loader is the load/unload half of a model's contract.
type Loader interface {
	Name() string
	Load(ctx context.Context) error
	Unload(ctx context.Context) error
}

// Session owns the accelerator. At most one model is resident at any time;
// acquiring while another lease is outstanding is a programming error and
// fails rather than queues.
type Session struct {
	mu       sync.Mutex
	state    State
	holder   string
	resident int
	peak     int
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Acquire loads the model and returns a lease. On load failure the session
// returns to unloaded with the loader's Unload invoked, so a half-loaded
// model never lingers.
func (s *Session) Acquire(ctx context.Context, loader Loader) (*Lease, error) {
	s.mu.Lock()
	if s.state != StateUnloaded {
		holder := s.holder
		s.mu.Unlock()
		return nil, services.Wrap(services.ErrConfiguration, "inference", "acquire",
			fmt.Sprintf("model %s still resident while acquiring %s", holder, loader.Name()), nil)
	}
	s.state = StateLoading
	s.holder = loader.Name()
	s.resident++
	if s.resident > s.peak {
		s.peak = s.resident
	}
	s.mu.Unlock()

	if err := loader.Load(ctx); err != nil {
		_ = loader.Unload(context.WithoutCancel(ctx))
		s.mu.Lock()
		s.state = StateUnloaded
		s.holder = ""
		s.resident--
		s.mu.Unlock()
		return nil, services.Wrap(services.ErrExternalTool, "inference", "load",
			fmt.Sprintf("load model %s", loader.Name()), err)
	}

	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()

	return &Lease{session: s, loader: loader}, nil
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PeakResidency reports the maximum number of models ever concurrently
// resident. Anything above 1 is a bug.
func (s *Session) PeakResidency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// Lease is the right to use a loaded model. Release is idempotent and must
// run on every exit path; callers defer it immediately after Acquire.
type Lease struct {
	session *Session
	loader  Loader
	once    sync.Once
}

// Release unloads the model and frees the session. Unload errors are
// returned but the session is freed regardless, because a stuck unload
// must not wedge the whole pipeline.
func (l *Lease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		l.session.mu.Lock()
		l.session.state = StateUnloading
		l.session.mu.Unlock()

		err = l.loader.Unload(ctx)

		l.session.mu.Lock()
		l.session.state = StateUnloaded
		l.session.holder = ""
		l.session.resident--
		l.session.mu.Unlock()
	})
	return err
}
