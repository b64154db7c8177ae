package pjs

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pjsproto/pjs/admission"
	"github.com/pjsproto/pjs/frame"
	"github.com/pjsproto/pjs/value"
)

// Manager bounds the number of concurrently open sessions to
// MaxConcurrentStreams and shares one admission.Limiter across every
// session it opens (§5 "Shared resource policy", §6.5
// `max_concurrent_streams`).
type Manager struct {
	cfg     Config
	limiter *admission.Limiter
	sem     *semaphore.Weighted

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager builds a Manager from cfg, sizing its concurrency semaphore
// to cfg.MaxConcurrentStreams.
func NewManager(cfg Config) *Manager {
	max := cfg.MaxConcurrentStreams
	if max <= 0 {
		max = 64
	}
	return &Manager{
		cfg:      cfg,
		limiter:  admission.NewLimiter(cfg.admissionPolicy()),
		sem:      semaphore.NewWeighted(int64(max)),
		sessions: make(map[string]*session),
	}
}

// OpenProducer blocks until a concurrency slot is available (or ctx is
// done), then opens a ProducerSession for v.
func (m *Manager) OpenProducer(ctx context.Context, v value.Value) (*ProducerSession, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	ps, err := OpenProducer(v, m.cfg, m.limiter)
	if err != nil {
		m.sem.Release(1)
		return nil, err
	}
	m.register(ps.session)
	return ps, nil
}

// OpenConsumer blocks until a concurrency slot is available (or ctx is
// done), then opens a ConsumerSession.
func (m *Manager) OpenConsumer(ctx context.Context) (*ConsumerSession, error) {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	cs := OpenConsumer(m.cfg, m.limiter)
	m.register(cs.session)
	return cs, nil
}

func (m *Manager) register(s *session) {
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	s.onClose = func() { m.release(s.id) }
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.sem.Release(1)
	}
}

// Sessions returns the ids of every currently open session, for
// introspection and cancellation.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	return out
}

// Cancel transitions the named session to Failed(Cancelled), releasing its
// concurrency slot (§6.4 `*.cancel(reason)`).
func (m *Manager) Cancel(id, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.Cancel(reason)
	}
}

// Pump drives one producer and one consumer end to end within an errgroup:
// a single goroutine pulls each frame from p, encodes it to measure its
// wire size, and ingests it into c, until the producer is done, ctx is
// cancelled, or either side errors. No channel sits between the two
// sessions. cmd/pjs-demo does not call Pump; it moves frames over its own
// pipe transport instead.
func Pump(ctx context.Context, p *ProducerSession, c *ConsumerSession) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			f, ok, err := p.NextFrame()
			if err != nil {
				return err
			}
			if !ok {
				if p.Done() {
					return nil
				}
				continue
			}
			raw, err := frame.Encode(f, 0)
			if err != nil {
				return err
			}
			if _, _, err := c.Ingest(f, len(raw)); err != nil {
				return err
			}
		}
	})
	return g.Wait()
}
