package detect

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vzahanych/binsight/internal/config"
)

// acquireTimeout bounds how long a request waits for a free session
// before giving up.
const acquireTimeout = 5 * time.Second

// SessionPool bounds concurrent inference to a fixed set of sessions.
type SessionPool struct {
	sessions chan *ModelSession
	size     int
	mu       sync.Mutex
	closed   bool
}

// newSessionPool constructs cfg.PoolSize sessions up front.
func newSessionPool(cfg config.ModelConfig) (*SessionPool, error) {
	pool := &SessionPool{
		sessions: make(chan *ModelSession, cfg.PoolSize),
		size:     cfg.PoolSize,
	}

	for i := 0; i < cfg.PoolSize; i++ {
		session, err := newModelSession(cfg)
		if err != nil {
			pool.Destroy()
			return nil, err
		}
		pool.sessions <- session
	}

	return pool, nil
}

// Acquire takes a session from the pool, waiting up to acquireTimeout.
func (p *SessionPool) Acquire(ctx context.Context) (*ModelSession, error) {
	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, errors.New("session pool is closed")
		}
		return session, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(acquireTimeout):
		return nil, errors.New("timed out waiting for a model session")
	}
}

// Release returns a session to the pool.
func (p *SessionPool) Release(session *ModelSession) {
	if session == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		session.Destroy()
		return
	}
	p.mu.Unlock()

	select {
	case p.sessions <- session:
	default:
		session.Destroy()
	}
}

// Size returns the pool capacity.
func (p *SessionPool) Size() int {
	return p.size
}

// Destroy tears down every pooled session. Sessions still checked out are
// destroyed by Release when they come back.
func (p *SessionPool) Destroy() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.sessions)
	for session := range p.sessions {
		session.Destroy()
	}
}
