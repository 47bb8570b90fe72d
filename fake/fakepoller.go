// File: fake/fakepoller.go
// Author: momentics <momentics@gmail.com>
//
// Fake completion poller for deterministic event-loop tests. The test
// drives readiness explicitly with Fire; Wait blocks until something is
// fired, posted, or failed.

package fake

import (
	"errors"
	"sync"
	"time"

	"github.com/momentics/komorebi-link/api"
)

// Poller implements api.Poller with test-scripted readiness.
type Poller struct {
	mu     sync.Mutex
	tokens map[uintptr]uintptr        // fd -> token
	ops    map[uintptr]*api.Operation // token -> armed op

	fires    chan uintptr
	posted   chan struct{}
	fails    chan error
	canceled chan api.Completion
	done     chan struct{}

	closeOnce sync.Once
}

// NewPoller creates an idle fake poller.
func NewPoller() *Poller {
	return &Poller{
		tokens: make(map[uintptr]uintptr),
		ops:    make(map[uintptr]*api.Operation),
		fires:    make(chan uintptr, 64),
		posted:   make(chan struct{}, 4),
		fails:    make(chan error, 4),
		canceled: make(chan api.Completion, 16),
		done:     make(chan struct{}),
	}
}

// Fire declares readiness for the operation armed under token. The next
// Wait call finishes that operation and delivers its completion.
func (p *Poller) Fire(token uintptr) { p.fires <- token }

// FailWait makes the next Wait call return err, simulating a dying queue.
func (p *Poller) FailWait(err error) { p.fails <- err }

// Armed reports whether an operation is currently in flight under token.
func (p *Poller) Armed(token uintptr) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ops[token]
	return ok
}

// ArmedCount reports the number of in-flight operations.
func (p *Poller) ArmedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ops)
}

// ArmedTokens returns the tokens with an in-flight operation.
func (p *Poller) ArmedTokens() []uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uintptr, 0, len(p.ops))
	for tok := range p.ops {
		out = append(out, tok)
	}
	return out
}

// Register implements api.Poller.
func (p *Poller) Register(fd, token uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tokens[fd]; ok {
		return api.ErrAlreadyRegistered
	}
	p.tokens[fd] = token
	return nil
}

// Unregister implements api.Poller.
func (p *Poller) Unregister(fd uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	token, ok := p.tokens[fd]
	if !ok {
		return api.ErrNotRegistered
	}
	delete(p.tokens, fd)
	delete(p.ops, token)
	return nil
}

// Cancel implements api.Poller. The error completion is delivered through
// the next Wait call.
func (p *Poller) Cancel(fd uintptr, cause error) error {
	p.mu.Lock()
	token, ok := p.tokens[fd]
	if !ok {
		p.mu.Unlock()
		return api.ErrNotRegistered
	}
	op := p.ops[token]
	delete(p.tokens, fd)
	delete(p.ops, token)
	p.mu.Unlock()
	select {
	case p.canceled <- api.Completion{Token: token, Err: cause, Op: op}:
	default:
	}
	return nil
}

// Arm implements api.Poller.
func (p *Poller) Arm(op *api.Operation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tokens[op.Fd]; !ok {
		return api.ErrNotRegistered
	}
	if _, ok := p.ops[op.Token]; ok {
		return api.ErrOpInFlight
	}
	p.ops[op.Token] = op
	return nil
}

// Wait implements api.Poller. It delivers at most one completion per call,
// which keeps test scripts simple; batch capacity beyond one is unused.
func (p *Poller) Wait(batch []api.Completion, timeout time.Duration) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	var timer <-chan time.Time
	if timeout >= 0 {
		timer = time.After(timeout)
	}
	select {
	case <-p.done:
		return 0, api.ErrClosed
	case err := <-p.fails:
		return 0, err
	case <-p.posted:
		batch[0] = api.Completion{
			Token: api.StopToken,
			Op:    &api.Operation{Kind: api.OpStop, Token: api.StopToken},
		}
		return 1, nil
	case c := <-p.canceled:
		batch[0] = c
		return 1, nil
	case token := <-p.fires:
		p.mu.Lock()
		op, ok := p.ops[token]
		p.mu.Unlock()
		if !ok {
			return 0, nil
		}
		bytes, err := op.Finish(op)
		if errors.Is(err, api.ErrPending) {
			return 0, nil
		}
		p.mu.Lock()
		delete(p.ops, token)
		p.mu.Unlock()
		batch[0] = api.Completion{Token: op.Token, Bytes: bytes, Err: err, Op: op}
		return 1, nil
	case <-timer:
		return 0, nil
	}
}

// Post implements api.Poller.
func (p *Poller) Post() error {
	select {
	case p.posted <- struct{}{}:
	default:
	}
	return nil
}

// Close implements api.Poller.
func (p *Poller) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

var _ api.Poller = (*Poller)(nil)
