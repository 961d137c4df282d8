package target

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("target pool closed")

// Pool hands out targets with exclusive ownership.
//
// At most size targets are checked out at once. Released targets are kept
// for reuse only when they implement Resetter; everything else is closed on
// release. A reused target is reset before it is handed out again, and a
// target whose reset fails is discarded in favor of a fresh one.
//
// Thread-safety: all methods are safe for concurrent use.
type Pool struct {
	factory Factory
	slots   chan struct{}

	mu     sync.Mutex
	idle   []Target
	inUse  map[Target]struct{}
	closed bool
}

// NewPool creates a pool over factory allowing size concurrent checkouts.
// A size below 1 is treated as 1.
func NewPool(factory Factory, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		factory: factory,
		slots:   make(chan struct{}, size),
		inUse:   make(map[Target]struct{}),
	}
}

// Acquire checks out a target, blocking while all slots are taken.
func (p *Pool) Acquire(ctx context.Context) (Target, error) {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t, err := p.checkout(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return t, nil
}

func (p *Pool) checkout(ctx context.Context) (Target, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		if len(p.idle) == 0 {
			p.mu.Unlock()
			break
		}
		t := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if err := t.(Resetter).Reset(ctx); err != nil {
			_ = t.Close()
			continue
		}
		p.markInUse(t)
		return t, nil
	}

	t, err := p.factory.NewTarget(ctx)
	if err != nil {
		return nil, err
	}
	p.markInUse(t)
	return t, nil
}

func (p *Pool) markInUse(t Target) {
	p.mu.Lock()
	p.inUse[t] = struct{}{}
	p.mu.Unlock()
}

// Release checks t back in. Releasing a target that is not checked out
// is an error and leaves the pool unchanged.
func (p *Pool) Release(t Target) error {
	p.mu.Lock()
	if _, ok := p.inUse[t]; !ok {
		p.mu.Unlock()
		return fmt.Errorf("release: target not checked out from this pool")
	}
	delete(p.inUse, t)

	_, reusable := t.(Resetter)
	keep := reusable && !p.closed
	if keep {
		p.idle = append(p.idle, t)
	}
	p.mu.Unlock()

	<-p.slots

	if !keep {
		return t.Close()
	}
	return nil
}

// Discard checks t back in and closes it without reuse. Used after a case
// saw the target become unavailable.
func (p *Pool) Discard(t Target) error {
	p.mu.Lock()
	if _, ok := p.inUse[t]; !ok {
		p.mu.Unlock()
		return fmt.Errorf("discard: target not checked out from this pool")
	}
	delete(p.inUse, t)
	p.mu.Unlock()

	<-p.slots
	return t.Close()
}

// InUse returns the number of targets currently checked out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}

// Close closes idle targets. Targets still checked out are closed when they
// are released. The factory is left open; its owner closes it.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var errs []error
	for _, t := range idle {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
