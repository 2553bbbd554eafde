package trajectory

import (
	"context"
	"errors"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrStale is returned when polling for a request that has been superseded.
var ErrStale = errors.New("trajectory: request superseded")

// Request asks for a plan starting at InitTime from the given boundary.
// Both feet are expected on the ground at InitTime.
type Request struct {
	InitTime     float64
	LeftFoot     Pose
	RightFoot    Pose
	DCM          r2.Vec
	DCMVelocity  r2.Vec
	LeftSwinging bool
	Goal         r2.Vec
}

type Generator interface {
	Generate(ctx context.Context, req Request) (*Plan, error)
}

type GeneratorFunc func(ctx context.Context, req Request) (*Plan, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Plan, error) {
	return f(ctx, req)
}

type pending struct {
	seq  uint64
	done chan struct{}
	plan *Plan
	err  error
}

// Async runs a Generator in its own goroutine. Only the latest request is
// kept. A superseded request is left to finish and its result is dropped.
type Async struct {
	gen Generator

	mu  sync.Mutex
	seq uint64
	cur *pending
}

func NewAsync(gen Generator) *Async {
	return &Async{gen: gen}
}

// Submit starts generating and returns the request sequence number.
func (a *Async) Submit(ctx context.Context, req Request) uint64 {
	a.mu.Lock()
	a.seq++
	p := &pending{seq: a.seq, done: make(chan struct{})}
	a.cur = p
	a.mu.Unlock()

	go func() {
		plan, err := a.gen.Generate(ctx, req)
		a.mu.Lock()
		p.plan, p.err = plan, err
		a.mu.Unlock()
		close(p.done)
	}()
	return p.seq
}

func (a *Async) lookup(seq uint64) (*pending, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cur == nil || a.cur.seq != seq {
		return nil, ErrStale
	}
	return a.cur, nil
}

// Poll reports whether request seq has completed without blocking.
func (a *Async) Poll(seq uint64) (*Plan, bool, error) {
	p, err := a.lookup(seq)
	if err != nil {
		return nil, false, err
	}
	select {
	case <-p.done:
		return p.plan, true, p.err
	default:
		return nil, false, nil
	}
}

// Wait blocks until request seq completes or ctx is done.
func (a *Async) Wait(ctx context.Context, seq uint64) (*Plan, error) {
	p, err := a.lookup(seq)
	if err != nil {
		return nil, err
	}
	select {
	case <-p.done:
		return p.plan, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Discard forgets the in-flight request, if any. It keeps running and its
// result is never returned.
func (a *Async) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cur = nil
}
