// Package pool runs submitted work on a fixed set of goroutines fed by a
// bounded queue.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("pool: closed")

type task struct {
	fn   func() error
	done chan error
}

type Pool struct {
	workers int
	tasks   chan task
	group   errgroup.Group

	mu     sync.RWMutex
	closed bool
}

// New starts workers goroutines draining a queue that holds up to queue
// waiting tasks.
func New(workers, queue int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}

	p := &Pool{
		workers: workers,
		tasks:   make(chan task, queue),
	}
	for i := 0; i < workers; i++ {
		p.group.Go(p.work)
	}
	return p
}

func (p *Pool) Workers() int {
	return p.workers
}

// Do runs fn on a worker and returns its error once it has finished.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	select {
	case p.tasks <- t:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake, lets queued tasks finish and waits for the workers.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	return p.group.Wait()
}

func (p *Pool) work() error {
	for t := range p.tasks {
		t.done <- run(t.fn)
	}
	return nil
}

func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: task panicked: %v", r)
		}
	}()
	return fn()
}
