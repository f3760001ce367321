// Package prefetcher runs keyed background jobs, such as binary downloads,
// with bounded parallelism and lets callers wait for them in their own order.
package prefetcher

import (
	"context"
	"strings"
	"sync"
	"time"
)

type Task struct {
	done chan struct{}
	err  error
}

type Prefetcher struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	timeout time.Duration
	slots   chan struct{}
}

// New returns a Prefetcher running at most parallel jobs at once. Each job
// gets timeout, when positive.
func New(parallel int, timeout time.Duration) *Prefetcher {
	if parallel < 1 {
		parallel = 1
	}
	return &Prefetcher{
		tasks:   make(map[string]*Task),
		timeout: timeout,
		slots:   make(chan struct{}, parallel),
	}
}

// Start launches run under key unless a job with that key already exists.
// It reports whether a job is known for key afterwards.
func (p *Prefetcher) Start(ctx context.Context, key string, run func(context.Context) error) bool {
	if p == nil {
		return false
	}
	key = strings.TrimSpace(key)
	if key == "" || run == nil {
		return false
	}

	p.mu.Lock()
	if _, ok := p.tasks[key]; ok {
		p.mu.Unlock()
		return true
	}
	task := &Task{done: make(chan struct{})}
	p.tasks[key] = task
	p.mu.Unlock()

	go func() {
		defer close(task.done)
		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			task.err = ctx.Err()
			return
		}
		defer func() { <-p.slots }()

		jobCtx := ctx
		cancel := func() {}
		if p.timeout > 0 {
			jobCtx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		defer cancel()
		task.err = run(jobCtx)
	}()
	return true
}

// Wait blocks until the job for key finishes and returns its error. Unknown
// keys return nil.
func (p *Prefetcher) Wait(ctx context.Context, key string) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	task := p.tasks[strings.TrimSpace(key)]
	p.mu.Unlock()
	if task == nil {
		return nil
	}
	select {
	case <-task.done:
		return task.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
