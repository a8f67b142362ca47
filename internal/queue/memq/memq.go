// Package memq is the in-process queue adapter: a buffered channel drained by
// a fixed-size worker pool. It keeps single-binary deployments and tests free
// of Redis while honoring the same per-task-ID idempotency contract as the
// asynq adapter.
package memq

import (
	"context"
	"errors"
	"log"
	"sync"

	"converso-backend/internal/queue"
)

const defaultBuffer = 256

// Queue implements both queue.Client and queue.Server over one channel.
type Queue struct {
	tasks   chan queue.Task
	workers int

	mu       sync.Mutex
	handlers map[string]queue.Handler
	seen     map[string]struct{}
	closed   bool

	done chan struct{}
}

var (
	_ queue.Client = (*Queue)(nil)
	_ queue.Server = (*Queue)(nil)
)

// New creates a queue drained by `workers` goroutines once Run is called.
func New(workers int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		tasks:    make(chan queue.Task, defaultBuffer),
		workers:  workers,
		handlers: make(map[string]queue.Handler),
		seen:     make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue accepts the task unless its ID was already enqueued; duplicates are
// dropped silently to keep one job per triggering message.
func (q *Queue) Enqueue(ctx context.Context, t queue.Task) error {
	if t.Type == "" {
		return errors.New("memq: task type is required")
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errors.New("memq: queue is closed")
	}
	if t.ID != "" {
		if _, dup := q.seen[t.ID]; dup {
			q.mu.Unlock()
			return nil
		}
		q.seen[t.ID] = struct{}{}
	}
	q.mu.Unlock()

	select {
	case q.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	return nil
}

func (q *Queue) Register(taskType string, h queue.Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

// Run starts the worker pool and blocks until the context is canceled and all
// in-flight tasks finish.
func (q *Queue) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.workLoop(ctx)
		}()
	}
	<-ctx.Done()
	q.Close()
	wg.Wait()
	close(q.done)
	return nil
}

func (q *Queue) Stop(ctx context.Context) error {
	q.Close()
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) workLoop(ctx context.Context) {
	for t := range q.tasks {
		q.mu.Lock()
		h := q.handlers[t.Type]
		q.mu.Unlock()
		if h == nil {
			log.Printf("WARN [memq] no handler registered for task type %q", t.Type)
			continue
		}
		if err := h(ctx, t); err != nil {
			// No retry: the bot pipeline absorbs failures via its fallback,
			// and a retry after a successful append would duplicate replies.
			log.Printf("ERROR [memq] task %s/%s failed: %v", t.Type, t.ID, err)
		}
	}
}
