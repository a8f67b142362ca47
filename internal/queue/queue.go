// Package queue defines the job-queue port consumed by the bot response
// pipeline. Adapters decide durability: asynqq rides Redis, memq is a fixed
// in-process worker pool. Both serialize execution per task ID.
package queue

import "context"

// Task is a background job. ID is the idempotency key: adapters guarantee at
// most one execution per ID, so enqueuing a duplicate is a silent no-op.
// Payload encoding is up to callers.
type Task struct {
	Type    string
	ID      string
	Payload []byte
}

// Handler processes a Task. A non-nil error signals retry per adapter policy,
// so handlers must be idempotent.
type Handler func(ctx context.Context, task Task) error

// Client enqueues tasks for background processing. Enqueue must return
// quickly; it never blocks on the job itself.
type Client interface {
	Enqueue(ctx context.Context, t Task) error
	Close() error
}

// Server runs background workers that handle tasks. Run blocks until the
// context is canceled or Stop is called.
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}
