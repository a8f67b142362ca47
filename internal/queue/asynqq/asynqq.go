// Package asynqq adapts the queue port to github.com/hibiken/asynq, giving
// the bot pipeline a Redis-backed durable queue. Task IDs map to asynq task
// IDs so duplicate dispatches for the same triggering message collapse.
package asynqq

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"converso-backend/internal/queue"
)

// botQueue is the logical asynq queue consumed by the worker server.
const botQueue = "bots"

// ===================== Client =====================

// Client implements queue.Client on asynq.
type Client struct {
	client *asynq.Client
}

var _ queue.Client = (*Client)(nil)

// NewClient constructs a client from a redis URL (redis://host:port/db).
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynqq: parse redis url: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

func (c *Client) Enqueue(ctx context.Context, t queue.Task) error {
	if t.Type == "" {
		return errors.New("asynqq: task type is required")
	}
	opts := []asynq.Option{asynq.Queue(botQueue), asynq.MaxRetry(0)}
	if t.ID != "" {
		opts = append(opts, asynq.TaskID(t.ID))
	}
	_, err := c.client.EnqueueContext(ctx, asynq.NewTask(t.Type, t.Payload), opts...)
	if err != nil {
		// A task with this ID already exists: the job for this triggering
		// message is queued or done, so the duplicate is dropped.
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ===================== Server =====================

// Server implements queue.Server on asynq.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

var _ queue.Server = (*Server)(nil)

// NewServer constructs a worker server with the given concurrency.
func NewServer(redisURL string, concurrency int) (*Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynqq: parse redis url: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{botQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Printf("ERROR [asynqq] task %s failed: %v", task.Type(), err)
		}),
	})
	return &Server{server: srv, mux: asynq.NewServeMux()}, nil
}

func (s *Server) Register(taskType string, h queue.Handler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, queue.Task{Type: t.Type(), ID: t.ResultWriter().TaskID(), Payload: t.Payload()})
	})
}

// Run starts the server and blocks until the context is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	_ = ctx // asynq's Shutdown takes no context
	s.server.Shutdown()
	return nil
}
