package handler_test

import (
	"context"
	"io"

	"hyperscribe.app/scribe/internal/queue"
)

type mockProducer struct {
	enqueueFn func(ctx context.Context, task queue.Task) (string, error)
	tasks     []queue.Task
}

func (m *mockProducer) Enqueue(ctx context.Context, task queue.Task) (string, error) {
	m.tasks = append(m.tasks, task)
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, task)
	}
	return "1700000000000-0", nil
}

func (m *mockProducer) Close() error { return nil }

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}
