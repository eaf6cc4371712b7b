package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"hyperscribe.app/scribe/internal/cycle"
	"hyperscribe.app/scribe/internal/model"
	"hyperscribe.app/scribe/internal/queue"
	"hyperscribe.app/scribe/internal/store"
)

type mockConsumer struct {
	mu     sync.Mutex
	acked  []string
	dlq    []string
	ackErr error
	readFn func(ctx context.Context) ([]queue.Message, error)
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	if m.readFn != nil {
		return m.readFn(ctx)
	}
	return nil, nil
}

func (m *mockConsumer) ackedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return m.ackErr
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, msg.ID)
	return nil
}

type mockHandler struct {
	mu        sync.Mutex
	fn        func(ctx context.Context, msg queue.Message) error
	callCount int
	seen      []string
}

func (m *mockHandler) Process(ctx context.Context, msg queue.Message) error {
	m.mu.Lock()
	m.callCount++
	m.seen = append(m.seen, fmt.Sprintf("%s#%d", msg.ID, msg.Attempt))
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, msg)
	}
	return nil
}

func (m *mockHandler) seenAttempts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

type mockCycles struct {
	fn        func(ctx context.Context, in cycle.Input) cycle.Result
	callCount int
	lastInput cycle.Input
}

func (m *mockCycles) RunCycle(ctx context.Context, in cycle.Input) cycle.Result {
	m.callCount++
	m.lastInput = in
	if m.fn != nil {
		return m.fn(ctx, in)
	}
	return cycle.Result{Instructions: in.PreviousInstructions, Effects: []model.Effect{}, TranscriptTail: []model.Line{}}
}

type publishCall struct {
	discussionID string
	cycle        int
	effects      []model.Effect
}

type mockPublisher struct {
	err   error
	calls []publishCall
}

func (m *mockPublisher) Publish(_ context.Context, discussionID string, cycleNumber int, effects []model.Effect) error {
	m.calls = append(m.calls, publishCall{discussionID: discussionID, cycle: cycleNumber, effects: effects})
	return m.err
}

// failingDiscussionStore wraps a store and fails Set.
type failingDiscussionStore struct {
	inner store.DiscussionStore
}

func (f failingDiscussionStore) Get(ctx context.Context, key string) (model.DiscussionState, error) {
	return f.inner.Get(ctx, key)
}

func (f failingDiscussionStore) Peek(ctx context.Context, key string) (model.DiscussionState, error) {
	return f.inner.Peek(ctx, key)
}

func (f failingDiscussionStore) Set(context.Context, string, model.DiscussionState) error {
	return errors.New("redis down")
}
