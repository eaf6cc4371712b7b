package worker

import (
	"context"

	"hyperscribe.app/scribe/internal/cycle"
	"hyperscribe.app/scribe/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// MessageHandler abstracts the per-message processing for testability.
type MessageHandler interface {
	Process(ctx context.Context, msg queue.Message) error
}

// CycleRunner is the cycle orchestrator as seen by the worker.
type CycleRunner interface {
	RunCycle(ctx context.Context, in cycle.Input) cycle.Result
}
