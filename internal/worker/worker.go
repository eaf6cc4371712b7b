package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"hyperscribe.app/scribe/common/logger"
	"hyperscribe.app/scribe/internal/queue"
)

type Config struct {
	// MaxAttempts is the delivery count at which a failing chunk is
	// dead-lettered.
	MaxAttempts int
	// RetryDelay is the pause between attempts of a failing message.
	RetryDelay time.Duration
	// ErrorBackoff is the pause after a failed stream read.
	ErrorBackoff time.Duration
}

// Worker pulls chunk tasks off the stream and settles each one.
type Worker struct {
	consumer Consumer
	handler  MessageHandler
	cfg      Config
}

func New(consumer Consumer, handler MessageHandler, cfg Config) *Worker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{consumer: consumer, handler: handler, cfg: cfg}
}

// Run reads until ctx is cancelled. A batch already read is finished on a
// context that ignores the cancellation, so shutdown never abandons a cycle
// halfway between publishing effects and saving state.
func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "scribe.worker"})
	slog.InfoContext(ctx, "worker started", "max_attempts", w.cfg.MaxAttempts)

	for ctx.Err() == nil {
		messages, err := w.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.ErrorContext(ctx, "reading chunk stream failed", "error", err)
			sleep(ctx, w.cfg.ErrorBackoff)
			continue
		}

		settleCtx := context.WithoutCancel(ctx)
		for _, msg := range messages {
			_ = w.HandleMessage(settleCtx, msg)
		}
	}

	slog.InfoContext(ctx, "worker stopped")
	return nil
}

// HandleMessage runs one message until it succeeds or reaches MaxAttempts,
// then acks or dead-letters it. Retries happen in place, before anything
// else is read, so a later chunk of the discussion never overtakes the one
// being retried. The reclaimer shares this path.
func (w *Worker) HandleMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.handle_message",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()

	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		MessageID:    logger.Ptr(msg.ID),
		DiscussionID: logger.Ptr(msg.DiscussionID),
		ChunkIndex:   logger.Ptr(msg.ChunkIndex),
	})

	for {
		started := time.Now()
		err := w.run(ctx, msg)
		if err == nil {
			slog.InfoContext(ctx, "message done",
				"task_type", msg.TaskType,
				"attempt", msg.Attempt,
				"duration_ms", time.Since(started).Milliseconds())
			if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
				slog.WarnContext(ctx, "ack failed, reclaimer will redeliver", "error", ackErr)
			}
			return nil
		}
		sc.RecordError(err)

		if msg.Attempt >= w.cfg.MaxAttempts {
			slog.ErrorContext(ctx, "message failed for the last time",
				"error", err,
				"attempt", msg.Attempt)
			if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
				slog.ErrorContext(ctx, "dead-lettering failed", "error", dlqErr)
			}
			return err
		}

		slog.WarnContext(ctx, "message failed, retrying",
			"error", err,
			"attempt", msg.Attempt,
			"max_attempts", w.cfg.MaxAttempts)
		if !sleep(ctx, w.cfg.RetryDelay) {
			// Left pending: the reclaimer picks it up with the attempt count.
			return err
		}
		msg.Attempt++
	}
}

func (w *Worker) run(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.handler.Process(ctx, msg)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
