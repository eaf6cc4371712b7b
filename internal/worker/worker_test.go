package worker_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"hyperscribe.app/scribe/internal/queue"
	"hyperscribe.app/scribe/internal/worker"
)

var _ = Describe("Worker", func() {
	var (
		ctx      context.Context
		consumer *mockConsumer
		handler  *mockHandler
		w        *worker.Worker
	)

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &mockConsumer{}
		handler = &mockHandler{}
		w = worker.New(consumer, handler, worker.Config{MaxAttempts: 3})
	})

	msg := func(attempt int) queue.Message {
		return queue.Message{ID: "1-0", TaskType: queue.TaskTypeAudioChunk, DiscussionID: "d1", Attempt: attempt}
	}

	It("acks a processed message", func() {
		Expect(w.HandleMessage(ctx, msg(1))).To(Succeed())

		Expect(handler.callCount).To(Equal(1))
		Expect(consumer.acked).To(ConsistOf("1-0"))
		Expect(consumer.dlq).To(BeEmpty())
	})

	It("does not fail when the ack fails", func() {
		consumer.ackErr = errors.New("ack failed")

		Expect(w.HandleMessage(ctx, msg(1))).To(Succeed())
	})

	It("retries a failed message in place until it succeeds", func() {
		calls := 0
		handler.fn = func(context.Context, queue.Message) error {
			calls++
			if calls < 3 {
				return errors.New("boom")
			}
			return nil
		}

		Expect(w.HandleMessage(ctx, msg(1))).To(Succeed())

		Expect(handler.seenAttempts()).To(Equal([]string{"1-0#1", "1-0#2", "1-0#3"}))
		Expect(consumer.acked).To(ConsistOf("1-0"))
		Expect(consumer.dlq).To(BeEmpty())
	})

	It("dead-letters a message that keeps failing", func() {
		handler.fn = func(context.Context, queue.Message) error { return errors.New("boom") }

		Expect(w.HandleMessage(ctx, msg(1))).To(MatchError("boom"))

		Expect(handler.callCount).To(Equal(3))
		Expect(consumer.dlq).To(ConsistOf("1-0"))
		Expect(consumer.acked).To(BeEmpty())
	})

	It("dead-letters a redelivered message at the attempt limit without retrying", func() {
		handler.fn = func(context.Context, queue.Message) error { return errors.New("boom") }

		Expect(w.HandleMessage(ctx, msg(3))).To(HaveOccurred())

		Expect(handler.callCount).To(Equal(1))
		Expect(consumer.dlq).To(ConsistOf("1-0"))
	})

	It("turns a panic into a failure", func() {
		handler.fn = func(context.Context, queue.Message) error { panic("kaboom") }

		err := w.HandleMessage(ctx, msg(1))

		Expect(err).To(MatchError(ContainSubstring("kaboom")))
		Expect(consumer.dlq).To(ConsistOf("1-0"))
	})

	It("leaves a message pending when cancelled between attempts", func() {
		w = worker.New(consumer, handler, worker.Config{MaxAttempts: 3, RetryDelay: time.Hour})
		handler.fn = func(context.Context, queue.Message) error { return errors.New("boom") }
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		Expect(w.HandleMessage(cancelled, msg(1))).To(HaveOccurred())

		Expect(handler.callCount).To(Equal(1))
		Expect(consumer.acked).To(BeEmpty())
		Expect(consumer.dlq).To(BeEmpty())
	})

	It("does not let a later chunk overtake one being retried", func() {
		second := queue.Message{ID: "2-0", TaskType: queue.TaskTypeAudioChunk, DiscussionID: "d1", ChunkIndex: 1, Attempt: 1}
		reads := 0
		consumer.readFn = func(context.Context) ([]queue.Message, error) {
			reads++
			switch reads {
			case 1:
				return []queue.Message{msg(1)}, nil
			case 2:
				return []queue.Message{second}, nil
			}
			return nil, nil
		}
		failedOnce := false
		handler.fn = func(_ context.Context, m queue.Message) error {
			if m.ID == "1-0" && !failedOnce {
				failedOnce = true
				return errors.New("transient")
			}
			return nil
		}
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() { _ = w.Run(runCtx) }()

		Eventually(consumer.ackedIDs).Should(Equal([]string{"1-0", "2-0"}))
		Expect(handler.seenAttempts()).To(Equal([]string{"1-0#1", "1-0#2", "2-0#1"}))
	})

	It("handles what it reads until cancelled", func() {
		delivered := false
		consumer.readFn = func(context.Context) ([]queue.Message, error) {
			if delivered {
				return nil, nil
			}
			delivered = true
			return []queue.Message{msg(1)}, nil
		}
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- w.Run(runCtx) }()

		Eventually(consumer.ackedIDs).Should(ConsistOf("1-0"))
		cancel()

		Eventually(done).Should(Receive(BeNil()))
	})

	It("backs off and keeps reading after a read error", func() {
		w = worker.New(consumer, handler, worker.Config{MaxAttempts: 3, ErrorBackoff: time.Millisecond})
		reads := 0
		consumer.readFn = func(context.Context) ([]queue.Message, error) {
			reads++
			if reads == 1 {
				return nil, errors.New("redis down")
			}
			if reads == 2 {
				return []queue.Message{msg(1)}, nil
			}
			return nil, nil
		}
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() { _ = w.Run(runCtx) }()

		Eventually(consumer.ackedIDs).Should(ConsistOf("1-0"))
	})
})
