package worker_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/cycle"
	"hyperscribe.app/scribe/internal/model"
	"hyperscribe.app/scribe/internal/queue"
	"hyperscribe.app/scribe/internal/store"
	"hyperscribe.app/scribe/internal/worker"
)

var _ = Describe("Processor", func() {
	var (
		ctx         context.Context
		now         time.Time
		cycles      *mockCycles
		discussions *store.MemoryDiscussionStore
		commands    *store.MemoryCommandStore
		publisher   *mockPublisher
		deps        worker.ProcessorDeps
	)

	planEffect := model.Effect{
		ID:              7,
		Kind:            model.EffectKindCreate,
		InstructionUUID: "u1",
		Command:         model.Command{UUID: "u1", Type: "plan", Payload: map[string]any{"narrative": "rest"}},
	}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		cycles = &mockCycles{}
		discussions = store.NewMemoryDiscussionStore().WithClock(func() time.Time { return now })
		commands = store.NewMemoryCommandStore()
		publisher = &mockPublisher{}
		deps = worker.ProcessorDeps{
			Cycles:      cycles,
			Registry:    command.DefaultRegistry(),
			Discussions: discussions,
			Effects:     publisher,
		}
	})

	chunk := func(discussionID string) queue.Message {
		return queue.Message{
			ID:           "1-0",
			TaskType:     queue.TaskTypeAudioChunk,
			DiscussionID: discussionID,
			Audio:        []byte("pcm"),
			Filename:     "chunk_001.mp3",
			ContentType:  "audio/mpeg",
		}
	}

	Describe("audio chunks", func() {
		It("runs a cycle and advances the discussion", func() {
			cycles.fn = func(context.Context, cycle.Input) cycle.Result {
				return cycle.Result{
					Instructions:   []model.Instruction{{UUID: "u1", InstructionType: "Plan", Information: "rest"}},
					Effects:        []model.Effect{planEffect},
					TranscriptTail: []model.Line{{Speaker: "Clinician", Text: "rest up"}},
				}
			}
			p := worker.NewProcessor(deps).WithClock(func() time.Time { return now.Add(time.Minute) })

			Expect(p.Process(ctx, chunk("d1"))).To(Succeed())

			Expect(cycles.lastInput.Audio).To(Equal(cycle.Audio{Data: []byte("pcm"), Filename: "chunk_001.mp3", ContentType: "audio/mpeg"}))
			Expect(cycles.lastInput.PreviousInstructions).To(BeEmpty())

			Expect(publisher.calls).To(HaveLen(1))
			Expect(publisher.calls[0].discussionID).To(Equal("d1"))
			Expect(publisher.calls[0].cycle).To(Equal(1))
			Expect(publisher.calls[0].effects).To(Equal([]model.Effect{planEffect}))

			state, err := discussions.Peek(ctx, "d1")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Cycle).To(Equal(2))
			Expect(state.UpdatedAt).To(Equal(now.Add(time.Minute)))
			Expect(state.PreviousInstructions).To(HaveLen(1))
			Expect(state.PreviousTranscriptTail).To(Equal([]model.Line{{Speaker: "Clinician", Text: "rest up"}}))
		})

		It("feeds the previous state into the next cycle", func() {
			prior := model.NewDiscussionState(now)
			prior.Cycle = 4
			prior.PreviousInstructions = []model.Instruction{{UUID: "u1", InstructionType: "Plan", Information: "rest"}}
			prior.PreviousTranscriptTail = []model.Line{{Speaker: "Patient", Text: "ok"}}
			Expect(discussions.Set(ctx, "d1", prior)).To(Succeed())

			Expect(worker.NewProcessor(deps).Process(ctx, chunk("d1"))).To(Succeed())

			Expect(cycles.lastInput.PreviousInstructions).To(Equal(prior.PreviousInstructions))
			Expect(cycles.lastInput.PreviousTranscriptTail).To(Equal(prior.PreviousTranscriptTail))
			Expect(publisher.calls[0].cycle).To(Equal(4))
		})

		It("resyncs identities of a fresh discussion from the command store", func() {
			commands.Seed("d1", model.ExternalCommand{UUID: "ext-1", Schema: "plan"})
			deps.Commands = commands

			Expect(worker.NewProcessor(deps).Process(ctx, chunk("d1"))).To(Succeed())

			Expect(cycles.lastInput.PreviousInstructions).To(Equal([]model.Instruction{
				{UUID: "ext-1", Index: 0, InstructionType: "Plan"},
			}))
		})

		It("mirrors effects into the command store", func() {
			deps.Commands = commands
			cycles.fn = func(context.Context, cycle.Input) cycle.Result {
				return cycle.Result{Effects: []model.Effect{planEffect}}
			}

			Expect(worker.NewProcessor(deps).Process(ctx, chunk("d1"))).To(Succeed())

			active, err := commands.ListActive(ctx, "d1")
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(active[0].UUID).To(Equal("u1"))
		})

		It("leaves the discussion untouched for a silent chunk", func() {
			cycles.fn = func(_ context.Context, in cycle.Input) cycle.Result {
				return cycle.Result{Instructions: in.PreviousInstructions, Err: fmt.Errorf("%w: nothing said", cycle.ErrEmptyTranscript)}
			}

			Expect(worker.NewProcessor(deps).Process(ctx, chunk("d1"))).To(Succeed())

			Expect(publisher.calls).To(BeEmpty())
			state, err := discussions.Peek(ctx, "d1")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Cycle).To(Equal(1))
		})

		It("fails a degraded cycle so the chunk is retried", func() {
			cycles.fn = func(context.Context, cycle.Input) cycle.Result {
				return cycle.Result{Err: fmt.Errorf("%w: timeout", cycle.ErrTranscription)}
			}

			err := worker.NewProcessor(deps).Process(ctx, chunk("d1"))

			Expect(errors.Is(err, cycle.ErrTranscription)).To(BeTrue())
			Expect(publisher.calls).To(BeEmpty())
		})

		It("fails without advancing when effects cannot be published", func() {
			publisher.err = errors.New("stream unavailable")

			Expect(worker.NewProcessor(deps).Process(ctx, chunk("d1"))).To(MatchError(ContainSubstring("publishing effects")))

			state, err := discussions.Peek(ctx, "d1")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Cycle).To(Equal(1))
		})

		It("keeps published effects when the state cannot be saved", func() {
			deps.Discussions = failingDiscussionStore{inner: discussions}
			cycles.fn = func(context.Context, cycle.Input) cycle.Result {
				return cycle.Result{Effects: []model.Effect{planEffect}}
			}

			Expect(worker.NewProcessor(deps).Process(ctx, chunk("d1"))).To(Succeed())
			Expect(publisher.calls).To(HaveLen(1))
		})

		It("works without a publisher", func() {
			deps.Effects = nil

			Expect(worker.NewProcessor(deps).Process(ctx, chunk("d1"))).To(Succeed())
		})
	})

	Describe("resync tasks", func() {
		resync := queue.Message{ID: "2-0", TaskType: queue.TaskTypeResync, DiscussionID: "d1"}

		It("replaces known identities with the active commands", func() {
			prior := model.NewDiscussionState(now)
			prior.Cycle = 3
			prior.PreviousInstructions = []model.Instruction{{UUID: "old", InstructionType: "Plan", Information: "rest"}}
			Expect(discussions.Set(ctx, "d1", prior)).To(Succeed())
			commands.Seed("d1", model.ExternalCommand{UUID: "ext-1", Schema: "plan"})
			deps.Commands = commands

			Expect(worker.NewProcessor(deps).Process(ctx, resync)).To(Succeed())

			state, err := discussions.Peek(ctx, "d1")
			Expect(err).NotTo(HaveOccurred())
			Expect(state.Cycle).To(Equal(3))
			Expect(state.PreviousInstructions).To(Equal([]model.Instruction{
				{UUID: "ext-1", Index: 0, InstructionType: "Plan", Information: "rest"},
			}))
			Expect(cycles.callCount).To(BeZero())
		})

		It("is ignored without a command store", func() {
			Expect(worker.NewProcessor(deps).Process(ctx, resync)).To(Succeed())

			_, err := discussions.Peek(ctx, "d1")
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})
	})

	It("rejects unknown task types", func() {
		msg := queue.Message{TaskType: "bogus", DiscussionID: "d1"}

		Expect(worker.NewProcessor(deps).Process(ctx, msg)).To(MatchError(ContainSubstring("unknown task type")))
	})
})
