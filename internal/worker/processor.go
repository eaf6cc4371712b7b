package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hyperscribe.app/scribe/common/logger"
	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/cycle"
	"hyperscribe.app/scribe/internal/model"
	"hyperscribe.app/scribe/internal/queue"
	"hyperscribe.app/scribe/internal/store"
)

// Processor runs cycles for chunk messages and owns the discussion state
// around them: it reads the state once before the cycle and writes it once
// after.
type Processor struct {
	cycles      CycleRunner
	registry    *command.Registry
	discussions store.DiscussionStore
	commands    store.CommandStore    // optional
	effects     queue.EffectPublisher // optional
	now         func() time.Time
}

type ProcessorDeps struct {
	Cycles      CycleRunner
	Registry    *command.Registry
	Discussions store.DiscussionStore
	Commands    store.CommandStore
	Effects     queue.EffectPublisher
}

func NewProcessor(deps ProcessorDeps) *Processor {
	return &Processor{
		cycles:      deps.Cycles,
		registry:    deps.Registry,
		discussions: deps.Discussions,
		commands:    deps.Commands,
		effects:     deps.Effects,
		now:         time.Now,
	}
}

// WithClock replaces the clock used to stamp state updates.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

func (p *Processor) Process(ctx context.Context, msg queue.Message) error {
	switch msg.TaskType {
	case queue.TaskTypeAudioChunk, "":
		return p.processChunk(ctx, msg)
	case queue.TaskTypeResync:
		return p.processResync(ctx, msg)
	default:
		return fmt.Errorf("unknown task type %q", msg.TaskType)
	}
}

func (p *Processor) processChunk(ctx context.Context, msg queue.Message) error {
	state, err := p.discussions.Get(ctx, msg.DiscussionID)
	if err != nil {
		return fmt.Errorf("loading discussion: %w", err)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{Cycle: logger.Ptr(state.Cycle)})

	previous := state.PreviousInstructions
	if state.IsFresh() && p.commands != nil {
		previous, err = p.resync(ctx, msg.DiscussionID, previous)
		if err != nil {
			return err
		}
	}

	res := p.cycles.RunCycle(ctx, cycle.Input{
		Audio: cycle.Audio{
			Data:        msg.Audio,
			Filename:    msg.Filename,
			ContentType: msg.ContentType,
		},
		PreviousInstructions:   previous,
		PreviousTranscriptTail: state.PreviousTranscriptTail,
	})
	if res.Degraded() {
		if errors.Is(res.Err, cycle.ErrEmptyTranscript) {
			slog.InfoContext(ctx, "chunk had no speech, discussion left unchanged")
			return nil
		}
		// Retried, then dead-lettered with its audio.
		return fmt.Errorf("cycle degraded: %w", res.Err)
	}

	// Effects go out before the state is written: a lost write then repeats
	// effects on the next cycle instead of losing them.
	if p.effects != nil {
		if err := p.effects.Publish(ctx, msg.DiscussionID, state.Cycle, res.Effects); err != nil {
			return fmt.Errorf("publishing effects: %w", err)
		}
	}
	if p.commands != nil && len(res.Effects) > 0 {
		if err := p.commands.Apply(ctx, msg.DiscussionID, res.Effects); err != nil {
			slog.WarnContext(ctx, "failed to mirror effects to command store", "error", err)
		}
	}

	next := state.Advance(p.now(), res.Instructions, res.TranscriptTail)
	if err := p.discussions.Set(ctx, msg.DiscussionID, next); err != nil {
		slog.ErrorContext(ctx, "failed to persist discussion state, published effects stand",
			"error", err,
			"effects", len(res.Effects))
		return nil
	}

	slog.InfoContext(ctx, "chunk processed",
		"instructions", len(res.Instructions),
		"effects", len(res.Effects),
		"next_cycle", next.Cycle)
	return nil
}

// processResync replaces the known instructions of a discussion with the
// identities of the commands active in the system of record.
func (p *Processor) processResync(ctx context.Context, msg queue.Message) error {
	if p.commands == nil {
		slog.WarnContext(ctx, "resync requested without a command store, ignoring")
		return nil
	}
	state, err := p.discussions.Get(ctx, msg.DiscussionID)
	if err != nil {
		return fmt.Errorf("loading discussion: %w", err)
	}
	instructions, err := p.resync(ctx, msg.DiscussionID, state.PreviousInstructions)
	if err != nil {
		return err
	}
	state.PreviousInstructions = instructions
	state.UpdatedAt = p.now()
	if err := p.discussions.Set(ctx, msg.DiscussionID, state); err != nil {
		return fmt.Errorf("saving discussion: %w", err)
	}
	return nil
}

func (p *Processor) resync(ctx context.Context, discussionID string, known []model.Instruction) ([]model.Instruction, error) {
	external, err := p.commands.ListActive(ctx, discussionID)
	if err != nil {
		return nil, fmt.Errorf("listing active commands: %w", err)
	}
	instructions := cycle.Resync(p.registry, external, known)
	slog.InfoContext(ctx, "instruction identities resynced",
		"external", len(external),
		"known", len(known),
		"instructions", len(instructions))
	return instructions, nil
}
