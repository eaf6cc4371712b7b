package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"hyperscribe.app/scribe/common/logger"
	"hyperscribe.app/scribe/core/config"
	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/model"
)

var (
	ErrTranscription   = errors.New("transcription failed")
	ErrEmptyTranscript = errors.New("empty transcript")
	ErrExtraction      = errors.New("instruction extraction failed")
)

// Collaborators are the external capabilities a cycle calls into.
type Collaborators struct {
	Transcriber    Transcriber
	Extractor      InstructionExtractor
	Parameters     ParameterSynthesizer
	Commands       CommandSynthesizer
	Questionnaires QuestionnaireUpdater
	Auditor        Auditor // optional
	NewEffectID    func() int64
}

// Input is what a caller knows about a discussion before the cycle runs.
type Input struct {
	Audio                  Audio
	PreviousInstructions   []model.Instruction
	PreviousTranscriptTail []model.Line
}

// Result is the outcome of one cycle. On a degraded cycle Instructions is the
// previous instruction list untouched, and Err says why.
type Result struct {
	Instructions   []model.Instruction
	Effects        []model.Effect
	TranscriptTail []model.Line
	Transcript     []model.Line
	Stats          Stats
	Err            error
}

// Degraded reports whether the cycle was turned into a no-op.
func (r Result) Degraded() bool {
	return r.Err != nil
}

// Stats counts what happened in each stage of a cycle.
type Stats struct {
	TranscriptLines       int
	Detected              int
	New                   int
	Updated               int
	Unchanged             int
	Parameterized         int
	ParameterDeclines     int
	ParameterFailures     int
	Commands              int
	CommandDeclines       int
	CommandFailures       int
	Questionnaires        int
	QuestionnaireDeclines int
	QuestionnaireFailures int
	ExtractionFailed      bool
}

type Orchestrator struct {
	cfg      config.CycleConfig
	registry *command.Registry
	c        Collaborators
}

func NewOrchestrator(cfg config.CycleConfig, registry *command.Registry, c Collaborators) *Orchestrator {
	if c.Auditor == nil {
		c.Auditor = NopAuditor{}
	}
	if cfg.ExtractorFailure == "" {
		cfg.ExtractorFailure = config.ExtractorFailureKeepKnown
	}
	return &Orchestrator{cfg: cfg, registry: registry, c: c}
}

// RunCycle turns one audio segment into the discussion's updated instruction
// list and the effects to apply to the system of record. It never returns an
// error: failures either degrade the whole cycle (Result.Err) or shrink the
// effect set of a single instruction.
func (o *Orchestrator) RunCycle(ctx context.Context, in Input) Result {
	sc := logger.StartSpan(ctx, "cycle.run")
	defer sc.End()
	ctx = sc.Context()
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "scribe.cycle.orchestrator"})

	transcript, err := o.c.Transcriber.Transcribe(ctx, in.Audio, in.PreviousTranscriptTail)
	if err == nil && len(transcript) == 0 {
		err = ErrEmptyTranscript
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrTranscription, err)
		sc.RecordError(err)
		slog.WarnContext(ctx, "transcription failed, cycle degraded to no-op", "error", err)
		o.audit(ctx, model.AuditStageTranscript, func(ctx context.Context) error {
			return o.c.Auditor.TranscriptFailed(ctx, err)
		})
		return o.degraded(in, err)
	}

	o.audit(ctx, model.AuditStageTranscript, func(ctx context.Context) error {
		return o.c.Auditor.IdentifiedTranscript(ctx, transcript)
	})

	knownCommon, knownQuestionnaires := o.registry.Partition(in.PreviousInstructions)

	var (
		wg            sync.WaitGroup
		common        trackResult
		questionnaire trackResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		common = o.runTrack(ctx, "common", func(ctx context.Context) trackResult {
			return o.runCommonTrack(ctx, transcript, knownCommon)
		}, func(ctx context.Context, err error) trackResult {
			return keepKnown(ctx, knownCommon, err)
		})
	}()
	go func() {
		defer wg.Done()
		questionnaire = o.runTrack(ctx, "questionnaire", func(ctx context.Context) trackResult {
			return o.runQuestionnaireTrack(ctx, transcript, knownQuestionnaires)
		}, func(context.Context, error) trackResult {
			return trackResult{
				instructions: []model.Instruction{},
				effects:      []model.Effect{},
				stats:        Stats{QuestionnaireFailures: len(knownQuestionnaires)},
			}
		})
	}()
	wg.Wait()

	if common.err != nil && o.cfg.ExtractorFailure == config.ExtractorFailureAbort {
		sc.RecordError(common.err)
		slog.WarnContext(ctx, "instruction extraction failed, cycle degraded to no-op", "error", common.err)
		return o.degraded(in, common.err)
	}

	instructions := make([]model.Instruction, 0, len(common.instructions)+len(questionnaire.instructions))
	instructions = append(instructions, common.instructions...)
	instructions = append(instructions, questionnaire.instructions...)

	effects := make([]model.Effect, 0, len(common.effects)+len(questionnaire.effects))
	effects = append(effects, common.effects...)
	effects = append(effects, questionnaire.effects...)

	stats := common.stats
	stats.TranscriptLines = len(transcript)
	stats.Questionnaires = questionnaire.stats.Questionnaires
	stats.QuestionnaireDeclines = questionnaire.stats.QuestionnaireDeclines
	stats.QuestionnaireFailures = questionnaire.stats.QuestionnaireFailures

	sc.SetAttributes(
		attribute.Int("cycle.instructions", len(instructions)),
		attribute.Int("cycle.effects", len(effects)),
	)
	slog.InfoContext(ctx, "cycle completed",
		"transcript_lines", stats.TranscriptLines,
		"instructions", len(instructions),
		"new", stats.New,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"commands", stats.Commands,
		"questionnaires", stats.Questionnaires,
		"effects", len(effects),
		"extraction_failed", stats.ExtractionFailed)

	return Result{
		Instructions:   instructions,
		Effects:        effects,
		TranscriptTail: TranscriptTail(transcript, o.cfg.TranscriptOverlapWords),
		Transcript:     transcript,
		Stats:          stats,
	}
}

func (o *Orchestrator) degraded(in Input, err error) Result {
	return Result{
		Instructions:   in.PreviousInstructions,
		Effects:        []model.Effect{},
		TranscriptTail: []model.Line{},
		Err:            err,
	}
}

// runTrack runs one track under its own span and log fields. A panic inside
// the track is handed to onPanic, which decides what the track still yields.
func (o *Orchestrator) runTrack(ctx context.Context, track string, fn func(ctx context.Context) trackResult, onPanic func(ctx context.Context, err error) trackResult) (res trackResult) {
	sc := logger.StartSpan(ctx, "cycle.track."+track)
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Track: logger.Ptr(track)})

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("track %s panicked: %v", track, r)
			sc.RecordError(err)
			slog.ErrorContext(ctx, "track panicked", "panic", r)
			res = onPanic(ctx, err)
		}
	}()

	return fn(ctx)
}

// audit records one stage. Auditing is best-effort: failures and panics are
// logged and swallowed.
func (o *Orchestrator) audit(ctx context.Context, stage string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			slog.WarnContext(ctx, "auditor panicked", "stage", stage, "panic", r)
		}
	}()
	if err := fn(ctx); err != nil {
		slog.WarnContext(ctx, "failed to record audit", "stage", stage, "error", err)
	}
}

func (o *Orchestrator) effect(kind model.EffectKind, ins model.InstructionWithCommand) model.Effect {
	e := model.Effect{Kind: kind, InstructionUUID: ins.UUID, Command: ins.Command}
	if o.c.NewEffectID != nil {
		e.ID = o.c.NewEffectID()
	}
	return e
}

type trackResult struct {
	instructions []model.Instruction
	effects      []model.Effect
	stats        Stats
	err          error
}
