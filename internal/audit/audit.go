// Package audit records the output of each cycle stage. Auditing is
// best-effort: the orchestrator logs and drops any error returned here.
package audit

import (
	"context"
	"errors"
	"time"

	"hyperscribe.app/scribe/common/logger"
	"hyperscribe.app/scribe/internal/cycle"
	"hyperscribe.app/scribe/internal/model"
)

// Entry is one stage's output, scoped to the discussion and cycle found in
// the context's log fields.
type Entry struct {
	DiscussionID string
	Cycle        int
	Stage        string
	ItemCount    int
	Output       any
	At           time.Time
}

// Recorder writes entries to one destination.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Auditor fans each stage out to every recorder. A failing recorder does not
// stop the others; their errors are joined.
type Auditor struct {
	recorders []Recorder
	now       func() time.Time
}

var _ cycle.Auditor = (*Auditor)(nil)

func New(recorders ...Recorder) *Auditor {
	return &Auditor{recorders: recorders, now: time.Now}
}

func (a *Auditor) IdentifiedTranscript(ctx context.Context, lines []model.Line) error {
	return a.record(ctx, model.AuditStageTranscript, len(lines), lines)
}

func (a *Auditor) TranscriptFailed(ctx context.Context, cause error) error {
	return a.record(ctx, model.AuditStageTranscript, 0, map[string]string{"error": cause.Error()})
}

func (a *Auditor) FoundInstructions(ctx context.Context, instructions []model.Instruction) error {
	return a.record(ctx, model.AuditStageInstructions, len(instructions), instructions)
}

func (a *Auditor) ComputedParameters(ctx context.Context, instructions []model.InstructionWithParameters) error {
	return a.record(ctx, model.AuditStageParameters, len(instructions), instructions)
}

func (a *Auditor) ComputedCommands(ctx context.Context, instructions []model.InstructionWithCommand) error {
	return a.record(ctx, model.AuditStageCommands, len(instructions), instructions)
}

func (a *Auditor) ComputedQuestionnaires(ctx context.Context, instructions []model.InstructionWithCommand) error {
	return a.record(ctx, model.AuditStageQuestionnaires, len(instructions), instructions)
}

func (a *Auditor) record(ctx context.Context, stage string, count int, output any) error {
	entry := Entry{Stage: stage, ItemCount: count, Output: output, At: a.now()}
	fields := logger.GetLogFields(ctx)
	if fields.DiscussionID != nil {
		entry.DiscussionID = *fields.DiscussionID
	}
	if fields.Cycle != nil {
		entry.Cycle = *fields.Cycle
	}

	var errs []error
	for _, r := range a.recorders {
		if err := r.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
