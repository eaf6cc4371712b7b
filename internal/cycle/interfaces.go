package cycle

import (
	"context"

	"hyperscribe.app/scribe/internal/model"
)

// Audio is one recorded segment of the encounter.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Transcriber turns audio into transcript lines. previousTail is the end of
// the previous cycle's transcript, given as continuity context.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio, previousTail []model.Line) ([]model.Line, error)
}

// InstructionExtractor returns the complete reconciled instruction list for
// the transcript, not a delta: instructions of known that are still relevant
// must be returned with their uuid.
type InstructionExtractor interface {
	Detect(ctx context.Context, transcript []model.Line, known []model.Instruction) ([]model.Instruction, error)
}

// The per-instruction collaborators below report ok=false with a nil error
// when they decline, and a non-nil error when they fail.

type ParameterSynthesizer interface {
	Synthesize(ctx context.Context, instruction model.Instruction) (model.Parameters, bool, error)
}

type CommandSynthesizer interface {
	Build(ctx context.Context, instruction model.InstructionWithParameters) (model.Command, bool, error)
}

type QuestionnaireUpdater interface {
	Update(ctx context.Context, transcript []model.Line, instruction model.Instruction) (model.InstructionWithCommand, bool, error)
}

// Auditor records each stage's output. Calls are best-effort: an error is
// logged and never interrupts the cycle.
type Auditor interface {
	IdentifiedTranscript(ctx context.Context, lines []model.Line) error
	TranscriptFailed(ctx context.Context, cause error) error
	FoundInstructions(ctx context.Context, instructions []model.Instruction) error
	ComputedParameters(ctx context.Context, instructions []model.InstructionWithParameters) error
	ComputedCommands(ctx context.Context, instructions []model.InstructionWithCommand) error
	ComputedQuestionnaires(ctx context.Context, instructions []model.InstructionWithCommand) error
}

// NopAuditor discards every record.
type NopAuditor struct{}

func (NopAuditor) IdentifiedTranscript(context.Context, []model.Line) error { return nil }
func (NopAuditor) TranscriptFailed(context.Context, error) error            { return nil }
func (NopAuditor) FoundInstructions(context.Context, []model.Instruction) error {
	return nil
}

func (NopAuditor) ComputedParameters(context.Context, []model.InstructionWithParameters) error {
	return nil
}

func (NopAuditor) ComputedCommands(context.Context, []model.InstructionWithCommand) error {
	return nil
}

func (NopAuditor) ComputedQuestionnaires(context.Context, []model.InstructionWithCommand) error {
	return nil
}
