package cycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"hyperscribe.app/scribe/common/logger"
	"hyperscribe.app/scribe/internal/model"
)

// runCommonTrack reconciles the extractor's view of the transcript against the
// known common instructions and synthesizes commands for what changed.
func (o *Orchestrator) runCommonTrack(ctx context.Context, transcript []model.Line, known []model.Instruction) trackResult {
	detected, err := o.c.Extractor.Detect(ctx, transcript, known)
	if err != nil {
		return keepKnown(ctx, known, err)
	}

	past := make(map[string]model.Instruction, len(known))
	for _, ins := range known {
		past[ins.UUID] = ins
	}

	instructions, computed := annotate(detected, past)
	stats := Stats{Detected: len(instructions)}
	for _, ins := range instructions {
		switch {
		case ins.IsNew:
			stats.New++
		case ins.IsUpdated:
			stats.Updated++
		default:
			stats.Unchanged++
		}
	}

	o.audit(ctx, model.AuditStageInstructions, func(ctx context.Context) error {
		return o.c.Auditor.FoundInstructions(ctx, instructions)
	})

	res := trackResult{instructions: instructions, effects: []model.Effect{}, stats: stats}
	if len(computed) == 0 {
		return res
	}

	workers := o.workers()

	paramOutcomes := runBounded(ctx, workers, computed, func(ctx context.Context, ins model.Instruction) (model.InstructionWithParameters, bool, error) {
		ctx = instructionContext(ctx, ins)
		params, ok, err := o.c.Parameters.Synthesize(ctx, ins)
		return model.InstructionWithParameters{Instruction: ins, Parameters: params}, ok, err
	})
	parameterized := make([]model.InstructionWithParameters, 0, len(paramOutcomes))
	for i, out := range paramOutcomes {
		switch {
		case out.err != nil:
			res.stats.ParameterFailures++
			slog.WarnContext(instructionContext(ctx, computed[i]), "parameter synthesis failed", "error", out.err)
		case !out.ok:
			res.stats.ParameterDeclines++
		default:
			parameterized = append(parameterized, out.value)
		}
	}
	res.stats.Parameterized = len(parameterized)

	o.audit(ctx, model.AuditStageParameters, func(ctx context.Context) error {
		return o.c.Auditor.ComputedParameters(ctx, parameterized)
	})

	cmdOutcomes := runBounded(ctx, workers, parameterized, func(ctx context.Context, ins model.InstructionWithParameters) (model.InstructionWithCommand, bool, error) {
		ctx = instructionContext(ctx, ins.Instruction)
		cmd, ok, err := o.c.Commands.Build(ctx, ins)
		return model.InstructionWithCommand{InstructionWithParameters: ins, Command: cmd}, ok, err
	})
	built := make([]model.InstructionWithCommand, 0, len(cmdOutcomes))
	for i, out := range cmdOutcomes {
		switch {
		case out.err != nil:
			res.stats.CommandFailures++
			slog.WarnContext(instructionContext(ctx, parameterized[i].Instruction), "command synthesis failed", "error", out.err)
		case !out.ok:
			res.stats.CommandDeclines++
		default:
			built = append(built, out.value)
		}
	}
	res.stats.Commands = len(built)

	o.audit(ctx, model.AuditStageCommands, func(ctx context.Context) error {
		return o.c.Auditor.ComputedCommands(ctx, built)
	})

	if o.cfg.IsLocalData {
		return res
	}
	for _, ins := range built {
		kind := model.EffectKindCreate
		if _, ok := past[ins.UUID]; ok {
			kind = model.EffectKindEdit
		}
		res.effects = append(res.effects, o.effect(kind, ins))
	}
	return res
}

// annotate sets the per-cycle flags of each detected instruction against the
// previous cycle's set and returns the annotated list along with the new or
// updated subset. Missing or repeated uuids get a fresh one so identities stay
// unique within the cycle.
func annotate(detected []model.Instruction, past map[string]model.Instruction) (all, computed []model.Instruction) {
	all = make([]model.Instruction, 0, len(detected))
	computed = []model.Instruction{}
	seen := make(map[string]bool, len(detected))

	for i, ins := range detected {
		ins = ins.ClearAnnotations()
		ins.Index = i
		if ins.UUID == "" || seen[ins.UUID] {
			ins.UUID = uuid.NewString()
		}
		seen[ins.UUID] = true

		prev, known := past[ins.UUID]
		switch {
		case !known:
			ins.IsNew = true
		case prev.Information != ins.Information:
			ins.IsUpdated = true
			ins.PreviousInformation = prev.Information
		}

		all = append(all, ins)
		if ins.IsNew || ins.IsUpdated {
			computed = append(computed, ins)
		}
	}
	return all, computed
}

func instructionContext(ctx context.Context, ins model.Instruction) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{
		InstructionUUID: logger.Ptr(ins.UUID),
		InstructionType: logger.Ptr(ins.InstructionType),
	})
}

func (o *Orchestrator) workers() int {
	return o.cfg.EffectiveMaxWorkers()
}

// keepKnown is the common track's result when extraction fails: the known
// instructions survive with their flags cleared and nothing is synthesized.
func keepKnown(ctx context.Context, known []model.Instruction, cause error) trackResult {
	err := fmt.Errorf("%w: %w", ErrExtraction, cause)
	slog.WarnContext(ctx, "instruction extraction failed, keeping known instructions", "error", err, "known", len(known))
	kept := make([]model.Instruction, len(known))
	for i, ins := range known {
		kept[i] = ins.ClearAnnotations()
	}
	return trackResult{
		instructions: kept,
		effects:      []model.Effect{},
		stats:        Stats{ExtractionFailed: true, Unchanged: len(kept)},
		err:          err,
	}
}
