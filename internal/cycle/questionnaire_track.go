package cycle

import (
	"context"
	"log/slog"

	"hyperscribe.app/scribe/internal/model"
)

// runQuestionnaireTrack updates each standing questionnaire from the
// transcript. A questionnaire the updater declines is dropped from the
// cycle's output, unlike an unchanged common instruction.
func (o *Orchestrator) runQuestionnaireTrack(ctx context.Context, transcript []model.Line, known []model.Instruction) trackResult {
	res := trackResult{instructions: []model.Instruction{}, effects: []model.Effect{}}
	if len(known) == 0 {
		return res
	}

	outcomes := runBounded(ctx, o.workers(), known, func(ctx context.Context, ins model.Instruction) (model.InstructionWithCommand, bool, error) {
		return o.c.Questionnaires.Update(instructionContext(ctx, ins), transcript, ins)
	})

	updated := make([]model.InstructionWithCommand, 0, len(outcomes))
	for i, out := range outcomes {
		prev := known[i]
		switch {
		case out.err != nil:
			res.stats.QuestionnaireFailures++
			slog.WarnContext(instructionContext(ctx, prev), "questionnaire update failed", "error", out.err)
		case !out.ok:
			res.stats.QuestionnaireDeclines++
		default:
			item := out.value
			item.Instruction = item.Instruction.ClearAnnotations()
			item.UUID = prev.UUID
			item.InstructionType = prev.InstructionType
			if item.Information != prev.Information {
				item.IsUpdated = true
				item.PreviousInformation = prev.Information
			}
			updated = append(updated, item)
		}
	}
	res.stats.Questionnaires = len(updated)

	o.audit(ctx, model.AuditStageQuestionnaires, func(ctx context.Context) error {
		return o.c.Auditor.ComputedQuestionnaires(ctx, updated)
	})

	for i, item := range updated {
		item.Index = i
		res.instructions = append(res.instructions, item.Instruction)
		if !o.cfg.IsLocalData {
			res.effects = append(res.effects, o.effect(model.EffectKindEdit, item))
		}
	}
	return res
}
