package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"hyperscribe.app/scribe/common/llm"
	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/model"
)

type AnswersResponse struct {
	Answers []command.Answer `json:"answers" jsonschema_description:"Answers supported by the transcript, only for questions the transcript addresses"`
}

var answersSchema = llm.GenerateSchema[AnswersResponse]()

// QuestionnaireUpdater answers the questions of a standing form from the
// transcript.
type QuestionnaireUpdater struct {
	llm      llm.Client
	registry *command.Registry
	policy   llm.RetryPolicy
}

func NewQuestionnaireUpdater(client llm.Client, registry *command.Registry) *QuestionnaireUpdater {
	return &QuestionnaireUpdater{llm: client, registry: registry, policy: llm.DefaultRetryPolicy}
}

func (q *QuestionnaireUpdater) WithRetryPolicy(p llm.RetryPolicy) *QuestionnaireUpdater {
	q.policy = p
	return q
}

// Update declines only when there is no form to work on: a type outside the
// questionnaire category. A form the transcript does not touch comes back
// as is, so it stays standing for later chunks.
func (q *QuestionnaireUpdater) Update(ctx context.Context, transcript []model.Line, ins model.Instruction) (model.InstructionWithCommand, bool, error) {
	spec, ok := q.registry.Lookup(ins.InstructionType)
	if !ok || spec.Category != model.CategoryQuestionnaire {
		return model.InstructionWithCommand{}, false, nil
	}

	form, err := command.ParseQuestionnaire(ins.Information)
	if err != nil {
		return model.InstructionWithCommand{}, false, fmt.Errorf("%s %s: %w", ins.InstructionType, ins.UUID, err)
	}

	var response AnswersResponse
	_, err = llm.ChatWithRetry(ctx, q.llm, q.policy, llm.Request{
		SystemPrompt: questionnaireSystemPrompt,
		UserPrompt:   buildQuestionnairePrompt(ins.Information, transcript),
		SchemaName:   "questionnaire_answers",
		Schema:       answersSchema,
		Temperature:  llm.Temp(0),
	}, &response)
	if err != nil {
		return model.InstructionWithCommand{}, false, fmt.Errorf("questionnaire answers: %w", err)
	}

	updated, changed := form.Apply(response.Answers)
	if !changed {
		slog.DebugContext(ctx, "questionnaire unchanged", "answers", len(response.Answers))
		return model.InstructionWithCommand{
			InstructionWithParameters: model.InstructionWithParameters{
				Instruction: ins,
				Parameters:  model.Parameters{"questionnaire_id": form.ID, "answers": []any{}},
			},
			Command: command.QuestionnaireCommand(spec.SchemaKey, ins.UUID, form),
		}, true, nil
	}

	answers := make([]any, len(response.Answers))
	for i, a := range response.Answers {
		answers[i] = a
	}
	out := ins
	out.Information = updated.Serialize()

	return model.InstructionWithCommand{
		InstructionWithParameters: model.InstructionWithParameters{
			Instruction: out,
			Parameters:  model.Parameters{"questionnaire_id": updated.ID, "answers": answers},
		},
		Command: command.QuestionnaireCommand(spec.SchemaKey, ins.UUID, updated),
	}, true, nil
}

func buildQuestionnairePrompt(form string, transcript []model.Line) string {
	var sb strings.Builder
	sb.WriteString("## Form\n")
	sb.WriteString(form)
	sb.WriteString("\n\n## Transcript\n")
	sb.WriteString(model.TranscriptText(transcript))
	sb.WriteString("\n")
	return sb.String()
}
