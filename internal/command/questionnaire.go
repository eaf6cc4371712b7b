package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"hyperscribe.app/scribe/internal/model"
)

var ErrInvalidQuestionnaire = errors.New("invalid questionnaire")

// Question types.
const (
	QuestionTypeText     = "text"
	QuestionTypeInteger  = "integer"
	QuestionTypeSingle   = "single"
	QuestionTypeMultiple = "multiple"
)

// Questionnaire is the serialized information of a questionnaire instruction.
// Question IDs are fixed by the form; only answers change.
type Questionnaire struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Type     string   `json:"type"`
	Options  []string `json:"options,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Selected []string `json:"selected,omitempty"`
}

// Answer is an update proposed for one question.
type Answer struct {
	QuestionID string   `json:"question_id" jsonschema_description:"ID of the question, copied verbatim from the form"`
	Answer     string   `json:"answer" jsonschema_description:"Free text or integer answer, empty for choice questions"`
	Selected   []string `json:"selected" jsonschema_description:"Chosen options for single or multiple choice questions, copied verbatim"`
}

func ParseQuestionnaire(information string) (Questionnaire, error) {
	var q Questionnaire
	if err := json.Unmarshal([]byte(information), &q); err != nil {
		return Questionnaire{}, fmt.Errorf("%w: %v", ErrInvalidQuestionnaire, err)
	}
	if len(q.Questions) == 0 {
		return Questionnaire{}, fmt.Errorf("%w: no questions", ErrInvalidQuestionnaire)
	}
	seen := make(map[string]bool, len(q.Questions))
	for _, qu := range q.Questions {
		if qu.ID == "" || seen[qu.ID] {
			return Questionnaire{}, fmt.Errorf("%w: missing or duplicate question id %q", ErrInvalidQuestionnaire, qu.ID)
		}
		seen[qu.ID] = true
	}
	return q, nil
}

// Serialize renders the questionnaire as instruction information.
func (q Questionnaire) Serialize() string {
	raw, err := json.Marshal(q)
	if err != nil {
		// Questionnaire holds only strings and slices of strings.
		panic(fmt.Sprintf("marshal questionnaire: %v", err))
	}
	return string(raw)
}

// Apply returns a copy with the answers applied and whether anything changed.
// Answers to unknown question IDs, and selections outside a question's
// options, are ignored.
func (q Questionnaire) Apply(answers []Answer) (Questionnaire, bool) {
	out := Questionnaire{ID: q.ID, Name: q.Name, Questions: make([]Question, len(q.Questions))}
	copy(out.Questions, q.Questions)

	index := make(map[string]int, len(out.Questions))
	for i, qu := range out.Questions {
		index[qu.ID] = i
	}

	changed := false
	for _, a := range answers {
		i, ok := index[a.QuestionID]
		if !ok {
			continue
		}
		qu := out.Questions[i]
		switch qu.Type {
		case QuestionTypeSingle, QuestionTypeMultiple:
			selected := validSelections(qu, a.Selected)
			if qu.Type == QuestionTypeSingle && len(selected) > 1 {
				selected = selected[:1]
			}
			if !slices.Equal(selected, qu.Selected) {
				qu.Selected = selected
				changed = true
			}
		default:
			if a.Answer != qu.Answer {
				qu.Answer = a.Answer
				changed = true
			}
		}
		out.Questions[i] = qu
	}
	return out, changed
}

func validSelections(qu Question, selected []string) []string {
	var out []string
	for _, s := range selected {
		if slices.Contains(qu.Options, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// QuestionnaireCommand builds the edit command for a questionnaire form.
func QuestionnaireCommand(schemaKey, instructionUUID string, q Questionnaire) model.Command {
	responses := make([]map[string]any, 0, len(q.Questions))
	for _, qu := range q.Questions {
		r := map[string]any{"question_id": qu.ID}
		switch qu.Type {
		case QuestionTypeSingle, QuestionTypeMultiple:
			r["selected"] = append([]string{}, qu.Selected...)
		default:
			r["answer"] = qu.Answer
		}
		responses = append(responses, r)
	}
	return model.Command{
		UUID: instructionUUID,
		Type: schemaKey,
		Payload: map[string]any{
			"questionnaire_id": q.ID,
			"responses":        responses,
		},
	}
}
