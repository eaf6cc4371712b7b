package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"hyperscribe.app/scribe/common/llm"
	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/model"
)

type InstructionsResponse struct {
	Instructions []DetectedInstruction `json:"instructions" jsonschema_description:"Every instruction of the discussion so far, known ones included"`
}

type DetectedInstruction struct {
	UUID            string `json:"uuid" jsonschema_description:"UUID of the known instruction this continues, empty for a new instruction"`
	InstructionType string `json:"instruction_type" jsonschema_description:"One of the instruction types listed in the prompt"`
	Information     string `json:"information" jsonschema_description:"Everything said about the instruction so far, as a self-contained note"`
}

var instructionsSchema = llm.GenerateSchema[InstructionsResponse]()

// Extractor reconciles the instructions spoken in a transcript with the ones
// already known for the discussion.
type Extractor struct {
	llm      llm.Client
	registry *command.Registry
	policy   llm.RetryPolicy
}

func NewExtractor(client llm.Client, registry *command.Registry) *Extractor {
	return &Extractor{llm: client, registry: registry, policy: llm.DefaultRetryPolicy}
}

func (e *Extractor) WithRetryPolicy(p llm.RetryPolicy) *Extractor {
	e.policy = p
	return e
}

// Detect returns the full instruction list, not a delta. A returned UUID that
// matches no known instruction is replaced: only the extractor's own
// continuation of a known instruction may reuse its identity.
func (e *Extractor) Detect(ctx context.Context, transcript []model.Line, known []model.Instruction) ([]model.Instruction, error) {
	prompt, err := e.buildPrompt(transcript, known)
	if err != nil {
		return nil, err
	}

	var response InstructionsResponse
	start := time.Now()
	resp, err := llm.ChatWithRetry(ctx, e.llm, e.policy, llm.Request{
		SystemPrompt: instructionsSystemPrompt,
		UserPrompt:   prompt,
		SchemaName:   "instructions_response",
		Schema:       instructionsSchema,
		Temperature:  llm.Temp(0),
	}, &response)
	if err != nil {
		return nil, fmt.Errorf("instruction extraction: %w", err)
	}

	knownUUIDs := make(map[string]bool, len(known))
	for _, k := range known {
		knownUUIDs[k.UUID] = true
	}

	instructions := make([]model.Instruction, 0, len(response.Instructions))
	for i, d := range response.Instructions {
		id := strings.TrimSpace(d.UUID)
		if !knownUUIDs[id] {
			id = uuid.NewString()
		}
		instructions = append(instructions, model.Instruction{
			UUID:            id,
			Index:           i,
			InstructionType: strings.TrimSpace(d.InstructionType),
			Information:     strings.TrimSpace(d.Information),
		})
	}

	attrs := []any{
		"known", len(known),
		"detected", len(instructions),
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if resp != nil {
		attrs = append(attrs, "prompt_tokens", resp.PromptTokens, "completion_tokens", resp.CompletionTokens)
	}
	slog.InfoContext(ctx, "instructions detected", attrs...)

	return instructions, nil
}

func (e *Extractor) buildPrompt(transcript []model.Line, known []model.Instruction) (string, error) {
	var sb strings.Builder

	sb.WriteString("## Instruction types\n")
	for _, s := range e.registry.Specs(model.CategoryCommon) {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", s.Type, s.Description))
	}

	sb.WriteString("\n## Known instructions\n")
	if len(known) == 0 {
		sb.WriteString("None yet.\n")
	} else {
		items := make([]DetectedInstruction, len(known))
		for i, k := range known {
			items[i] = DetectedInstruction{UUID: k.UUID, InstructionType: k.InstructionType, Information: k.Information}
		}
		raw, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal known instructions: %w", err)
		}
		sb.Write(raw)
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Transcript\n")
	sb.WriteString(model.TranscriptText(transcript))
	sb.WriteString("\n")

	return sb.String(), nil
}
