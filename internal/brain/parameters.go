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

// ParameterSynthesizer fills the parameter schema of an instruction's type
// from its information.
type ParameterSynthesizer struct {
	llm      llm.Client
	registry *command.Registry
	policy   llm.RetryPolicy
}

func NewParameterSynthesizer(client llm.Client, registry *command.Registry) *ParameterSynthesizer {
	return &ParameterSynthesizer{llm: client, registry: registry, policy: llm.DefaultRetryPolicy}
}

func (p *ParameterSynthesizer) WithRetryPolicy(policy llm.RetryPolicy) *ParameterSynthesizer {
	p.policy = policy
	return p
}

// Synthesize declines instructions whose type has no parameter schema and
// instructions without information.
func (p *ParameterSynthesizer) Synthesize(ctx context.Context, ins model.Instruction) (model.Parameters, bool, error) {
	spec, ok := p.registry.Lookup(ins.InstructionType)
	if !ok || spec.Schema == nil {
		slog.DebugContext(ctx, "no parameter schema for instruction type")
		return nil, false, nil
	}
	if strings.TrimSpace(ins.Information) == "" {
		return nil, false, nil
	}

	var params map[string]any
	_, err := llm.ChatWithRetry(ctx, p.llm, p.policy, llm.Request{
		SystemPrompt: parametersSystemPrompt,
		UserPrompt:   buildParametersPrompt(spec, ins),
		SchemaName:   spec.SchemaKey + "_parameters",
		Schema:       spec.Schema,
		Temperature:  llm.Temp(0),
	}, &params)
	if err != nil {
		return nil, false, fmt.Errorf("parameters for %s: %w", ins.InstructionType, err)
	}
	if len(params) == 0 {
		return nil, false, nil
	}
	return model.Parameters(params), true, nil
}

func buildParametersPrompt(spec command.Spec, ins model.Instruction) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Instruction type\n%s: %s\n\n", spec.Type, spec.Description))
	if ins.IsUpdated && ins.PreviousInformation != "" {
		sb.WriteString("## Previous information (superseded)\n")
		sb.WriteString(ins.PreviousInformation)
		sb.WriteString("\n\n")
	}
	sb.WriteString("## Information\n")
	sb.WriteString(ins.Information)
	sb.WriteString("\n")
	return sb.String()
}
