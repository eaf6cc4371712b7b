package command

import (
	"context"
	"fmt"
	"sort"

	"hyperscribe.app/scribe/internal/model"
)

// BuildFunc turns synthesized parameters into a command. ok=false declines:
// the parameters do not carry enough to build a meaningful command.
type BuildFunc func(instruction model.InstructionWithParameters) (cmd model.Command, ok bool, err error)

// Spec is the capability set of one instruction type.
type Spec struct {
	Type        string
	Category    model.Category
	Description string // shown to the extractor
	SchemaKey   string // schema key of the command in the system of record
	Schema      any    // parameter response schema; nil for questionnaires
	Build       BuildFunc
}

// Registry maps an instruction type tag to its Spec. It is built once at
// startup and read concurrently afterwards.
type Registry struct {
	specs       map[string]Spec
	bySchemaKey map[string]string
	order       []string
}

func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{
		specs:       make(map[string]Spec, len(specs)),
		bySchemaKey: make(map[string]string, len(specs)),
	}
	for _, s := range specs {
		if s.Type == "" {
			return nil, fmt.Errorf("spec without type")
		}
		if _, dup := r.specs[s.Type]; dup {
			return nil, fmt.Errorf("duplicate instruction type %q", s.Type)
		}
		if s.Category != model.CategoryCommon && s.Category != model.CategoryQuestionnaire {
			return nil, fmt.Errorf("instruction type %q: unknown category %q", s.Type, s.Category)
		}
		r.specs[s.Type] = s
		r.order = append(r.order, s.Type)
		if s.SchemaKey != "" {
			r.bySchemaKey[s.SchemaKey] = s.Type
		}
	}
	return r, nil
}

// Lookup returns the Spec registered for an instruction type.
func (r *Registry) Lookup(instructionType string) (Spec, bool) {
	s, ok := r.specs[instructionType]
	return s, ok
}

// Category returns the track of an instruction type. Unknown types are common:
// the extractor may name them, and only the common track can carry them.
func (r *Registry) Category(instructionType string) model.Category {
	if s, ok := r.specs[instructionType]; ok {
		return s.Category
	}
	return model.CategoryCommon
}

// Partition splits instructions into the common and questionnaire tracks,
// preserving relative order within each.
func (r *Registry) Partition(instructions []model.Instruction) (common, questionnaire []model.Instruction) {
	common = []model.Instruction{}
	questionnaire = []model.Instruction{}
	for _, ins := range instructions {
		if r.Category(ins.InstructionType) == model.CategoryQuestionnaire {
			questionnaire = append(questionnaire, ins)
		} else {
			common = append(common, ins)
		}
	}
	return common, questionnaire
}

// Specs returns the registered specs of a category in registration order.
func (r *Registry) Specs(category model.Category) []Spec {
	var out []Spec
	for _, t := range r.order {
		if s := r.specs[t]; s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// TypeForSchemaKey maps a system-of-record schema key to an instruction type.
func (r *Registry) TypeForSchemaKey(key string) (string, bool) {
	t, ok := r.bySchemaKey[key]
	return t, ok
}

// Types returns every registered type tag, sorted.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}

// Build dispatches to the Build of the instruction's type. Types without a
// spec decline.
func (r *Registry) Build(_ context.Context, ins model.InstructionWithParameters) (model.Command, bool, error) {
	s, ok := r.specs[ins.InstructionType]
	if !ok || s.Build == nil {
		return model.Command{}, false, nil
	}
	cmd, ok, err := s.Build(ins)
	if err != nil {
		return model.Command{}, false, fmt.Errorf("build %s command: %w", ins.InstructionType, err)
	}
	return cmd, ok, nil
}
