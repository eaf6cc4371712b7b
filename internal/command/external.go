package command

import "hyperscribe.app/scribe/internal/model"

// FromExternal converts an active command of the system of record into an
// instruction through the static schema-key mapping. Information is left
// empty for common types; questionnaires keep the form served by the system
// of record since the form is their information.
func (r *Registry) FromExternal(ec model.ExternalCommand) (model.Instruction, bool) {
	t, ok := r.TypeForSchemaKey(ec.Schema)
	if !ok {
		return model.Instruction{}, false
	}
	ins := model.Instruction{
		UUID:            ec.UUID,
		InstructionType: t,
	}
	if r.Category(t) == model.CategoryQuestionnaire {
		ins.Information = ec.Information
	}
	return ins, true
}
