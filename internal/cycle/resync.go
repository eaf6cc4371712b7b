package cycle

import (
	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/model"
)

// Resync rebuilds the known instruction list from the commands currently
// active in the system of record. Each external command takes the identity of
// the record; it inherits the information of the first still-unclaimed known
// instruction of the same type, walking external commands in order. Commands
// whose schema maps to no instruction type are skipped.
//
// With several known instructions of one type the pairing depends only on the
// order of both lists, so reordering upstream changes the result.
func Resync(registry *command.Registry, external []model.ExternalCommand, known []model.Instruction) []model.Instruction {
	claimed := make([]bool, len(known))
	out := make([]model.Instruction, 0, len(external))

	for _, ec := range external {
		ins, ok := registry.FromExternal(ec)
		if !ok {
			continue
		}
		for i, k := range known {
			if claimed[i] || k.InstructionType != ins.InstructionType {
				continue
			}
			claimed[i] = true
			ins.Information = k.Information
			break
		}
		ins.Index = len(out)
		out = append(out, ins)
	}
	return out
}
