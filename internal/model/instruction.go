package model

// Instruction is a clinically meaningful intent detected in the transcript.
// UUID is the identity and stays stable across cycles once assigned.
//
// IsNew, IsUpdated and PreviousInformation are recomputed every cycle against
// the immediately prior cycle's set; they are not persisted truth.
type Instruction struct {
	UUID                string `json:"uuid"`
	Index               int    `json:"index"`
	InstructionType     string `json:"instruction_type"`
	Information         string `json:"information"`
	IsNew               bool   `json:"is_new"`
	IsUpdated           bool   `json:"is_updated"`
	PreviousInformation string `json:"previous_information,omitempty"`
}

// Parameters is the structured data synthesized for one instruction.
type Parameters map[string]any

// InstructionWithParameters is cycle-scoped and never persisted.
type InstructionWithParameters struct {
	Instruction
	Parameters Parameters `json:"parameters"`
}

// InstructionWithCommand is cycle-scoped and never persisted.
type InstructionWithCommand struct {
	InstructionWithParameters
	Command Command `json:"command"`
}

// ClearAnnotations returns a copy with the per-cycle flags reset.
func (i Instruction) ClearAnnotations() Instruction {
	i.IsNew = false
	i.IsUpdated = false
	i.PreviousInformation = ""
	return i
}

// CloneInstructions returns a shallow copy of the slice. Instruction holds no
// references, so the copy is fully independent.
func CloneInstructions(src []Instruction) []Instruction {
	if src == nil {
		return nil
	}
	out := make([]Instruction, len(src))
	copy(out, src)
	return out
}
