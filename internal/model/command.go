package model

// Command is the structured request built for an instruction. Payload follows
// the schema of the command type and is opaque to the cycle.
type Command struct {
	UUID    string         `json:"uuid,omitempty"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type EffectKind string

const (
	EffectKindCreate EffectKind = "create"
	EffectKindEdit   EffectKind = "edit"
)

// Effect is a create or edit request directed at the system of record.
// InstructionUUID is the identity being edited; for creates it is the uuid the
// new record should carry.
type Effect struct {
	ID              int64      `json:"id"`
	Kind            EffectKind `json:"kind"`
	InstructionUUID string     `json:"instruction_uuid"`
	Command         Command    `json:"command"`
}

// ExternalCommand is a command currently active in the system of record.
type ExternalCommand struct {
	UUID        string         `json:"uuid"`
	Schema      string         `json:"schema"`
	Data        map[string]any `json:"data"`
	Information string         `json:"information,omitempty"`
}
