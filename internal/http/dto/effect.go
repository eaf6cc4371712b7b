package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EffectEvent is one published effect as delivered to stream subscribers.
type EffectEvent struct {
	StreamID        string          `json:"stream_id"`
	EffectID        int64           `json:"effect_id"`
	DiscussionID    string          `json:"discussion_id"`
	Cycle           int             `json:"cycle"`
	Kind            string          `json:"kind"`
	InstructionUUID string          `json:"instruction_uuid"`
	Command         json.RawMessage `json:"command"`
}

// NewEffectEvent decodes the stream fields written by the effect publisher.
// Redis hands every field back as a string.
func NewEffectEvent(streamID string, values map[string]any) (EffectEvent, error) {
	str := func(key string) string {
		s, _ := values[key].(string)
		return s
	}

	ev := EffectEvent{
		StreamID:        streamID,
		DiscussionID:    str("discussion_id"),
		Kind:            str("kind"),
		InstructionUUID: str("instruction_uuid"),
	}
	if ev.DiscussionID == "" {
		return EffectEvent{}, fmt.Errorf("effect %s: missing discussion_id", streamID)
	}

	var err error
	if ev.EffectID, err = strconv.ParseInt(str("effect_id"), 10, 64); err != nil {
		return EffectEvent{}, fmt.Errorf("effect %s: effect_id: %w", streamID, err)
	}
	if ev.Cycle, err = strconv.Atoi(str("cycle")); err != nil {
		return EffectEvent{}, fmt.Errorf("effect %s: cycle: %w", streamID, err)
	}
	if cmd := str("command"); cmd != "" {
		if !json.Valid([]byte(cmd)) {
			return EffectEvent{}, fmt.Errorf("effect %s: command is not json", streamID)
		}
		ev.Command = json.RawMessage(cmd)
	}
	return ev, nil
}
