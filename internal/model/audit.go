package model

import (
	"encoding/json"
	"time"
)

// Audit stages, one per pipeline step.
const (
	AuditStageTranscript     = "transcript"
	AuditStageInstructions   = "instructions"
	AuditStageParameters     = "parameters"
	AuditStageCommands       = "commands"
	AuditStageQuestionnaires = "questionnaires"
)

type AuditRecord struct {
	ID           int64           `json:"id"`
	DiscussionID string          `json:"discussion_id"`
	Cycle        int             `json:"cycle"`
	Stage        string          `json:"stage"`
	ItemCount    int             `json:"item_count"`
	OutputJSON   json.RawMessage `json:"output"`
	CreatedAt    time.Time       `json:"created_at"`
}
