package dto

import (
	"time"

	"hyperscribe.app/scribe/internal/model"
)

type ChunkAcceptedResponse struct {
	MessageID    string `json:"message_id"`
	DiscussionID string `json:"discussion_id"`
	ChunkIndex   int    `json:"chunk_index"`
}

type ResyncAcceptedResponse struct {
	MessageID    string `json:"message_id"`
	DiscussionID string `json:"discussion_id"`
}

type DiscussionResponse struct {
	DiscussionID           string              `json:"discussion_id"`
	Cycle                  int                 `json:"cycle"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
	PreviousInstructions   []model.Instruction `json:"previous_instructions"`
	PreviousTranscriptTail []model.Line        `json:"previous_transcript_tail"`
}

func NewDiscussionResponse(discussionID string, s model.DiscussionState) DiscussionResponse {
	return DiscussionResponse{
		DiscussionID:           discussionID,
		Cycle:                  s.Cycle,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
		PreviousInstructions:   s.PreviousInstructions,
		PreviousTranscriptTail: s.PreviousTranscriptTail,
	}
}
