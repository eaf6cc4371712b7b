package model

import "time"

// DiscussionState is the cross-cycle continuity for one encounter.
type DiscussionState struct {
	Cycle                  int           `json:"cycle"`
	CreatedAt              time.Time     `json:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at"`
	PreviousInstructions   []Instruction `json:"previous_instructions"`
	PreviousTranscriptTail []Line        `json:"previous_transcript_tail"`
}

// NewDiscussionState returns the state of a discussion referenced for the first time.
func NewDiscussionState(now time.Time) DiscussionState {
	return DiscussionState{
		Cycle:                  1,
		CreatedAt:              now,
		UpdatedAt:              now,
		PreviousInstructions:   []Instruction{},
		PreviousTranscriptTail: []Line{},
	}
}

// Advance records the outcome of one processed cycle.
func (s DiscussionState) Advance(now time.Time, instructions []Instruction, tail []Line) DiscussionState {
	if instructions == nil {
		instructions = []Instruction{}
	}
	if tail == nil {
		tail = []Line{}
	}
	s.Cycle++
	s.UpdatedAt = now
	s.PreviousInstructions = instructions
	s.PreviousTranscriptTail = tail
	return s
}

// IsFresh reports whether no cycle has produced instructions for this discussion yet.
func (s DiscussionState) IsFresh() bool {
	return len(s.PreviousInstructions) == 0
}
