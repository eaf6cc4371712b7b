package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment so that every log line emitted while
// processing a cycle carries the discussion, cycle, and track it belongs to.
type LogFields struct {
	DiscussionID    *string // Discussion (encounter) key
	Cycle           *int    // Cycle number within the discussion
	MessageID       *string // Redis stream message ID
	ChunkIndex      *int    // Audio chunk position within the discussion
	Track           *string // "common" or "questionnaire"
	InstructionUUID *string // Instruction being synthesized
	InstructionType *string // Instruction type tag
	Component       string  // Component name (e.g., "scribe.cycle.orchestrator")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.DiscussionID != nil {
		result.DiscussionID = new.DiscussionID
	}
	if new.Cycle != nil {
		result.Cycle = new.Cycle
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.ChunkIndex != nil {
		result.ChunkIndex = new.ChunkIndex
	}
	if new.Track != nil {
		result.Track = new.Track
	}
	if new.InstructionUUID != nil {
		result.InstructionUUID = new.InstructionUUID
	}
	if new.InstructionType != nil {
		result.InstructionType = new.InstructionType
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{Cycle: logger.Ptr(n)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like transcript text.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
