package store

import (
	"context"
	"errors"

	"hyperscribe.app/scribe/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// DiscussionStore holds the cross-cycle state of each discussion.
type DiscussionStore interface {
	// Get returns the state of a discussion, creating it when the key was
	// never seen. It fails only on backend errors.
	Get(ctx context.Context, key string) (model.DiscussionState, error)
	// Peek returns the state without creating it, or ErrNotFound.
	Peek(ctx context.Context, key string) (model.DiscussionState, error)
	Set(ctx context.Context, key string, state model.DiscussionState) error
}

// AuditStore persists the per-stage records of each cycle.
type AuditStore interface {
	Create(ctx context.Context, record *model.AuditRecord) error
	ListByDiscussion(ctx context.Context, discussionID string) ([]model.AuditRecord, error)
}

// CommandStore mirrors the commands active in the system of record.
type CommandStore interface {
	ListActive(ctx context.Context, discussionID string) ([]model.ExternalCommand, error)
	Apply(ctx context.Context, discussionID string, effects []model.Effect) error
}
