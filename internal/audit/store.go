package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"hyperscribe.app/scribe/common/id"
	"hyperscribe.app/scribe/internal/model"
	"hyperscribe.app/scribe/internal/store"
)

// StoreRecorder persists each entry as an AuditRecord.
type StoreRecorder struct {
	store store.AuditStore
}

func NewStoreRecorder(s store.AuditStore) *StoreRecorder {
	return &StoreRecorder{store: s}
}

func (r *StoreRecorder) Record(ctx context.Context, e Entry) error {
	output, err := json.Marshal(e.Output)
	if err != nil {
		return fmt.Errorf("marshal %s output: %w", e.Stage, err)
	}
	rec := &model.AuditRecord{
		ID:           id.New(),
		DiscussionID: e.DiscussionID,
		Cycle:        e.Cycle,
		Stage:        e.Stage,
		ItemCount:    e.ItemCount,
		OutputJSON:   output,
		CreatedAt:    e.At,
	}
	if err := r.store.Create(ctx, rec); err != nil {
		return fmt.Errorf("store %s audit: %w", e.Stage, err)
	}
	return nil
}
