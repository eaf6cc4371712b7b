package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hyperscribe.app/scribe/core/db"
	"hyperscribe.app/scribe/internal/model"
)

type pgDiscussionStore struct {
	db  *db.DB
	now func() time.Time
}

func NewPostgresDiscussionStore(database *db.DB) DiscussionStore {
	return &pgDiscussionStore{db: database, now: time.Now}
}

func (s *pgDiscussionStore) Get(ctx context.Context, key string) (model.DiscussionState, error) {
	state := model.NewDiscussionState(s.now())
	instructions, tail, err := marshalState(state)
	if err != nil {
		return model.DiscussionState{}, err
	}

	_, err = s.db.Pool().Exec(ctx, `
		INSERT INTO discussions (key, cycle, created_at, updated_at, previous_instructions, previous_transcript_tail)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO NOTHING`,
		key, state.Cycle, state.CreatedAt, state.UpdatedAt, instructions, tail)
	if err != nil {
		return model.DiscussionState{}, fmt.Errorf("create discussion %s: %w", key, err)
	}
	return s.Peek(ctx, key)
}

func (s *pgDiscussionStore) Peek(ctx context.Context, key string) (model.DiscussionState, error) {
	var (
		state        model.DiscussionState
		instructions []byte
		tail         []byte
	)
	err := s.db.Pool().QueryRow(ctx, `
		SELECT cycle, created_at, updated_at, previous_instructions, previous_transcript_tail
		FROM discussions WHERE key = $1`, key).
		Scan(&state.Cycle, &state.CreatedAt, &state.UpdatedAt, &instructions, &tail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DiscussionState{}, ErrNotFound
		}
		return model.DiscussionState{}, fmt.Errorf("get discussion %s: %w", key, err)
	}
	if err := json.Unmarshal(instructions, &state.PreviousInstructions); err != nil {
		return model.DiscussionState{}, fmt.Errorf("unmarshal instructions: %w", err)
	}
	if err := json.Unmarshal(tail, &state.PreviousTranscriptTail); err != nil {
		return model.DiscussionState{}, fmt.Errorf("unmarshal transcript tail: %w", err)
	}
	return state, nil
}

func (s *pgDiscussionStore) Set(ctx context.Context, key string, state model.DiscussionState) error {
	instructions, tail, err := marshalState(state)
	if err != nil {
		return err
	}
	_, err = s.db.Pool().Exec(ctx, `
		INSERT INTO discussions (key, cycle, created_at, updated_at, previous_instructions, previous_transcript_tail)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			cycle = EXCLUDED.cycle,
			updated_at = EXCLUDED.updated_at,
			previous_instructions = EXCLUDED.previous_instructions,
			previous_transcript_tail = EXCLUDED.previous_transcript_tail`,
		key, state.Cycle, state.CreatedAt, state.UpdatedAt, instructions, tail)
	if err != nil {
		return fmt.Errorf("set discussion %s: %w", key, err)
	}
	return nil
}

func marshalState(state model.DiscussionState) (instructions, tail []byte, err error) {
	if state.PreviousInstructions == nil {
		state.PreviousInstructions = []model.Instruction{}
	}
	if state.PreviousTranscriptTail == nil {
		state.PreviousTranscriptTail = []model.Line{}
	}
	if instructions, err = json.Marshal(state.PreviousInstructions); err != nil {
		return nil, nil, fmt.Errorf("marshal instructions: %w", err)
	}
	if tail, err = json.Marshal(state.PreviousTranscriptTail); err != nil {
		return nil, nil, fmt.Errorf("marshal transcript tail: %w", err)
	}
	return instructions, tail, nil
}

type pgAuditStore struct {
	db *db.DB
}

func NewPostgresAuditStore(database *db.DB) AuditStore {
	return &pgAuditStore{db: database}
}

func (s *pgAuditStore) Create(ctx context.Context, r *model.AuditRecord) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO cycle_audits (id, discussion_id, cycle, stage, item_count, output_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.DiscussionID, r.Cycle, r.Stage, r.ItemCount, []byte(r.OutputJSON), r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *pgAuditStore) ListByDiscussion(ctx context.Context, discussionID string) ([]model.AuditRecord, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, discussion_id, cycle, stage, item_count, output_json, created_at
		FROM cycle_audits WHERE discussion_id = $1
		ORDER BY cycle, created_at, id`, discussionID)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []model.AuditRecord
	for rows.Next() {
		var (
			r      model.AuditRecord
			output []byte
		)
		if err := rows.Scan(&r.ID, &r.DiscussionID, &r.Cycle, &r.Stage, &r.ItemCount, &output, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.OutputJSON = output
		out = append(out, r)
	}
	return out, rows.Err()
}

type pgCommandStore struct {
	db *db.DB
}

func NewPostgresCommandStore(database *db.DB) CommandStore {
	return &pgCommandStore{db: database}
}

func (s *pgCommandStore) ListActive(ctx context.Context, discussionID string) ([]model.ExternalCommand, error) {
	rows, err := s.db.Pool().Query(ctx, `
		SELECT uuid, schema_key, data, information
		FROM active_commands WHERE discussion_id = $1
		ORDER BY position`, discussionID)
	if err != nil {
		return nil, fmt.Errorf("list active commands: %w", err)
	}
	defer rows.Close()

	out := []model.ExternalCommand{}
	for rows.Next() {
		var (
			c    model.ExternalCommand
			data []byte
		)
		if err := rows.Scan(&c.UUID, &c.Schema, &data, &c.Information); err != nil {
			return nil, fmt.Errorf("scan active command: %w", err)
		}
		if err := json.Unmarshal(data, &c.Data); err != nil {
			return nil, fmt.Errorf("unmarshal command %s: %w", c.UUID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Apply writes a batch of effects in one transaction: creates insert a new
// command at the end of the discussion, edits replace the data of an
// existing one.
func (s *pgCommandStore) Apply(ctx context.Context, discussionID string, effects []model.Effect) error {
	if len(effects) == 0 {
		return nil
	}
	return s.db.WithTx(ctx, func(q db.Querier) error {
		for _, e := range effects {
			data, err := json.Marshal(e.Command.Payload)
			if err != nil {
				return fmt.Errorf("marshal command %s: %w", e.InstructionUUID, err)
			}
			switch e.Kind {
			case model.EffectKindCreate:
				_, err = q.Exec(ctx, `
					INSERT INTO active_commands (uuid, discussion_id, schema_key, data, position)
					VALUES ($1, $2, $3, $4,
						(SELECT COALESCE(MAX(position), -1) + 1 FROM active_commands WHERE discussion_id = $2))
					ON CONFLICT (uuid) DO UPDATE SET data = EXCLUDED.data`,
					e.InstructionUUID, discussionID, e.Command.Type, data)
			case model.EffectKindEdit:
				_, err = q.Exec(ctx, `
					UPDATE active_commands SET data = $3
					WHERE uuid = $1 AND discussion_id = $2`,
					e.InstructionUUID, discussionID, data)
			default:
				err = fmt.Errorf("unknown effect kind %q", e.Kind)
			}
			if err != nil {
				return fmt.Errorf("apply effect %d: %w", e.ID, err)
			}
		}
		return nil
	})
}
