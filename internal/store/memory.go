package store

import (
	"context"
	"sync"
	"time"

	"hyperscribe.app/scribe/internal/model"
)

// MemoryDiscussionStore keeps discussions in process memory. It is the
// fallback when no external backend is configured: state is lost on restart
// and not shared between workers.
type MemoryDiscussionStore struct {
	mu          sync.Mutex
	discussions map[string]model.DiscussionState
	now         func() time.Time
}

func NewMemoryDiscussionStore() *MemoryDiscussionStore {
	return &MemoryDiscussionStore{
		discussions: make(map[string]model.DiscussionState),
		now:         time.Now,
	}
}

// WithClock replaces the clock used to stamp created discussions.
func (s *MemoryDiscussionStore) WithClock(now func() time.Time) *MemoryDiscussionStore {
	s.now = now
	return s
}

func (s *MemoryDiscussionStore) Get(_ context.Context, key string) (model.DiscussionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.discussions[key]
	if !ok {
		state = model.NewDiscussionState(s.now())
		s.discussions[key] = state
	}
	return cloneState(state), nil
}

func (s *MemoryDiscussionStore) Peek(_ context.Context, key string) (model.DiscussionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.discussions[key]
	if !ok {
		return model.DiscussionState{}, ErrNotFound
	}
	return cloneState(state), nil
}

func (s *MemoryDiscussionStore) Set(_ context.Context, key string, state model.DiscussionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.discussions[key] = cloneState(state)
	return nil
}

func cloneState(s model.DiscussionState) model.DiscussionState {
	s.PreviousInstructions = model.CloneInstructions(s.PreviousInstructions)
	if s.PreviousInstructions == nil {
		s.PreviousInstructions = []model.Instruction{}
	}
	tail := make([]model.Line, len(s.PreviousTranscriptTail))
	copy(tail, s.PreviousTranscriptTail)
	s.PreviousTranscriptTail = tail
	return s
}

// MemoryCommandStore is an in-process CommandStore, used by the replay tool
// and tests.
type MemoryCommandStore struct {
	mu       sync.Mutex
	commands map[string][]model.ExternalCommand
}

func NewMemoryCommandStore() *MemoryCommandStore {
	return &MemoryCommandStore{commands: make(map[string][]model.ExternalCommand)}
}

// Seed appends commands as if the system of record already held them.
func (s *MemoryCommandStore) Seed(discussionID string, commands ...model.ExternalCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[discussionID] = append(s.commands[discussionID], commands...)
}

func (s *MemoryCommandStore) ListActive(_ context.Context, discussionID string) ([]model.ExternalCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.commands[discussionID]
	out := make([]model.ExternalCommand, len(src))
	for i, c := range src {
		c.Data = cloneMap(c.Data)
		out[i] = c
	}
	return out, nil
}

// Apply creates commands for create effects and replaces the data of the
// targeted command for edits. Edits to unknown identities are ignored.
func (s *MemoryCommandStore) Apply(_ context.Context, discussionID string, effects []model.Effect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	commands := s.commands[discussionID]
	for _, e := range effects {
		idx := -1
		for i, c := range commands {
			if c.UUID == e.InstructionUUID {
				idx = i
				break
			}
		}
		switch {
		case idx >= 0:
			commands[idx].Data = cloneMap(e.Command.Payload)
		case e.Kind == model.EffectKindCreate:
			commands = append(commands, model.ExternalCommand{
				UUID:   e.InstructionUUID,
				Schema: e.Command.Type,
				Data:   cloneMap(e.Command.Payload),
			})
		}
	}
	s.commands[discussionID] = commands
	return nil
}

// MemoryAuditStore keeps audit records in process memory.
type MemoryAuditStore struct {
	mu      sync.Mutex
	records []model.AuditRecord
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) Create(_ context.Context, record *model.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *record)
	return nil
}

func (s *MemoryAuditStore) ListByDiscussion(_ context.Context, discussionID string) ([]model.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.AuditRecord
	for _, r := range s.records {
		if r.DiscussionID == discussionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
