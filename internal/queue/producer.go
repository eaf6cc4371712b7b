package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"hyperscribe.app/scribe/internal/model"
)

// Producer enqueues tasks on the chunk stream.
type Producer interface {
	Enqueue(ctx context.Context, task Task) (string, error)
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// Enqueue returns the stream id of the added message.
func (p *redisProducer) Enqueue(ctx context.Context, task Task) (string, error) {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}
	taskType := task.TaskType
	if taskType == "" {
		taskType = TaskTypeAudioChunk
	}

	fields := map[string]any{
		"task_type":     string(taskType),
		"discussion_id": task.DiscussionID,
		"chunk_index":   task.ChunkIndex,
		"attempt":       attempt,
	}
	if len(task.Audio) > 0 {
		fields["audio"] = task.Audio
	}
	if task.Filename != "" {
		fields["filename"] = task.Filename
	}
	if task.ContentType != "" {
		fields["content_type"] = task.ContentType
	}
	if task.TraceID != nil && *task.TraceID != "" {
		fields["trace_id"] = *task.TraceID
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	p.logger.InfoContext(ctx, "enqueued task",
		"task_type", taskType,
		"discussion_id", task.DiscussionID,
		"chunk_index", task.ChunkIndex,
		"audio_bytes", len(task.Audio),
		"message_id", id)
	return id, nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}

// EffectPublisher sends effects to the system of record.
type EffectPublisher interface {
	Publish(ctx context.Context, discussionID string, cycle int, effects []model.Effect) error
}

type redisEffectPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisEffectPublisher(client *redis.Client, stream string) EffectPublisher {
	return &redisEffectPublisher{client: client, stream: stream}
}

// Publish adds one message per effect, in order, in a single pipeline.
func (p *redisEffectPublisher) Publish(ctx context.Context, discussionID string, cycle int, effects []model.Effect) error {
	if len(effects) == 0 {
		return nil
	}

	pipe := p.client.Pipeline()
	for _, e := range effects {
		fields, err := EffectValues(discussionID, cycle, e)
		if err != nil {
			return err
		}
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: p.stream, Values: fields})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish effects: %w", err)
	}

	slog.InfoContext(ctx, "effects published", "count", len(effects), "stream", p.stream)
	return nil
}

// EffectValues renders an effect as stream fields.
func EffectValues(discussionID string, cycle int, e model.Effect) (map[string]any, error) {
	command, err := json.Marshal(e.Command)
	if err != nil {
		return nil, fmt.Errorf("marshal effect %d: %w", e.ID, err)
	}
	return map[string]any{
		"effect_id":        e.ID,
		"discussion_id":    discussionID,
		"cycle":            cycle,
		"kind":             string(e.Kind),
		"instruction_uuid": e.InstructionUUID,
		"command":          string(command),
	}, nil
}
