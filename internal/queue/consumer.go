package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"hyperscribe.app/scribe/common/logger"
)

type ConsumerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	DLQStream string
	// BatchSize is the XREADGROUP count. Chunks of one discussion must run in
	// order, so deployments keep this at 1 per consumer.
	BatchSize int64
	Block     time.Duration
}

// Message is one task read from the chunk stream.
type Message struct {
	ID           string
	TaskType     TaskType
	DiscussionID string
	ChunkIndex   int
	Audio        []byte
	Filename     string
	ContentType  string
	Attempt      int
	TraceID      string
	Raw          redis.XMessage
}

type MessageProcessor func(ctx context.Context, msg Message) error

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

// NewRedisConsumer creates the consumer group if needed. The group starts at
// "0" so chunks uploaded before the first worker came up are still read.
func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	err := client.XGroupCreateMkStream(context.Background(), cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("creating consumer group %s on %s: %w", cfg.Group, cfg.Stream, err)
	}
	return &RedisConsumer{client: client, cfg: cfg}, nil
}

// Read returns the next batch of never-delivered messages. Unparseable
// entries are acked and dropped; delivered-but-unacked ones belong to the
// reclaimer.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "scribe.queue.consumer"})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", c.cfg.Stream, err)
	}

	var messages []Message
	for _, s := range streams {
		for _, raw := range s.Messages {
			msg, err := ParseMessage(raw)
			if err != nil {
				slog.ErrorContext(ctx, "dropping unparseable chunk message",
					"error", err,
					"stream_id", raw.ID)
				_ = c.Ack(ctx, Message{ID: raw.ID, Raw: raw})
				continue
			}
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack %s on %s: %w", msg.ID, c.cfg.Stream, err)
	}
	return nil
}

// SendDLQ parks msg on the dead letter stream with its final error.
func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	values := MessageValues(msg, msg.Attempt)
	values["error"] = errMsg
	if err := c.moveTo(ctx, msg, c.cfg.DLQStream, values); err != nil {
		return fmt.Errorf("dead letter: %w", err)
	}

	slog.ErrorContext(ctx, "chunk dead-lettered",
		"attempt", msg.Attempt,
		"final_error", errMsg,
		"dlq_stream", c.cfg.DLQStream)
	return nil
}

func (c *RedisConsumer) moveTo(ctx context.Context, msg Message, stream string, values map[string]any) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values})
		pipe.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("moving %s to %s: %w", msg.ID, stream, err)
	}
	return nil
}

// ParseMessage decodes the fields written by the producer or by MessageValues.
func ParseMessage(raw redis.XMessage) (Message, error) {
	f := fields(raw.Values)

	discussionID, ok := f.str("discussion_id")
	if !ok {
		return Message{}, fmt.Errorf("missing discussion_id")
	}
	if discussionID == "" {
		return Message{}, fmt.Errorf("empty discussion_id")
	}

	msg := Message{
		ID:           raw.ID,
		TaskType:     TaskTypeAudioChunk,
		DiscussionID: discussionID,
		Attempt:      1,
		Raw:          raw,
	}
	if t, _ := f.str("task_type"); t != "" {
		msg.TaskType = TaskType(t)
	}
	msg.Filename, _ = f.str("filename")
	msg.ContentType, _ = f.str("content_type")
	msg.TraceID, _ = f.str("trace_id")
	audio, _ := f.str("audio")
	msg.Audio = []byte(audio)

	var err error
	if msg.ChunkIndex, err = f.int("chunk_index", 0); err != nil {
		return Message{}, err
	}
	if msg.Attempt, err = f.int("attempt", 1); err != nil {
		return Message{}, err
	}
	if msg.Attempt < 1 {
		msg.Attempt = 1
	}

	switch msg.TaskType {
	case TaskTypeAudioChunk:
		if len(msg.Audio) == 0 {
			return Message{}, fmt.Errorf("missing audio")
		}
	case TaskTypeResync:
	default:
		return Message{}, fmt.Errorf("unknown task_type %q", msg.TaskType)
	}
	return msg, nil
}

type fields map[string]any

func (f fields) str(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	if s, isStr := v.(string); isStr {
		return s, true
	}
	return fmt.Sprint(v), true
}

func (f fields) int(key string, def int) (int, error) {
	s, ok := f.str(key)
	if !ok || s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

// MessageValues renders msg back to stream fields at the given attempt, for
// the dead letter stream.
func MessageValues(msg Message, attempt int) map[string]any {
	taskType := msg.TaskType
	if taskType == "" {
		taskType = TaskTypeAudioChunk
	}
	values := map[string]any{
		"task_type":     string(taskType),
		"discussion_id": msg.DiscussionID,
		"chunk_index":   msg.ChunkIndex,
		"attempt":       attempt,
	}
	optional := map[string]string{
		"audio":        string(msg.Audio),
		"filename":     msg.Filename,
		"content_type": msg.ContentType,
		"trace_id":     msg.TraceID,
	}
	for k, v := range optional {
		if v != "" {
			values[k] = v
		}
	}
	return values
}
