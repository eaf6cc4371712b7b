package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"hyperscribe.app/scribe/internal/http/dto"
)

const (
	effectReadBlock = 25 * time.Second
	effectReadCount = 100
)

// EffectStreamHandler relays the effects published for one discussion as
// server-sent events. Clients resume with ?last_id=<stream id>.
type EffectStreamHandler struct {
	redis  *redis.Client
	stream string
}

func NewEffectStreamHandler(redisClient *redis.Client, stream string) *EffectStreamHandler {
	return &EffectStreamHandler{redis: redisClient, stream: stream}
}

func (h *EffectStreamHandler) Stream(c *gin.Context) {
	if h.redis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "effect stream not configured"})
		return
	}

	ctx := c.Request.Context()
	discussionID := c.Param("discussion_id")
	cursor := c.DefaultQuery("last_id", "$")

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"discussion_id": discussionID, "last_id": cursor})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		events, next, err := h.read(ctx, discussionID, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			slog.WarnContext(ctx, "effect stream read failed", "error", err)
			c.SSEvent("error", gin.H{"error": err.Error()})
			return true
		}
		cursor = next
		if len(events) == 0 {
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339Nano))
			return true
		}
		for _, ev := range events {
			c.SSEvent("effect", ev)
		}
		return true
	})
}

// read blocks for the next batch and returns the effects belonging to
// discussionID together with the cursor to resume from.
func (h *EffectStreamHandler) read(ctx context.Context, discussionID, cursor string) ([]dto.EffectEvent, string, error) {
	res, err := h.redis.XRead(ctx, &redis.XReadArgs{
		Streams: []string{h.stream, cursor},
		Block:   effectReadBlock,
		Count:   effectReadCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, cursor, nil
	}
	if err != nil {
		return nil, cursor, err
	}

	var events []dto.EffectEvent
	for _, s := range res {
		for _, msg := range s.Messages {
			cursor = msg.ID
			if id, _ := msg.Values["discussion_id"].(string); id != discussionID {
				continue
			}
			ev, err := dto.NewEffectEvent(msg.ID, msg.Values)
			if err != nil {
				slog.WarnContext(ctx, "skipping malformed effect", "stream_id", msg.ID, "error", err)
				continue
			}
			events = append(events, ev)
		}
	}
	return events, cursor, nil
}
