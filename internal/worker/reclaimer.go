package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"hyperscribe.app/scribe/common/logger"
	"hyperscribe.app/scribe/internal/queue"
)

type RedisReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// RedisReclaimer takes over chunks left pending by a consumer that died
// between read and ack. Each delivery counts as an attempt, so a chunk that
// keeps crashing workers ends in the DLQ instead of cycling forever.
type RedisReclaimer struct {
	client *redis.Client
	cfg    RedisReclaimerConfig
	acker  interface {
		Ack(context.Context, queue.Message) error
	}
	process queue.MessageProcessor
}

func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer *queue.RedisConsumer, process queue.MessageProcessor) *RedisReclaimer {
	return &RedisReclaimer{
		client:  client,
		cfg:     cfg,
		acker:   consumer,
		process: process,
	}
}

// Run sweeps the pending list every Interval until ctx is done.
func (r *RedisReclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "scribe.worker.reclaimer"})

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"stream", r.cfg.Stream)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "reclaimer stopped")
			return
		case <-ticker.C:
			if n, err := r.reclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim pass failed", "error", err)
			} else if n > 0 {
				slog.InfoContext(ctx, "reclaim pass done", "reclaimed", n)
			}
		}
	}
}

// reclaimOnce claims one batch of stale messages and runs each through the
// worker path. It returns how many messages it took over.
func (r *RedisReclaimer) reclaimOnce(ctx context.Context) (int, error) {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	ids := make([]string, len(pending))
	deliveries := make(map[string]int64, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
		deliveries[p.ID] = p.RetryCount
	}

	// MinIdle on the claim drops messages another reclaimer took meanwhile.
	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("xclaim: %w", err)
	}

	settleCtx := context.WithoutCancel(ctx)
	for _, raw := range claimed {
		r.handle(settleCtx, raw, deliveries[raw.ID])
	}
	return len(claimed), nil
}

func (r *RedisReclaimer) handle(ctx context.Context, raw redis.XMessage, deliveries int64) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: logger.Ptr(raw.ID)})

	msg, err := queue.ParseMessage(raw)
	if err != nil {
		slog.ErrorContext(ctx, "dropping unparseable reclaimed message", "error", err)
		_ = r.acker.Ack(ctx, queue.Message{ID: raw.ID, Raw: raw})
		return
	}
	if int(deliveries) > msg.Attempt {
		msg.Attempt = int(deliveries)
	}

	slog.InfoContext(ctx, "reprocessing stale chunk",
		"discussion_id", msg.DiscussionID,
		"chunk_index", msg.ChunkIndex,
		"attempt", msg.Attempt)

	if err := r.process(ctx, msg); err != nil {
		slog.WarnContext(ctx, "reclaimed message failed", "error", err)
	}
}
