package store

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"hyperscribe.app/scribe/core/config"
	"hyperscribe.app/scribe/core/db"
)

// Stores groups the backends a binary runs with. AuditStore and Commands
// are nil without a database.
type Stores struct {
	Discussions DiscussionStore
	Audits      AuditStore
	Commands    CommandStore
}

// NewStores picks the discussion backend named by cfg. A backend whose
// connection is missing falls back to the in-memory store with a warning.
func NewStores(cfg config.DiscussionStoreConfig, rdb *redis.Client, database *db.DB) Stores {
	var s Stores

	switch {
	case cfg.Backend == config.DiscussionBackendRedis && rdb != nil:
		s.Discussions = NewRedisDiscussionStore(rdb, cfg.TTL)
	case cfg.Backend == config.DiscussionBackendPostgres && database != nil:
		s.Discussions = NewPostgresDiscussionStore(database)
	default:
		if cfg.Backend != config.DiscussionBackendMemory {
			slog.Warn("discussion store backend not configured, falling back to memory",
				"backend", cfg.Backend)
		} else {
			slog.Info("using in-memory discussion store; state is lost on restart")
		}
		s.Discussions = NewMemoryDiscussionStore()
	}

	if database != nil {
		s.Audits = NewPostgresAuditStore(database)
		s.Commands = NewPostgresCommandStore(database)
	}
	return s
}
