package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"hyperscribe.app/scribe/common/id"
	"hyperscribe.app/scribe/core/config"
	"hyperscribe.app/scribe/internal/audit"
	"hyperscribe.app/scribe/internal/bootstrap"
	"hyperscribe.app/scribe/internal/brain"
	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/cycle"
	"hyperscribe.app/scribe/internal/queue"
	"hyperscribe.app/scribe/internal/store"
	"hyperscribe.app/scribe/internal/worker"
)

const (
	maxAttempts = 3
	// Snowflake node id; replay runs as 3.
	workerNodeID = 2
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	flush, err := bootstrap.Observability(ctx, cfg, config.ServiceTypeWorker)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "scribe worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.ChunkGroup,
		"consumer_name", cfg.Pipeline.ChunkConsumer,
		"max_workers", cfg.Cycle.EffectiveMaxWorkers(),
		"is_local_data", cfg.Cycle.IsLocalData)

	if err := id.Init(workerNodeID); err != nil {
		bootstrap.Fatal(ctx, "id generator init failed", err)
	}

	database, err := bootstrap.Database(ctx, cfg.DB, true)
	if err != nil {
		bootstrap.Fatal(ctx, "database unavailable", err)
	}
	if database != nil {
		defer database.Close()
	}

	redisClient, err := bootstrap.Redis(ctx, cfg.Pipeline.RedisURL)
	if err != nil {
		bootstrap.Fatal(ctx, "redis unavailable", err)
	}
	defer redisClient.Close()

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:    cfg.Pipeline.ChunkStream,
		Group:     cfg.Pipeline.ChunkGroup,
		Consumer:  cfg.Pipeline.ChunkConsumer,
		DLQStream: cfg.Pipeline.ChunkDLQStream,
		BatchSize: 1,
		Block:     5 * time.Second,
	})
	if err != nil {
		bootstrap.Fatal(ctx, "chunk consumer init failed", err)
	}

	audioClient, textClient, err := bootstrap.LLMClients(cfg)
	if err != nil {
		bootstrap.Fatal(ctx, "llm client init failed", err)
	}
	slog.InfoContext(ctx, "llm clients ready",
		"transcriber_model", audioClient.Model(),
		"text_model", textClient.Model())

	stores := store.NewStores(cfg.Discussions, redisClient, database)

	recorders := []audit.Recorder{audit.LogRecorder{}}
	if stores.Audits != nil {
		recorders = append(recorders, audit.NewStoreRecorder(stores.Audits))
	}
	if cfg.AuditDir != "" {
		recorders = append(recorders, audit.NewFileRecorder(cfg.AuditDir))
	}

	registry := command.DefaultRegistry()
	orchestrator := cycle.NewOrchestrator(cfg.Cycle, registry,
		brain.NewCollaborators(audioClient, textClient, registry, audit.New(recorders...)))

	deps := worker.ProcessorDeps{
		Cycles:      orchestrator,
		Registry:    registry,
		Discussions: stores.Discussions,
		Commands:    stores.Commands,
	}
	if !cfg.Cycle.IsLocalData {
		deps.Effects = queue.NewRedisEffectPublisher(redisClient, cfg.Pipeline.EffectStream)
	}

	w := worker.New(consumer, worker.NewProcessor(deps), worker.Config{
		MaxAttempts: maxAttempts,
		RetryDelay:  2 * time.Second,
	})
	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.ChunkStream,
		Group:     cfg.Pipeline.ChunkGroup,
		Consumer:  cfg.Pipeline.ChunkConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.HandleMessage)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = w.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reclaimer.Run(ctx)
	}()

	<-ctx.Done()
	slog.InfoContext(ctx, "shutdown requested, finishing in-flight chunk")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		slog.WarnContext(shutdownCtx, "shutdown timeout exceeded, abandoning in-flight chunk to the reclaimer")
	}

	flush(shutdownCtx)
	slog.InfoContext(shutdownCtx, "worker stopped")
}

const banner = `
 ___  ___ _ __(_) |__   ___  __      _____  _ __| | _____ _ __
/ __|/ __| '__| | '_ \ / _ \ \ \ /\ / / _ \| '__| |/ / _ \ '__|
\__ \ (__| |  | | |_) |  __/  \ V  V / (_) | |  |   <  __/ |
|___/\___|_|  |_|_.__/ \___|   \_/\_/ \___/|_|  |_|\_\___|_|
`
