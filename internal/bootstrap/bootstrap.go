// Package bootstrap holds the startup steps shared by the scribe binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"hyperscribe.app/scribe/common/llm"
	"hyperscribe.app/scribe/common/logger"
	"hyperscribe.app/scribe/common/otel"
	"hyperscribe.app/scribe/core/config"
	"hyperscribe.app/scribe/core/db"
)

// Fatal logs err and exits. Only for use from main.
func Fatal(ctx context.Context, msg string, err error, args ...any) {
	slog.ErrorContext(ctx, msg, append([]any{"error", err}, args...)...)
	os.Exit(1)
}

// Observability installs telemetry and then the slog default, which needs the
// OTel log provider in place. The returned func flushes both.
func Observability(ctx context.Context, cfg config.Config, role config.ServiceType) (func(context.Context), error) {
	telemetry, err := otel.Setup(ctx, cfg, role)
	if err != nil {
		return nil, fmt.Errorf("initializing otel: %w", err)
	}
	logger.Setup(cfg)

	if telemetry == nil {
		slog.InfoContext(ctx, "otel disabled, no endpoint configured")
		return func(context.Context) {}, nil
	}
	slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint, "role", role)
	return func(ctx context.Context) {
		if err := telemetry.Shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "otel shutdown failed", "error", err)
		}
	}, nil
}

// Database connects when DATABASE_URL is set and returns nil otherwise.
func Database(ctx context.Context, cfg db.Config, migrate bool) (*db.DB, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	database, err := db.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrating: %w", err)
		}
	}
	slog.InfoContext(ctx, "database connected", "migrated", migrate)
	return database, nil
}

// Redis dials and pings the pipeline redis.
func Redis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// LLMClients builds the transcription client and the text model client.
func LLMClients(cfg config.Config) (llm.AudioClient, llm.Client, error) {
	audio, err := llm.NewAudioClient(llm.AudioConfig{
		APIKey:  cfg.Transcriber.APIKey,
		BaseURL: cfg.Transcriber.BaseURL,
		Model:   cfg.Transcriber.Model,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("transcription client: %w", err)
	}
	text, err := llm.NewClient(llm.Config{
		Provider:  cfg.TextLLM.Provider,
		APIKey:    cfg.TextLLM.APIKey,
		BaseURL:   cfg.TextLLM.BaseURL,
		Model:     cfg.TextLLM.Model,
		MaxTokens: cfg.TextLLM.MaxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("text llm client: %w", err)
	}
	return audio, text, nil
}
