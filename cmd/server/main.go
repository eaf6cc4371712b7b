package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"hyperscribe.app/scribe/core/config"
	"hyperscribe.app/scribe/internal/bootstrap"
	"hyperscribe.app/scribe/internal/http/handler"
	"hyperscribe.app/scribe/internal/http/middleware"
	httprouter "hyperscribe.app/scribe/internal/http/router"
	"hyperscribe.app/scribe/internal/queue"
	"hyperscribe.app/scribe/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	flush, err := bootstrap.Observability(ctx, cfg, config.ServiceTypeServer)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "scribe server starting", "env", cfg.Env, "port", cfg.Port)

	// The server only reads discussion state; the worker owns migrations.
	database, err := bootstrap.Database(ctx, cfg.DB, false)
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

	chunks := queue.NewRedisProducer(redisClient, cfg.Pipeline.ChunkStream, slog.Default())
	defer chunks.Close()

	stores := store.NewStores(cfg.Discussions, redisClient, database)
	if cfg.Discussions.Backend == config.DiscussionBackendMemory {
		slog.WarnContext(ctx, "server reads an in-memory discussion store; states written by workers are not visible")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: newRouter(cfg, httprouter.Handlers{
			Discussions: handler.NewDiscussionHandler(chunks, stores.Discussions, cfg.Pipeline.TraceHeaderName),
			Effects:     handler.NewEffectStreamHandler(redisClient, cfg.Pipeline.EffectStream),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: the effect stream is long-lived.
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server listening", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			bootstrap.Fatal(ctx, "http server failed", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.InfoContext(shutdownCtx, "draining http server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown failed", "error", err)
	}
	flush(shutdownCtx)
	slog.InfoContext(shutdownCtx, "server stopped")
}

// newRouter wires middleware outermost first: the otel span exists before
// recovery runs, and the request log line carries its trace id.
func newRouter(cfg config.Config, handlers httprouter.Handlers) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = handler.MaxChunkBytes
	if cfg.OTel.Enabled() {
		r.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	r.Use(middleware.Recovery(), middleware.Logger())
	httprouter.SetupRoutes(r, handlers)
	return r
}

const banner = `
 ___  ___ _ __(_) |__   ___    ___  ___ _ ____   _____ _ __
/ __|/ __| '__| | '_ \ / _ \  / __|/ _ \ '__\ \ / / _ \ '__|
\__ \ (__| |  | | |_) |  __/  \__ \  __/ |   \ V /  __/ |
|___/\___|_|  |_|_.__/ \___|  |___/\___|_|    \_/ \___|_|
`
