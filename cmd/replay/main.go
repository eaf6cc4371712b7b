package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hyperscribe.app/scribe/common/id"
	"hyperscribe.app/scribe/common/logger"
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

var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".wav":  true,
	".webm": true,
	".ogg":  true,
	".flac": true,
}

// replay runs the cycles of one discussion over the audio files of a
// directory, in file name order, without emitting effects.
//
//	replay <audio-dir> [discussion-id]
func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: replay <audio-dir> [discussion-id]")
		os.Exit(2)
	}
	dir := os.Args[1]
	discussionID := filepath.Base(filepath.Clean(dir))
	if len(os.Args) > 2 {
		discussionID = os.Args[2]
	}

	cfg, err := config.Load(config.ServiceTypeReplay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	if err := id.Init(3); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	files, err := audioFiles(dir)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list audio files", "error", err, "dir", dir)
		os.Exit(1)
	}
	if len(files) == 0 {
		slog.ErrorContext(ctx, "no audio files found", "dir", dir)
		os.Exit(1)
	}

	audioClient, textClient, err := bootstrap.LLMClients(cfg)
	if err != nil {
		bootstrap.Fatal(ctx, "llm client init failed", err)
	}

	auditDir := cfg.AuditDir
	if auditDir == "" {
		auditDir = filepath.Join(dir, "audit")
	}

	cycleCfg := cfg.Cycle
	cycleCfg.IsLocalData = true

	registry := command.DefaultRegistry()
	auditor := audit.New(audit.LogRecorder{}, audit.NewFileRecorder(auditDir))
	orchestrator := cycle.NewOrchestrator(cycleCfg, registry,
		brain.NewCollaborators(audioClient, textClient, registry, auditor))

	discussions := store.NewMemoryDiscussionStore()
	processor := worker.NewProcessor(worker.ProcessorDeps{
		Cycles:      orchestrator,
		Registry:    registry,
		Discussions: discussions,
	})

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:    "scribe.replay",
		DiscussionID: logger.Ptr(discussionID),
	})
	slog.InfoContext(ctx, "replay starting", "files", len(files), "audit_dir", auditDir)

	for i, path := range files {
		audio, err := os.ReadFile(path)
		if err != nil {
			slog.ErrorContext(ctx, "failed to read audio file", "error", err, "path", path)
			os.Exit(1)
		}
		msg := queue.Message{
			ID:           fmt.Sprintf("replay-%d", i),
			TaskType:     queue.TaskTypeAudioChunk,
			DiscussionID: discussionID,
			ChunkIndex:   i,
			Audio:        audio,
			Filename:     filepath.Base(path),
			ContentType:  mime.TypeByExtension(filepath.Ext(path)),
			Attempt:      1,
		}
		chunkCtx := logger.WithLogFields(ctx, logger.LogFields{ChunkIndex: logger.Ptr(i)})
		if err := processor.Process(chunkCtx, msg); err != nil {
			// A replay keeps going: the next chunk may still transcribe.
			slog.WarnContext(chunkCtx, "chunk failed", "error", err, "file", msg.Filename)
		}
	}

	state, err := discussions.Peek(ctx, discussionID)
	if err != nil {
		slog.ErrorContext(ctx, "no discussion state after replay", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state.PreviousInstructions); err != nil {
		slog.ErrorContext(ctx, "failed to print instructions", "error", err)
		os.Exit(1)
	}
}

func audioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
