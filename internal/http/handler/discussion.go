package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"hyperscribe.app/scribe/internal/http/dto"
	"hyperscribe.app/scribe/internal/queue"
	"hyperscribe.app/scribe/internal/store"
)

// MaxChunkBytes bounds the size of one uploaded audio chunk.
const MaxChunkBytes = 25 << 20

// formOverhead is the multipart framing allowed on top of the audio itself.
const formOverhead = 64 << 10

type DiscussionHandler struct {
	producer    queue.Producer
	discussions store.DiscussionStore
	traceHeader string
	maxChunk    int64
}

func NewDiscussionHandler(producer queue.Producer, discussions store.DiscussionStore, traceHeader string) *DiscussionHandler {
	return &DiscussionHandler{
		producer:    producer,
		discussions: discussions,
		traceHeader: traceHeader,
		maxChunk:    MaxChunkBytes,
	}
}

// WithMaxChunkBytes overrides the upload limit.
func (h *DiscussionHandler) WithMaxChunkBytes(n int64) *DiscussionHandler {
	h.maxChunk = n
	return h
}

// UploadChunk enqueues one audio chunk for the discussion's next cycle.
func (h *DiscussionHandler) UploadChunk(c *gin.Context) {
	ctx := c.Request.Context()
	discussionID := c.Param("discussion_id")

	// Cap the body before parsing so an oversized upload is cut off at the
	// limit instead of being spooled in full.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxChunk+formOverhead)
	if err := c.Request.ParseMultipartForm(h.maxChunk); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form expected"})
		return
	}

	chunkIndex := 0
	if raw := c.PostForm("chunk_index"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chunk_index must be a non-negative integer"})
			return
		}
		chunkIndex = idx
	}

	file, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}
	if file.Size == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is empty"})
		return
	}
	if file.Size > h.maxChunk {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio file too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		slog.ErrorContext(ctx, "failed to open uploaded audio", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audio"})
		return
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read uploaded audio", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audio"})
		return
	}

	task := queue.Task{
		TaskType:     queue.TaskTypeAudioChunk,
		DiscussionID: discussionID,
		ChunkIndex:   chunkIndex,
		Audio:        audio,
		Filename:     file.Filename,
		ContentType:  file.Header.Get("Content-Type"),
		TraceID:      h.traceID(c),
	}
	messageID, err := h.producer.Enqueue(ctx, task)
	if err != nil {
		slog.ErrorContext(ctx, "failed to enqueue audio chunk", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue chunk"})
		return
	}

	slog.InfoContext(ctx, "audio chunk accepted",
		"message_id", messageID,
		"chunk_index", chunkIndex,
		"audio_bytes", len(audio))

	c.JSON(http.StatusAccepted, dto.ChunkAcceptedResponse{
		MessageID:    messageID,
		DiscussionID: discussionID,
		ChunkIndex:   chunkIndex,
	})
}

// Resync enqueues an identity resync against the active commands of the
// system of record.
func (h *DiscussionHandler) Resync(c *gin.Context) {
	ctx := c.Request.Context()
	discussionID := c.Param("discussion_id")

	messageID, err := h.producer.Enqueue(ctx, queue.Task{
		TaskType:     queue.TaskTypeResync,
		DiscussionID: discussionID,
		TraceID:      h.traceID(c),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to enqueue resync", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue resync"})
		return
	}

	c.JSON(http.StatusAccepted, dto.ResyncAcceptedResponse{
		MessageID:    messageID,
		DiscussionID: discussionID,
	})
}

// Get returns the discussion state without creating it.
func (h *DiscussionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	discussionID := c.Param("discussion_id")

	state, err := h.discussions.Peek(ctx, discussionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "discussion not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load discussion", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load discussion"})
		return
	}

	c.JSON(http.StatusOK, dto.NewDiscussionResponse(discussionID, state))
}

func (h *DiscussionHandler) traceID(c *gin.Context) *string {
	traceID := c.GetHeader(h.traceHeader)
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(c.Request.Context()); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
		}
	}
	if traceID == "" {
		return nil
	}
	return &traceID
}
