package llm

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// AudioClient turns recorded audio into raw text.
type AudioClient interface {
	Transcribe(ctx context.Context, req AudioRequest) (string, error)
	Model() string
}

type AudioRequest struct {
	Audio       []byte
	Filename    string // e.g. "chunk_003.mp3"; the extension tells the provider the codec
	ContentType string
	Prompt      string // Optional: preceding text, improves continuity across chunks
	Language    string // Optional: ISO-639-1
}

type AudioConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type openaiAudioClient struct {
	openai openai.Client
	model  string
}

func NewAudioClient(cfg AudioConfig) (AudioClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}

	return &openaiAudioClient{
		openai: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (c *openaiAudioClient) Transcribe(ctx context.Context, req AudioRequest) (string, error) {
	filename := req.Filename
	if filename == "" {
		filename = "audio.mp3"
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(req.Audio), filename, contentType),
		Model: openai.AudioModel(c.model),
	}
	if req.Prompt != "" {
		params.Prompt = openai.String(req.Prompt)
	}
	if req.Language != "" {
		params.Language = openai.String(req.Language)
	}

	start := time.Now()
	resp, err := c.openai.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	slog.DebugContext(ctx, "audio transcription completed",
		"model", c.model,
		"audio_bytes", len(req.Audio),
		"duration_ms", time.Since(start).Milliseconds(),
		"text_length", len(resp.Text))

	return resp.Text, nil
}

func (c *openaiAudioClient) Model() string {
	return c.model
}
