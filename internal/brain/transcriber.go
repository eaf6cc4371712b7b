package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hyperscribe.app/scribe/common/llm"
	"hyperscribe.app/scribe/internal/cycle"
	"hyperscribe.app/scribe/internal/model"
)

type TranscriptResponse struct {
	Lines []TranscriptLine `json:"lines" jsonschema_description:"Speaker turns in the order they were spoken"`
}

type TranscriptLine struct {
	Speaker string  `json:"speaker" jsonschema_description:"Role of the speaker: Clinician, Patient, or a short role such as Caregiver"`
	Text    string  `json:"text" jsonschema_description:"What the speaker said, verbatim"`
	Start   float64 `json:"start" jsonschema_description:"Start of the turn in seconds, 0 when unknown"`
	End     float64 `json:"end" jsonschema_description:"End of the turn in seconds, 0 when unknown"`
}

var transcriptSchema = llm.GenerateSchema[TranscriptResponse]()

// audioPromptWords bounds the previous-tail text handed to the audio model.
const audioPromptWords = 200

// Transcriber converts audio to raw text with a speech model, then splits the
// text into speaker turns with a text model.
type Transcriber struct {
	audio  llm.AudioClient
	text   llm.Client
	policy llm.RetryPolicy
}

func NewTranscriber(audio llm.AudioClient, text llm.Client) *Transcriber {
	return &Transcriber{audio: audio, text: text, policy: llm.DefaultRetryPolicy}
}

// WithRetryPolicy overrides the retry policy of the diarization call.
func (t *Transcriber) WithRetryPolicy(p llm.RetryPolicy) *Transcriber {
	t.policy = p
	return t
}

func (t *Transcriber) Transcribe(ctx context.Context, audio cycle.Audio, previousTail []model.Line) ([]model.Line, error) {
	if len(audio.Data) == 0 {
		return nil, fmt.Errorf("no audio")
	}

	start := time.Now()
	raw, err := t.audio.Transcribe(ctx, llm.AudioRequest{
		Audio:       audio.Data,
		Filename:    audio.Filename,
		ContentType: audio.ContentType,
		Prompt:      lastWords(model.TranscriptText(previousTail), audioPromptWords),
	})
	if err != nil {
		return nil, fmt.Errorf("speech to text: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		slog.InfoContext(ctx, "speech model heard nothing")
		return []model.Line{}, nil
	}

	var response TranscriptResponse
	resp, err := llm.ChatWithRetry(ctx, t.text, t.policy, llm.Request{
		SystemPrompt: transcriptSystemPrompt,
		UserPrompt:   buildTranscriptPrompt(raw, previousTail),
		SchemaName:   "transcript_response",
		Schema:       transcriptSchema,
		Temperature:  llm.Temp(0),
	}, &response)
	if err != nil {
		return nil, fmt.Errorf("speaker detection: %w", err)
	}

	lines := make([]model.Line, 0, len(response.Lines))
	for _, l := range response.Lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		lines = append(lines, model.Line{Speaker: strings.TrimSpace(l.Speaker), Text: text, Start: l.Start, End: l.End})
	}
	lines = dropRepeatedTail(lines, previousTail)

	attrs := []any{
		"lines", len(lines),
		"raw_chars", len(raw),
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if resp != nil {
		attrs = append(attrs, "prompt_tokens", resp.PromptTokens, "completion_tokens", resp.CompletionTokens)
	}
	slog.InfoContext(ctx, "audio transcribed", attrs...)

	return lines, nil
}

// dropRepeatedTail removes leading lines that repeat the previous cycle's
// tail. Chunks overlap, so the speech model often hears the end of the
// previous chunk again.
func dropRepeatedTail(lines, tail []model.Line) []model.Line {
	if len(tail) == 0 {
		return lines
	}
	seen := make(map[string]bool, len(tail))
	for _, l := range tail {
		seen[normalize(l.Text)] = true
	}
	i := 0
	for i < len(lines) && seen[normalize(lines[i].Text)] {
		i++
	}
	return lines[i:]
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func lastWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

func buildTranscriptPrompt(raw string, previousTail []model.Line) string {
	var sb strings.Builder
	if len(previousTail) > 0 {
		sb.WriteString("## End of the previous segment (context only, do not repeat)\n")
		sb.WriteString(model.TranscriptText(previousTail))
		sb.WriteString("\n\n")
	}
	sb.WriteString("## Raw transcription of the current segment\n")
	sb.WriteString(raw)
	sb.WriteString("\n")
	return sb.String()
}
