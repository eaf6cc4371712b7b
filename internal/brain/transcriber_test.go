package brain_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"hyperscribe.app/scribe/common/llm"
	"hyperscribe.app/scribe/internal/brain"
	"hyperscribe.app/scribe/internal/cycle"
	"hyperscribe.app/scribe/internal/model"
)

var _ = Describe("Transcriber", func() {
	var (
		ctx         context.Context
		audio       *mockAudioClient
		text        *mockLLMClient
		transcriber *brain.Transcriber
		chunk       cycle.Audio
	)

	BeforeEach(func() {
		ctx = context.Background()
		audio = &mockAudioClient{}
		text = &mockLLMClient{}
		transcriber = brain.NewTranscriber(audio, text).WithRetryPolicy(noRetry)
		chunk = cycle.Audio{Data: []byte("mp3"), Filename: "chunk_001.mp3", ContentType: "audio/mpeg"}
	})

	It("splits the raw text into speaker turns", func() {
		audio.transcribeFn = func(context.Context, llm.AudioRequest) (string, error) {
			return "how are you feeling today not great my throat hurts", nil
		}
		text.chatFn = respondWith(brain.TranscriptResponse{Lines: []brain.TranscriptLine{
			{Speaker: "Clinician", Text: "How are you feeling today?"},
			{Speaker: "Patient", Text: " Not great, my throat hurts. "},
			{Speaker: "Patient", Text: "  "},
		}})

		lines, err := transcriber.Transcribe(ctx, chunk, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(Equal([]model.Line{
			{Speaker: "Clinician", Text: "How are you feeling today?"},
			{Speaker: "Patient", Text: "Not great, my throat hurts."},
		}))
		Expect(audio.lastRequest.Filename).To(Equal("chunk_001.mp3"))
		Expect(text.requests[0].SchemaName).To(Equal("transcript_response"))
	})

	It("hands the previous tail to both models and drops repeated turns", func() {
		tail := []model.Line{{Speaker: "Patient", Text: "It started Monday."}}
		audio.transcribeFn = func(context.Context, llm.AudioRequest) (string, error) {
			return "it started monday any fever", nil
		}
		text.chatFn = respondWith(brain.TranscriptResponse{Lines: []brain.TranscriptLine{
			{Speaker: "Patient", Text: "it started  Monday."},
			{Speaker: "Clinician", Text: "Any fever?"},
		}})

		lines, err := transcriber.Transcribe(ctx, chunk, tail)

		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(Equal([]model.Line{{Speaker: "Clinician", Text: "Any fever?"}}))
		Expect(audio.lastRequest.Prompt).To(Equal("Patient: It started Monday."))
		Expect(text.requests[0].UserPrompt).To(ContainSubstring("It started Monday."))
	})

	It("returns no lines without calling the text model when nothing was heard", func() {
		audio.transcribeFn = func(context.Context, llm.AudioRequest) (string, error) { return "  ", nil }

		lines, err := transcriber.Transcribe(ctx, chunk, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(BeEmpty())
		Expect(text.callCount).To(Equal(0))
	})

	It("fails on empty audio", func() {
		_, err := transcriber.Transcribe(ctx, cycle.Audio{}, nil)
		Expect(err).To(HaveOccurred())
		Expect(audio.callCount).To(Equal(0))
	})

	It("wraps speech model failures", func() {
		audio.transcribeFn = func(context.Context, llm.AudioRequest) (string, error) {
			return "", errors.New("upstream 503")
		}

		_, err := transcriber.Transcribe(ctx, chunk, nil)

		Expect(err).To(MatchError(ContainSubstring("speech to text")))
	})
})
