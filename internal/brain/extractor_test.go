package brain_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"hyperscribe.app/scribe/common/llm"
	"hyperscribe.app/scribe/internal/brain"
	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/model"
)

var _ = Describe("Extractor", func() {
	var (
		ctx       context.Context
		client    *mockLLMClient
		extractor *brain.Extractor
	)

	transcript := []model.Line{
		{Speaker: "Clinician", Text: "Let's start amoxicillin and see you in two weeks."},
	}

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockLLMClient{}
		extractor = brain.NewExtractor(client, command.DefaultRegistry()).WithRetryPolicy(noRetry)
	})

	It("keeps known identities and mints new ones", func() {
		known := []model.Instruction{{UUID: "k1", InstructionType: "Plan", Information: "rest"}}
		client.chatFn = respondWith(brain.InstructionsResponse{Instructions: []brain.DetectedInstruction{
			{UUID: "k1", InstructionType: "Plan", Information: "rest and fluids"},
			{UUID: "", InstructionType: "Prescription", Information: "amoxicillin"},
			{UUID: "made-up", InstructionType: "FollowUp", Information: "two weeks"},
		}})

		instructions, err := extractor.Detect(ctx, transcript, known)

		Expect(err).NotTo(HaveOccurred())
		Expect(instructions).To(HaveLen(3))
		Expect(instructions[0].UUID).To(Equal("k1"))
		Expect(instructions[0].Information).To(Equal("rest and fluids"))
		Expect(instructions[1].UUID).NotTo(BeEmpty())
		Expect(instructions[2].UUID).NotTo(Equal("made-up"))
		Expect(instructions[2].Index).To(Equal(2))
	})

	It("lists the common types and the known instructions in the prompt", func() {
		known := []model.Instruction{{UUID: "k1", InstructionType: "Plan", Information: "rest"}}
		client.chatFn = respondWith(brain.InstructionsResponse{})

		_, err := extractor.Detect(ctx, transcript, known)

		Expect(err).NotTo(HaveOccurred())
		prompt := client.requests[0].UserPrompt
		Expect(prompt).To(ContainSubstring("- Prescription:"))
		Expect(prompt).NotTo(ContainSubstring("- Questionnaire:"))
		Expect(prompt).To(ContainSubstring(`"uuid": "k1"`))
		Expect(prompt).To(ContainSubstring("amoxicillin"))
	})

	It("returns an error when the model fails", func() {
		client.chatFn = func(context.Context, llm.Request, any) (*llm.Response, error) {
			return nil, errors.New("bad request")
		}

		_, err := extractor.Detect(ctx, transcript, nil)

		Expect(err).To(MatchError(ContainSubstring("instruction extraction")))
	})
})
