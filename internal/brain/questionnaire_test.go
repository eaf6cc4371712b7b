package brain_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"hyperscribe.app/scribe/internal/brain"
	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/model"
)

var _ = Describe("QuestionnaireUpdater", func() {
	const form = `{"id":"ros","name":"Review of systems","questions":[` +
		`{"id":"fever","label":"Fever","type":"single","options":["yes","no"]},` +
		`{"id":"notes","label":"Notes","type":"text"}]}`

	var (
		ctx     context.Context
		client  *mockLLMClient
		updater *brain.QuestionnaireUpdater
		ins     model.Instruction
	)

	transcript := []model.Line{{Speaker: "Patient", Text: "No fever at all."}}

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockLLMClient{}
		updater = brain.NewQuestionnaireUpdater(client, command.DefaultRegistry()).WithRetryPolicy(noRetry)
		ins = model.Instruction{UUID: "q1", InstructionType: "ReviewOfSystem", Information: form}
	})

	It("returns the answered form with its edit command", func() {
		client.chatFn = respondWith(brain.AnswersResponse{Answers: []command.Answer{
			{QuestionID: "fever", Selected: []string{"no"}},
		}})

		out, ok, err := updater.Update(ctx, transcript, ins)

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(out.UUID).To(Equal("q1"))
		parsed, err := command.ParseQuestionnaire(out.Information)
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Questions[0].Selected).To(Equal([]string{"no"}))
		Expect(out.Command.UUID).To(Equal("q1"))
		Expect(out.Command.Type).To(Equal("ros"))
		Expect(out.Parameters).To(HaveKeyWithValue("questionnaire_id", "ros"))
	})

	DescribeTable("returns the form as is when no answer changes",
		func(answers []command.Answer) {
			client.chatFn = respondWith(brain.AnswersResponse{Answers: answers})

			out, ok, err := updater.Update(ctx, transcript, ins)

			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(out.Instruction).To(Equal(ins))
			Expect(out.Command.UUID).To(Equal("q1"))
			Expect(out.Parameters).To(HaveKeyWithValue("questionnaire_id", "ros"))
		},
		Entry("no answers", []command.Answer{}),
		Entry("answers to unknown questions", []command.Answer{{QuestionID: "unknown", Answer: "x"}}),
	)

	It("fails on a malformed form without calling the model", func() {
		ins.Information = "not a form"

		_, ok, err := updater.Update(ctx, transcript, ins)

		Expect(ok).To(BeFalse())
		Expect(err).To(MatchError(command.ErrInvalidQuestionnaire))
		Expect(client.callCount).To(Equal(0))
	})

	It("declines common instruction types", func() {
		_, ok, err := updater.Update(ctx, transcript, model.Instruction{InstructionType: "Plan", Information: "rest"})

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})
