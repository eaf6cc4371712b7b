package command_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"hyperscribe.app/scribe/internal/command"
)

var _ = Describe("Questionnaire", func() {
	const form = `{"id":"phq2","name":"PHQ-2","questions":[
		{"id":"interest","label":"Little interest","type":"single","options":["no","some days","most days"]},
		{"id":"symptoms","label":"Symptoms","type":"multiple","options":["fatigue","insomnia","appetite"]},
		{"id":"notes","label":"Notes","type":"text"}]}`

	var q command.Questionnaire

	BeforeEach(func() {
		var err error
		q, err = command.ParseQuestionnaire(form)
		Expect(err).NotTo(HaveOccurred())
	})

	DescribeTable("ParseQuestionnaire rejects",
		func(information string) {
			_, err := command.ParseQuestionnaire(information)
			Expect(err).To(MatchError(command.ErrInvalidQuestionnaire))
		},
		Entry("malformed json", "{"),
		Entry("no questions", `{"id":"x","questions":[]}`),
		Entry("duplicate ids", `{"id":"x","questions":[{"id":"a","type":"text"},{"id":"a","type":"text"}]}`),
		Entry("missing id", `{"id":"x","questions":[{"type":"text"}]}`),
	)

	It("applies valid answers and reports the change", func() {
		updated, changed := q.Apply([]command.Answer{
			{QuestionID: "interest", Selected: []string{"most days", "no"}},
			{QuestionID: "symptoms", Selected: []string{"insomnia", "weight", "insomnia"}},
			{QuestionID: "notes", Answer: "sleeps 4h"},
			{QuestionID: "unknown", Answer: "x"},
		})

		Expect(changed).To(BeTrue())
		Expect(updated.Questions[0].Selected).To(Equal([]string{"most days"}))
		Expect(updated.Questions[1].Selected).To(Equal([]string{"insomnia"}))
		Expect(updated.Questions[2].Answer).To(Equal("sleeps 4h"))
		Expect(q.Questions[2].Answer).To(BeEmpty())
	})

	It("reports no change for identical answers", func() {
		once, _ := q.Apply([]command.Answer{{QuestionID: "notes", Answer: "ok"}})
		_, changed := once.Apply([]command.Answer{{QuestionID: "notes", Answer: "ok"}})
		Expect(changed).To(BeFalse())
	})

	It("round-trips through Serialize", func() {
		updated, _ := q.Apply([]command.Answer{{QuestionID: "notes", Answer: "ok"}})
		parsed, err := command.ParseQuestionnaire(updated.Serialize())
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed).To(Equal(updated))
	})

	It("builds an edit command with one response per question", func() {
		updated, _ := q.Apply([]command.Answer{{QuestionID: "interest", Selected: []string{"no"}}})
		cmd := command.QuestionnaireCommand("questionnaire", "u1", updated)

		Expect(cmd.UUID).To(Equal("u1"))
		Expect(cmd.Type).To(Equal("questionnaire"))
		Expect(cmd.Payload["questionnaire_id"]).To(Equal("phq2"))
		responses := cmd.Payload["responses"].([]map[string]any)
		Expect(responses).To(HaveLen(3))
		Expect(responses[0]).To(Equal(map[string]any{"question_id": "interest", "selected": []string{"no"}}))
		Expect(responses[2]).To(Equal(map[string]any{"question_id": "notes", "answer": ""}))
	})
})
