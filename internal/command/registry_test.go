package command_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/model"
)

var _ = Describe("Registry", func() {
	var registry *command.Registry

	BeforeEach(func() {
		registry = command.DefaultRegistry()
	})

	Describe("NewRegistry", func() {
		It("rejects duplicate types", func() {
			_, err := command.NewRegistry(
				command.Spec{Type: "Plan", Category: model.CategoryCommon},
				command.Spec{Type: "Plan", Category: model.CategoryCommon},
			)
			Expect(err).To(MatchError(ContainSubstring("duplicate")))
		})

		It("rejects a spec without type", func() {
			_, err := command.NewRegistry(command.Spec{Category: model.CategoryCommon})
			Expect(err).To(HaveOccurred())
		})

		It("rejects an unknown category", func() {
			_, err := command.NewRegistry(command.Spec{Type: "Plan", Category: "other"})
			Expect(err).To(MatchError(ContainSubstring("unknown category")))
		})
	})

	DescribeTable("Category",
		func(instructionType string, expected model.Category) {
			Expect(registry.Category(instructionType)).To(Equal(expected))
		},
		Entry("narrative", "Plan", model.CategoryCommon),
		Entry("medication", "Prescription", model.CategoryCommon),
		Entry("questionnaire", "Questionnaire", model.CategoryQuestionnaire),
		Entry("physical exam", "PhysicalExam", model.CategoryQuestionnaire),
		Entry("review of systems", "ReviewOfSystem", model.CategoryQuestionnaire),
		Entry("unknown types ride the common track", "Imaging", model.CategoryCommon),
	)

	Describe("Partition", func() {
		It("splits by category and keeps relative order", func() {
			instructions := []model.Instruction{
				{UUID: "1", InstructionType: "Plan"},
				{UUID: "2", InstructionType: "PhysicalExam"},
				{UUID: "3", InstructionType: "Diagnose"},
				{UUID: "4", InstructionType: "Questionnaire"},
				{UUID: "5", InstructionType: "Imaging"},
			}

			common, questionnaire := registry.Partition(instructions)

			Expect(uuids(common)).To(Equal([]string{"1", "3", "5"}))
			Expect(uuids(questionnaire)).To(Equal([]string{"2", "4"}))
		})

		It("returns empty, non-nil slices for no input", func() {
			common, questionnaire := registry.Partition(nil)
			Expect(common).NotTo(BeNil())
			Expect(questionnaire).NotTo(BeNil())
			Expect(common).To(BeEmpty())
			Expect(questionnaire).To(BeEmpty())
		})
	})

	Describe("Specs", func() {
		It("gives common specs a parameter schema and questionnaires none", func() {
			for _, s := range registry.Specs(model.CategoryCommon) {
				Expect(s.Schema).NotTo(BeNil(), s.Type)
				Expect(s.Build).NotTo(BeNil(), s.Type)
			}
			for _, s := range registry.Specs(model.CategoryQuestionnaire) {
				Expect(s.Schema).To(BeNil(), s.Type)
			}
		})
	})

	Describe("Types", func() {
		It("is sorted", func() {
			types := registry.Types()
			Expect(types).To(ContainElements("Plan", "Questionnaire", "FollowUp"))
			for i := 1; i < len(types); i++ {
				Expect(types[i-1] < types[i]).To(BeTrue())
			}
		})
	})

	Describe("FromExternal", func() {
		It("maps a common command with empty information", func() {
			ins, ok := registry.FromExternal(model.ExternalCommand{UUID: "e1", Schema: "prescribe", Information: "ignored"})
			Expect(ok).To(BeTrue())
			Expect(ins).To(Equal(model.Instruction{UUID: "e1", InstructionType: "Prescription"}))
		})

		It("keeps the form of a questionnaire", func() {
			ins, ok := registry.FromExternal(model.ExternalCommand{UUID: "e2", Schema: "ros", Information: "form"})
			Expect(ok).To(BeTrue())
			Expect(ins.InstructionType).To(Equal("ReviewOfSystem"))
			Expect(ins.Information).To(Equal("form"))
		})

		It("skips unknown schemas", func() {
			_, ok := registry.FromExternal(model.ExternalCommand{UUID: "e3", Schema: "imagingOrder"})
			Expect(ok).To(BeFalse())
		})
	})
})

func uuids(instructions []model.Instruction) []string {
	out := make([]string, len(instructions))
	for i, ins := range instructions {
		out[i] = ins.UUID
	}
	return out
}

var _ = Describe("Registry.Build", func() {
	registry := command.DefaultRegistry()

	It("dispatches to the type's builder", func() {
		cmd, ok, err := registry.Build(context.Background(), model.InstructionWithParameters{
			Instruction: model.Instruction{UUID: "u1", InstructionType: "Refer"},
			Parameters:  model.Parameters{"specialty": "cardiology"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(cmd.Type).To(Equal("refer"))
	})

	It("declines types without a handler", func() {
		_, ok, err := registry.Build(context.Background(), model.InstructionWithParameters{
			Instruction: model.Instruction{UUID: "u1", InstructionType: "Imaging"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})
