package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"hyperscribe.app/scribe/common/llm"
	"hyperscribe.app/scribe/internal/model"
)

// DefaultRegistry returns the registry of every instruction type the scribe handles.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultSpecs()...)
	if err != nil {
		panic(fmt.Sprintf("default registry: %v", err))
	}
	return r
}

func DefaultSpecs() []Spec {
	return []Spec{
		narrativeSpec("Assess", "assess", "Assessment of a condition already known, its status and narrative"),
		narrativeSpec("HistoryOfPresentIllness", "hpi", "History of the present illness as told by the patient"),
		narrativeSpec("Instruct", "instruct", "Instruction given to the patient about their care"),
		narrativeSpec("Plan", "plan", "Plan of care agreed during the visit"),
		narrativeSpec("ReasonForVisit", "reasonForVisit", "Reason the patient came to the visit"),
		narrativeSpec("Goal", "goal", "Goal set for the patient"),
		narrativeSpec("Task", "task", "Task for the care team to complete after the visit"),
		{
			Type:        "Diagnose",
			Category:    model.CategoryCommon,
			Description: "New diagnosis of a condition, with its rationale",
			SchemaKey:   "diagnose",
			Schema:      llm.GenerateSchema[DiagnoseParams](),
			Build:       requireKeys("diagnose", "condition"),
		},
		{
			Type:        "Prescription",
			Category:    model.CategoryCommon,
			Description: "New medication prescribed, one instruction per medication",
			SchemaKey:   "prescribe",
			Schema:      llm.GenerateSchema[PrescriptionParams](),
			Build:       requireKeys("prescribe", "medication", "sig"),
		},
		{
			Type:        "MedicationStatement",
			Category:    model.CategoryCommon,
			Description: "Medication the patient currently takes, one instruction per medication",
			SchemaKey:   "medicationStatement",
			Schema:      llm.GenerateSchema[MedicationStatementParams](),
			Build:       requireKeys("medicationStatement", "medication"),
		},
		{
			Type:        "LabOrder",
			Category:    model.CategoryCommon,
			Description: "Lab tests ordered, grouped in one instruction per order",
			SchemaKey:   "labOrder",
			Schema:      llm.GenerateSchema[LabOrderParams](),
			Build:       requireKeys("labOrder", "tests"),
		},
		{
			Type:        "Refer",
			Category:    model.CategoryCommon,
			Description: "Referral to another provider or specialty",
			SchemaKey:   "refer",
			Schema:      llm.GenerateSchema[ReferParams](),
			Build:       requireKeys("refer", "specialty"),
		},
		{
			Type:        "Vitals",
			Category:    model.CategoryCommon,
			Description: "Vital signs measured or reported during the visit",
			SchemaKey:   "vitals",
			Schema:      llm.GenerateSchema[VitalsParams](),
			Build:       buildVitals,
		},
		{
			Type:        "Allergy",
			Category:    model.CategoryCommon,
			Description: "Allergy reported by the patient, one instruction per allergen",
			SchemaKey:   "allergy",
			Schema:      llm.GenerateSchema[AllergyParams](),
			Build:       requireKeys("allergy", "allergen"),
		},
		{
			Type:        "FollowUp",
			Category:    model.CategoryCommon,
			Description: "Follow up visit to schedule",
			SchemaKey:   "followUp",
			Schema:      llm.GenerateSchema[FollowUpParams](),
			Build:       requireKeys("followUp", "interval"),
		},
		questionnaireSpec("Questionnaire", "questionnaire", "Structured questionnaire filled from the conversation"),
		questionnaireSpec("PhysicalExam", "exam", "Physical exam findings recorded on the exam form"),
		questionnaireSpec("ReviewOfSystem", "ros", "Review of systems recorded on the ROS form"),
		questionnaireSpec("StructuredAssessment", "structuredAssessment", "Structured assessment form"),
	}
}

func narrativeSpec(instructionType, schemaKey, description string) Spec {
	return Spec{
		Type:        instructionType,
		Category:    model.CategoryCommon,
		Description: description,
		SchemaKey:   schemaKey,
		Schema:      llm.GenerateSchema[NarrativeParams](),
		Build:       requireKeys(schemaKey, "narrative"),
	}
}

func questionnaireSpec(instructionType, schemaKey, description string) Spec {
	return Spec{
		Type:        instructionType,
		Category:    model.CategoryQuestionnaire,
		Description: description,
		SchemaKey:   schemaKey,
		Build: func(ins model.InstructionWithParameters) (model.Command, bool, error) {
			q, err := ParseQuestionnaire(ins.Information)
			if err != nil {
				return model.Command{}, false, err
			}
			return QuestionnaireCommand(schemaKey, ins.UUID, q), true, nil
		},
	}
}

// requireKeys builds a command whose payload is the parameters, declining when
// any of the listed keys is missing or blank.
func requireKeys(schemaKey string, keys ...string) BuildFunc {
	return func(ins model.InstructionWithParameters) (model.Command, bool, error) {
		for _, k := range keys {
			if isBlank(ins.Parameters[k]) {
				return model.Command{}, false, nil
			}
		}
		return model.Command{
			UUID:    ins.UUID,
			Type:    schemaKey,
			Payload: clonePayload(ins.Parameters),
		}, true, nil
	}
}

// buildVitals keeps only the measurements that were actually mentioned.
func buildVitals(ins model.InstructionWithParameters) (model.Command, bool, error) {
	payload := map[string]any{}
	for k, v := range ins.Parameters {
		if !isBlank(v) {
			payload[k] = v
		}
	}
	if len(payload) == 0 {
		return model.Command{}, false, nil
	}
	return model.Command{UUID: ins.UUID, Type: "vitals", Payload: payload}, true, nil
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case json.Number:
		return t.String() == "0"
	default:
		return false
	}
}

func clonePayload(p model.Parameters) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
