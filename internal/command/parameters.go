package command

// Parameter shapes handed to the LLM as response schemas. Field names are the
// payload keys of the resulting command.

type NarrativeParams struct {
	Narrative string `json:"narrative" jsonschema_description:"The instruction rephrased as a concise clinical note"`
	Comment   string `json:"comment" jsonschema_description:"Additional context from the conversation, empty if none"`
}

type DiagnoseParams struct {
	Condition  string `json:"condition" jsonschema_description:"Name of the condition being diagnosed"`
	ICD10Code  string `json:"icd10_code" jsonschema_description:"Most specific ICD-10-CM code, empty when unsure"`
	Rationale  string `json:"rationale" jsonschema_description:"Why the provider reached this diagnosis"`
	Assessment string `json:"assessment" jsonschema_description:"Current assessment of the condition"`
}

type PrescriptionParams struct {
	Medication string `json:"medication" jsonschema_description:"Medication name with strength and form"`
	Sig        string `json:"sig" jsonschema_description:"Directions for use"`
	DaysSupply int    `json:"days_supply" jsonschema_description:"Days of supply, 0 when not stated"`
	Quantity   int    `json:"quantity" jsonschema_description:"Quantity to dispense, 0 when not stated"`
	Refills    int    `json:"refills" jsonschema_description:"Number of refills"`
	Indication string `json:"indication" jsonschema_description:"Condition treated by the medication"`
}

type MedicationStatementParams struct {
	Medication string `json:"medication" jsonschema_description:"Medication the patient reports taking"`
	Sig        string `json:"sig" jsonschema_description:"How the patient takes it"`
}

type LabOrderParams struct {
	Tests     []string `json:"tests" jsonschema_description:"Lab tests to order"`
	Fasting   bool     `json:"fasting" jsonschema_description:"Whether the patient must fast"`
	Diagnoses []string `json:"diagnoses" jsonschema_description:"Conditions justifying the order"`
	Comment   string   `json:"comment" jsonschema_description:"Instructions for the lab, empty if none"`
}

type ReferParams struct {
	Specialty string `json:"specialty" jsonschema_description:"Specialty or service referred to"`
	Reason    string `json:"reason" jsonschema_description:"Clinical question for the referral"`
	Urgency   string `json:"urgency" jsonschema:"enum=routine,enum=urgent" jsonschema_description:"Referral priority"`
}

type VitalsParams struct {
	HeightCm    float64 `json:"height_cm" jsonschema_description:"Height in centimeters, 0 when not mentioned"`
	WeightKg    float64 `json:"weight_kg" jsonschema_description:"Weight in kilograms, 0 when not mentioned"`
	BPSystolic  int     `json:"bp_systolic" jsonschema_description:"Systolic blood pressure, 0 when not mentioned"`
	BPDiastolic int     `json:"bp_diastolic" jsonschema_description:"Diastolic blood pressure, 0 when not mentioned"`
	Pulse       int     `json:"pulse" jsonschema_description:"Heart rate in beats per minute, 0 when not mentioned"`
	TempC       float64 `json:"temp_c" jsonschema_description:"Body temperature in Celsius, 0 when not mentioned"`
	SpO2        int     `json:"spo2" jsonschema_description:"Oxygen saturation percentage, 0 when not mentioned"`
}

type AllergyParams struct {
	Allergen string `json:"allergen" jsonschema_description:"Substance the patient is allergic to"`
	Reaction string `json:"reaction" jsonschema_description:"Reaction experienced"`
	Severity string `json:"severity" jsonschema:"enum=mild,enum=moderate,enum=severe,enum=unknown" jsonschema_description:"Reaction severity"`
}

type FollowUpParams struct {
	Interval string `json:"interval" jsonschema_description:"When the follow up should happen, e.g. '2 weeks'"`
	Reason   string `json:"reason" jsonschema_description:"Purpose of the follow up visit"`
}
