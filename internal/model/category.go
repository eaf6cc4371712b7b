package model

// Category splits instruction types into the two processing tracks.
type Category string

const (
	CategoryCommon        Category = "common"
	CategoryQuestionnaire Category = "questionnaire"
)
