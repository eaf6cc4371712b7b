package brain

import (
	"hyperscribe.app/scribe/common/id"
	"hyperscribe.app/scribe/common/llm"
	"hyperscribe.app/scribe/internal/command"
	"hyperscribe.app/scribe/internal/cycle"
)

// NewCollaborators wires the LLM-backed collaborators of a cycle. Commands
// are built by the registry without a model call.
func NewCollaborators(audio llm.AudioClient, text llm.Client, registry *command.Registry, auditor cycle.Auditor) cycle.Collaborators {
	return cycle.Collaborators{
		Transcriber:    NewTranscriber(audio, text),
		Extractor:      NewExtractor(text, registry),
		Parameters:     NewParameterSynthesizer(text, registry),
		Commands:       registry,
		Questionnaires: NewQuestionnaireUpdater(text, registry),
		Auditor:        auditor,
		NewEffectID:    id.New,
	}
}
