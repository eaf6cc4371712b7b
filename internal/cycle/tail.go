package cycle

import (
	"strings"

	"hyperscribe.app/scribe/internal/model"
)

// TranscriptTail returns the suffix of transcript holding at most maxWords
// words. When the budget ends inside a line, that line is cut to its last
// words so the tail always ends exactly where the transcript ends.
func TranscriptTail(transcript []model.Line, maxWords int) []model.Line {
	if maxWords <= 0 || len(transcript) == 0 {
		return []model.Line{}
	}

	remaining := maxWords
	start := len(transcript)
	var partial *model.Line

	for i := len(transcript) - 1; i >= 0 && remaining > 0; i-- {
		words := strings.Fields(transcript[i].Text)
		if len(words) <= remaining {
			remaining -= len(words)
			start = i
			continue
		}
		cut := transcript[i]
		cut.Text = strings.Join(words[len(words)-remaining:], " ")
		partial = &cut
		break
	}

	tail := make([]model.Line, 0, len(transcript)-start+1)
	if partial != nil {
		tail = append(tail, *partial)
	}
	return append(tail, transcript[start:]...)
}
