package model

import "strings"

// Line is one speaker turn of a transcript. Start and End are seconds from the
// beginning of the audio segment that produced it.
type Line struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// WordCount returns the number of whitespace separated words in the line.
func (l Line) WordCount() int {
	return len(strings.Fields(l.Text))
}

// TranscriptText renders lines as "speaker: text" rows, the form handed to prompts.
func TranscriptText(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Speaker)
		b.WriteString(": ")
		b.WriteString(l.Text)
	}
	return b.String()
}
