package events

import "strings"

const KindSpeak Kind = "speak"

// Speak carries narration for the current visual.
type Speak struct {
	Base
	Text            string
	AudioURL        string
	DurationSeconds *float64
	Voice           string
	Model           string
	Words           []WordTimestamp
}

// WordTimestamp positions one narrated word on the audio timeline, in
// seconds.
type WordTimestamp struct {
	Word  string
	Start float64
	End   float64
}

func NewSpeak(text, audioURL string) Speak {
	return Speak{Base: NewBase(KindSpeak), Text: text, AudioURL: audioURL}
}

// HasContent reports whether the speak event qualifies for the session
// view.
func (s Speak) HasContent() bool {
	return s.Text != "" || s.AudioURL != ""
}

// Duration returns the declared narration length or 0 when unknown.
func (s Speak) Duration() float64 {
	if s.DurationSeconds == nil {
		return 0
	}
	return *s.DurationSeconds
}

// SpokenText joins the words whose start is at or before t.
func SpokenText(words []WordTimestamp, t float64) string {
	spoken := make([]string, 0, len(words))
	for _, word := range words {
		if word.Start > t {
			continue
		}
		spoken = append(spoken, word.Word)
	}
	return strings.Join(spoken, " ")
}
