package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned by Decode for records whose type is not part
// of the contract.
var ErrUnknownKind = errors.New("unknown event type")

// Envelope is the wire form of one stream record.
type Envelope struct {
	Type    Kind            `json:"type" jsonschema:"required,enum=start,enum=session,enum=render,enum=speak,enum=meta,enum=final,enum=error,enum=heartbeat,enum=done"`
	Session *SessionPayload `json:"session,omitempty"`
	Render  *RenderPayload  `json:"render,omitempty"`
	Speak   *SpeakPayload   `json:"speak,omitempty"`
	Meta    *MetaPayload    `json:"meta,omitempty"`
	Final   *FinalPayload   `json:"final,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
	// Message is accepted as a flat alternative to error.message.
	Message string `json:"message,omitempty"`
}

type SessionPayload struct {
	ID      string `json:"id,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
}

type RenderPayload struct {
	Code         string         `json:"code"`
	Language     string         `json:"language,omitempty"`
	Title        string         `json:"title,omitempty"`
	Markdown     string         `json:"markdown,omitempty"`
	RuntimeHints map[string]any `json:"runtime_hints,omitempty"`
}

type SpeakPayload struct {
	Text            string        `json:"text,omitempty"`
	AudioURL        string        `json:"audio_url,omitempty"`
	DurationSeconds *float64      `json:"duration_seconds,omitempty"`
	Voice           string        `json:"voice,omitempty"`
	Model           string        `json:"model,omitempty"`
	Words           []WordPayload `json:"words,omitempty"`
}

type WordPayload struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type MetaPayload struct {
	Slide     *SlidePayload `json:"slide,omitempty"`
	Timeline  []CuePayload  `json:"timeline,omitempty"`
	Repairing *bool         `json:"repairing,omitempty"`
	FixedCode string        `json:"fixed_code,omitempty"`
}

type SlidePayload struct {
	Index int    `json:"index"`
	Total int    `json:"total,omitempty"`
	Title string `json:"title,omitempty"`
}

type CuePayload struct {
	At    float64 `json:"at"`
	Label string  `json:"label,omitempty"`
}

type FinalPayload struct {
	Text string `json:"text,omitempty"`
}

// ErrorPayload decodes from either {"message": "..."} or a bare string.
type ErrorPayload struct {
	Message string `json:"message"`
}

func (p *ErrorPayload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &p.Message)
	}

	type plain ErrorPayload
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*p = ErrorPayload(decoded)
	return nil
}

// Decode parses one trimmed, non-empty line into a typed Event.
func Decode(line []byte) (Event, error) {
	var envelope Envelope
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, fmt.Errorf("error unmarshalling event: %w", err)
	}

	switch envelope.Type {
	case KindStart:
		return NewStart(), nil
	case KindHeartbeat:
		return NewHeartbeat(), nil
	case KindDone:
		return NewDone(), nil
	case KindSession:
		session := NewSession("", 0)
		if envelope.Session != nil {
			session.ID = envelope.Session.ID
			session.Attempt = envelope.Session.Attempt
		}
		return session, nil
	case KindRender:
		render := NewRender("")
		if payload := envelope.Render; payload != nil {
			render.Code = payload.Code
			render.Language = payload.Language
			render.Title = payload.Title
			render.Markdown = payload.Markdown
			render.RuntimeHints = payload.RuntimeHints
		}
		return render, nil
	case KindSpeak:
		speak := NewSpeak("", "")
		if payload := envelope.Speak; payload != nil {
			speak.Text = payload.Text
			speak.AudioURL = payload.AudioURL
			speak.DurationSeconds = payload.DurationSeconds
			speak.Voice = payload.Voice
			speak.Model = payload.Model
			for _, word := range payload.Words {
				speak.Words = append(speak.Words, WordTimestamp(word))
			}
		}
		return speak, nil
	case KindMeta:
		meta := NewMeta()
		if payload := envelope.Meta; payload != nil {
			if payload.Slide != nil {
				slide := Slide(*payload.Slide)
				meta.Slide = &slide
			}
			for _, cue := range payload.Timeline {
				meta.Timeline = append(meta.Timeline, Cue(cue))
			}
			meta.Repairing = payload.Repairing
			meta.FixedCode = payload.FixedCode
		}
		return meta, nil
	case KindFinal:
		final := NewFinal("")
		if envelope.Final != nil {
			final.Text = envelope.Final.Text
		}
		return final, nil
	case KindError:
		message := envelope.Message
		if envelope.Error != nil && envelope.Error.Message != "" {
			message = envelope.Error.Message
		}
		return NewError(message), nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrUnknownKind)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, envelope.Type)
	}
}

// Encode renders event in wire form without a trailing newline.
func Encode(event Event) ([]byte, error) {
	envelope := Envelope{Type: event.Kind()}

	switch typed := event.(type) {
	case Start, Heartbeat, Done:
	case Session:
		envelope.Session = &SessionPayload{ID: typed.ID, Attempt: typed.Attempt}
	case Render:
		envelope.Render = &RenderPayload{
			Code:         typed.Code,
			Language:     typed.Language,
			Title:        typed.Title,
			Markdown:     typed.Markdown,
			RuntimeHints: typed.RuntimeHints,
		}
	case Speak:
		payload := &SpeakPayload{
			Text:            typed.Text,
			AudioURL:        typed.AudioURL,
			DurationSeconds: typed.DurationSeconds,
			Voice:           typed.Voice,
			Model:           typed.Model,
		}
		for _, word := range typed.Words {
			payload.Words = append(payload.Words, WordPayload(word))
		}
		envelope.Speak = payload
	case Meta:
		payload := &MetaPayload{Repairing: typed.Repairing, FixedCode: typed.FixedCode}
		if typed.Slide != nil {
			slide := SlidePayload(*typed.Slide)
			payload.Slide = &slide
		}
		for _, cue := range typed.Timeline {
			payload.Timeline = append(payload.Timeline, CuePayload(cue))
		}
		envelope.Meta = payload
	case Final:
		envelope.Final = &FinalPayload{Text: typed.Text}
	case Error:
		envelope.Error = &ErrorPayload{Message: typed.Message}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, event.Kind())
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("error marshalling event: %w", err)
	}
	return data, nil
}
