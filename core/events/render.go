package events

const KindRender Kind = "render"

// Render carries a visual program and the metadata shown beside it.
//
// RuntimeHints is read-only once the event has been decoded.
type Render struct {
	Base
	Code         string
	Language     string
	Title        string
	Markdown     string
	RuntimeHints map[string]any
}

func NewRender(code string) Render {
	return Render{Base: NewBase(KindRender), Code: code}
}

// HasCode reports whether the render qualifies for the session view.
func (r Render) HasCode() bool {
	return r.Code != ""
}
