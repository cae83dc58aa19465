package events

const KindMeta Kind = "meta"

// Meta carries lesson state that is not itself visual or narrated.
type Meta struct {
	Base
	Slide    *Slide
	Timeline []Cue
	// Repairing is set when the server announces the start (true) or end
	// (false) of a corrective regeneration of the current fragment.
	Repairing *bool
	// FixedCode is a server-supplied replacement for the current fragment.
	FixedCode string
}

// Slide positions the current visual within the lesson.
type Slide struct {
	Index int
	Total int
	Title string
}

// Cue is a named point on the lesson timeline, in seconds.
type Cue struct {
	At    float64
	Label string
}

func NewMeta() Meta {
	return Meta{Base: NewBase(KindMeta)}
}
