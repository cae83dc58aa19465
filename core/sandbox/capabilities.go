package sandbox

import (
	"github.com/koscakluka/ema-lesson/core/events"
)

type Point struct {
	X, Y float64
}

type Bounds struct {
	X, Y, Width, Height float64
}

// Style is the paint applied by a drawing primitive. Zero Opacity means
// fully opaque.
type Style struct {
	Fill        string
	Stroke      string
	StrokeWidth float64
	Opacity     float64
}

// Canvas is the drawing capability handed to compiled components.
type Canvas interface {
	Path(d string, style Style)
	Rect(x, y, width, height, radius float64, style Style)
	Circle(cx, cy, r float64, style Style)
	Line(x1, y1, x2, y2 float64, style Style)
	Polygon(points []Point, style Style)
	Text(x, y float64, text string, size float64, style Style)
	Image(x, y, width, height float64, src string)
}

// Diagrammer renders diagram source into bounds on canvas.
type Diagrammer interface {
	Diagram(canvas Canvas, source string, bounds Bounds) error
}

// URLResolver turns a fragment-supplied reference into a loadable URL. It
// must reject anything that is not a plain web resource.
type URLResolver interface {
	ResolveURL(ref string) (string, error)
}

// Capabilities is the complete surface a compiled component can reach.
type Capabilities struct {
	NewCanvas func(width, height float64, background string) Canvas
	Diagrams  Diagrammer
	URLs      URLResolver
}

// DefaultCapabilities records drawing into a DisplayList, lays diagrams
// out with FlowDiagrammer and resolves URLs against baseURL.
func DefaultCapabilities(baseURL string) Capabilities {
	return Capabilities{
		NewCanvas: func(width, height float64, background string) Canvas {
			return NewDisplayList(width, height, background)
		},
		Diagrams: FlowDiagrammer{},
		URLs:     NewBaseURLResolver(baseURL),
	}
}

func (c Capabilities) withDefaults() Capabilities {
	defaults := DefaultCapabilities("")
	if c.NewCanvas == nil {
		c.NewCanvas = defaults.NewCanvas
	}
	if c.Diagrams == nil {
		c.Diagrams = defaults.Diagrams
	}
	if c.URLs == nil {
		c.URLs = defaults.URLs
	}
	return c
}

// RenderContext is the read-only state a component is instantiated
// against.
type RenderContext struct {
	Slide        events.Slide
	ShowCaptions bool
	IsPlaying    bool
	TimeSeconds  float64
	Timeline     []events.Cue
	Words        []events.WordTimestamp
	// SpokenText is the narration spoken up to TimeSeconds.
	SpokenText string
}
