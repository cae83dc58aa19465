package sandbox

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// Component is a compiled fragment. It is instantiated once per render
// context change and never shared across fragments.
type Component struct {
	scene *scene
	caps  Capabilities
}

// Instantiate evaluates the scene against rc and draws it onto a fresh
// canvas. Any evaluation error or panic inside a capability is returned as
// a runtime *Failure.
func (c *Component) Instantiate(ctx context.Context, rc RenderContext) (canvas Canvas, err error) {
	_, span := tracer.Start(ctx, "instantiate component")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			canvas = nil
			err = runtimeFailure(fmt.Errorf("panic while drawing: %v", r))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "instantiate failed")
		}
	}()

	env := newExprEnv(rc)
	width, err := c.scene.width.number(env)
	if err != nil {
		return nil, runtimeFailure(err)
	}
	height, err := c.scene.height.number(env)
	if err != nil {
		return nil, runtimeFailure(err)
	}
	background := ""
	if c.scene.background != nil {
		if background, err = c.scene.background.text(env); err != nil {
			return nil, runtimeFailure(err)
		}
	}
	if width <= 0 || height <= 0 {
		return nil, runtimeFailure(fmt.Errorf("canvas size must be positive, got %vx%v", width, height))
	}

	canvas = c.caps.NewCanvas(width, height, background)
	if err := c.drawNodes(canvas, c.scene.nodes, env); err != nil {
		return nil, runtimeFailure(err)
	}
	return canvas, nil
}

func (c *Component) drawNodes(canvas Canvas, nodes []*node, env exprEnv) error {
	for _, n := range nodes {
		if err := c.drawNode(canvas, n, env); err != nil {
			return fmt.Errorf("%s node: %w", n.kind, err)
		}
	}
	return nil
}

func (c *Component) drawNode(canvas Canvas, n *node, env exprEnv) error {
	for _, name := range []string{"visible", "when"} {
		if condition, ok := n.bools[name]; ok {
			shown, err := condition.boolean(env)
			if err != nil {
				return err
			}
			if !shown {
				return nil
			}
		}
	}

	attrs := attrReader{node: n, env: env}
	style := attrs.style()

	switch n.kind {
	case "path":
		canvas.Path(attrs.text("d"), style)
	case "rect":
		canvas.Rect(attrs.number("x"), attrs.number("y"), attrs.number("width"), attrs.number("height"), attrs.number("radius"), style)
	case "circle":
		canvas.Circle(attrs.number("cx"), attrs.number("cy"), attrs.number("r"), style)
	case "line":
		canvas.Line(attrs.number("x1"), attrs.number("y1"), attrs.number("x2"), attrs.number("y2"), style)
	case "polygon":
		points := make([]Point, 0, len(n.points))
		for _, point := range n.points {
			points = append(points, Point{X: attrs.eval(point[0]), Y: attrs.eval(point[1])})
		}
		if attrs.err == nil {
			canvas.Polygon(points, style)
		}
	case "text":
		canvas.Text(attrs.number("x"), attrs.number("y"), attrs.text("text"), attrs.numberOr("size", 16), style)
	case "image":
		src := attrs.text("src")
		if attrs.err == nil && n.texts["src"].program != nil {
			resolved, err := c.caps.URLs.ResolveURL(src)
			if err != nil {
				return err
			}
			src = resolved
		}
		canvas.Image(attrs.number("x"), attrs.number("y"), attrs.number("width"), attrs.number("height"), src)
	case "diagram":
		bounds := Bounds{X: attrs.number("x"), Y: attrs.number("y"), Width: attrs.number("width"), Height: attrs.number("height")}
		source := attrs.text("source")
		if attrs.err != nil {
			return attrs.err
		}
		if err := c.caps.Diagrams.Diagram(canvas, source, bounds); err != nil {
			return fmt.Errorf("diagram: %w", err)
		}
	case "group":
		offset := translatedCanvas{base: canvas, dx: attrs.number("x"), dy: attrs.number("y")}
		if attrs.err != nil {
			return attrs.err
		}
		return c.drawNodes(offset, n.children, env)
	}

	return attrs.err
}

// attrReader evaluates node attributes and keeps the first error so draw
// calls stay linear.
type attrReader struct {
	node *node
	env  exprEnv
	err  error
}

func (r *attrReader) eval(e *expression) float64 {
	if r.err != nil || e == nil {
		return 0
	}
	value, err := e.number(r.env)
	if err != nil {
		r.err = err
	}
	return value
}

func (r *attrReader) number(name string) float64 {
	return r.eval(r.node.numbers[name])
}

func (r *attrReader) numberOr(name string, fallback float64) float64 {
	if _, ok := r.node.numbers[name]; !ok {
		return fallback
	}
	return r.number(name)
}

func (r *attrReader) text(name string) string {
	e, ok := r.node.texts[name]
	if r.err != nil || !ok {
		return ""
	}
	value, err := e.text(r.env)
	if err != nil {
		r.err = err
	}
	return value
}

func (r *attrReader) style() Style {
	return Style{
		Fill:        r.text("fill"),
		Stroke:      r.text("stroke"),
		StrokeWidth: r.numberOr("strokeWidth", 1),
		Opacity:     r.numberOr("opacity", 1),
	}
}
