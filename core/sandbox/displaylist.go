package sandbox

type OpKind string

const (
	OpPath    OpKind = "path"
	OpRect    OpKind = "rect"
	OpCircle  OpKind = "circle"
	OpLine    OpKind = "line"
	OpPolygon OpKind = "polygon"
	OpText    OpKind = "text"
	OpImage   OpKind = "image"
)

// Op is one recorded drawing call.
type Op struct {
	Kind   OpKind
	Coords []float64
	Points []Point
	Text   string
	Size   float64
	Style  Style
}

// DisplayList is a Canvas that records drawing calls in order.
type DisplayList struct {
	Width      float64
	Height     float64
	Background string
	Ops        []Op
}

func NewDisplayList(width, height float64, background string) *DisplayList {
	return &DisplayList{Width: width, Height: height, Background: background}
}

func (d *DisplayList) Path(path string, style Style) {
	d.Ops = append(d.Ops, Op{Kind: OpPath, Text: path, Style: style})
}

func (d *DisplayList) Rect(x, y, width, height, radius float64, style Style) {
	d.Ops = append(d.Ops, Op{Kind: OpRect, Coords: []float64{x, y, width, height, radius}, Style: style})
}

func (d *DisplayList) Circle(cx, cy, r float64, style Style) {
	d.Ops = append(d.Ops, Op{Kind: OpCircle, Coords: []float64{cx, cy, r}, Style: style})
}

func (d *DisplayList) Line(x1, y1, x2, y2 float64, style Style) {
	d.Ops = append(d.Ops, Op{Kind: OpLine, Coords: []float64{x1, y1, x2, y2}, Style: style})
}

func (d *DisplayList) Polygon(points []Point, style Style) {
	d.Ops = append(d.Ops, Op{Kind: OpPolygon, Points: append([]Point(nil), points...), Style: style})
}

func (d *DisplayList) Text(x, y float64, text string, size float64, style Style) {
	d.Ops = append(d.Ops, Op{Kind: OpText, Coords: []float64{x, y}, Text: text, Size: size, Style: style})
}

func (d *DisplayList) Image(x, y, width, height float64, src string) {
	d.Ops = append(d.Ops, Op{Kind: OpImage, Coords: []float64{x, y, width, height}, Text: src})
}

// Texts returns the text of every text op in draw order.
func (d *DisplayList) Texts() []string {
	var texts []string
	for _, op := range d.Ops {
		if op.Kind == OpText {
			texts = append(texts, op.Text)
		}
	}
	return texts
}

// translatedCanvas offsets every coordinate before delegating; used for
// group nodes.
type translatedCanvas struct {
	base   Canvas
	dx, dy float64
}

func (t translatedCanvas) Path(d string, style Style) {
	// Path data is passed through; groups translate only primitive
	// coordinates.
	t.base.Path(d, style)
}

func (t translatedCanvas) Rect(x, y, width, height, radius float64, style Style) {
	t.base.Rect(x+t.dx, y+t.dy, width, height, radius, style)
}

func (t translatedCanvas) Circle(cx, cy, r float64, style Style) {
	t.base.Circle(cx+t.dx, cy+t.dy, r, style)
}

func (t translatedCanvas) Line(x1, y1, x2, y2 float64, style Style) {
	t.base.Line(x1+t.dx, y1+t.dy, x2+t.dx, y2+t.dy, style)
}

func (t translatedCanvas) Polygon(points []Point, style Style) {
	moved := make([]Point, len(points))
	for i, point := range points {
		moved[i] = Point{X: point.X + t.dx, Y: point.Y + t.dy}
	}
	t.base.Polygon(moved, style)
}

func (t translatedCanvas) Text(x, y float64, text string, size float64, style Style) {
	t.base.Text(x+t.dx, y+t.dy, text, size, style)
}

func (t translatedCanvas) Image(x, y, width, height float64, src string) {
	t.base.Image(x+t.dx, y+t.dy, width, height, src)
}
