package sandbox

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyDiagram = errors.New("diagram source is empty")

// FlowDiagrammer lays out a flowchart written as one edge or node per line
// ("A --> B", "A -> B" or "A"), optionally preceded by a "graph"/"flowchart"
// header. Nodes are placed left to right in first-seen order.
type FlowDiagrammer struct{}

var diagramStyle = Style{Fill: "#ffffff", Stroke: "#333333", StrokeWidth: 1}

func (FlowDiagrammer) Diagram(canvas Canvas, source string, bounds Bounds) error {
	nodes, edges, err := parseFlow(source)
	if err != nil {
		return err
	}

	width := bounds.Width / float64(2*len(nodes)-1)
	height := min(bounds.Height, 40)
	top := bounds.Y + (bounds.Height-height)/2

	positions := make(map[string]Bounds, len(nodes))
	for i, node := range nodes {
		box := Bounds{X: bounds.X + float64(2*i)*width, Y: top, Width: width, Height: height}
		positions[node] = box
		canvas.Rect(box.X, box.Y, box.Width, box.Height, 4, diagramStyle)
		canvas.Text(box.X+box.Width/2, box.Y+box.Height/2, node, 14, Style{Fill: "#333333"})
	}
	for _, edge := range edges {
		from, to := positions[edge[0]], positions[edge[1]]
		canvas.Line(from.X+from.Width, from.Y+from.Height/2, to.X, to.Y+to.Height/2, diagramStyle)
	}

	return nil
}

func parseFlow(source string) ([]string, [][2]string, error) {
	var nodes []string
	seen := map[string]bool{}
	addNode := func(name string) {
		if !seen[name] {
			seen[name] = true
			nodes = append(nodes, name)
		}
	}

	var edges [][2]string
	for i, rawLine := range strings.Split(source, "\n") {
		for _, statement := range strings.Split(rawLine, ";") {
			line := strings.TrimSpace(statement)
			if line == "" || strings.HasPrefix(line, "%%") {
				continue
			}
			if i == 0 && (strings.HasPrefix(line, "graph") || strings.HasPrefix(line, "flowchart")) {
				continue
			}

			arrow := "-->"
			if !strings.Contains(line, arrow) {
				arrow = "->"
			}
			if !strings.Contains(line, arrow) {
				if strings.ContainsAny(line, " \t") {
					return nil, nil, fmt.Errorf("diagram line %d: cannot parse %q", i+1, line)
				}
				addNode(line)
				continue
			}

			parts := strings.Split(line, arrow)
			for j := range parts {
				parts[j] = strings.TrimSpace(parts[j])
				if parts[j] == "" {
					return nil, nil, fmt.Errorf("diagram line %d: dangling edge in %q", i+1, line)
				}
				addNode(parts[j])
			}
			for j := 0; j+1 < len(parts); j++ {
				edges = append(edges, [2]string{parts[j], parts[j+1]})
			}
		}
	}

	if len(nodes) == 0 {
		return nil, nil, ErrEmptyDiagram
	}
	return nodes, edges, nil
}
