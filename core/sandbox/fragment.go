package sandbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// PlaceholderMarker marks a fragment the server has not produced yet.
const PlaceholderMarker = "__LESSON_VISUAL_PENDING__"

const sceneVersion = 1

// Fragment is a visual program as delivered by a render event.
type Fragment struct {
	Code     string
	Language string
}

// IsPlaceholder reports whether the fragment is the "not ready" sentinel.
func (f Fragment) IsPlaceholder() bool {
	return strings.TrimSpace(f.Code) == "" || strings.Contains(f.Code, PlaceholderMarker)
}

func parseFragment(fragment Fragment) (map[string]any, error) {
	document := map[string]any{}
	switch strings.ToLower(strings.TrimSpace(fragment.Language)) {
	case "", "yaml", "yml":
		if err := yaml.Unmarshal([]byte(fragment.Code), &document); err != nil {
			return nil, fmt.Errorf("error parsing YAML: %w", err)
		}
	case "json", "jsonc":
		if err := json.Unmarshal(jsonc.ToJSON([]byte(fragment.Code)), &document); err != nil {
			return nil, fmt.Errorf("error parsing JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported fragment language %q", fragment.Language)
	}
	return document, nil
}

type attrType int

const (
	attrNumber attrType = iota
	attrText
	attrBool
	attrPoints
	attrNodes
)

var commonAttrs = map[string]attrType{
	"kind":        attrText,
	"fill":        attrText,
	"stroke":      attrText,
	"strokeWidth": attrNumber,
	"opacity":     attrNumber,
	"visible":     attrBool,
	"when":        attrBool,
}

var nodeAttrs = map[string]map[string]attrType{
	"path":    {"d": attrText},
	"rect":    {"x": attrNumber, "y": attrNumber, "width": attrNumber, "height": attrNumber, "radius": attrNumber},
	"circle":  {"cx": attrNumber, "cy": attrNumber, "r": attrNumber},
	"line":    {"x1": attrNumber, "y1": attrNumber, "x2": attrNumber, "y2": attrNumber},
	"polygon": {"points": attrPoints},
	"text":    {"x": attrNumber, "y": attrNumber, "text": attrText, "size": attrNumber},
	"diagram": {"x": attrNumber, "y": attrNumber, "width": attrNumber, "height": attrNumber, "source": attrText},
	"image":   {"x": attrNumber, "y": attrNumber, "width": attrNumber, "height": attrNumber, "src": attrText},
	"group":   {"x": attrNumber, "y": attrNumber, "nodes": attrNodes},
}

var requiredAttrs = map[string][]string{
	"path":    {"d"},
	"polygon": {"points"},
	"text":    {"text"},
	"diagram": {"source"},
	"image":   {"src"},
}

// node is a compiled scene node.
type node struct {
	kind     string
	numbers  map[string]*expression
	texts    map[string]*expression
	bools    map[string]*expression
	points   [][2]*expression
	children []*node
}

// scene is a compiled "default" entry.
type scene struct {
	width      *expression
	height     *expression
	background *expression
	nodes      []*node
}

func compileScene(document map[string]any, urls URLResolver) (*scene, error) {
	for _, key := range sortedKeys(document) {
		switch {
		case key == "version":
			version, ok := asInt(document[key])
			if !ok || version != sceneVersion {
				return nil, fmt.Errorf("unsupported scene version %v", document[key])
			}
		case key == "default":
		case forbiddenNames[key]:
			return nil, fmt.Errorf("%w: %q", ErrForbidden, key)
		default:
			return nil, fmt.Errorf("unknown top-level key %q", key)
		}
	}

	rawEntry, ok := document["default"]
	if !ok || rawEntry == nil {
		return nil, ErrMissingEntry
	}
	entry, ok := rawEntry.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("default entry must be a mapping, got %T", rawEntry)
	}

	var s scene
	var err error
	for _, key := range sortedKeys(entry) {
		switch key {
		case "width":
			s.width, err = compileValue("default.width", entry[key], attrNumber)
		case "height":
			s.height, err = compileValue("default.height", entry[key], attrNumber)
		case "background":
			s.background, err = compileValue("default.background", entry[key], attrText)
		case "nodes":
			s.nodes, err = compileNodes("default.nodes", entry[key], urls)
		default:
			if forbiddenNames[key] {
				return nil, fmt.Errorf("%w: %q", ErrForbidden, key)
			}
			return nil, fmt.Errorf("unknown key %q in default entry", key)
		}
		if err != nil {
			return nil, err
		}
	}
	if s.width == nil || s.height == nil {
		return nil, errors.New("default entry needs width and height")
	}

	return &s, nil
}

func compileNodes(path string, raw any, urls URLResolver) ([]*node, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list, got %T", path, raw)
	}

	nodes := make([]*node, 0, len(list))
	for i, item := range list {
		compiled, err := compileNode(fmt.Sprintf("%s[%d]", path, i), item, urls)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, compiled)
	}
	return nodes, nil
}

func compileNode(path string, raw any, urls URLResolver) (*node, error) {
	attrs, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a mapping, got %T", path, raw)
	}

	kind, _ := attrs["kind"].(string)
	if forbiddenNames[kind] {
		return nil, fmt.Errorf("%w: node kind %q at %s", ErrForbidden, kind, path)
	}
	allowed, ok := nodeAttrs[kind]
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q at %s", kind, path)
	}
	for _, name := range requiredAttrs[kind] {
		if _, ok := attrs[name]; !ok {
			return nil, fmt.Errorf("%s node at %s needs %q", kind, path, name)
		}
	}

	n := &node{
		kind:    kind,
		numbers: map[string]*expression{},
		texts:   map[string]*expression{},
		bools:   map[string]*expression{},
	}
	for _, name := range sortedKeys(attrs) {
		if name == "kind" {
			continue
		}
		attrPath := path + "." + name
		typ, ok := allowed[name]
		if !ok {
			typ, ok = commonAttrs[name]
		}
		if !ok {
			if forbiddenNames[name] {
				return nil, fmt.Errorf("%w: %q at %s", ErrForbidden, name, path)
			}
			return nil, fmt.Errorf("unknown attribute %q for %s node at %s", name, kind, path)
		}

		var err error
		switch typ {
		case attrNumber:
			n.numbers[name], err = compileValue(attrPath, attrs[name], typ)
		case attrText:
			n.texts[name], err = compileValue(attrPath, attrs[name], typ)
		case attrBool:
			n.bools[name], err = compileValue(attrPath, attrs[name], typ)
		case attrPoints:
			n.points, err = compilePoints(attrPath, attrs[name])
		case attrNodes:
			n.children, err = compileNodes(attrPath, attrs[name], urls)
		}
		if err != nil {
			return nil, err
		}
	}

	if src, ok := n.texts["src"]; ok && src.program == nil {
		resolved, err := urls.ResolveURL(src.literal.(string))
		if err != nil {
			return nil, fmt.Errorf("%s.src: %w", path, err)
		}
		src.literal = resolved
	}

	return n, nil
}

func compileValue(path string, raw any, typ attrType) (*expression, error) {
	if source, ok := isExpression(raw); ok {
		kind := exprText
		switch typ {
		case attrNumber:
			kind = exprNumber
		case attrBool:
			kind = exprBool
		}
		compiled, err := compileExpression(source, kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return compiled, nil
	}

	switch typ {
	case attrNumber:
		value, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &expression{source: path, literal: value}, nil
	case attrBool:
		value, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%s: expected a boolean, got %T", path, raw)
		}
		return &expression{source: path, literal: value}, nil
	default:
		switch raw.(type) {
		case string, int, float64, bool:
			return &expression{source: path, literal: fmt.Sprint(raw)}, nil
		default:
			return nil, fmt.Errorf("%s: expected text, got %T", path, raw)
		}
	}
}

func compilePoints(path string, raw any) ([][2]*expression, error) {
	list, ok := raw.([]any)
	if !ok || len(list) < 2 {
		return nil, fmt.Errorf("%s must be a list of at least two points", path)
	}

	points := make([][2]*expression, 0, len(list))
	for i, item := range list {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("%s[%d] must be an [x, y] pair", path, i)
		}
		var point [2]*expression
		for j := range pair {
			compiled, err := compileValue(fmt.Sprintf("%s[%d][%d]", path, i, j), pair[j], attrNumber)
			if err != nil {
				return nil, err
			}
			point[j] = compiled
		}
		points = append(points, point)
	}
	return points, nil
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
