package sandbox

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprEnv is the only state an expression can see.
type exprEnv struct {
	Time     float64    `expr:"time"`
	Playing  bool       `expr:"playing"`
	Captions bool       `expr:"captions"`
	Slide    exprSlide  `expr:"slide"`
	Timeline []exprCue  `expr:"timeline"`
	Words    []exprWord `expr:"words"`
	Spoken   string     `expr:"spoken"`
}

type exprSlide struct {
	Index int    `expr:"index"`
	Total int    `expr:"total"`
	Title string `expr:"title"`
}

type exprCue struct {
	At    float64 `expr:"at"`
	Label string  `expr:"label"`
}

type exprWord struct {
	Word  string  `expr:"word"`
	Start float64 `expr:"start"`
	End   float64 `expr:"end"`
}

func newExprEnv(rc RenderContext) exprEnv {
	env := exprEnv{
		Time:     rc.TimeSeconds,
		Playing:  rc.IsPlaying,
		Captions: rc.ShowCaptions,
		Slide:    exprSlide{Index: rc.Slide.Index, Total: rc.Slide.Total, Title: rc.Slide.Title},
		Spoken:   rc.SpokenText,
	}
	for _, cue := range rc.Timeline {
		env.Timeline = append(env.Timeline, exprCue{At: cue.At, Label: cue.Label})
	}
	for _, word := range rc.Words {
		env.Words = append(env.Words, exprWord{Word: word.Word, Start: word.Start, End: word.End})
	}
	return env
}

// forbiddenNames are capabilities a fragment may name but never reach.
var forbiddenNames = map[string]bool{
	"import":  true,
	"require": true,
	"fetch":   true,
	"file":    true,
	"exec":    true,
	"script":  true,
	"eval":    true,
	"module":  true,
	"network": true,
	"env":     true,
	"process": true,
}

// disabledBuiltins depend on the wall clock or the host environment.
var disabledBuiltins = []string{"now", "date", "duration", "timezone"}

func exprOptions(expect ...expr.Option) []expr.Option {
	options := []expr.Option{
		expr.Env(exprEnv{}),
		expr.Function("clamp", func(params ...any) (any, error) {
			v, lo, hi, err := threeFloats("clamp", params)
			if err != nil {
				return nil, err
			}
			return math.Min(math.Max(v, lo), hi), nil
		}),
		expr.Function("lerp", func(params ...any) (any, error) {
			a, b, t, err := threeFloats("lerp", params)
			if err != nil {
				return nil, err
			}
			return a + (b-a)*t, nil
		}),
		expr.Function("ease", func(params ...any) (any, error) {
			t, err := oneFloat("ease", params)
			if err != nil {
				return nil, err
			}
			t = math.Min(math.Max(t, 0), 1)
			return t * t * (3 - 2*t), nil
		}),
		expr.Function("sin", func(params ...any) (any, error) {
			t, err := oneFloat("sin", params)
			if err != nil {
				return nil, err
			}
			return math.Sin(t), nil
		}),
		expr.Function("cos", func(params ...any) (any, error) {
			t, err := oneFloat("cos", params)
			if err != nil {
				return nil, err
			}
			return math.Cos(t), nil
		}),
	}
	for _, name := range disabledBuiltins {
		options = append(options, expr.DisableBuiltin(name))
	}
	return append(options, expect...)
}

func oneFloat(name string, params []any) (float64, error) {
	if len(params) != 1 {
		return 0, fmt.Errorf("%s expects 1 argument, got %d", name, len(params))
	}
	return toFloat(params[0])
}

func threeFloats(name string, params []any) (float64, float64, float64, error) {
	if len(params) != 3 {
		return 0, 0, 0, fmt.Errorf("%s expects 3 arguments, got %d", name, len(params))
	}
	var values [3]float64
	for i, param := range params {
		value, err := toFloat(param)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%s: %w", name, err)
		}
		values[i] = value
	}
	return values[0], values[1], values[2], nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
}

type exprKind int

const (
	exprNumber exprKind = iota
	exprBool
	exprText
)

// expression is an attribute value that is either a literal or a
// compiled program.
type expression struct {
	source  string
	program *vm.Program
	literal any
}

func isExpression(value any) (string, bool) {
	text, ok := value.(string)
	if !ok || !strings.HasPrefix(text, "=") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(text, "=")), true
}

func compileExpression(source string, kind exprKind) (*expression, error) {
	if source == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if name := forbiddenIdentifier(source); name != "" {
		return nil, fmt.Errorf("%w: %q", ErrForbidden, name)
	}

	var expect []expr.Option
	switch kind {
	case exprNumber:
		expect = append(expect, expr.AsFloat64())
	case exprBool:
		expect = append(expect, expr.AsBool())
	}

	program, err := expr.Compile(source, exprOptions(expect...)...)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", source, err)
	}
	return &expression{source: source, program: program}, nil
}

// forbiddenIdentifier returns the first forbidden name used as an
// identifier in source, ignoring quoted text.
func forbiddenIdentifier(source string) string {
	var unquoted strings.Builder
	var quote rune
	for _, r := range source {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			unquoted.WriteRune(' ')
		case r == '"' || r == '\'' || r == '`':
			quote = r
			unquoted.WriteRune(' ')
		default:
			unquoted.WriteRune(r)
		}
	}

	words := strings.FieldsFunc(unquoted.String(), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, word := range words {
		if forbiddenNames[word] {
			return word
		}
	}
	return ""
}

func (e *expression) eval(env exprEnv) (any, error) {
	if e.program == nil {
		return e.literal, nil
	}
	out, err := expr.Run(e.program, env)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", e.source, err)
	}
	return out, nil
}

func (e *expression) number(env exprEnv) (float64, error) {
	out, err := e.eval(env)
	if err != nil {
		return 0, err
	}
	value, err := toFloat(out)
	if err != nil {
		return 0, fmt.Errorf("expression %q: %w", e.source, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("expression %q: non-finite result %v", e.source, value)
	}
	return value, nil
}

func (e *expression) boolean(env exprEnv) (bool, error) {
	out, err := e.eval(env)
	if err != nil {
		return false, err
	}
	value, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q: expected a boolean, got %T", e.source, out)
	}
	return value, nil
}

func (e *expression) text(env exprEnv) (string, error) {
	out, err := e.eval(env)
	if err != nil {
		return "", err
	}
	switch v := out.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), "."), nil
	default:
		return fmt.Sprint(v), nil
	}
}
