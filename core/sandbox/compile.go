package sandbox

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Sandbox compiles fragments. A Sandbox without dynamic compile support
// reports every fragment as unsupported.
type Sandbox struct {
	dynamic bool
}

type SandboxOption func(*Sandbox)

// WithDynamicCompile toggles whether the platform can compile fragments at
// all. It defaults to true.
func WithDynamicCompile(enabled bool) SandboxOption {
	return func(s *Sandbox) {
		s.dynamic = enabled
	}
}

func New(opts ...SandboxOption) *Sandbox {
	s := &Sandbox{dynamic: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile turns a fragment into a component bound to caps. It returns
// ErrNotReady for placeholders and a *Failure for everything else that
// goes wrong.
func (s *Sandbox) Compile(ctx context.Context, fragment Fragment, caps Capabilities) (*Component, error) {
	_, span := tracer.Start(ctx, "compile fragment")
	defer span.End()
	span.SetAttributes(
		attribute.String("fragment.language", fragment.Language),
		attribute.Int("fragment.size", len(fragment.Code)),
	)

	if !s.dynamic {
		span.SetStatus(codes.Error, "unsupported")
		return nil, &Failure{Stage: StageUnsupported, Err: ErrUnsupported}
	}
	if fragment.IsPlaceholder() {
		return nil, ErrNotReady
	}

	caps = caps.withDefaults()

	document, err := parseFragment(fragment)
	if err != nil {
		return nil, failCompile(span, err)
	}
	compiled, err := compileScene(document, caps.URLs)
	if err != nil {
		return nil, failCompile(span, err)
	}

	return &Component{scene: compiled, caps: caps}, nil
}

func failCompile(span trace.Span, err error) error {
	failure := compileFailure(err)
	span.RecordError(failure)
	span.SetStatus(codes.Error, "compile failed")
	return failure
}

// Load compiles fragment and instantiates it against rc.
func (s *Sandbox) Load(ctx context.Context, fragment Fragment, caps Capabilities, rc RenderContext) (*Component, Canvas, error) {
	component, err := s.Compile(ctx, fragment, caps)
	if err != nil {
		return nil, nil, err
	}

	canvas, err := component.Instantiate(ctx, rc)
	if err != nil {
		return nil, nil, err
	}
	return component, canvas, nil
}

// IsNotReady reports whether err marks a placeholder fragment.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}
