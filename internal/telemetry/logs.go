package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
	"go.opentelemetry.io/otel/log/global"
)

// severityOffset is the distance between slog levels and otel severities,
// matching the otelslog bridge.
const severityOffset = slog.Level(log.SeverityDebug) - slog.LevelDebug

// SlogProvider hands records emitted through the otel log API back to an
// slog.Handler, so package loggers built with otelslog land in the same
// output as the application logger.
type SlogProvider struct {
	embedded.LoggerProvider
	handler slog.Handler
}

func NewSlogProvider(handler slog.Handler) *SlogProvider {
	return &SlogProvider{handler: handler}
}

// InstallLogProvider makes handler the destination of every otel logger.
func InstallLogProvider(handler slog.Handler) {
	global.SetLoggerProvider(NewSlogProvider(handler))
}

func (p *SlogProvider) Logger(name string, _ ...log.LoggerOption) log.Logger {
	handler := p.handler
	if name != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("scope", name)})
	}
	return &slogLogger{handler: handler}
}

type slogLogger struct {
	embedded.Logger
	handler slog.Handler
}

func (l *slogLogger) Enabled(ctx context.Context, param log.EnabledParameters) bool {
	return l.handler.Enabled(ctx, levelOf(param.Severity))
}

func (l *slogLogger) Emit(ctx context.Context, record log.Record) {
	level := levelOf(record.Severity())
	if !l.handler.Enabled(ctx, level) {
		return
	}

	out := slog.NewRecord(record.Timestamp(), level, record.Body().String(), 0)
	record.WalkAttributes(func(kv log.KeyValue) bool {
		out.AddAttrs(slog.Attr{Key: kv.Key, Value: valueOf(kv.Value)})
		return true
	})
	_ = l.handler.Handle(ctx, out)
}

func levelOf(severity log.Severity) slog.Level {
	if severity == log.SeverityUndefined {
		return slog.LevelInfo
	}
	return slog.Level(severity) - severityOffset
}

func valueOf(v log.Value) slog.Value {
	switch v.Kind() {
	case log.KindBool:
		return slog.BoolValue(v.AsBool())
	case log.KindInt64:
		return slog.Int64Value(v.AsInt64())
	case log.KindFloat64:
		return slog.Float64Value(v.AsFloat64())
	case log.KindString:
		return slog.StringValue(v.AsString())
	case log.KindMap:
		attrs := make([]slog.Attr, 0, len(v.AsMap()))
		for _, kv := range v.AsMap() {
			attrs = append(attrs, slog.Attr{Key: kv.Key, Value: valueOf(kv.Value)})
		}
		return slog.GroupValue(attrs...)
	}
	return slog.StringValue(v.String())
}
