package repair

import "go.opentelemetry.io/otel"

const scopeName = "github.com/koscakluka/ema-lesson/core/repair"

var tracer = otel.Tracer(scopeName)
