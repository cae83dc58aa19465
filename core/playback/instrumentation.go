package playback

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-lesson/core/playback"

var logger = otelslog.NewLogger(scopeName)
