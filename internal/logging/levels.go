package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug. The orchestrator logs stage transitions
// at this level.
const TraceLevel = zapcore.DebugLevel - 1

// LevelFromString parses a level name. "trace" is accepted in addition
// to zap's names; empty means info.
func LevelFromString(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return zapcore.InfoLevel, nil
	case "trace":
		return TraceLevel, nil
	}
	return zapcore.ParseLevel(level)
}
