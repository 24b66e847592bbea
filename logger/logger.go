package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Log is the process-wide structured logger. It discards everything until
// Init is called, which keeps tests quiet.
var Log = zap.NewNop().Sugar()

// Init builds the zap logger for the given mode ("production" or anything
// else for the development encoder).
func Init(mode string) error {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	zapLogger, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = zapLogger.Sugar()
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}
