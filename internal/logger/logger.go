// Package logger builds the process-wide zap logger.
//
// Go Pattern: the logger is constructed once in main and injected into every
// component as a *zap.Logger. Components call Named() to tag their entries,
// so nothing reaches for a global.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// FilePath is the rotated JSON log file. Empty disables file output.
	FilePath string
	// Production selects the JSON console encoder and info level.
	Production bool
}

// New creates a logger that tees JSON to a lumberjack-rotated file and
// human-readable output to stdout.
func New(opts Options) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	consoleEncoder := jsonEncoder
	consoleLevel := zap.InfoLevel
	if !opts.Production {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		consoleLevel = zap.DebugLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), consoleLevel),
	}
	if opts.FilePath != "" {
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(rotator(opts.FilePath)), zap.InfoLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func rotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}
