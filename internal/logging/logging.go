// Package logging builds the process logger: production JSON to stderr,
// with error-level entries teed to a log file so the diagnostic log
// endpoint can read them back.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the application logger. errorLogPath receives error-level
// entries as JSON lines; pass "" to disable the file sink.
func New(errorLogPath string) (*zap.Logger, error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	if errorLogPath == "" {
		return base, nil
	}

	if dir := filepath.Dir(errorLogPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	file, err := os.OpenFile(errorLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	fileCore := zapcore.NewCore(encoder, zapcore.AddSync(file), zapcore.ErrorLevel)

	return zap.New(zapcore.NewTee(base.Core(), fileCore)), nil
}
