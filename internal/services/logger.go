package services

import (
	"go.uber.org/zap"
)

// NewLogger builds the process logger. JSON output is meant for production.
func NewLogger(json bool) (*zap.Logger, error) {
	if json {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
