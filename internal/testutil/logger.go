package testutil

import (
	"io"

	"github.com/dtroode/authgate/internal/logger"
)

// MakeNoopLogger returns a logger that discards every record.
func MakeNoopLogger() *logger.Logger {
	return logger.NewWithWriter(-4, io.Discard)
}
