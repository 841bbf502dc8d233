package service

import (
	"time"

	"github.com/garyjia/ncr-tracker/internal/application/port"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Upload is a file received from a client, not yet stored
type Upload struct {
	Filename string
	Content  []byte
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

var _ port.Clock = SystemClock{}
