package afsk

import (
	"time"

	"github.com/charmbracelet/log"
)

// Sink is somewhere decoded messages go.  Deliver should not block for
// long; errors are logged by the caller and the message is not retried.
type Sink interface {
	Name() string
	Deliver(msg Message, heard time.Time) error
	Close() error
}

// ConsoleSink prints decoded messages with the logger.
type ConsoleSink struct {
	Logger *log.Logger
}

func (c ConsoleSink) Name() string { return "console" }

func (c ConsoleSink) Deliver(msg Message, heard time.Time) error {
	c.Logger.Info("RX MESSAGE", "text", msg.Text(), "bytes", len(msg.Payload), "heard", heard.Format(time.DateTime))
	return nil
}

func (c ConsoleSink) Close() error { return nil }

// SinkFunc adapts a function, mostly for tests and tools.
type SinkFunc func(msg Message, heard time.Time) error

func (f SinkFunc) Name() string { return "func" }

func (f SinkFunc) Deliver(msg Message, heard time.Time) error { return f(msg, heard) }

func (f SinkFunc) Close() error { return nil }
