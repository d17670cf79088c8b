package submsrvc

import (
	"log/slog"
	"time"

	"github.com/programme-lv/contest-client/evalstream"
)

type Option func(*Coordinator)

func WithSink(sink UpdateSink) Option {
	return func(c *Coordinator) {
		c.sink = sink
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithRequestValidator checks requests before they are sent
func WithRequestValidator(v RequestValidator) Option {
	return func(c *Coordinator) {
		c.validator = v
	}
}

// WithChannelOptions configures the live channel, e.g. its judge timeout
func WithChannelOptions(opts ...evalstream.Option) Option {
	return func(c *Coordinator) {
		c.chanOpts = append(c.chanOpts, opts...)
	}
}
