package sinks

import "context"

// Sink forwards delivered outcomes to a downstream destination (stdout, HTTP, SQS, etc).
type Sink interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
	Close() error
}
