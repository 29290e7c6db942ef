// Package audit delivers operation events to a remote log collector.
//
// Delivery is best effort. Emitters never block the caller beyond a
// non-blocking enqueue, and delivery failures are logged, never returned.
package audit

import (
	"context"
	"fmt"
)

// Level is the severity attached to an Event.
type Level string

const (
	Debug Level = "DEBUG"
	Info  Level = "INFO"
	Warn  Level = "WARN"
	Error Level = "ERROR"
	Fatal Level = "FATAL"
)

// Event is the (stack, level, package, message) tuple accepted by the collector.
type Event struct {
	Stack   string `json:"stack"`
	Level   Level  `json:"level"`
	Package string `json:"package"`
	Message string `json:"message"`
}

// Emitter records an operation outcome.
type Emitter interface {
	Emit(ctx context.Context, level Level, message string)
}

// Sink delivers a single event.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// DeliveryError reports an event the sink failed to deliver.
type DeliveryError struct {
	Event Event
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("audit delivery failed (%s %s): %v", e.Event.Level, e.Event.Message, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, Level, string) {}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, level Level, message string)

func (f EmitterFunc) Emit(ctx context.Context, level Level, message string) { f(ctx, level, message) }
