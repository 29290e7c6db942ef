package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultTimeout    = 5 * time.Second
	DefaultBufferSize = 256
	DefaultWorkers    = 2
)

// NotifierConfig holds configuration for a Notifier.
type NotifierConfig struct {
	Sink       Sink
	Logger     *slog.Logger
	Stack      string
	Package    string
	Timeout    time.Duration // per-event delivery deadline
	BufferSize int
	Workers    int
}

// Notifier is an Emitter backed by a buffered queue and a pool of delivery
// workers. Emit never waits for delivery: when the queue is full the event
// is dropped and a warning is logged.
type Notifier struct {
	sink    Sink
	logger  *slog.Logger
	stack   string
	pkg     string
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan Event
	wg     sync.WaitGroup
}

// NewNotifier starts the delivery workers. Call Close to stop them.
func NewNotifier(cfg NotifierConfig) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = LogSink{Logger: logger}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	n := &Notifier{
		sink:    sink,
		logger:  logger,
		stack:   cfg.Stack,
		pkg:     cfg.Package,
		timeout: timeout,
		events:  make(chan Event, size),
	}

	n.wg.Add(workers)
	for range workers {
		go n.work()
	}
	return n
}

// Emit queues an event for delivery.
func (n *Notifier) Emit(ctx context.Context, level Level, message string) {
	ev := Event{
		Stack:   n.stack,
		Level:   level,
		Package: n.pkg,
		Message: message,
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.logger.WarnContext(ctx, "audit notifier closed, dropping event", "message", message)
		return
	}

	select {
	case n.events <- ev:
	default:
		n.logger.WarnContext(ctx, "audit queue full, dropping event",
			"level", string(level),
			"message", message,
		)
	}
}

// Close stops intake and waits for queued events to be delivered or for ctx
// to end, whichever comes first.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.events)
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) work() {
	defer n.wg.Done()
	for ev := range n.events {
		n.deliver(ev)
	}
}

func (n *Notifier) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.sink.Send(ctx, ev); err != nil {
		derr := &DeliveryError{Event: ev, Err: err}
		n.logger.Warn("audit delivery failed", "error", derr.Error())
	}
}
