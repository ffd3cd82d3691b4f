package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/man10/strike/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one command invocation from a player or the console.
type Event struct {
	Command string
	// Sender is uuid.Nil for the server console.
	Sender    core.PlayerID
	Args      []string
	Timestamp time.Time
}

// Arg returns the i-th argument or "" when absent.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// FromConsole reports whether the event was not sent by a player.
func (e Event) FromConsole() bool {
	return e.Sender == core.PlayerID{}
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	internal   bool
	usage      string
	summary    string
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Usage documents the argument syntax and purpose of a command for help output.
func Usage(syntax, summary string) Option {
	return func(c *config) {
		c.usage = syntax
		c.summary = summary
	}
}

// Internal hides a command from help output and from host callers. The
// plugin itself dispatches internal commands, such as disconnect events.
func Internal() Option {
	return func(c *config) {
		c.internal = true
	}
}

// Help describes one registered command.
type Help struct {
	Command string
	Syntax  string
	Summary string
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	help     map[string]Help
	internal map[string]bool
	logger   Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter

	mu      sync.RWMutex
	buffers map[string]chan Event
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		help:     make(map[string]Help),
		internal: make(map[string]bool),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"strike.dispatcher.queue.size",
		metric.WithDescription("Current number of commands waiting in a handler queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"strike.dispatcher.commands.processed",
		metric.WithDescription("Total commands processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"strike.dispatcher.commands.failed",
		metric.WithDescription("Total commands that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"strike.dispatcher.commands.dropped",
		metric.WithDescription("Total commands dropped due to a full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
// Registering the same command twice replaces the earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withRecover(command, h)

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	} else {
		handler = d.withCount(command, handler)
	}

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.help[command] = Help{Command: command, Syntax: cfg.usage, Summary: cfg.summary}
	d.internal[command] = cfg.internal
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// IsInternal reports whether command was registered with Internal.
func (d *Dispatcher) IsInternal(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.internal[command]
}

// Commands returns help for every public command, sorted by name.
func (d *Dispatcher) Commands() []Help {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Help, 0, len(d.help))
	for cmd, h := range d.help {
		if d.internal[cmd] {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// Close stops all buffered handler goroutines once their queues drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for cmd, buf := range d.buffers {
		close(buf)
		delete(d.buffers, cmd)
	}
}

// withRecover turns a handler panic into an error so one bad command cannot
// take down the host process.
func (d *Dispatcher) withRecover(command string, h HandlerFunc) HandlerFunc {
	cmdAttr := attribute.String("command", command)
	return func(e Event) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("command panicked", "command", command, "panic", r)
				result, err = nil, fmt.Errorf("command %s panicked: %v", command, r)
			}
			if err != nil {
				d.failed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			}
		}()
		return h(e)
	}
}

func (d *Dispatcher) withCount(command string, h HandlerFunc) HandlerFunc {
	cmdAttr := attribute.String("command", command)
	return func(e Event) (any, error) {
		defer d.processed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
		return h(e)
	}
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	go func() {
		for e := range buffer {
			if _, err := h(e); err != nil {
				d.logger.Error("queued command failed", "command", command, "error", err)
			}
			d.processed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			buffer <- e
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "sender", e.Sender, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
