package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// indirections for tests
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// ContextProvider returns attributes describing the live server, such as the
// number of running matches. It is called once per record that some sink accepts.
type ContextProvider func(ctx context.Context) []slog.Attr

// serverHandler stamps every record with the server state and delivers it to
// each sink that accepts its level. A failing sink does not stop the others.
type serverHandler struct {
	sinks []slog.Handler
	state ContextProvider
}

func newServerHandler(state ContextProvider, sinks ...slog.Handler) *serverHandler {
	h := &serverHandler{state: state}
	for _, s := range sinks {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
	return h
}

func (h *serverHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *serverHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.state != nil {
		r.AddAttrs(h.state(ctx)...)
	}
	var errs []error
	for _, s := range h.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *serverHandler) derive(fn func(slog.Handler) slog.Handler) *serverHandler {
	out := &serverHandler{state: h.state, sinks: make([]slog.Handler, len(h.sinks))}
	for i, s := range h.sinks {
		out.sinks[i] = fn(s)
	}
	return out
}

func (h *serverHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *serverHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

// SlogManager owns the process logger.
type SlogManager struct {
	logger   *slog.Logger
	provider ContextProvider
}

// NewSlogManager creates a new slog-based logging manager.
// provider may be nil; when set its attributes are added to every record.
func NewSlogManager(provider ContextProvider) *SlogManager {
	return &SlogManager{provider: provider}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// Setup builds the logger. Records go to file when it is non-nil, otherwise to
// stdout, and to every extra handler (Graylog, tests).
func (m *SlogManager) Setup(file io.Writer, level string, extra ...slog.Handler) {
	opts := handlerOptions(level)

	out := file
	if out == nil {
		out = osStdout
	}
	sinks := append([]slog.Handler{slog.NewTextHandler(out, opts)}, extra...)

	m.logger = slog.New(newServerHandler(m.provider, sinks...))
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Component returns a child logger tagged with a component name.
func (m *SlogManager) Component(name string) *slog.Logger {
	return m.Logger().With("component", name)
}
