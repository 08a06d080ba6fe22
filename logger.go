package hlms

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for hlms and every registered engine.
// By default hlms produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used by hlms:
//   - [slog.LevelDebug]: cache hits and misses, PSO creation
//   - [slog.LevelInfo]: data folders loaded, shader profile selected
//   - [slog.LevelWarn]: template syntax errors, compile timeouts, empty libraries
//   - [slog.LevelError]: shader generation failures
//
// Example:
//
//	hlms.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	enginesMu.Lock()
	list := make([]*Hlms, 0, len(engines))
	for h := range engines {
		list = append(list, h)
	}
	enginesMu.Unlock()
	for _, h := range list {
		h.propagateLogger(l)
	}
}

// Logger returns the current logger used by hlms.
// Sub-packages call this to share the same logger configuration.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

func slogger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by collaborators that accept a logger:
// render systems and program managers.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

func propagateLogger(v any, l *slog.Logger) {
	if ls, ok := v.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

// engines tracks live engines so SetLogger reaches their collaborators.
var (
	enginesMu sync.Mutex
	engines   = map[*Hlms]struct{}{}
)

func trackEngine(h *Hlms) {
	enginesMu.Lock()
	engines[h] = struct{}{}
	enginesMu.Unlock()
}

func untrackEngine(h *Hlms) {
	enginesMu.Lock()
	delete(engines, h)
	enginesMu.Unlock()
}
