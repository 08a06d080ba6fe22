package hlms

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	ctx := context.Background()
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(ctx, level) {
			t.Errorf("Enabled(%v) = true", level)
		}
	}
	if err := h.Handle(ctx, slog.Record{}); err != nil {
		t.Errorf("Handle = %v", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).(nopHandler); !ok {
		t.Error("WithAttrs left the nop handler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup left the nop handler")
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(custom)
	if Logger() != custom {
		t.Fatal("Logger did not return the installed logger")
	}
	slogger().Info("hlms ready", "type", TypePbs.String())
	if !strings.Contains(buf.String(), "hlms ready") {
		t.Errorf("output %q misses the record", buf.String())
	}

	SetLogger(nil)
	l := Logger()
	if l == nil {
		t.Fatal("SetLogger(nil) stored nil")
	}
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) did not restore the silent logger")
	}
}

func TestSetLoggerPropagatesToCollaborators(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	e := newTestEngine(t)
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)

	if e.progs.currentLogger() != custom {
		t.Error("SetLogger did not propagate to the program manager")
	}
	e.rs.mu.Lock()
	got := e.rs.logger
	e.rs.mu.Unlock()
	if got != custom {
		t.Error("SetLogger did not propagate to the render system")
	}
}

func TestNewPropagatesCurrentLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	// Set a custom logger before the engine exists.
	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	SetLogger(custom)

	e := newTestEngine(t)
	if e.progs.currentLogger() != custom {
		t.Error("New did not hand the current logger to the program manager")
	}
}

func TestClosedEngineNotTracked(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	enginesMu.Lock()
	_, ok := engines[e.Hlms]
	enginesMu.Unlock()
	if ok {
		t.Error("closed engine still receives SetLogger")
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	e := newTestEngine(t)
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			slogger().Debug("read", "engine", e.Name())
		}()
		go func() {
			defer wg.Done()
			SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
			SetLogger(nil)
		}()
	}
	wg.Wait()
}

func BenchmarkDisabledLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("cache hit", "hash", 0x1234)
	}
}
