// Package applog sets up the structured file logger used by the digitarc
// commands. The TUI owns the terminal, so logs only ever go to a file.
package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// handler formats log records as:
//
//	<timestamp>\t<level>\t<session>\t<message>\t<key=value ...>
type handler struct {
	mu      *sync.Mutex
	w       io.Writer
	session string
	level   slog.Leveler
	attrs   []slog.Attr
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s\t%s\t%s",
		r.Time.UTC().Format("2006-01-02T15:04:05Z"), r.Level.String(), h.session, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, "\t%s=%v", a.Key, a.Value)
		return true
	})
	b.WriteByte('\n')

	// Fetch goroutines log concurrently; keep lines whole.
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{
		mu:      h.mu,
		w:       h.w,
		session: h.session,
		level:   h.level,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *handler) WithGroup(string) slog.Handler { return h }

// NewHandler returns a tab-separated handler writing to w at or above level.
func NewHandler(w io.Writer, session string, level slog.Leveler) slog.Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &handler{mu: &sync.Mutex{}, w: w, session: session, level: level}
}

// ParseLevel maps debug, info, warn and error to a slog level. "" is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Open creates a logger appending to path. An empty path discards all
// output. The returned closer must be called on exit.
func Open(path, session string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if path == "" {
		return slog.New(NewHandler(io.Discard, session, level)), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return slog.New(NewHandler(f, session, level)), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Adapter wraps *slog.Logger so it satisfies the small Logger interfaces
// of the tree and ui packages.
type Adapter struct {
	l *slog.Logger
}

// NewAdapter wraps l. A nil l discards everything.
func NewAdapter(l *slog.Logger) *Adapter {
	if l == nil {
		l = slog.New(NewHandler(io.Discard, "", slog.LevelError))
	}
	return &Adapter{l: l}
}

// Slog returns the wrapped logger.
func (a *Adapter) Slog() *slog.Logger { return a.l }

func (a *Adapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *Adapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
