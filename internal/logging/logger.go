// Package logging is the structured logger shared by the viewer, the socket
// layer and both front ends. Events go to an optional JSONL file, the
// terminal and any in-process subscribers (the TUI log pane).
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Event struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Fields  map[string]any
}

// outputs is shared between a Logger and every child returned by With.
type outputs struct {
	debug    atomic.Bool
	terminal atomic.Bool
	pretty   bool
	out      io.Writer

	mu     sync.RWMutex
	file   *fileSink
	nextID int
	subs   map[int]func(Event)
}

type Logger struct {
	*outputs
	scope []slog.Attr
}

func New(debug bool) *Logger {
	o := &outputs{
		pretty: shouldPrettyPrint(),
		out:    os.Stderr,
		subs:   map[int]func(Event){},
	}
	o.debug.Store(debug)
	o.terminal.Store(true)
	return &Logger{outputs: o}
}

// Discard returns a logger with terminal output off. Subscribers still
// receive events, which is what tests usually assert on.
func Discard() *Logger {
	l := New(false)
	l.SetTerminalOutputEnabled(false)
	return l
}

func Field(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// With returns a child logger that prepends fields to every event. The child
// shares outputs, subscribers and the debug flag with l.
func (l *Logger) With(fields ...slog.Attr) *Logger {
	if l == nil {
		return nil
	}
	scope := make([]slog.Attr, 0, len(l.scope)+len(fields))
	scope = append(scope, l.scope...)
	scope = append(scope, fields...)
	return &Logger{outputs: l.outputs, scope: scope}
}

func (l *Logger) Debug(msg string, fields ...slog.Attr) { l.logAt(slog.LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...slog.Attr)  { l.logAt(slog.LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...slog.Attr)  { l.logAt(slog.LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...slog.Attr) { l.logAt(slog.LevelError, msg, fields) }

func (l *Logger) DebugEnabled() bool {
	return l != nil && l.debug.Load()
}

func (l *Logger) SetDebugEnabled(enabled bool) {
	if l != nil {
		l.debug.Store(enabled)
	}
}

func (l *Logger) SetTerminalOutputEnabled(enabled bool) {
	if l != nil {
		l.terminal.Store(enabled)
	}
}

// EnableFilePersistence starts a new JSONL session file under
// DefaultLogDirPath, replacing any file opened earlier.
func (l *Logger) EnableFilePersistence(maxBytes int64) error {
	if l == nil {
		return nil
	}
	sink, err := newFileSink(maxBytes)
	if err != nil {
		return err
	}
	_ = l.swapFile(sink)
	return nil
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	return l.swapFile(nil)
}

// Subscribe registers fn for every published event and returns a func
// that removes it again.
func (l *Logger) Subscribe(fn func(Event)) func() {
	if l == nil {
		panic("logging.Logger.Subscribe: logger must not be nil")
	}
	if fn == nil {
		panic("logging.Logger.Subscribe: callback must not be nil")
	}
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}
}

func (l *Logger) logAt(level slog.Level, msg string, fields []slog.Attr) {
	if l == nil {
		return
	}
	attrs := fields
	if len(l.scope) > 0 {
		attrs = make([]slog.Attr, 0, len(l.scope)+len(fields))
		attrs = append(attrs, l.scope...)
		attrs = append(attrs, fields...)
	}
	event := Event{Time: time.Now(), Level: level, Message: msg, Fields: fieldsFromAttrs(attrs)}

	l.mu.RLock()
	file := l.file
	l.mu.RUnlock()
	if file != nil {
		_ = file.WriteEvent(event)
	}

	// the file keeps debug lines even while the flag is off
	if level == slog.LevelDebug && !l.debug.Load() {
		return
	}
	if l.terminal.Load() {
		l.writeTerminal(event)
	}
	l.notify(event)
}

func (o *outputs) swapFile(next *fileSink) error {
	o.mu.Lock()
	prev := o.file
	o.file = next
	o.mu.Unlock()
	if prev == nil {
		return nil
	}
	return prev.Close()
}

func (o *outputs) writeTerminal(event Event) {
	line := FormatEventLine(event)
	if o.pretty {
		line = FormatEventANSI(event)
	}
	_, _ = io.WriteString(o.out, line)
}

func (o *outputs) notify(event Event) {
	o.mu.RLock()
	subs := make([]func(Event), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
}
