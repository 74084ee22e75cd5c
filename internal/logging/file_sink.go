package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogFileMaxBytes = 4 * 1024 * 1024
	keepSessionFiles       = 20
	sessionFilePattern     = "session-*.jsonl"
)

// fileRecord is one JSONL line.
type fileRecord struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// fileSink writes session-<tag>-<part>.jsonl files and moves to the next
// part once a write would push the current one past limit.
type fileSink struct {
	dir   string
	tag   string
	limit int64

	mu      sync.Mutex
	part    int
	current *os.File
	written int64
	closed  bool
}

func DefaultLogDirPath() (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cache, "liveconnect", "logs"), nil
}

func newFileSink(maxBytes int64) (*fileSink, error) {
	dir, err := DefaultLogDirPath()
	if err != nil {
		return nil, err
	}
	if err := pruneSessionFiles(dir, keepSessionFiles); err != nil {
		return nil, fmt.Errorf("prune log dir: %w", err)
	}
	return openFileSink(dir, time.Now().UTC().Format("20060102-150405"), maxBytes)
}

func openFileSink(dir string, tag string, maxBytes int64) (*fileSink, error) {
	if maxBytes <= 0 {
		maxBytes = defaultLogFileMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &fileSink{dir: dir, tag: tag, limit: maxBytes}
	if err := s.nextPart(); err != nil {
		return nil, err
	}
	return s, nil
}

func encodeRecord(event Event) ([]byte, error) {
	rec := fileRecord{
		Time:    event.Time.UTC().Format(time.RFC3339Nano),
		Level:   strings.ToUpper(event.Level.String()),
		Message: event.Message,
	}
	if len(event.Fields) > 0 {
		rec.Fields = make(map[string]any, len(event.Fields))
		for k, v := range event.Fields {
			rec.Fields[k] = jsonSafe(v)
		}
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

func (s *fileSink) WriteEvent(event Event) error {
	if s == nil {
		return nil
	}
	line, err := encodeRecord(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return os.ErrClosed
	case s.written > 0 && s.written+int64(len(line)) > s.limit:
		if err := s.nextPart(); err != nil {
			return err
		}
	}
	n, err := s.current.Write(line)
	s.written += int64(n)
	return err
}

func (s *fileSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.closeCurrent()
}

func (s *fileSink) closeCurrent() error {
	if s.current == nil {
		return nil
	}
	err := s.current.Close()
	s.current = nil
	s.written = 0
	return err
}

// nextPart must be called with mu held (or before the sink is shared).
func (s *fileSink) nextPart() error {
	_ = s.closeCurrent()
	s.part++
	name := fmt.Sprintf("session-%s-%03d.jsonl", s.tag, s.part)
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	s.current = f
	s.written = info.Size()
	return nil
}

// pruneSessionFiles removes the oldest session files so at most keep remain.
// Session tags are UTC timestamps, so name order is age order.
func pruneSessionFiles(dir string, keep int) error {
	matches, err := filepath.Glob(filepath.Join(dir, sessionFilePattern))
	if err != nil || len(matches) <= keep {
		return err
	}
	sort.Strings(matches)
	for _, path := range matches[:len(matches)-keep] {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func jsonSafe(value any) any {
	switch v := value.(type) {
	case error:
		return v.Error()
	case slog.Level:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return value
	}
}
