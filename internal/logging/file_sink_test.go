package logging

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultLogDirPathSuffix(t *testing.T) {
	path, err := DefaultLogDirPath()
	if err != nil {
		t.Fatalf("DefaultLogDirPath() error = %v", err)
	}
	if want := filepath.Join("liveconnect", "logs"); !strings.HasSuffix(path, want) {
		t.Fatalf("DefaultLogDirPath() = %q, want suffix %q", path, want)
	}
}

func TestFileSinkWritesJSONLAndRotates(t *testing.T) {
	tmp := t.TempDir()
	sink, err := openFileSink(tmp, "20261018-090000", 160)
	if err != nil {
		t.Fatalf("openFileSink() error = %v", err)
	}

	event := Event{
		Time:    time.Unix(1760000000, 0),
		Level:   slog.LevelDebug,
		Message: "socket frame",
		Fields: map[string]any{
			"topic": "lv:phx-F1",
			"error": errors.New("closed"),
		},
	}
	for range 6 {
		if err := sink.WriteEvent(event); err != nil {
			t.Fatalf("WriteEvent() error = %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sink.WriteEvent(event); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("WriteEvent() after Close = %v, want os.ErrClosed", err)
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected rotation to create multiple files, got %d", len(entries))
	}
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "session-20261018-090000-") || !strings.HasSuffix(entry.Name(), ".jsonl") {
			t.Fatalf("unexpected log filename %q", entry.Name())
		}
		data, err := os.ReadFile(filepath.Join(tmp, entry.Name()))
		if err != nil {
			t.Fatalf("ReadFile(%q) error = %v", entry.Name(), err)
		}
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			var decoded fileRecord
			if err := json.Unmarshal([]byte(line), &decoded); err != nil {
				t.Fatalf("invalid json line %q: %v", line, err)
			}
			if decoded.Level != "DEBUG" || decoded.Fields["error"] != "closed" {
				t.Fatalf("decoded line = %#v", decoded)
			}
		}
	}
}

func TestLoggerCloseStopsFilePersistence(t *testing.T) {
	tmp := t.TempDir()
	logger := Discard()
	sink, err := openFileSink(tmp, "20261018-090001", 1024)
	if err != nil {
		t.Fatalf("openFileSink() error = %v", err)
	}
	logger.file = sink

	logger.Debug("hidden debug still persisted")
	logger.Info("before close")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	logger.Info("after close")

	entries, err := os.ReadDir(tmp)
	if err != nil || len(entries) == 0 {
		t.Fatalf("ReadDir() entries=%d err=%v", len(entries), err)
	}
	content, err := os.ReadFile(filepath.Join(tmp, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "hidden debug still persisted") || !strings.Contains(text, "before close") {
		t.Fatalf("missing pre-close events in %q", text)
	}
	if strings.Contains(text, "after close") {
		t.Fatalf("did not expect post-close event in log content")
	}
}

func TestPruneSessionFilesKeepsNewest(t *testing.T) {
	tmp := t.TempDir()
	names := []string{
		"session-20261016-080000-001.jsonl",
		"session-20261017-080000-001.jsonl",
		"session-20261018-080000-001.jsonl",
		"notes.txt",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(tmp, name), []byte("{}\n"), 0o600); err != nil {
			t.Fatalf("WriteFile(%q) error = %v", name, err)
		}
	}

	if err := pruneSessionFiles(tmp, 2); err != nil {
		t.Fatalf("pruneSessionFiles() error = %v", err)
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var got []string
	for _, entry := range entries {
		got = append(got, entry.Name())
	}
	want := "notes.txt,session-20261017-080000-001.jsonl,session-20261018-080000-001.jsonl"
	if strings.Join(got, ",") != want {
		t.Fatalf("remaining = %v, want %s", got, want)
	}
}
