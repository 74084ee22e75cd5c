package plain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"liveconnect/internal/bootstrap"
	"liveconnect/internal/config"
	"liveconnect/internal/logging"
	"liveconnect/internal/progress"
)

func TestRun_MissingTokenReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, `<html><head><title>static</title></head><body></body></html>`)
	}))
	defer srv.Close()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := Run(ctx, "test", config.Options{PageURL: srv.URL + "/"}, logging.Discard())
	if !errors.Is(err, bootstrap.ErrTokenMissing) {
		t.Fatalf("Run() err = %v, want ErrTokenMissing", err)
	}
}

func TestRun_RequiresPageURL(t *testing.T) {
	if err := Run(context.Background(), "test", config.Options{}, logging.Discard()); err == nil {
		t.Fatalf("Run() without page URL succeeded")
	}
}

func TestReporter_LogsIndicatorTransitions(t *testing.T) {
	logger := logging.Discard()
	var mu sync.Mutex
	var messages []string
	unsubscribe := logger.Subscribe(func(event logging.Event) {
		mu.Lock()
		messages = append(messages, event.Message)
		mu.Unlock()
	})
	defer unsubscribe()

	r := reporter{logger: logger}
	r.progress(progress.Snapshot{Active: true, Value: 0.08})
	r.progress(progress.Snapshot{Active: true, Value: 0.2})
	r.progress(progress.Snapshot{Active: false, Value: 1})
	r.status("Connected")
	r.status("Connected")

	mu.Lock()
	defer mu.Unlock()
	got := strings.Join(messages, "|")
	if want := "page loading started|page loading finished|status changed"; got != want {
		t.Fatalf("messages = %q, want %q", got, want)
	}
}
