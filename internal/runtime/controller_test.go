package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"liveconnect/internal/bootstrap"
	"liveconnect/internal/config"
	"liveconnect/internal/logging"
	"liveconnect/internal/runstatus"
)

func TestController_StartRequiresPageURL(t *testing.T) {
	c := NewController(context.Background())
	if err := c.Start(config.Options{}, logging.Discard(), StartHooks{}); err == nil {
		t.Fatalf("Start() expected validation error")
	}
	if c.IsRunning() {
		t.Fatalf("controller running after failed start")
	}
}

func TestController_ReportsExitError(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `<html><head></head><body></body></html>`)
	}))
	defer srv.Close()

	c := NewController(context.Background())
	exits := make(chan error, 1)
	var statuses []string
	err := c.Start(config.Options{PageURL: srv.URL + "/"}, logging.Discard(), StartHooks{
		OnStatus: func(s string) { statuses = append(statuses, s) },
		OnExit:   func(err error) { exits <- err },
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case exitErr := <-exits:
		if !errors.Is(exitErr, bootstrap.ErrTokenMissing) {
			t.Fatalf("exit err = %v, want ErrTokenMissing", exitErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("service did not exit")
	}
	if !c.Wait(time.Second) {
		t.Fatalf("Wait() timed out")
	}
	if c.IsRunning() {
		t.Fatalf("controller still running")
	}
	if len(statuses) != 1 || statuses[0] != runstatus.PageLoaded {
		t.Fatalf("statuses = %v", statuses)
	}
}

func TestController_StopAndWait(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewController(context.Background())
	if err := c.Start(config.Options{PageURL: srv.URL + "/"}, logging.Discard(), StartHooks{}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Start(config.Options{PageURL: srv.URL + "/"}, logging.Discard(), StartHooks{}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start() = %v, want ErrAlreadyRunning", err)
	}
	if !c.StopAndWait(5 * time.Second) {
		t.Fatalf("StopAndWait() timed out")
	}
	if c.IsRunning() {
		t.Fatalf("controller still running after stop")
	}
}

func TestController_WaitWithoutRun(t *testing.T) {
	c := NewController(context.Background())
	if !c.Wait(time.Millisecond) {
		t.Fatalf("Wait() on idle controller timed out")
	}
	c.Stop()
}
