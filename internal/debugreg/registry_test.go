package debugreg

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"liveconnect/internal/logging"
)

type fakeHandle struct {
	connects    int
	disconnects int
}

func (f *fakeHandle) Connect()    { f.connects++ }
func (f *fakeHandle) Disconnect() { f.disconnects++ }
func (f *fakeHandle) DebugSnapshot() any {
	return map[string]any{"state": "open", "connects": f.connects}
}

func TestPublish_WriteOnce(t *testing.T) {
	reg := New()
	first := &fakeHandle{}
	if err := reg.Publish("liveSocket", first); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := reg.Publish("liveSocket", &fakeHandle{}); !errors.Is(err, ErrAlreadyPublished) {
		t.Fatalf("second Publish() err = %v, want ErrAlreadyPublished", err)
	}
	got, ok := reg.Lookup("liveSocket")
	if !ok || got != first {
		t.Fatalf("Lookup() = %v, %v; want first handle", got, ok)
	}
	if err := reg.Publish(" ", first); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Publish(blank) err = %v", err)
	}
	if err := reg.Publish("other", nil); err == nil {
		t.Fatalf("Publish(nil) expected error")
	}
}

func TestHandler_ListSnapshotAndDrive(t *testing.T) {
	reg := New()
	handle := &fakeHandle{}
	_ = reg.Publish("liveSocket", handle)
	_ = reg.Publish("plain", map[string]string{"k": "v"})

	srv := httptest.NewServer(reg.Handler(logging.Discard()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/handles")
	if err != nil {
		t.Fatalf("GET list error = %v", err)
	}
	var list struct {
		Items []handleSummary `json:"items"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list.Items) != 2 || list.Items[0].Name != "liveSocket" || !list.Items[0].Drivable || list.Items[1].Drivable {
		t.Fatalf("list = %#v", list.Items)
	}

	resp, err = http.Post(srv.URL+"/debug/handles/liveSocket/connect", "application/json", nil)
	if err != nil {
		t.Fatalf("POST connect error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || handle.connects != 1 {
		t.Fatalf("connect status = %d connects = %d", resp.StatusCode, handle.connects)
	}

	resp, err = http.Post(srv.URL+"/debug/handles/liveSocket/disconnect", "application/json", nil)
	if err != nil {
		t.Fatalf("POST disconnect error = %v", err)
	}
	resp.Body.Close()
	if handle.disconnects != 1 {
		t.Fatalf("disconnects = %d", handle.disconnects)
	}

	resp, err = http.Get(srv.URL + "/debug/handles/liveSocket")
	if err != nil {
		t.Fatalf("GET handle error = %v", err)
	}
	var snap map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&snap)
	resp.Body.Close()
	if snap["state"] != "open" || snap["connects"] != float64(1) {
		t.Fatalf("snapshot = %#v", snap)
	}

	resp, err = http.Post(srv.URL+"/debug/handles/plain/connect", "application/json", nil)
	if err != nil {
		t.Fatalf("POST plain connect error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("plain connect status = %d, want 409", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/debug/handles/missing")
	if err != nil {
		t.Fatalf("GET missing error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/debug/handles/liveSocket/connect")
	if err != nil {
		t.Fatalf("GET connect error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET connect status = %d, want 405", resp.StatusCode)
	}
}

func TestServeListener_StopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	reg := New()
	_ = reg.Publish("liveSocket", &fakeHandle{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeListener(ctx, listener, reg.Handler(logging.Discard()), logging.Discard()) }()

	url := "http://" + listener.Addr().String() + "/debug/handles"
	var body string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, getErr := http.Get(url)
		if getErr == nil {
			buf := new(strings.Builder)
			_, _ = io.Copy(buf, resp.Body)
			resp.Body.Close()
			body = buf.String()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(body, "liveSocket") {
		t.Fatalf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ServeListener() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("ServeListener() did not stop")
	}
}
